package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mirrorbot/mirrorbot/internal/alerts"
	"github.com/mirrorbot/mirrorbot/internal/eventbus"
	"github.com/mirrorbot/mirrorbot/internal/execution"
	"github.com/mirrorbot/mirrorbot/internal/model"
	"github.com/mirrorbot/mirrorbot/internal/positionbook"
	"github.com/mirrorbot/mirrorbot/internal/quote"
	"github.com/mirrorbot/mirrorbot/internal/risk"
)

// stubOracle always reports amountIn as filled with no slippage, so the
// Mirror call under test always confirms on the first attempt.
type stubOracle struct{}

func (stubOracle) GetQuote(ctx context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (quote.Quote, error) {
	return quote.Quote{AmountOut: amountIn, GuaranteedOut: amountIn}, nil
}

// stubSubmitter confirms every submission on the first attempt.
type stubSubmitter struct{}

func (stubSubmitter) Sign(ctx context.Context, q quote.Quote) (any, error) { return q, nil }
func (stubSubmitter) Submit(ctx context.Context, signed any, attempt int) (string, bool, error) {
	return "0xfilled", true, nil
}
func (stubSubmitter) Escalate(ctx context.Context, signed any, attempt int) (any, error) {
	return signed, nil
}
func (stubSubmitter) RetryDelay(attempt int) time.Duration { return 0 }

func newTestOrchestrator() (*Orchestrator, *positionbook.Book) {
	book := positionbook.New()
	engine := execution.NewEngine(stubOracle{}, stubSubmitter{})
	return &Orchestrator{
		Book:        book,
		Risk:        risk.NewEvaluator(risk.Config{TTL: 24 * time.Hour}),
		Engines:     Engines{model.ChainEVM: engine},
		Notifier:    alerts.New(""),
		MirrorRatio: decimal.NewFromFloat(0.5),
	}, book
}

func TestOpenOrUpdateComputesBookSizeFromEventNotExecAmount(t *testing.T) {
	o, book := newTestOrchestrator()

	ev := model.TradeEvent{
		Chain:        model.ChainEVM,
		Wallet:       "0xLeader",
		TokenIn:      "0xUSDC",
		TokenOut:     "0xToken",
		AmountIn:     decimal.NewFromInt(100),
		AmountOutMin: decimal.NewFromInt(10),
		Side:         model.SideBuy,
		TxHash:       "0xopeningtx",
		ObservedAt:   time.Now(),
	}

	o.handleTrade(context.Background(), ev)

	pos, ok := book.Get(ev.Key())
	if !ok {
		t.Fatal("expected a position to be opened")
	}

	// size = amount_out_min * mirror_ratio = 10 * 0.5 = 5, NOT
	// amount_in * mirror_ratio (= 50).
	if !pos.Size.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Size = %s, want 5", pos.Size)
	}
	// avg_price = amount_in / amount_out_min = 100 / 10 = 10.
	if !pos.AvgPrice.Equal(decimal.NewFromInt(10)) {
		t.Errorf("AvgPrice = %s, want 10", pos.AvgPrice)
	}
	if pos.OriginTx != ev.TxHash {
		t.Errorf("OriginTx = %q, want %q", pos.OriginTx, ev.TxHash)
	}
	if pos.QuoteToken != model.NativeQuoteAsset(model.ChainEVM) {
		t.Errorf("QuoteToken = %q, want %q", pos.QuoteToken, model.NativeQuoteAsset(model.ChainEVM))
	}
}

func TestOpenOrUpdateUpdateFoldsSizeAndAveragesPrice(t *testing.T) {
	o, book := newTestOrchestrator()

	open := model.TradeEvent{
		Chain: model.ChainEVM, Wallet: "0xLeader", TokenIn: "0xUSDC", TokenOut: "0xToken",
		AmountIn: decimal.NewFromInt(100), AmountOutMin: decimal.NewFromInt(10),
		Side: model.SideBuy, TxHash: "0xtx1", ObservedAt: time.Now(),
	}
	o.handleTrade(context.Background(), open)

	update := model.TradeEvent{
		Chain: model.ChainEVM, Wallet: "0xLeader", TokenIn: "0xUSDC", TokenOut: "0xToken",
		AmountIn: decimal.NewFromInt(60), AmountOutMin: decimal.NewFromInt(5),
		Side: model.SideBuy, TxHash: "0xtx2", ObservedAt: time.Now(),
	}
	o.handleTrade(context.Background(), update)

	pos, ok := book.Get(open.Key())
	if !ok {
		t.Fatal("expected position to remain open")
	}
	// size = 5 (from open: 10*0.5) + 5 (update adds amount_out_min) = 10
	if !pos.Size.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Size = %s, want 10", pos.Size)
	}
	// avg_price = (5*10 + 5*(60/5)) / 10 = 11
	if !pos.AvgPrice.Equal(decimal.NewFromInt(11)) {
		t.Errorf("AvgPrice = %s, want 11", pos.AvgPrice)
	}
}
