// Package orchestrator wires the event bus, position book, execution
// engines and risk loop together, the same role the teacher's
// cmd/bot/main.go event-dispatch loop plays but generalized across two
// chains and two execution engines.
package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mirrorbot/mirrorbot/internal/alerts"
	"github.com/mirrorbot/mirrorbot/internal/balance"
	"github.com/mirrorbot/mirrorbot/internal/decimals"
	"github.com/mirrorbot/mirrorbot/internal/eventbus"
	"github.com/mirrorbot/mirrorbot/internal/execution"
	"github.com/mirrorbot/mirrorbot/internal/metrics"
	"github.com/mirrorbot/mirrorbot/internal/model"
	"github.com/mirrorbot/mirrorbot/internal/positionbook"
	"github.com/mirrorbot/mirrorbot/internal/risk"
)

// Engines maps a chain to the execution engine that handles it.
type Engines map[model.Chain]*execution.Engine

// Balances maps a chain to the balance oracle the risk loop queries for
// wallet_balance(token) before evaluating drawdown.
type Balances map[model.Chain]balance.Oracle

// Orchestrator consumes TradeEvents, drives the position book and
// execution engines, and runs the periodic risk loop.
type Orchestrator struct {
	Bus          *eventbus.Bus
	Book         *positionbook.Book
	Risk         *risk.Evaluator
	Engines      Engines
	Balances     Balances
	Decimals     *decimals.Cache
	Notifier     *alerts.Notifier
	MirrorRatio  decimal.Decimal
	EvalInterval time.Duration
}

// New builds an Orchestrator.
func New(bus *eventbus.Bus, book *positionbook.Book, riskEval *risk.Evaluator, engines Engines, balances Balances, decimalsCache *decimals.Cache, notifier *alerts.Notifier, mirrorRatio decimal.Decimal, evalInterval time.Duration) *Orchestrator {
	return &Orchestrator{
		Bus:          bus,
		Book:         book,
		Risk:         riskEval,
		Engines:      engines,
		Balances:     balances,
		Decimals:     decimalsCache,
		Notifier:     notifier,
		MirrorRatio:  mirrorRatio,
		EvalInterval: evalInterval,
	}
}

// Run drains the event bus and runs the risk loop until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	go o.runRiskLoop(ctx)
	o.Bus.Run(ctx, func(ev model.TradeEvent) {
		o.handleTrade(ctx, ev)
	})
	return nil
}

func (o *Orchestrator) handleTrade(ctx context.Context, ev model.TradeEvent) {
	key := ev.Key()

	// bookSize/bookPrice follow spec.md §4.3 directly off the event, never
	// off the execution engine's realized fill: an open starts at size =
	// amount_out_min * mirror_ratio, an update adds the event's unscaled
	// amount_out_min (invariant 3), and avg_price = amount_in / amount_out_min.
	bookSize := ev.AmountOutMin.Mul(o.MirrorRatio)
	bookPrice := decimal.Zero
	if ev.AmountOutMin.IsPositive() {
		bookPrice = ev.AmountIn.Div(ev.AmountOutMin)
	}

	// execAmountIn is the execution engine's own order size, per §4.5's
	// sell_amount formula for a buy: floor(amount_in * mirror_ratio), in
	// whole base units.
	execAmountIn := o.scaledAmount(ctx, ev.Chain, ev.TokenIn, ev.AmountIn.Mul(o.MirrorRatio))
	minAcceptable := bookSize

	if ev.Side == model.SideBuy {
		o.openOrUpdate(ctx, ev, key, execAmountIn, minAcceptable, bookSize, bookPrice)
		return
	}
	o.reduce(ctx, ev, key, execAmountIn, minAcceptable, bookSize)
}

func (o *Orchestrator) openOrUpdate(ctx context.Context, ev model.TradeEvent, key model.PositionKey, execAmountIn, minAcceptable, bookSize, bookPrice decimal.Decimal) {
	engine, ok := o.Engines[ev.Chain]
	if !ok {
		log.Error().Str("chain", string(ev.Chain)).Msg("orchestrator: no execution engine for chain")
		return
	}

	result, err := engine.Mirror(ctx, ev.TokenIn, ev.TokenOut, execAmountIn, minAcceptable)
	if err != nil {
		o.handleMirrorError(ctx, ev, result)
		return
	}

	if _, exists := o.Book.Get(key); !exists {
		quoteToken := model.NativeQuoteAsset(ev.Chain)
		if _, err := o.Book.Open(key, ev.Chain, bookSize, bookPrice, ev.TxHash, quoteToken, ev.ObservedAt); err != nil {
			log.Error().Err(err).Msg("orchestrator: open position failed")
			return
		}
		o.emit(ctx, alerts.EventMirrorOpen, ev, bookSize)
		return
	}

	if _, err := o.Book.Update(key, ev.AmountOutMin, bookPrice, ev.ObservedAt); err != nil {
		log.Error().Err(err).Msg("orchestrator: update position failed")
		return
	}
	o.emit(ctx, alerts.EventMirrorUpdate, ev, ev.AmountOutMin)
}

func (o *Orchestrator) reduce(ctx context.Context, ev model.TradeEvent, key model.PositionKey, execAmountIn, minAcceptable, bookSize decimal.Decimal) {
	pos, exists := o.Book.Get(key)
	if !exists {
		return
	}

	engine, ok := o.Engines[ev.Chain]
	if !ok {
		return
	}

	result, err := engine.Mirror(ctx, ev.TokenOut, ev.TokenIn, execAmountIn, minAcceptable)
	if err != nil {
		o.handleMirrorError(ctx, ev, result)
		return
	}

	if _, err := o.Book.Update(key, bookSize.Neg(), pos.AvgPrice, ev.ObservedAt); err != nil {
		log.Error().Err(err).Msg("orchestrator: reduce position failed")
		return
	}

	if remaining, ok := o.Book.Get(key); ok && !remaining.Size.IsPositive() {
		o.Book.Close(key)
		o.emit(ctx, alerts.EventMirrorClose, ev, bookSize)
	}
}

func (o *Orchestrator) handleMirrorError(ctx context.Context, ev model.TradeEvent, result execution.Result) {
	if result.State == execution.StateRejectedSlippage {
		o.emit(ctx, alerts.EventSlippageRejected, ev, decimal.Zero)
		return
	}
	o.emit(ctx, alerts.EventSubmissionFailed, ev, decimal.Zero)
}

func (o *Orchestrator) emit(ctx context.Context, eventType alerts.EventType, ev model.TradeEvent, size decimal.Decimal) {
	metrics.RecordEvent(string(eventType))
	o.Notifier.Notify(ctx, eventType, map[string]any{
		"wallet": ev.Wallet,
		"chain":  string(ev.Chain),
		"token":  ev.Key().Token,
		"size":   size.String(),
	})
}

func (o *Orchestrator) runRiskLoop(ctx context.Context) {
	interval := o.EvalInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.evaluateRisk(ctx)
		}
	}
}

func (o *Orchestrator) evaluateRisk(ctx context.Context) {
	now := time.Now()
	for _, pos := range o.Book.Snapshot() {
		oracle, ok := o.Balances[pos.Chain]
		if !ok {
			log.Error().Str("chain", string(pos.Chain)).Msg("orchestrator: no balance oracle for chain")
			continue
		}

		walletBalance, err := oracle.WalletBalance(ctx, pos.Key.Wallet, pos.Key.Token)
		if err != nil {
			log.Error().Err(err).Str("wallet", pos.Key.Wallet).Msg("orchestrator: wallet_balance query failed")
			continue
		}

		if !o.Risk.ShouldExit(pos, walletBalance, now) {
			continue
		}

		engine, ok := o.Engines[pos.Chain]
		if !ok {
			continue
		}

		// sell_amount for an exit is floor(position.size), per spec.md
		// §4.5; the exit always quotes into the position's recorded
		// QuoteToken, never the held token itself.
		sellAmount := o.scaledAmount(ctx, pos.Chain, pos.Key.Token, pos.Size)
		minAcceptable := sellAmount.Mul(decimal.NewFromFloat(0.5))
		quoteToken := pos.QuoteToken
		if quoteToken == "" {
			quoteToken = model.NativeQuoteAsset(pos.Chain)
		}
		if _, err := engine.Mirror(ctx, pos.Key.Token, quoteToken, sellAmount, minAcceptable); err != nil {
			log.Error().Err(err).Str("wallet", pos.Key.Wallet).Msg("orchestrator: risk exit failed")
			continue
		}

		o.Book.Close(pos.Key)
		metrics.RecordEvent(string(alerts.EventMirrorClose))
		o.Notifier.Notify(ctx, alerts.EventMirrorClose, map[string]any{
			"wallet": pos.Key.Wallet,
			"token":  pos.Key.Token,
			"reason": "risk_exit",
		})
	}
}

// scaledAmount floors amount to a whole base unit on every chain, since a
// mirror-ratio multiplication otherwise leaves a fractional remainder no
// base-unit amount can represent. On Solana-like chains token's decimal
// count is also resolved (and cached) through o.Decimals to confirm the
// token is known; the exponent itself is not applied, because event
// amounts and book sizes are already in base units.
func (o *Orchestrator) scaledAmount(ctx context.Context, chain model.Chain, token string, amount decimal.Decimal) decimal.Decimal {
	if chain == model.ChainSolana && o.Decimals != nil {
		if _, err := o.Decimals.Get(ctx, token); err != nil {
			log.Warn().Err(err).Str("token", token).Msg("orchestrator: decimals lookup failed, flooring anyway")
		}
	}
	return amount.Truncate(0)
}
