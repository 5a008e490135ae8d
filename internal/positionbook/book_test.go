package positionbook

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mirrorbot/mirrorbot/internal/model"
)

func key() model.PositionKey {
	return model.PositionKey{Wallet: "0xLeader", Token: "0xToken"}
}

func TestOpenRejectsDuplicateKey(t *testing.T) {
	b := New()
	k := key()
	now := time.Now()

	if _, err := b.Open(k, model.ChainEVM, decimal.NewFromInt(100), decimal.NewFromFloat(1.0), "0xtx1", "ETH", now); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := b.Open(k, model.ChainEVM, decimal.NewFromInt(50), decimal.NewFromFloat(2.0), "0xtx2", "ETH", now); !errors.Is(err, ErrPositionExists) {
		t.Fatalf("second Open: got %v, want ErrPositionExists", err)
	}
}

func TestOpenRecordsOriginTxAndQuoteToken(t *testing.T) {
	b := New()
	k := key()
	now := time.Now()

	got, err := b.Open(k, model.ChainEVM, decimal.NewFromInt(5), decimal.NewFromInt(10), "0xopeningtx", "ETH", now)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got.OriginTx != "0xopeningtx" {
		t.Errorf("OriginTx = %q, want 0xopeningtx", got.OriginTx)
	}
	if got.QuoteToken != "ETH" {
		t.Errorf("QuoteToken = %q, want ETH", got.QuoteToken)
	}
}

func TestUpdateComputesWeightedAveragePrice(t *testing.T) {
	b := New()
	k := key()
	now := time.Now()

	if _, err := b.Open(k, model.ChainEVM, decimal.NewFromInt(100), decimal.NewFromFloat(1.0), "0xtx1", "ETH", now); err != nil {
		t.Fatalf("Open: %v", err)
	}

	got, err := b.Update(k, decimal.NewFromInt(100), decimal.NewFromFloat(2.0), now)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	// (100*1.0 + 100*2.0) / 200 = 1.5
	want := decimal.NewFromFloat(1.5)
	if !got.AvgPrice.Equal(want) {
		t.Errorf("AvgPrice = %s, want %s", got.AvgPrice, want)
	}
	if !got.Size.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Size = %s, want 200", got.Size)
	}
}

// TestOpenThenUpdateMatchesSpecScenario replays spec.md's "open then
// update" worked example: open with (amount_in=100, amount_out_min=10),
// mirror_ratio=0.5 (size=5, avg=10), then update with
// (amount_in=60, amount_out_min=5) (size=5+5=10, avg=(10*5+60)/10=11).
func TestOpenThenUpdateMatchesSpecScenario(t *testing.T) {
	b := New()
	k := key()
	now := time.Now()

	ratio := decimal.NewFromFloat(0.5)
	amountIn1, amountOutMin1 := decimal.NewFromInt(100), decimal.NewFromInt(10)
	opened, err := b.Open(k, model.ChainEVM, amountOutMin1.Mul(ratio), amountIn1.Div(amountOutMin1), "0xtx1", "ETH", now)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !opened.Size.Equal(decimal.NewFromInt(5)) || !opened.AvgPrice.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("after open: size=%s avg=%s, want size=5 avg=10", opened.Size, opened.AvgPrice)
	}

	amountIn2, amountOutMin2 := decimal.NewFromInt(60), decimal.NewFromInt(5)
	updated, err := b.Update(k, amountOutMin2, amountIn2.Div(amountOutMin2), now)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.Size.Equal(decimal.NewFromInt(10)) {
		t.Errorf("after update: size=%s, want 10", updated.Size)
	}
	if !updated.AvgPrice.Equal(decimal.NewFromInt(11)) {
		t.Errorf("after update: avg=%s, want 11", updated.AvgPrice)
	}
}

func TestUpdateMissingPositionFails(t *testing.T) {
	b := New()
	if _, err := b.Update(key(), decimal.NewFromInt(1), decimal.NewFromInt(1), time.Now()); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("got %v, want ErrPositionNotFound", err)
	}
}

func TestCloseRemovesPosition(t *testing.T) {
	b := New()
	k := key()
	now := time.Now()
	if _, err := b.Open(k, model.ChainEVM, decimal.NewFromInt(10), decimal.NewFromInt(1), "0xtx1", "ETH", now); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := b.Close(k); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := b.Get(k); ok {
		t.Fatal("position still present after Close")
	}
	if _, err := b.Close(k); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("second Close: got %v, want ErrPositionNotFound", err)
	}
}
