package execution

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mirrorbot/mirrorbot/internal/quote"
)

type fakeOracle struct {
	q   quote.Quote
	err error
}

func (f *fakeOracle) GetQuote(ctx context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (quote.Quote, error) {
	return f.q, f.err
}

type fakeSubmitter struct {
	failUntilAttempt int
	submitted        int
	escalated        int
}

func (f *fakeSubmitter) Sign(ctx context.Context, q quote.Quote) (any, error) {
	return "signed", nil
}

func (f *fakeSubmitter) Submit(ctx context.Context, signed any, attempt int) (string, bool, error) {
	f.submitted++
	if attempt < f.failUntilAttempt {
		return "", false, nil
	}
	return "0xtxhash", true, nil
}

func (f *fakeSubmitter) Escalate(ctx context.Context, signed any, attempt int) (any, error) {
	f.escalated++
	return signed, nil
}

func (f *fakeSubmitter) RetryDelay(attempt int) time.Duration {
	return time.Millisecond
}

func TestMirrorConfirmsOnFirstAttempt(t *testing.T) {
	oracle := &fakeOracle{q: quote.Quote{AmountOut: decimal.NewFromInt(100), GuaranteedOut: decimal.NewFromInt(100)}}
	sub := &fakeSubmitter{failUntilAttempt: 1}
	e := NewEngine(oracle, sub)

	res, err := e.Mirror(context.Background(), "A", "B", decimal.NewFromInt(10), decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	if res.State != StateConfirmed {
		t.Errorf("State = %s, want confirmed", res.State)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
}

func TestMirrorEscalatesThenConfirms(t *testing.T) {
	oracle := &fakeOracle{q: quote.Quote{AmountOut: decimal.NewFromInt(100), GuaranteedOut: decimal.NewFromInt(100)}}
	sub := &fakeSubmitter{failUntilAttempt: 3}
	e := NewEngine(oracle, sub)

	res, err := e.Mirror(context.Background(), "A", "B", decimal.NewFromInt(10), decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	if res.State != StateConfirmed || res.Attempts != 3 {
		t.Errorf("got state=%s attempts=%d, want confirmed/3", res.State, res.Attempts)
	}
	if sub.escalated != 2 {
		t.Errorf("escalated = %d, want 2", sub.escalated)
	}
}

func TestMirrorExhaustsRetries(t *testing.T) {
	oracle := &fakeOracle{q: quote.Quote{AmountOut: decimal.NewFromInt(100), GuaranteedOut: decimal.NewFromInt(100)}}
	sub := &fakeSubmitter{failUntilAttempt: 99}
	e := NewEngine(oracle, sub)

	res, err := e.Mirror(context.Background(), "A", "B", decimal.NewFromInt(10), decimal.NewFromInt(50))
	if err == nil {
		t.Fatal("expected error on exhaustion")
	}
	if res.State != StateExhausted {
		t.Errorf("State = %s, want exhausted", res.State)
	}
	if sub.submitted != MaxRetries {
		t.Errorf("submitted = %d, want %d", sub.submitted, MaxRetries)
	}
}

func TestMirrorRejectsSlippage(t *testing.T) {
	oracle := &fakeOracle{q: quote.Quote{AmountOut: decimal.NewFromInt(10), GuaranteedOut: decimal.NewFromInt(10)}}
	sub := &fakeSubmitter{failUntilAttempt: 1}
	e := NewEngine(oracle, sub)

	// minAcceptableOut (50) exceeds the guaranteed quote (10).
	res, err := e.Mirror(context.Background(), "A", "B", decimal.NewFromInt(10), decimal.NewFromInt(50))
	if err == nil {
		t.Fatal("expected slippage error")
	}
	if res.State != StateRejectedSlippage {
		t.Errorf("State = %s, want rejected_slippage", res.State)
	}
	if sub.submitted != 0 {
		t.Errorf("submitted = %d, want 0 (rejected before submission)", sub.submitted)
	}
}
