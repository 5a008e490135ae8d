// Package execution implements the mirrored-trade submission state machine
// shared by both chains: QUOTE -> slippage check -> SIGN -> SUBMIT ->
// {CONFIRMED | FAILED -> escalate -> retry}, terminating in CONFIRMED,
// EXHAUSTED, or REJECTED_SLIPPAGE per spec.md §4.5. The chain-specific
// pieces (gas escalation vs priority-fee ladder) are isolated behind the
// Submitter interface; this file holds only the state machine.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mirrorbot/mirrorbot/internal/quote"
)

// SlippageThresholdPercent is the maximum acceptable adverse price impact,
// expressed in percentage points (0.40 == 0.40%), per spec.md.
var SlippageThresholdPercent = decimal.NewFromFloat(0.40)

// MaxRetries is the default submission retry budget before a trade is
// abandoned as EXHAUSTED.
const MaxRetries = 3

// State is the terminal outcome of a Mirror call.
type State string

const (
	StateConfirmed        State = "confirmed"
	StateExhausted         State = "exhausted"
	StateRejectedSlippage State = "rejected_slippage"
)

var (
	ErrSlippageExceeded    = errors.New("execution: slippage threshold exceeded")
	ErrSubmissionExhausted = errors.New("execution: submission retries exhausted")
)

// Result is the outcome of a single Mirror call.
type Result struct {
	State     State
	TxHash    string
	FillPrice decimal.Decimal
	Attempts  int
}

// Submitter isolates everything chain-specific about turning a quote into
// a submitted, eventually-confirmed transaction: signing, submission to
// the private relay, and escalating the fee/priority parameters between
// retries.
type Submitter interface {
	// Sign produces a signed payload for q, ready for Submit.
	Sign(ctx context.Context, q quote.Quote) (signed any, err error)
	// Submit sends signed to the relay and blocks until the chain confirms
	// or the attempt is judged failed. attempt is 1-indexed.
	Submit(ctx context.Context, signed any, attempt int) (txHash string, confirmed bool, err error)
	// Escalate rebuilds signed with more aggressive fee/priority
	// parameters for the next attempt.
	Escalate(ctx context.Context, signed any, attempt int) (any, error)
	// RetryDelay returns how long to wait before the given retry attempt.
	RetryDelay(attempt int) time.Duration
}

// Engine drives the QUOTE -> slippage-check -> SIGN -> SUBMIT -> escalate
// loop for one chain.
type Engine struct {
	Oracle     quote.Oracle
	Submitter  Submitter
	MaxRetries int
}

// NewEngine builds an Engine with the spec's default retry budget.
func NewEngine(oracle quote.Oracle, submitter Submitter) *Engine {
	return &Engine{Oracle: oracle, Submitter: submitter, MaxRetries: MaxRetries}
}

// Mirror executes a single mirrored trade: tokenIn/tokenOut/amountIn are
// already scaled to the bot's own mirrored size (mirror ratio applied by
// the caller), and minAcceptableOut is the proportionally-scaled floor
// derived from the leader's own amountOutMin.
func (e *Engine) Mirror(ctx context.Context, tokenIn, tokenOut string, amountIn, minAcceptableOut decimal.Decimal) (Result, error) {
	q, err := e.Oracle.GetQuote(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		return Result{}, fmt.Errorf("execution: quote: %w", err)
	}

	if slippageExceeded(q, minAcceptableOut) {
		return Result{State: StateRejectedSlippage}, ErrSlippageExceeded
	}

	signed, err := e.Submitter.Sign(ctx, q)
	if err != nil {
		return Result{}, fmt.Errorf("execution: sign: %w", err)
	}

	maxRetries := e.MaxRetries
	if maxRetries <= 0 {
		maxRetries = MaxRetries
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		txHash, confirmed, err := e.Submitter.Submit(ctx, signed, attempt)
		if err == nil && confirmed {
			return Result{
				State:     StateConfirmed,
				TxHash:    txHash,
				FillPrice: fillPrice(q, amountIn),
				Attempts:  attempt,
			}, nil
		}

		log.Warn().Err(err).Int("attempt", attempt).Str("tx", txHash).Msg("execution: submission failed, escalating")

		if attempt == maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(e.Submitter.RetryDelay(attempt)):
		}

		signed, err = e.Submitter.Escalate(ctx, signed, attempt)
		if err != nil {
			return Result{}, fmt.Errorf("execution: escalate: %w", err)
		}
	}

	return Result{State: StateExhausted, Attempts: maxRetries}, ErrSubmissionExhausted
}

// slippageExceeded rejects a quote whose guaranteed/threshold output falls
// short of the proportionally-scaled minimum the leader itself accepted,
// or whose reported price impact exceeds SlippageThresholdPercent.
func slippageExceeded(q quote.Quote, minAcceptableOut decimal.Decimal) bool {
	if minAcceptableOut.IsPositive() && q.GuaranteedOut.LessThan(minAcceptableOut) {
		return true
	}
	if q.PriceImpactPct.IsPositive() && q.PriceImpactPct.GreaterThan(SlippageThresholdPercent) {
		return true
	}
	return false
}

func fillPrice(q quote.Quote, amountIn decimal.Decimal) decimal.Decimal {
	if amountIn.IsZero() {
		return decimal.Zero
	}
	return q.AmountOut.Div(amountIn)
}
