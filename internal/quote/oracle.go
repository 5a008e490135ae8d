// Package quote provides the execution engine's price-discovery step: a
// per-chain Oracle that turns (tokenIn, tokenOut, amountIn) into an
// executable quote, bounded by a fixed timeout per spec.md's external
// interface contract. Concrete oracles are 0x-shaped (EVM) and
// Jupiter-shaped (Solana-like); both are external collaborators whose
// wire format is fixed by a real third-party API, not ours to redesign.
package quote

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Timeout bounds every quote request, matching spec.md's external
// interface table.
const Timeout = 5 * time.Second

// Quote is the chain-agnostic result of a price lookup.
type Quote struct {
	AmountOut      decimal.Decimal
	GuaranteedOut  decimal.Decimal // conservative floor Execution should prefer when present
	PriceImpactPct decimal.Decimal
	Raw            any // chain-specific response, passed through to the submitter
}

// Oracle is implemented once per chain.
type Oracle interface {
	GetQuote(ctx context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (Quote, error)
}
