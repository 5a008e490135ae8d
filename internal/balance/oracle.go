// Package balance implements the external "balance oracle" the risk loop
// queries per spec.md §4.4/§4.6: wallet_balance(token), the present mark
// value the drawdown check compares against a position's size. Neither
// chain exposes this through the execution engine's own collaborators, so
// it is wired here as its own per-chain reader.
package balance

import (
	"context"

	"github.com/shopspring/decimal"
)

// Oracle reports a wallet's current balance of token, in the same unit
// the position book carries (base units, pre-decimal-scaling is the
// caller's concern for Solana-like chains).
type Oracle interface {
	WalletBalance(ctx context.Context, wallet, token string) (decimal.Decimal, error)
}
