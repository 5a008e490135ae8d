// Package model holds the wire-level and book-level types shared by every
// component of the bot: the normalized trade event produced by ingestion and
// the open-position record the position book keeps per wallet/token.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Chain identifies which network a TradeEvent or Position belongs to.
type Chain string

const (
	ChainEVM    Chain = "evm"
	ChainSolana Chain = "solana"
)

// Side is the direction of a leader's trade, as observed by ingestion.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeEvent is the normalized representation of a leader wallet's swap,
// regardless of which chain or feed observed it. Decoders are responsible
// for producing one of these from chain-specific calldata or log data.
type TradeEvent struct {
	Chain        Chain
	Wallet       string
	TokenIn      string
	TokenOut     string
	AmountIn     decimal.Decimal
	AmountOutMin decimal.Decimal
	Side         Side
	TxHash       string
	ObservedAt   time.Time
	Source       string // which FeedSource produced this, for diagnostics
}

// Key returns the position-book composite key this event affects: the
// wallet paired with the token being acquired (buy) or disposed of (sell).
func (t TradeEvent) Key() PositionKey {
	token := t.TokenOut
	if t.Side == SideSell {
		token = t.TokenIn
	}
	return PositionKey{Wallet: t.Wallet, Token: token}
}

// PositionKey is the composite (wallet, token) key identifying a single
// mirrored position. Two positions never share a key; a repeat open against
// an existing key is an update, never a second position.
type PositionKey struct {
	Wallet string
	Token  string
}

// Position is an open mirrored position: the bot's own stake following a
// leader wallet's exposure to a token, not the leader's own size.
type Position struct {
	Key        PositionKey
	Chain      Chain
	Size       decimal.Decimal // base units of Token held
	AvgPrice   decimal.Decimal // volume-weighted average entry price
	OpenedAt   time.Time
	UpdatedAt  time.Time
	OriginTx   string // tx_hash of the opening event, per spec.md §3
	QuoteToken string // asset a forced/risk exit sells back into, never Key.Token
}

// evmNativeQuote and solanaNativeQuote are the hardcoded exit assets the
// original exec/eth.py and exec/sol.py quote into on a mirror_sell, never
// the position's own token.
const (
	evmNativeQuote    = "ETH"
	solanaNativeQuote = "So11111111111111111111111111111111111111112"
)

// NativeQuoteAsset returns the asset a position on chain is sold back into
// when risk-exited: the chain's native/quote asset, matching the original
// bot's hardcoded exit target (never the position's own token).
func NativeQuoteAsset(chain Chain) string {
	if chain == ChainSolana {
		return solanaNativeQuote
	}
	return evmNativeQuote
}
