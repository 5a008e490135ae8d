package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mirrorbot/mirrorbot/internal/quote"
)

// PriorityFeeLadder is the fixed sequence of priority fees (lamports) the
// original src/onchainbot/exec/sol.py escalated through, in order.
var PriorityFeeLadder = []uint64{50_000, 100_000, 200_000}

// solanaSignedTx carries the base64 transaction plus the ladder index
// Escalate advances.
type solanaSignedTx struct {
	q           quote.Quote
	txBase64    string
	ladderIndex int
}

// SolanaSigner produces a signed, base64-encoded Solana-like transaction at the
// given priority fee. As with the EVM Signer, actual keypair handling is
// an external collaborator out of scope per spec.md's non-goals.
type SolanaSigner interface {
	SignTx(ctx context.Context, q quote.Quote, priorityFeeLamports uint64) (txBase64 string, err error)
}

// SolanaSubmitter submits signed transactions to a private bundle relay
// (Jito-shaped), escalating through PriorityFeeLadder between attempts.
type SolanaSubmitter struct {
	Signer      SolanaSigner
	RelayClient *resty.Client
	RelayURL    string
}

func (s *SolanaSubmitter) Sign(ctx context.Context, q quote.Quote) (any, error) {
	txB64, err := s.Signer.SignTx(ctx, q, PriorityFeeLadder[0])
	if err != nil {
		return nil, fmt.Errorf("execution: sign solana tx: %w", err)
	}
	return &solanaSignedTx{q: q, txBase64: txB64, ladderIndex: 0}, nil
}

type jitoBundleRequest struct {
	Transactions []string `json:"transactions"`
}

type jitoBundleResponse struct {
	BundleID  string `json:"bundleId"`
	Confirmed bool   `json:"confirmed"`
	Error     string `json:"error,omitempty"`
}

func (s *SolanaSubmitter) Submit(ctx context.Context, signed any, attempt int) (string, bool, error) {
	st := signed.(*solanaSignedTx)

	var out jitoBundleResponse
	resp, err := s.RelayClient.R().
		SetContext(ctx).
		SetBody(jitoBundleRequest{Transactions: []string{st.txBase64}}).
		SetResult(&out).
		Post(s.RelayURL)
	if err != nil {
		return "", false, fmt.Errorf("execution: jito relay request: %w", err)
	}
	if resp.IsError() || out.Error != "" {
		return out.BundleID, false, fmt.Errorf("execution: jito relay rejected bundle: %s", out.Error)
	}
	return out.BundleID, out.Confirmed, nil
}

// Escalate advances to the next rung of PriorityFeeLadder and re-signs.
// Once the ladder is exhausted it holds at the top rung; the engine's
// MaxRetries bound, not the ladder length, determines when to give up.
func (s *SolanaSubmitter) Escalate(ctx context.Context, signed any, attempt int) (any, error) {
	st := signed.(*solanaSignedTx)

	next := st.ladderIndex + 1
	if next >= len(PriorityFeeLadder) {
		next = len(PriorityFeeLadder) - 1
	}

	txB64, err := s.Signer.SignTx(ctx, st.q, PriorityFeeLadder[next])
	if err != nil {
		return nil, fmt.Errorf("execution: re-sign escalated solana tx: %w", err)
	}

	return &solanaSignedTx{q: st.q, txBase64: txB64, ladderIndex: next}, nil
}

// RetryDelay implements the original's 2**attempt second exponential
// backoff between priority-fee escalations.
func (s *SolanaSubmitter) RetryDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}
