// Package risk implements the periodic exit rule evaluated against every
// open position: a drawdown threshold and a time-to-live, either of which
// forces a close. Ported from the original bot's core/risk.py, which this
// reimplements with decimal arithmetic instead of Python's Decimal type.
package risk

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mirrorbot/mirrorbot/internal/model"
)

const (
	// DrawdownThreshold is the balance/size ratio at or below which a
	// position is considered to have suffered a ruinous drawdown (>=90%).
	DrawdownThreshold = "0.1"

	defaultMirrorRatio = "0.02"
	defaultTTLSeconds  = 86400
)

// Config holds the tunables loaded from environment by LoadConfig (or
// built from the config file's values at startup) governing mirror sizing
// and position lifetime.
type Config struct {
	MirrorRatio decimal.Decimal
	TTL         time.Duration
}

// LoadConfig reads MIRROR_RATIO and TTL_SECONDS from the environment,
// falling back to the spec defaults (0.02 and 86400s). An explicitly set
// but unparsable value is a fatal configuration error, matching the
// original's behavior of raising ValueError at import time.
func LoadConfig() (Config, error) {
	ratio := defaultMirrorRatio
	if v := os.Getenv("MIRROR_RATIO"); v != "" {
		ratio = v
	}
	mirrorRatio, err := decimal.NewFromString(ratio)
	if err != nil {
		return Config{}, fmt.Errorf("risk: invalid MIRROR_RATIO %q: %w", ratio, err)
	}

	ttlSeconds := defaultTTLSeconds
	if v := os.Getenv("TTL_SECONDS"); v != "" {
		n, err := fmt.Sscanf(v, "%d", &ttlSeconds)
		if err != nil || n != 1 {
			return Config{}, fmt.Errorf("risk: invalid TTL_SECONDS %q", v)
		}
	}

	return Config{
		MirrorRatio: mirrorRatio,
		TTL:         time.Duration(ttlSeconds) * time.Second,
	}, nil
}

// Evaluator decides whether an open position should be force-closed.
type Evaluator struct {
	cfg Config
}

// NewEvaluator constructs an Evaluator from cfg.
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// ShouldExit reports whether pos should be closed given the wallet's
// current balance of the position's token (in the same unit as pos.Size)
// evaluated at now.
//
// Two independent triggers, either sufficient on its own:
//  1. Drawdown: balance/size <= DrawdownThreshold. A non-positive or
//     otherwise degenerate size is treated defensively as "no drawdown
//     signal" rather than propagating a division error, matching the
//     original's try/except around the ratio.
//  2. TTL: now - pos.OpenedAt exceeds the configured TTL, regardless of
//     drawdown.
func (e *Evaluator) ShouldExit(pos model.Position, balance decimal.Decimal, now time.Time) bool {
	if pos.Size.IsPositive() {
		ratio := balance.Div(pos.Size)
		threshold, _ := decimal.NewFromString(DrawdownThreshold)
		if ratio.LessThanOrEqual(threshold) {
			return true
		}
	}

	if now.Sub(pos.OpenedAt) > e.cfg.TTL {
		return true
	}

	return false
}
