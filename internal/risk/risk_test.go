package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mirrorbot/mirrorbot/internal/model"
)

func TestShouldExitMatrix(t *testing.T) {
	cfg := Config{MirrorRatio: decimal.NewFromFloat(0.02), TTL: 86400 * time.Second}
	e := NewEvaluator(cfg)
	now := time.Now()

	cases := []struct {
		name    string
		size    float64
		balance float64
		offset  time.Duration
		want    bool
	}{
		{"drawdown triggers at threshold", 100, 10, 0, true},
		{"above threshold does not trigger", 100, 11, 0, false},
		{"healthy position mid-life", 100, 50, time.Hour, false},
		{"ttl expiry overrides healthy balance", 100, 50, 86401 * time.Second, true},
		{"ttl expiry with zero size", 0, 0, 86401 * time.Second, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pos := model.Position{
				Size:     decimal.NewFromFloat(c.size),
				OpenedAt: now.Add(-c.offset),
			}
			got := e.ShouldExit(pos, decimal.NewFromFloat(c.balance), now)
			if got != c.want {
				t.Errorf("ShouldExit() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("MIRROR_RATIO", "")
	t.Setenv("TTL_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.MirrorRatio.Equal(decimal.NewFromFloat(0.02)) {
		t.Errorf("MirrorRatio = %s, want 0.02", cfg.MirrorRatio)
	}
	if cfg.TTL != 86400*time.Second {
		t.Errorf("TTL = %s, want 86400s", cfg.TTL)
	}
}

func TestLoadConfigInvalidMirrorRatio(t *testing.T) {
	t.Setenv("MIRROR_RATIO", "not-a-number")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for invalid MIRROR_RATIO")
	}
}
