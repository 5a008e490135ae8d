package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return configPath
}

func TestNewManagerAppliesDefaults(t *testing.T) {
	configPath := writeConfig(t, `
evm:
    feed_ws_url: wss://example.invalid/evm
solana:
    helius_ws_url: wss://example.invalid/sol
`)

	m, err := NewManager(configPath)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	if got := m.Get().Risk.MirrorRatio; got != "0.02" {
		t.Errorf("Risk.MirrorRatio = %q, want 0.02", got)
	}
	if got := m.Get().Risk.TTLSeconds; got != 86400 {
		t.Errorf("Risk.TTLSeconds = %d, want 86400", got)
	}
	if got := m.Get().Bus.Capacity; got != 5000 {
		t.Errorf("Bus.Capacity = %d, want 5000", got)
	}
}

func TestNewManagerRejectsInvalidMirrorRatio(t *testing.T) {
	configPath := writeConfig(t, `
risk:
    mirror_ratio: "not-a-number"
`)

	if _, err := NewManager(configPath); err == nil {
		t.Fatal("expected error for invalid mirror_ratio")
	}
}

func TestSolanaQuoteAPIKeysSplitsEnv(t *testing.T) {
	configPath := writeConfig(t, `
solana:
    quote_api_keys_env: TEST_JUPITER_KEYS
`)
	t.Setenv("TEST_JUPITER_KEYS", "key-a,key-b,key-c")

	m, err := NewManager(configPath)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	keys := m.SolanaQuoteAPIKeys()
	if len(keys) != 3 || keys[0] != "key-a" || keys[2] != "key-c" {
		t.Errorf("SolanaQuoteAPIKeys() = %v, want [key-a key-b key-c]", keys)
	}
}
