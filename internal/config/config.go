// Package config loads and hot-reloads mirrorbot's configuration, in the
// same shape as the teacher's internal/config.Manager: a viper-backed
// struct tree with defaults, an fsnotify watch for live topology changes,
// and env-var-keyed secret injection for values that never belong in the
// YAML file on disk.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all bot configuration.
type Config struct {
	EVM     EVMConfig     `mapstructure:"evm"`
	Solana  SolanaConfig  `mapstructure:"solana"`
	Risk    RiskConfig    `mapstructure:"risk"`
	Bus     BusConfig     `mapstructure:"bus"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Wallets WalletsConfig `mapstructure:"wallets"`
}

type EVMConfig struct {
	FeedWSURL      string `mapstructure:"feed_ws_url"`
	RPCURL         string `mapstructure:"rpc_url"`
	QuoteAPIURL    string `mapstructure:"quote_api_url"`
	QuoteAPIKeyEnv string `mapstructure:"quote_api_key_env"`
	RelayURL       string `mapstructure:"relay_url"`
}

type SolanaConfig struct {
	HeliusWSURL     string `mapstructure:"helius_ws_url"`
	JitoWSURL       string `mapstructure:"jito_ws_url"`
	RPCURL          string `mapstructure:"rpc_url"`
	QuoteAPIURL     string `mapstructure:"quote_api_url"`
	QuoteAPIKeysEnv string `mapstructure:"quote_api_keys_env"`
	SlippageBps     int    `mapstructure:"slippage_bps"`
	RelayURL        string `mapstructure:"relay_url"`
}

type RiskConfig struct {
	MirrorRatio      string `mapstructure:"mirror_ratio"`
	TTLSeconds       int    `mapstructure:"ttl_seconds"`
	EvalIntervalSecs int    `mapstructure:"eval_interval_seconds"`
}

type BusConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type AlertsConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

type MetricsConfig struct {
	HealthAddr  string `mapstructure:"health_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type WalletsConfig struct {
	FilePath string `mapstructure:"file_path"`
}

// Manager handles config loading and hot-reload, mirroring the teacher's
// internal/config.Manager pattern.
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	viper    *viper.Viper
	onChange func(*Config)
}

// NewManager creates a new config manager from the YAML file at
// configPath, applying spec.md's documented defaults.
func NewManager(configPath string) (*Manager, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("risk.mirror_ratio", "0.02")
	v.SetDefault("risk.ttl_seconds", 86400)
	v.SetDefault("risk.eval_interval_seconds", 60)
	v.SetDefault("bus.capacity", 5000)
	v.SetDefault("evm.quote_api_key_env", "ZEROEX_API_KEY")
	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.quote_api_url", "https://api.jup.ag/swap/v1")
	v.SetDefault("solana.quote_api_keys_env", "JUPITER_API_KEYS")
	v.SetDefault("solana.slippage_bps", 40)
	v.SetDefault("metrics.health_addr", ":8081")
	v.SetDefault("metrics.metrics_addr", ":9090")
	v.SetDefault("wallets.file_path", "./config/wallets.json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", configPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	m := &Manager{config: &cfg, viper: v}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Str("file", e.Name).Msg("config file changed, reloading")
		m.reload()
	})

	return m, nil
}

// validate enforces the fatal-at-startup constraints spec.md documents
// for MIRROR_RATIO and TTL_SECONDS, now sourced from the config tree
// instead of bare env vars so they participate in hot-reload.
func validate(cfg *Config) error {
	ratio, err := decimal.NewFromString(cfg.Risk.MirrorRatio)
	if err != nil {
		return fmt.Errorf("config: invalid risk.mirror_ratio %q: %w", cfg.Risk.MirrorRatio, err)
	}
	if !ratio.IsPositive() || ratio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("config: risk.mirror_ratio must be in (0, 1], got %s", cfg.Risk.MirrorRatio)
	}
	if cfg.Risk.TTLSeconds <= 0 {
		return fmt.Errorf("config: risk.ttl_seconds must be positive, got %d", cfg.Risk.TTLSeconds)
	}
	return nil
}

// Get returns the current config (thread-safe).
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetOnChange registers a callback invoked after every successful reload.
func (m *Manager) SetOnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

func (m *Manager) reload() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cfg Config
	if err := m.viper.Unmarshal(&cfg); err != nil {
		log.Error().Err(err).Msg("config: failed to unmarshal on reload, keeping previous config")
		return
	}
	if err := validate(&cfg); err != nil {
		log.Error().Err(err).Msg("config: reload rejected, keeping previous config")
		return
	}

	m.config = &cfg
	if m.onChange != nil {
		m.onChange(&cfg)
	}
}

// MirrorRatio returns the currently configured mirror ratio as a decimal.
func (m *Manager) MirrorRatio() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, _ := decimal.NewFromString(m.config.Risk.MirrorRatio)
	return d
}

// TTL returns the currently configured position time-to-live.
func (m *Manager) TTL() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Duration(m.config.Risk.TTLSeconds) * time.Second
}

// EVMQuoteAPIKey loads the 0x-shaped quote API key from its configured
// environment variable.
func (m *Manager) EVMQuoteAPIKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.EVM.QuoteAPIKeyEnv)
}

// SolanaQuoteAPIKeys loads the comma-separated Jupiter-shaped API keys
// from their configured environment variable.
func (m *Manager) SolanaQuoteAPIKeys() []string {
	m.mu.RLock()
	env := m.config.Solana.QuoteAPIKeysEnv
	m.mu.RUnlock()

	raw := os.Getenv(env)
	if raw == "" {
		return nil
	}
	return splitNonEmpty(raw, ',')
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
