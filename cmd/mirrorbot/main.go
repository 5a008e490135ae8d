package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mirrorbot/mirrorbot/internal/alerts"
	"github.com/mirrorbot/mirrorbot/internal/balance"
	"github.com/mirrorbot/mirrorbot/internal/config"
	"github.com/mirrorbot/mirrorbot/internal/decimals"
	"github.com/mirrorbot/mirrorbot/internal/eventbus"
	"github.com/mirrorbot/mirrorbot/internal/execution"
	"github.com/mirrorbot/mirrorbot/internal/health"
	"github.com/mirrorbot/mirrorbot/internal/httpserver"
	"github.com/mirrorbot/mirrorbot/internal/ingestion"
	"github.com/mirrorbot/mirrorbot/internal/metrics"
	"github.com/mirrorbot/mirrorbot/internal/model"
	"github.com/mirrorbot/mirrorbot/internal/orchestrator"
	"github.com/mirrorbot/mirrorbot/internal/positionbook"
	"github.com/mirrorbot/mirrorbot/internal/quote"
	"github.com/mirrorbot/mirrorbot/internal/risk"
	"github.com/mirrorbot/mirrorbot/internal/statusui"
)

func main() {
	configPath := flag.String("config", envOr("MIRRORBOT_CONFIG", "./config/mirrorbot.yaml"), "path to config file")
	tui := flag.Bool("tui", false, "run the read-only status dashboard instead of plain logs")
	flag.Parse()

	setupLogger()

	cfg, err := config.NewManager(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evmBus := eventbus.New("evm", cfg.Get().Bus.Capacity)
	solanaBus := eventbus.New("solana", cfg.Get().Bus.Capacity)
	book := positionbook.New()

	riskEval := risk.NewEvaluator(risk.Config{
		MirrorRatio: cfg.MirrorRatio(),
		TTL:         cfg.TTL(),
	})

	notifier := alerts.New(cfg.Get().Alerts.WebhookURL)

	evmClient, evmDialErr := ethclient.DialContext(ctx, cfg.Get().EVM.RPCURL)
	if evmDialErr != nil {
		log.Warn().Err(evmDialErr).Msg("evm rpc dial failed, pool resolution and execution will error on first use")
	}

	engines := orchestrator.Engines{
		model.ChainEVM:    buildEVMEngine(evmClient, cfg),
		model.ChainSolana: buildSolanaEngine(cfg),
	}

	decimalsCache := decimals.New(decimals.NewSolanaMintFetcher(cfg.Get().Solana.RPCURL))
	balances := orchestrator.Balances{
		model.ChainEVM:    balance.NewEVMOracle(evmClient),
		model.ChainSolana: balance.NewSolanaOracle(cfg.Get().Solana.RPCURL),
	}

	evalInterval := time.Duration(cfg.Get().Risk.EvalIntervalSecs) * time.Second
	evmOrch := orchestrator.New(evmBus, book, riskEval, engines, balances, decimalsCache, notifier, cfg.MirrorRatio(), evalInterval)

	// The Solana bus is drained by its own orchestrator instance so the
	// two chains never block on each other's Run loop; both share the
	// same position book, risk evaluator and execution engines.
	solanaOrch := orchestrator.New(solanaBus, book, riskEval, engines, balances, decimalsCache, notifier, cfg.MirrorRatio(), evalInterval)

	startIngestion(ctx, cfg, evmClient, evmBus, solanaBus)

	checker := health.NewChecker(healthTargets(cfg), 10*time.Second)
	checker.Start(ctx)

	srv := httpserver.New(checker, cfg.Get().Metrics.HealthAddr, cfg.Get().Metrics.MetricsAddr)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	go func() {
		if err := evmOrch.Run(ctx); err != nil {
			log.Error().Err(err).Msg("evm orchestrator stopped")
		}
	}()
	go func() {
		if err := solanaOrch.Run(ctx); err != nil {
			log.Error().Err(err).Msg("solana orchestrator stopped")
		}
	}()

	go reportBusDepth(ctx, evmBus, solanaBus)

	if *tui {
		p := tea.NewProgram(statusui.New(book, evmBus, solanaBus, time.Second))
		if _, err := p.Run(); err != nil {
			log.Error().Err(err).Msg("status dashboard exited with error")
		}
	} else {
		waitForShutdown()
	}

	log.Info().Msg("shutting down...")
	cancel()
	if err := srv.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("http server shutdown error")
	}
}

func setupLogger() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

func reportBusDepth(ctx context.Context, evmBus, solanaBus *eventbus.Bus) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.BusDepth.WithLabelValues("evm").Set(float64(evmBus.Depth()))
			metrics.BusDepth.WithLabelValues("solana").Set(float64(solanaBus.Depth()))
		}
	}
}

func startIngestion(ctx context.Context, cfg *config.Manager, evmClient *ethclient.Client, evmBus, solanaBus *eventbus.Bus) {
	wallets, err := ingestion.LoadWallets(cfg.Get().Wallets.FilePath, model.ChainEVM)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load evm wallet list, evm ingestion disabled")
	} else if len(wallets) > 0 {
		pools := &ingestion.EthPoolResolver{Client: evmClient}
		feed := ingestion.NewEVMFeed("evm-primary", cfg.Get().EVM.FeedWSURL, wallets, pools, evmBus.Publish)
		go feed.Run(ctx)
	}

	solWallets, err := ingestion.LoadWallets(cfg.Get().Wallets.FilePath, model.ChainSolana)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load solana wallet list, solana ingestion disabled")
	} else if len(solWallets) > 0 {
		heliusFeed := ingestion.NewSolanaFeed("solana-helius", "helius", cfg.Get().Solana.HeliusWSURL, solWallets, solanaBus.Publish)
		jitoFeed := ingestion.NewSolanaFeed("solana-jito", "jito", cfg.Get().Solana.JitoWSURL, solWallets, solanaBus.Publish)
		go heliusFeed.Run(ctx)
		go jitoFeed.Run(ctx)
	}
}

func buildEVMEngine(client *ethclient.Client, cfg *config.Manager) *execution.Engine {
	oracle := quote.NewZeroExOracle(cfg.Get().EVM.QuoteAPIURL, cfg.EVMQuoteAPIKey())

	submitter := &execution.EVMSubmitter{
		Signer:      unconfiguredSigner{},
		RelayClient: resty.New(),
		RelayURL:    cfg.Get().EVM.RelayURL,
		CurrentBlock: func(ctx context.Context) (uint64, error) {
			if client == nil {
				return 0, fmt.Errorf("execution: no evm rpc client")
			}
			return client.BlockNumber(ctx)
		},
		BaseFee: func(ctx context.Context) (*big.Int, error) {
			if client == nil {
				return nil, fmt.Errorf("execution: no evm rpc client")
			}
			header, err := client.HeaderByNumber(ctx, nil)
			if err != nil {
				return nil, err
			}
			return header.BaseFee, nil
		},
		GasPrice: func(ctx context.Context) (*big.Int, error) {
			if client == nil {
				return nil, fmt.Errorf("execution: no evm rpc client")
			}
			return client.SuggestGasPrice(ctx)
		},
	}

	return execution.NewEngine(oracle, submitter)
}

func buildSolanaEngine(cfg *config.Manager) *execution.Engine {
	oracle := quote.NewJupiterOracle(cfg.Get().Solana.QuoteAPIURL, cfg.Get().Solana.SlippageBps, cfg.SolanaQuoteAPIKeys())

	submitter := &execution.SolanaSubmitter{
		Signer:      unconfiguredSolanaSigner{},
		RelayClient: resty.New(),
		RelayURL:    cfg.Get().Solana.RelayURL,
	}

	return execution.NewEngine(oracle, submitter)
}

func healthTargets(cfg *config.Manager) []health.Target {
	return []health.Target{
		{Name: "evm_quote_api", URL: cfg.Get().EVM.QuoteAPIURL},
		{Name: "solana_quote_api", URL: cfg.Get().Solana.QuoteAPIURL},
		{Name: "evm_relay", URL: cfg.Get().EVM.RelayURL},
		{Name: "solana_relay", URL: cfg.Get().Solana.RelayURL},
	}
}

// unconfiguredSigner and unconfiguredSolanaSigner error loudly rather than
// silently broadcasting unsigned transactions; wiring an actual
// key-management collaborator is the operator's responsibility per
// spec.md's non-goals around secret/keypair loading.
type unconfiguredSigner struct{}

func (unconfiguredSigner) SignTx(ctx context.Context, q quote.Quote, maxFeePerGas, gasPrice *big.Int) (*types.Transaction, error) {
	return nil, fmt.Errorf("execution: no EVM signer configured")
}

type unconfiguredSolanaSigner struct{}

func (unconfiguredSolanaSigner) SignTx(ctx context.Context, q quote.Quote, priorityFeeLamports uint64) (string, error) {
	return "", fmt.Errorf("execution: no solana signer configured")
}
