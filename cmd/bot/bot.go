package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flashforge/flasharb/arbitrage"
	"github.com/flashforge/flasharb/config"
	"github.com/flashforge/flasharb/dex"
	"github.com/flashforge/flasharb/dex/balancer"
	"github.com/flashforge/flasharb/dex/curve"
	"github.com/flashforge/flasharb/dex/sushiswap"
	"github.com/flashforge/flasharb/dex/uniswap"
	"github.com/flashforge/flasharb/flashloan"
	"github.com/flashforge/flasharb/flashloan/aave"
	balancerloan "github.com/flashforge/flasharb/flashloan/balancer"
	"github.com/flashforge/flasharb/gas"
	"github.com/flashforge/flasharb/pricefeed"
	"github.com/flashforge/flasharb/relay"
	"github.com/flashforge/flasharb/server"
	"github.com/flashforge/flasharb/utils/monitor"
	"github.com/flashforge/flasharb/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// statsEvery controls how often the scan loop logs cumulative counters.
const statsEvery = 100

// Bot wires the detector, executor and supporting services together and
// runs the scan loop.
type Bot struct {
	cfg       *config.Config
	client    *ethclient.Client
	signer    *wallet.Signer
	gasOracle *gas.Estimator
	price     *pricefeed.Cache
	detector  *arbitrage.Detector
	executor  *arbitrage.Executor
	srv       *server.Server
	sysmon    *monitor.SystemMonitor
	logger    *zap.Logger

	dryRun bool
	wg     sync.WaitGroup

	detected int
	executed int
	failed   int
}

// New builds a bot from configuration. dryRun routes every opportunity
// through simulation instead of live execution.
func New(cfg *config.Config, dryRun bool, logger *zap.Logger) (*Bot, error) {
	client, err := ethclient.Dial(cfg.Ethereum.HTTPRPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum node: %w", err)
	}

	signer, err := wallet.NewSigner(client, cfg.Ethereum.PrivateKey, cfg.Ethereum.ChainID, cfg.Ethereum.GasPriceGwei, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}

	if cfg.Bot.EnableMEVProtection {
		authKey, err := crypto.HexToECDSA(trimHexPrefix(cfg.Ethereum.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("failed to derive relay auth key: %w", err)
		}
		signer.UseRelay(relay.NewClient(cfg.Bot.FlashbotsRelayURL, authKey))
		logger.Info("Private relay submission enabled", zap.String("relay", cfg.Bot.FlashbotsRelayURL))
	}

	gasOracle := gas.NewEstimator(client, logger)
	signer.UseGasOracle(gasOracle)

	exchanges, err := buildExchanges(cfg, client, signer)
	if err != nil {
		return nil, err
	}

	price := pricefeed.NewCache(pricefeed.NewClient(), logger)

	detector, err := arbitrage.NewDetector(cfg, exchanges, price, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}

	loans, err := buildLoanManager(cfg, client, signer, logger)
	if err != nil {
		return nil, err
	}

	executor, err := arbitrage.NewExecutor(cfg, loans, client, signer.Address(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}

	return &Bot{
		cfg:       cfg,
		client:    client,
		signer:    signer,
		gasOracle: gasOracle,
		price:     price,
		detector:  detector,
		executor:  executor,
		srv:       server.New(cfg.Bot.MetricsPort, logger),
		logger:    logger,
		dryRun:    dryRun,
	}, nil
}

// Start launches the price feed, metrics server and scan loop. It blocks
// until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting arbitrage bot",
		zap.String("account", b.signer.Address().Hex()),
		zap.Duration("scan_interval", b.cfg.Bot.ScanInterval),
		zap.Bool("dry_run", b.dryRun))

	b.sysmon = monitor.NewSystemMonitor(ctx, b.logger)

	if err := b.price.Refresh(ctx); err != nil {
		b.logger.Warn("Initial price fetch failed, using fallback", zap.Error(err))
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.price.RefreshLoop(ctx, pricefeed.DefaultRefreshInterval)
	}()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.srv.Start(); err != nil {
			b.logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	b.scanLoop(ctx)
	return nil
}

// Stop shuts the metrics server down and waits for background work.
func (b *Bot) Stop() {
	b.logger.Info("Stopping arbitrage bot")
	b.gasOracle.Stop()
	if b.sysmon != nil {
		b.sysmon.Stop()
	}
	if err := b.srv.Shutdown(context.Background()); err != nil {
		b.logger.Warn("Metrics server shutdown error", zap.Error(err))
	}
	b.wg.Wait()
	b.client.Close()
}

// scanLoop runs detection on the configured interval and hands profitable
// opportunities to the executor one at a time.
func (b *Bot) scanLoop(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.Bot.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.scanOnce(ctx)
		}
	}
}

func (b *Bot) scanOnce(ctx context.Context) {
	opportunities, err := b.detector.DetectOpportunities(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("Scan failed", zap.Error(err))
		return
	}

	for _, opportunity := range opportunities {
		b.detected++
		if !opportunity.IsProfitable() {
			continue
		}

		if b.dryRun {
			result := b.executor.Simulate(opportunity)
			b.logger.Info("Simulated opportunity",
				zap.String("summary", opportunity.String()),
				zap.Int64("executed_at", result.ExecutedAt))
			continue
		}

		// One signing account, one trade at a time.
		if _, err := b.executor.Execute(ctx, opportunity); err != nil {
			b.failed++
			b.logger.Warn("Execution rejected or failed",
				zap.String("id", opportunity.ID), zap.Error(err))
			continue
		}
		b.executed++
	}

	if b.detected > 0 && b.detected%statsEvery == 0 {
		b.logger.Info("Scan statistics",
			zap.Int("detected", b.detected),
			zap.Int("executed", b.executed),
			zap.Int("failed", b.failed),
			zap.Float64("eth_price_usd", b.price.Read()))
	}
}

// buildExchanges constructs the venue adapters. Balancer is skipped unless a
// pool id is configured.
func buildExchanges(cfg *config.Config, client *ethclient.Client, signer *wallet.Signer) ([]dex.Exchange, error) {
	recipient := signer.Address()

	uni, err := uniswap.NewUniswapV2(client, signer, cfg.DEX.UniswapV2Router, recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to create uniswap adapter: %w", err)
	}
	sushi, err := sushiswap.NewSushiSwap(client, signer, cfg.DEX.SushiswapRouter, recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to create sushiswap adapter: %w", err)
	}
	crv, err := curve.NewCurve(client, signer, cfg.DEX.CurveRegistry)
	if err != nil {
		return nil, fmt.Errorf("failed to create curve adapter: %w", err)
	}

	exchanges := []dex.Exchange{uni, sushi, crv}

	if cfg.DEX.BalancerPoolID != (common.Hash{}) {
		bal, err := balancer.NewBalancer(client, cfg.DEX.BalancerVault, recipient, cfg.DEX.BalancerPoolID)
		if err != nil {
			return nil, fmt.Errorf("failed to create balancer adapter: %w", err)
		}
		exchanges = append(exchanges, bal)
	}

	return exchanges, nil
}

// buildLoanManager registers the loan venues with the fee-selecting manager.
func buildLoanManager(cfg *config.Config, client *ethclient.Client, signer *wallet.Signer, logger *zap.Logger) (flashloan.Provider, error) {
	manager := flashloan.NewManager(logger)

	aaveProvider, err := aave.NewProvider(client, signer, cfg.FlashLoan.AavePoolAddress, cfg.FlashLoan.ContractAddress, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create aave provider: %w", err)
	}
	manager.AddProvider(aaveProvider)

	balancerProvider, err := balancerloan.NewProvider(client, signer, cfg.DEX.BalancerVault, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create balancer loan provider: %w", err)
	}
	manager.AddProvider(balancerProvider)

	return manager, nil
}

func trimHexPrefix(key string) string {
	if len(key) >= 2 && key[:2] == "0x" {
		return key[2:]
	}
	return key
}
