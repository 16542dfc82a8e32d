package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

// Tunables referenced across detection and execution. They are variables, not
// literals, so tests can narrow or widen them.
var (
	// ProbeAmounts is the ladder of input sizes quoted on every scan pass,
	// in native-token units (wei).
	ProbeAmounts = []*big.Int{
		new(big.Int).Mul(big.NewInt(1), big.NewInt(1e18)),
		new(big.Int).Mul(big.NewInt(5), big.NewInt(1e18)),
		new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)),
	}

	// MaxOpportunityAge bounds how old a detected opportunity may be before
	// the executor refuses it. Quoted prices decay fast.
	MaxOpportunityAge = 30 * time.Second

	// GasSafetyMultiplier scales the estimated gas cost when checking the
	// signing account's balance, absorbing gas-price drift between
	// detection and execution.
	GasSafetyMultiplier = int64(2)

	// MinProfitMarginUSD is the absolute buffer the profitability predicate
	// requires on top of the gas cost.
	MinProfitMarginUSD = 10.0

	// MinProfitPercentage is the detector's emission pre-screen.
	MinProfitPercentage = 0.1
)

// Config is the root configuration, assembled from the environment.
type Config struct {
	Ethereum  EthereumConfig
	DEX       DEXConfig
	Arbitrage ArbitrageConfig
	FlashLoan FlashLoanConfig
	Bot       BotConfig
}

type EthereumConfig struct {
	HTTPRPCURL   string
	WSRPCURL     string
	PrivateKey   string
	ChainID      uint64
	GasPriceGwei uint64
	MaxGasLimit  uint64
}

type DEXConfig struct {
	UniswapV2Router common.Address
	SushiswapRouter common.Address
	CurveRegistry   common.Address
	BalancerVault   common.Address

	// Balancer has no on-chain pool registry; the pool to quote against is
	// configured directly. Zero means the Balancer venue is disabled.
	BalancerPoolID common.Hash
}

type ArbitrageConfig struct {
	MinProfitUSD       float64
	MaxSlippagePercent float64
	TradingPairs       []TradingPair
}

// TradingPair names one token pair to scan.
type TradingPair struct {
	Token0 common.Address
	Token1 common.Address
	Symbol string
}

type FlashLoanConfig struct {
	AavePoolAddress common.Address
	ContractAddress common.Address
	MaxLoanAmount   *big.Int
}

type BotConfig struct {
	ScanInterval        time.Duration
	MaxConcurrentTrades int
	EnableMEVProtection bool
	FlashbotsRelayURL   string
	RPCRateLimit        float64
	RPCRateBurst        int
	NetworkTimeout      time.Duration
	MetricsPort         string
}

// FromEnv builds a Config from environment variables, falling back to sane
// mainnet defaults where a value is optional. Missing required values are a
// startup error, never a degraded run.
func FromEnv() (*Config, error) {
	privateKey, err := GetRequiredEnv(EnvPrivateKey)
	if err != nil {
		return nil, err
	}

	chainID, err := getEnvUint(EnvChainID, 1)
	if err != nil {
		return nil, err
	}
	gasPrice, err := getEnvUint(EnvGasPriceGwei, 30)
	if err != nil {
		return nil, err
	}
	maxGasLimit, err := getEnvUint(EnvMaxGasLimit, 500000)
	if err != nil {
		return nil, err
	}
	minProfit, err := getEnvFloat(EnvMinProfitUSD, 50.0)
	if err != nil {
		return nil, err
	}
	maxSlippage, err := getEnvFloat(EnvMaxSlippagePercent, 0.5)
	if err != nil {
		return nil, err
	}
	maxLoanEth, err := getEnvFloat(EnvMaxLoanAmountETH, 100.0)
	if err != nil {
		return nil, err
	}
	scanIntervalMs, err := getEnvUint(EnvScanIntervalMs, 1000)
	if err != nil {
		return nil, err
	}
	maxConcurrent, err := getEnvUint(EnvMaxConcurrentTrades, 3)
	if err != nil {
		return nil, err
	}
	mevProtection, err := getEnvBool(EnvEnableMEVProtection, true)
	if err != nil {
		return nil, err
	}

	pairs, err := loadTradingPairs(GetEnvWithDefault(EnvTradingPairsFile, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to load trading pairs: %w", err)
	}

	cfg := &Config{
		Ethereum: EthereumConfig{
			HTTPRPCURL:   GetEnvWithDefault(EnvHTTPRPCURL, "https://mainnet.infura.io/v3/YOUR_API_KEY"),
			WSRPCURL:     GetEnvWithDefault(EnvWSRPCURL, "wss://mainnet.infura.io/ws/v3/YOUR_API_KEY"),
			PrivateKey:   privateKey,
			ChainID:      chainID,
			GasPriceGwei: gasPrice,
			MaxGasLimit:  maxGasLimit,
		},
		DEX: DEXConfig{
			UniswapV2Router: common.HexToAddress(GetEnvWithDefault(EnvUniswapV2Router, "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")),
			SushiswapRouter: common.HexToAddress(GetEnvWithDefault(EnvSushiswapRouter, "0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F")),
			CurveRegistry:   common.HexToAddress(GetEnvWithDefault(EnvCurveRegistry, "0x90E00ACe148ca3b23Ac1bC8C240C2a7Dd9c2d7f5")),
			BalancerVault:   common.HexToAddress(GetEnvWithDefault(EnvBalancerVault, "0xBA12222222228d8Ba445958a75a0704d566BF2C8")),
			BalancerPoolID:  common.HexToHash(GetEnvWithDefault(EnvBalancerPoolID, "")),
		},
		Arbitrage: ArbitrageConfig{
			MinProfitUSD:       minProfit,
			MaxSlippagePercent: maxSlippage,
			TradingPairs:       pairs,
		},
		FlashLoan: FlashLoanConfig{
			AavePoolAddress: common.HexToAddress(GetEnvWithDefault(EnvAavePoolAddress, "0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2")),
			ContractAddress: common.HexToAddress(GetEnvWithDefault(EnvFlashLoanContract, "0x0000000000000000000000000000000000000000")),
			MaxLoanAmount:   ethToWei(maxLoanEth),
		},
		Bot: BotConfig{
			ScanInterval:        time.Duration(scanIntervalMs) * time.Millisecond,
			MaxConcurrentTrades: int(maxConcurrent),
			EnableMEVProtection: mevProtection,
			FlashbotsRelayURL:   GetEnvWithDefault(EnvFlashbotsRelayURL, "https://relay.flashbots.net"),
			RPCRateLimit:        10,
			RPCRateBurst:        20,
			NetworkTimeout:      5 * time.Second,
			MetricsPort:         GetEnvWithDefault(EnvMetricsPort, "9090"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every section and joins the failures so the operator sees
// all of them at once.
func (c *Config) Validate() error {
	var errs []string

	if err := c.Ethereum.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("ethereum config error: %v", err))
	}
	if err := c.Arbitrage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("arbitrage config error: %v", err))
	}
	if err := c.FlashLoan.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("flash loan config error: %v", err))
	}
	if err := c.Bot.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("bot config error: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (e *EthereumConfig) Validate() error {
	if e.PrivateKey == "" {
		return fmt.Errorf("private key must be specified")
	}
	if e.ChainID == 0 {
		return fmt.Errorf("chain id must be specified")
	}
	if e.HTTPRPCURL == "" && e.WSRPCURL == "" {
		return fmt.Errorf("an RPC endpoint must be specified")
	}
	if e.GasPriceGwei == 0 {
		return fmt.Errorf("gas price must be positive")
	}
	return nil
}

func (a *ArbitrageConfig) Validate() error {
	if a.MinProfitUSD <= 0 {
		return fmt.Errorf("minimum profit must be positive")
	}
	if a.MaxSlippagePercent <= 0 {
		return fmt.Errorf("max slippage must be positive")
	}
	if len(a.TradingPairs) == 0 {
		return fmt.Errorf("at least one trading pair must be configured")
	}
	return nil
}

func (f *FlashLoanConfig) Validate() error {
	if f.AavePoolAddress == (common.Address{}) {
		return fmt.Errorf("aave pool address must be specified")
	}
	if f.MaxLoanAmount == nil || f.MaxLoanAmount.Sign() <= 0 {
		return fmt.Errorf("max loan amount must be positive")
	}
	return nil
}

func (b *BotConfig) Validate() error {
	if b.ScanInterval <= 0 {
		return fmt.Errorf("scan interval must be positive")
	}
	if b.MaxConcurrentTrades <= 0 {
		return fmt.Errorf("max concurrent trades must be positive")
	}
	if b.EnableMEVProtection && b.FlashbotsRelayURL == "" {
		return fmt.Errorf("relay URL must be specified when MEV protection is enabled")
	}
	return nil
}

// loadTradingPairs reads the pair list from a YAML file, or falls back to the
// default WETH/USDC pair when no file is configured.
func loadTradingPairs(path string) ([]TradingPair, error) {
	if path == "" {
		return []TradingPair{
			{
				Token0: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), // WETH
				Token1: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), // USDC
				Symbol: "ETH/USDC",
			},
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pairs file: %w", err)
	}

	var file struct {
		Pairs []struct {
			Token0 string `yaml:"token0"`
			Token1 string `yaml:"token1"`
			Symbol string `yaml:"symbol"`
		} `yaml:"pairs"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pairs file: %w", err)
	}

	pairs := make([]TradingPair, 0, len(file.Pairs))
	for _, p := range file.Pairs {
		if !common.IsHexAddress(p.Token0) || !common.IsHexAddress(p.Token1) {
			return nil, fmt.Errorf("invalid token address in pair %q", p.Symbol)
		}
		pairs = append(pairs, TradingPair{
			Token0: common.HexToAddress(p.Token0),
			Token1: common.HexToAddress(p.Token1),
			Symbol: p.Symbol,
		})
	}
	return pairs, nil
}

func ethToWei(eth float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(eth), big.NewFloat(1e18)).Int(nil)
	return wei
}

func getEnvUint(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}
