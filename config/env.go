package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvHTTPRPCURL          = "ETH_HTTP_RPC_URL"
	EnvWSRPCURL            = "ETH_WS_RPC_URL"
	EnvPrivateKey          = "PRIVATE_KEY"
	EnvChainID             = "CHAIN_ID"
	EnvGasPriceGwei        = "GAS_PRICE_GWEI"
	EnvMaxGasLimit         = "MAX_GAS_LIMIT"
	EnvMinProfitUSD        = "MIN_PROFIT_USD"
	EnvMaxSlippagePercent  = "MAX_SLIPPAGE_PERCENT"
	EnvMaxLoanAmountETH    = "MAX_LOAN_AMOUNT_ETH"
	EnvScanIntervalMs      = "SCAN_INTERVAL_MS"
	EnvMaxConcurrentTrades = "MAX_CONCURRENT_TRADES"
	EnvEnableMEVProtection = "ENABLE_MEV_PROTECTION"
	EnvFlashbotsRelayURL   = "FLASHBOTS_RELAY_URL"
	EnvAavePoolAddress     = "AAVE_POOL_ADDRESS"
	EnvFlashLoanContract   = "FLASHLOAN_CONTRACT_ADDRESS"
	EnvUniswapV2Router     = "UNISWAP_V2_ROUTER"
	EnvSushiswapRouter     = "SUSHISWAP_ROUTER"
	EnvCurveRegistry       = "CURVE_REGISTRY"
	EnvBalancerVault       = "BALANCER_VAULT"
	EnvBalancerPoolID      = "BALANCER_POOL_ID"
	EnvTradingPairsFile    = "TRADING_PAIRS_FILE"
	EnvMetricsPort         = "METRICS_PORT"
)

// LoadEnv loads environment variables from an env file. With no argument it
// tries .env in the working directory; a missing default file is not an error.
func LoadEnv(files ...string) error {
	if len(files) > 0 && files[0] != "" {
		return godotenv.Load(files[0])
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetRequiredEnv gets an environment variable that must be set.
func GetRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s not set", key)
	}
	return value, nil
}
