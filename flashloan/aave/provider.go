package aave

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/flashforge/flasharb/flashloan"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Aave V3 pool ABI, trimmed to the calls the provider makes.
const poolABIJson = `[
	{
		"inputs": [
			{"internalType": "address", "name": "receiverAddress", "type": "address"},
			{"internalType": "address", "name": "asset", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"},
			{"internalType": "bytes", "name": "params", "type": "bytes"},
			{"internalType": "uint16", "name": "referralCode", "type": "uint16"}
		],
		"name": "flashLoanSimple",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "asset", "type": "address"}
		],
		"name": "getReserveData",
		"outputs": [
			{"internalType": "uint256", "name": "availableLiquidity", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Arbitrage executor contract ABI. startArbitrage takes the flash loan and
// unwinds the two swaps inside its callback.
const arbitrageABIJson = `[
	{
		"inputs": [
			{"internalType": "address", "name": "asset", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"},
			{"internalType": "bytes", "name": "params", "type": "bytes"}
		],
		"name": "startArbitrage",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

const (
	providerName = "AaveV3"

	// Flash loan premium, in basis points. 0.05% on Aave V3.
	flashLoanFeeBps = 5

	startArbitrageGas = uint64(500000)
	poolFlashLoanGas  = uint64(400000)
)

// ContractCaller is the read-only subset of the eth client the provider needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Provider takes flash loans from an Aave V3 pool. When an arbitrage contract
// address is configured, loans are initiated through its startArbitrage entry
// point so the contract receives the callback; otherwise the pool is called
// directly with the bot wallet as receiver.
type Provider struct {
	caller   ContractCaller
	wallet   flashloan.Wallet
	pool     common.Address
	contract common.Address
	poolABI  abi.ABI
	arbABI   abi.ABI
	logger   *zap.Logger
	metrics  struct {
		loanCount prometheus.Counter
		errors    prometheus.Counter
		latency   prometheus.Histogram
	}
}

// NewProvider creates an Aave flash loan provider. contract may be the zero
// address when no arbitrage contract is deployed.
func NewProvider(caller ContractCaller, wallet flashloan.Wallet, pool, contract common.Address, logger *zap.Logger) (*Provider, error) {
	if caller == nil {
		return nil, fmt.Errorf("caller cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	parsedPoolABI, err := abi.JSON(strings.NewReader(poolABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool ABI: %w", err)
	}
	parsedArbABI, err := abi.JSON(strings.NewReader(arbitrageABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse arbitrage ABI: %w", err)
	}

	p := &Provider{
		caller:   caller,
		wallet:   wallet,
		pool:     pool,
		contract: contract,
		poolABI:  parsedPoolABI,
		arbABI:   parsedArbABI,
		logger:   logger,
	}

	p.metrics.loanCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_aave_loans_total",
		Help: "Total number of Aave flash loans executed",
	})
	p.metrics.errors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_aave_errors_total",
		Help: "Total number of Aave flash loan errors",
	})
	p.metrics.latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flasharb_aave_latency_seconds",
		Help:    "Latency of Aave flash loan execution",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	return p, nil
}

// ExecuteFlashLoan borrows amount of asset and waits for the transaction to
// be mined. A reverted receipt is an error.
func (p *Provider) ExecuteFlashLoan(ctx context.Context, asset common.Address, amount *big.Int, params []byte) (common.Hash, error) {
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, fmt.Errorf("invalid loan amount")
	}
	if p.wallet == nil {
		return common.Hash{}, fmt.Errorf("no wallet configured")
	}

	start := time.Now()
	defer func() {
		p.metrics.latency.Observe(time.Since(start).Seconds())
	}()

	var (
		to       common.Address
		callData []byte
		gasLimit uint64
		err      error
	)
	if p.contract != (common.Address{}) {
		to = p.contract
		gasLimit = startArbitrageGas
		callData, err = p.arbABI.Pack("startArbitrage", asset, amount, params)
	} else {
		to = p.pool
		gasLimit = poolFlashLoanGas
		callData, err = p.poolABI.Pack("flashLoanSimple", p.wallet.Address(), asset, amount, params, uint16(0))
	}
	if err != nil {
		p.metrics.errors.Inc()
		return common.Hash{}, fmt.Errorf("failed to pack flash loan call: %w", err)
	}

	receipt, err := p.wallet.SendAndWait(ctx, to, callData, gasLimit)
	if err != nil {
		p.metrics.errors.Inc()
		return common.Hash{}, fmt.Errorf("flash loan transaction failed: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		p.metrics.errors.Inc()
		return receipt.TxHash, fmt.Errorf("flash loan transaction reverted: %s", receipt.TxHash.Hex())
	}

	p.metrics.loanCount.Inc()
	p.logger.Info("Flash loan executed",
		zap.String("asset", asset.Hex()),
		zap.String("amount", amount.String()),
		zap.String("tx", receipt.TxHash.Hex()))

	return receipt.TxHash, nil
}

// GetAvailableLiquidity reads the reserve's available liquidity from the pool.
func (p *Provider) GetAvailableLiquidity(ctx context.Context, asset common.Address) (*big.Int, error) {
	callData, err := p.poolABI.Pack("getReserveData", asset)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getReserveData: %w", err)
	}

	result, err := p.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &p.pool,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read reserve data: %w", err)
	}
	if len(result) < 32 {
		return nil, fmt.Errorf("short reserve data response: %d bytes", len(result))
	}

	return new(big.Int).SetBytes(result[:32]), nil
}

// GetFlashLoanFee returns the premium charged for the loan.
func (p *Provider) GetFlashLoanFee(ctx context.Context, asset common.Address, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid loan amount")
	}

	fee := new(big.Int).Mul(amount, big.NewInt(flashLoanFeeBps))
	return fee.Div(fee, big.NewInt(10000)), nil
}

func (p *Provider) String() string {
	return providerName
}
