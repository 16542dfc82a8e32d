package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/flashforge/flasharb/config"
	"github.com/flashforge/flasharb/flashloan"
	"github.com/flashforge/flasharb/gas"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Validation failures. All of them mean "skip this opportunity", never
// "stop the bot".
var (
	ErrStale                = errors.New("opportunity is too old")
	ErrInsufficientBalance  = errors.New("insufficient balance for gas fees")
	ErrPriceImpactTooHigh   = errors.New("price impact exceeds slippage tolerance")
	ErrUnprofitableAfterGas = errors.New("opportunity does not clear gas and margin")
)

const historySize = 128

// BalanceReader reads an account's ETH balance. Satisfied by ethclient.Client.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Executor turns detected opportunities into flash-loan funded trades.
// Executions are serialized: one signing account means one in-flight
// transaction at a time.
type Executor struct {
	loans          flashloan.Provider
	balance        BalanceReader
	account        common.Address
	gasPriceGwei   uint64
	maxSlippagePct float64
	maxLoanAmount  *big.Int

	mu      sync.Mutex
	history []ExecutionResult

	now    func() time.Time
	logger *zap.Logger
}

// NewExecutor creates an executor funding trades through loans.
func NewExecutor(cfg *config.Config, loans flashloan.Provider, balance BalanceReader, account common.Address, logger *zap.Logger) (*Executor, error) {
	if loans == nil {
		return nil, fmt.Errorf("loan provider cannot be nil")
	}
	if balance == nil {
		return nil, fmt.Errorf("balance reader cannot be nil")
	}

	return &Executor{
		loans:          loans,
		balance:        balance,
		account:        account,
		gasPriceGwei:   cfg.Ethereum.GasPriceGwei,
		maxSlippagePct: cfg.Arbitrage.MaxSlippagePercent,
		maxLoanAmount:  cfg.FlashLoan.MaxLoanAmount,
		now:            time.Now,
		logger:         logger,
	}, nil
}

// Execute validates the opportunity and runs it through a flash loan.
func (e *Executor) Execute(ctx context.Context, opportunity *Opportunity) (common.Hash, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Info("Executing arbitrage opportunity", zap.String("id", opportunity.ID))

	if err := e.validate(ctx, opportunity); err != nil {
		executions.WithLabelValues("rejected").Inc()
		return common.Hash{}, err
	}

	loanAmount := e.loanAmount(opportunity)
	params, err := flashloan.EncodeArbitrageParams(flashloan.ArbitrageParams{
		TokenIn:  opportunity.TokenIn,
		TokenOut: opportunity.TokenOut,
		BuyDex:   opportunity.BuyDex,
		SellDex:  opportunity.SellDex,
	})
	if err != nil {
		executions.WithLabelValues("failure").Inc()
		return common.Hash{}, fmt.Errorf("failed to encode loan params: %w", err)
	}

	hash, err := e.loans.ExecuteFlashLoan(ctx, opportunity.TokenIn, loanAmount, params)
	if err != nil {
		executions.WithLabelValues("failure").Inc()
		e.record(ExecutionResult{
			OpportunityID: opportunity.ID,
			ExecutedAt:    e.now().Unix(),
			Success:       false,
			ErrorMessage:  err.Error(),
		})
		return common.Hash{}, fmt.Errorf("flash loan execution failed: %w", err)
	}

	executions.WithLabelValues("success").Inc()
	executionProfitUSD.Observe(opportunity.NetProfitUSD())
	e.record(ExecutionResult{
		OpportunityID: opportunity.ID,
		TxHash:        hash,
		ExecutedAt:    e.now().Unix(),
		ActualProfit:  opportunity.EstimatedProfit,
		GasUsed:       opportunity.GasEstimate,
		Success:       true,
	})

	e.logger.Info("Arbitrage executed",
		zap.String("id", opportunity.ID),
		zap.String("tx", hash.Hex()),
		zap.Float64("net_profit_usd", opportunity.NetProfitUSD()))

	return hash, nil
}

// Simulate reports what an execution would look like, built entirely from
// the opportunity's estimated figures. It touches the chain in no way, so
// dry runs work without a reachable node or a funded account. The zero
// transaction hash marks the result as simulated.
func (e *Executor) Simulate(opportunity *Opportunity) *ExecutionResult {
	result := ExecutionResult{
		OpportunityID: opportunity.ID,
		TxHash:        common.Hash{},
		ExecutedAt:    e.now().Unix(),
		ActualProfit:  opportunity.EstimatedProfit,
		GasUsed:       opportunity.GasEstimate,
		Success:       true,
		Simulated:     true,
	}
	e.mu.Lock()
	e.record(result)
	e.mu.Unlock()

	e.logger.Debug("Simulation completed", zap.String("id", opportunity.ID))
	return &result
}

// History returns the retained execution results, oldest first.
func (e *Executor) History() []ExecutionResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]ExecutionResult, len(e.history))
	copy(out, e.history)
	return out
}

// validate applies the pre-trade checks: staleness, gas balance headroom and
// price impact.
func (e *Executor) validate(ctx context.Context, opportunity *Opportunity) error {
	if !opportunity.IsProfitable() {
		return fmt.Errorf("%w: net $%.2f", ErrUnprofitableAfterGas, opportunity.NetProfitUSD())
	}

	age := e.now().Sub(time.Unix(opportunity.Timestamp, 0))
	if age > config.MaxOpportunityAge {
		return fmt.Errorf("%w: %s", ErrStale, age.Truncate(time.Second))
	}

	balance, err := e.balance.BalanceAt(ctx, e.account, nil)
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}
	required := new(big.Int).Mul(
		gas.CostWei(opportunity.GasEstimate, e.gasPriceGwei),
		big.NewInt(config.GasSafetyMultiplier),
	)
	if balance.Cmp(required) < 0 {
		return fmt.Errorf("%w: required %s, available %s", ErrInsufficientBalance, required, balance)
	}

	impact := PriceImpact(opportunity)
	if impact > e.maxSlippagePct {
		return fmt.Errorf("%w: %.2f%%", ErrPriceImpactTooHigh, impact)
	}

	return nil
}

// loanAmount caps the probe size at the configured maximum loan.
func (e *Executor) loanAmount(opportunity *Opportunity) *big.Int {
	if e.maxLoanAmount != nil && opportunity.AmountIn.Cmp(e.maxLoanAmount) > 0 {
		return e.maxLoanAmount
	}
	return opportunity.AmountIn
}

// record appends to the bounded history ring. Caller holds e.mu.
func (e *Executor) record(result ExecutionResult) {
	e.history = append(e.history, result)
	if len(e.history) > historySize {
		e.history = e.history[len(e.history)-historySize:]
	}
}

// PriceImpact is the buy/sell output divergence relative to their average,
// in percent. It is symmetric in the two legs.
func PriceImpact(opportunity *Opportunity) float64 {
	total := new(big.Int).Add(opportunity.BuyAmountOut, opportunity.SellAmountOut)
	average := new(big.Int).Div(total, big.NewInt(2))
	if average.Sign() == 0 {
		return 0
	}

	diff := new(big.Int).Sub(opportunity.BuyAmountOut, opportunity.SellAmountOut)
	diff.Abs(diff)

	return bigToFloat(diff) / bigToFloat(average) * 100.0
}
