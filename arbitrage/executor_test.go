package arbitrage

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/flashforge/flasharb/config"
	"github.com/flashforge/flasharb/flashloan"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockLoanProvider struct {
	lastAsset  common.Address
	lastAmount *big.Int
	lastParams []byte
	hash       common.Hash
	err        error
	calls      int
}

func (m *mockLoanProvider) ExecuteFlashLoan(_ context.Context, asset common.Address, amount *big.Int, params []byte) (common.Hash, error) {
	m.calls++
	m.lastAsset = asset
	m.lastAmount = amount
	m.lastParams = params
	return m.hash, m.err
}

func (m *mockLoanProvider) GetAvailableLiquidity(context.Context, common.Address) (*big.Int, error) {
	return new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18)), nil
}

func (m *mockLoanProvider) GetFlashLoanFee(_ context.Context, _ common.Address, amount *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (m *mockLoanProvider) String() string { return "mock" }

type mockBalance struct {
	balance *big.Int
	err     error
	calls   int
}

func (m *mockBalance) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.balance, nil
}

func executorConfig() *config.Config {
	return &config.Config{
		Ethereum:  config.EthereumConfig{GasPriceGwei: 30},
		Arbitrage: config.ArbitrageConfig{MaxSlippagePercent: 0.5},
		FlashLoan: config.FlashLoanConfig{
			MaxLoanAmount: new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18)),
		},
	}
}

// viableOpportunity is fresh, profitable after gas and within the slippage
// allowance.
func viableOpportunity() *Opportunity {
	return &Opportunity{
		ID:               "test-op",
		TokenIn:          testWETH,
		TokenOut:         testUSDC,
		Symbol:           "WETH/USDC",
		BuyDex:           "UniswapV2",
		SellDex:          "SushiSwap",
		AmountIn:         big.NewInt(1e18),
		BuyAmountOut:     big.NewInt(10010),
		SellAmountOut:    big.NewInt(10000),
		EstimatedProfit:  big.NewInt(10),
		ProfitUSD:        100,
		GasEstimate:      480000,
		GasCostUSD:       40,
		ProfitPercentage: 1.0,
		Timestamp:        time.Now().Unix(),
	}
}

func newTestExecutor(t *testing.T, loans *mockLoanProvider, balance *mockBalance) *Executor {
	t.Helper()
	executor, err := NewExecutor(executorConfig(), loans, balance, common.HexToAddress("0x01"), zaptest.NewLogger(t))
	require.NoError(t, err)
	return executor
}

func richBalance() *mockBalance {
	return &mockBalance{balance: new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))}
}

func TestExecuteSuccess(t *testing.T) {
	loans := &mockLoanProvider{hash: common.HexToHash("0xbeef")}
	executor := newTestExecutor(t, loans, richBalance())

	hash, err := executor.Execute(context.Background(), viableOpportunity())
	require.NoError(t, err)
	assert.Equal(t, loans.hash, hash)
	assert.Equal(t, testWETH, loans.lastAsset)

	params, err := flashloan.DecodeArbitrageParams(loans.lastParams)
	require.NoError(t, err)
	assert.Equal(t, "UniswapV2", params.BuyDex)
	assert.Equal(t, "SushiSwap", params.SellDex)

	history := executor.History()
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.False(t, history[0].Simulated)
	assert.Equal(t, loans.hash, history[0].TxHash)
}

func TestExecuteRejectsStaleOpportunity(t *testing.T) {
	loans := &mockLoanProvider{}
	executor := newTestExecutor(t, loans, richBalance())

	opportunity := viableOpportunity()
	opportunity.Timestamp = time.Now().Add(-31 * time.Second).Unix()

	_, err := executor.Execute(context.Background(), opportunity)
	assert.ErrorIs(t, err, ErrStale)
	assert.Zero(t, loans.calls)
}

func TestExecuteAcceptsOpportunityWithinStalenessWindow(t *testing.T) {
	loans := &mockLoanProvider{}
	executor := newTestExecutor(t, loans, richBalance())

	opportunity := viableOpportunity()
	opportunity.Timestamp = time.Now().Add(-29 * time.Second).Unix()

	_, err := executor.Execute(context.Background(), opportunity)
	require.NoError(t, err)
	assert.Equal(t, 1, loans.calls)
}

func TestExecuteRejectsInsufficientBalance(t *testing.T) {
	loans := &mockLoanProvider{}
	// Gas cost at 480k units and 30 gwei is 1.44e16 wei; the safety
	// multiplier doubles the requirement.
	balance := &mockBalance{balance: big.NewInt(2e16)}
	executor := newTestExecutor(t, loans, balance)

	_, err := executor.Execute(context.Background(), viableOpportunity())
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Zero(t, loans.calls)
}

func TestExecuteRejectsHighPriceImpact(t *testing.T) {
	loans := &mockLoanProvider{}
	executor := newTestExecutor(t, loans, richBalance())

	opportunity := viableOpportunity()
	opportunity.BuyAmountOut = big.NewInt(10200)
	opportunity.SellAmountOut = big.NewInt(10000)

	_, err := executor.Execute(context.Background(), opportunity)
	assert.ErrorIs(t, err, ErrPriceImpactTooHigh)
	assert.Zero(t, loans.calls)
}

func TestExecuteRejectsUnprofitable(t *testing.T) {
	loans := &mockLoanProvider{}
	executor := newTestExecutor(t, loans, richBalance())

	opportunity := viableOpportunity()
	opportunity.ProfitUSD = 45
	opportunity.GasCostUSD = 40

	_, err := executor.Execute(context.Background(), opportunity)
	assert.ErrorIs(t, err, ErrUnprofitableAfterGas)
	assert.Zero(t, loans.calls)
}

func TestExecuteCapsLoanAtMaximum(t *testing.T) {
	loans := &mockLoanProvider{}
	executor := newTestExecutor(t, loans, richBalance())

	opportunity := viableOpportunity()
	opportunity.AmountIn = new(big.Int).Mul(big.NewInt(200), big.NewInt(1e18))

	_, err := executor.Execute(context.Background(), opportunity)
	require.NoError(t, err)

	maxLoan := new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18))
	assert.Equal(t, 0, loans.lastAmount.Cmp(maxLoan))
}

func TestExecuteUsesProbeSizeBelowCap(t *testing.T) {
	loans := &mockLoanProvider{}
	executor := newTestExecutor(t, loans, richBalance())

	opportunity := viableOpportunity()
	_, err := executor.Execute(context.Background(), opportunity)
	require.NoError(t, err)
	assert.Equal(t, 0, loans.lastAmount.Cmp(opportunity.AmountIn))
}

func TestExecuteRecordsFailure(t *testing.T) {
	loans := &mockLoanProvider{err: fmt.Errorf("loan reverted")}
	executor := newTestExecutor(t, loans, richBalance())

	_, err := executor.Execute(context.Background(), viableOpportunity())
	require.Error(t, err)

	history := executor.History()
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.Contains(t, history[0].ErrorMessage, "loan reverted")
}

func TestSimulateReturnsZeroHashSentinel(t *testing.T) {
	loans := &mockLoanProvider{}
	executor := newTestExecutor(t, loans, richBalance())

	result := executor.Simulate(viableOpportunity())
	assert.Equal(t, common.Hash{}, result.TxHash)
	assert.True(t, result.Success)
	assert.True(t, result.Simulated)
	assert.Zero(t, loans.calls)

	history := executor.History()
	require.Len(t, history, 1)
	assert.True(t, history[0].Simulated)
}

func TestSimulateTouchesNoChainState(t *testing.T) {
	loans := &mockLoanProvider{}
	balance := &mockBalance{err: fmt.Errorf("rpc unreachable")}
	executor := newTestExecutor(t, loans, balance)

	// Stale and underfunded: a dry run must still report the estimated
	// outcome rather than apply the pre-trade checks.
	opportunity := viableOpportunity()
	opportunity.Timestamp = time.Now().Add(-time.Minute).Unix()

	result := executor.Simulate(opportunity)
	assert.Equal(t, common.Hash{}, result.TxHash)
	assert.True(t, result.Success)
	assert.True(t, result.Simulated)
	assert.Equal(t, opportunity.EstimatedProfit, result.ActualProfit)
	assert.Zero(t, balance.calls)
	assert.Zero(t, loans.calls)
}

func TestPriceImpactIsSymmetric(t *testing.T) {
	a := viableOpportunity()
	a.BuyAmountOut = big.NewInt(10200)
	a.SellAmountOut = big.NewInt(10000)

	b := viableOpportunity()
	b.BuyAmountOut = big.NewInt(10000)
	b.SellAmountOut = big.NewInt(10200)

	assert.InDelta(t, PriceImpact(a), PriceImpact(b), 1e-9)
	assert.InDelta(t, 200.0/10100.0*100.0, PriceImpact(a), 1e-9)
}
