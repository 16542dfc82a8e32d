package arbitrage

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/flashforge/flasharb/config"
	"github.com/flashforge/flasharb/dex"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	testWETH = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	testUSDC = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

// mockExchange quotes amountIn * rate / 1000, so rate 1020 means 2% more
// output than a rate-1000 venue.
type mockExchange struct {
	name     string
	rate     int64
	gas      uint64
	quoteErr error
}

func (m *mockExchange) GetName() string { return m.name }

func (m *mockExchange) GetQuote(_ context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*dex.Quote, error) {
	if m.quoteErr != nil {
		return nil, m.quoteErr
	}
	amountOut := new(big.Int).Mul(amountIn, big.NewInt(m.rate))
	amountOut.Div(amountOut, big.NewInt(1000))
	return dex.NewQuote(m.name, tokenIn, tokenOut, amountIn, amountOut, m.gas), nil
}

func (m *mockExchange) GetSwapRoute(_ context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*dex.SwapRoute, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockExchange) ExecuteSwap(context.Context, *dex.SwapRoute) (common.Hash, error) {
	return common.Hash{}, fmt.Errorf("not implemented")
}

type staticPrice float64

func (p staticPrice) Read() float64 { return float64(p) }

func testConfig() *config.Config {
	return &config.Config{
		Ethereum: config.EthereumConfig{GasPriceGwei: 30},
		Arbitrage: config.ArbitrageConfig{
			MinProfitUSD:       50,
			MaxSlippagePercent: 0.5,
			TradingPairs: []config.TradingPair{
				{Token0: testWETH, Token1: testUSDC, Symbol: "WETH/USDC"},
			},
		},
		Bot: config.BotConfig{RPCRateBurst: 1},
	}
}

func newTestDetector(t *testing.T, exchanges []dex.Exchange) *Detector {
	t.Helper()
	detector, err := NewDetector(testConfig(), exchanges, staticPrice(3000), zaptest.NewLogger(t))
	require.NoError(t, err)
	return detector
}

func TestDetectorFindsSpread(t *testing.T) {
	exchanges := []dex.Exchange{
		&mockExchange{name: "mid", rate: 1000, gas: 150000},
		&mockExchange{name: "rich", rate: 1020, gas: 180000},
		&mockExchange{name: "poor", rate: 990, gas: 200000},
	}
	detector := newTestDetector(t, exchanges)

	opportunities, err := detector.DetectOpportunities(context.Background())
	require.NoError(t, err)
	require.Len(t, opportunities, len(config.ProbeAmounts))

	o := opportunities[0]
	assert.Equal(t, "rich", o.BuyDex)
	assert.Equal(t, "poor", o.SellDex)
	assert.InDelta(t, 3.0, o.ProfitPercentage, 1e-9)
	assert.True(t, o.BuyAmountOut.Cmp(o.SellAmountOut) > 0)
	assert.Greater(t, o.ProfitUSD, o.GasCostUSD)
	assert.NotEmpty(t, o.ID)
	assert.NotZero(t, o.Timestamp)

	// 1 ETH probe at 2% up vs 1% down: 0.03 ETH spread at $3000.
	assert.InDelta(t, 90.0, o.ProfitUSD, 1e-6)

	// buy leg + sell leg + flash loan overhead, at 30 gwei and $3000.
	assert.Equal(t, uint64(180000+200000+100000), o.GasEstimate)
	assert.InDelta(t, 480000*30*1e-9*3000, o.GasCostUSD, 1e-9)
}

func TestDetectorRequiresTwoQuotes(t *testing.T) {
	exchanges := []dex.Exchange{
		&mockExchange{name: "rich", rate: 1020, gas: 150000},
		&mockExchange{name: "down", quoteErr: fmt.Errorf("rpc unreachable")},
	}
	detector := newTestDetector(t, exchanges)

	opportunities, err := detector.DetectOpportunities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opportunities)
}

func TestDetectorVenueFailureIsNotFatal(t *testing.T) {
	exchanges := []dex.Exchange{
		&mockExchange{name: "rich", rate: 1020, gas: 150000},
		&mockExchange{name: "poor", rate: 990, gas: 180000},
		&mockExchange{name: "down", quoteErr: fmt.Errorf("rpc unreachable")},
	}
	detector := newTestDetector(t, exchanges)

	opportunities, err := detector.DetectOpportunities(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, opportunities)
	assert.Equal(t, "rich", opportunities[0].BuyDex)
	assert.Equal(t, "poor", opportunities[0].SellDex)
}

func TestDetectorNoSpread(t *testing.T) {
	exchanges := []dex.Exchange{
		&mockExchange{name: "a", rate: 1000, gas: 150000},
		&mockExchange{name: "b", rate: 1000, gas: 180000},
	}
	detector := newTestDetector(t, exchanges)

	opportunities, err := detector.DetectOpportunities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opportunities)
}

func TestDetectorSpreadBelowGas(t *testing.T) {
	// 0.1% spread clears the percentage floor but $3 of profit on the
	// 1 ETH probe never clears ~$40 of gas.
	exchanges := []dex.Exchange{
		&mockExchange{name: "a", rate: 1001, gas: 150000},
		&mockExchange{name: "b", rate: 1000, gas: 180000},
	}
	detector := newTestDetector(t, exchanges)

	opportunities, err := detector.DetectOpportunities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opportunities)
}

func TestDetectorTieBreakIsStable(t *testing.T) {
	exchanges := []dex.Exchange{
		&mockExchange{name: "first", rate: 1020, gas: 150000},
		&mockExchange{name: "second", rate: 1020, gas: 180000},
		&mockExchange{name: "poor", rate: 990, gas: 200000},
	}
	detector := newTestDetector(t, exchanges)

	opportunities, err := detector.DetectOpportunities(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, opportunities)
	assert.Equal(t, "first", opportunities[0].BuyDex)
}

func TestDetectorDeduplicatesRepeatScans(t *testing.T) {
	exchanges := []dex.Exchange{
		&mockExchange{name: "rich", rate: 1020, gas: 150000},
		&mockExchange{name: "poor", rate: 990, gas: 180000},
	}
	detector := newTestDetector(t, exchanges)

	first, err := detector.DetectOpportunities(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := detector.DetectOpportunities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second)
}
