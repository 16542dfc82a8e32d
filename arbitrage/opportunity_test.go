package arbitrage

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsProfitableRequiresMarginOverGas(t *testing.T) {
	o := &Opportunity{ProfitUSD: 100, GasCostUSD: 40}
	assert.True(t, o.IsProfitable())

	// Exactly gas plus the $10 margin is not enough.
	o = &Opportunity{ProfitUSD: 50, GasCostUSD: 40}
	assert.False(t, o.IsProfitable())

	o = &Opportunity{ProfitUSD: 50.01, GasCostUSD: 40}
	assert.True(t, o.IsProfitable())

	o = &Opportunity{ProfitUSD: 5, GasCostUSD: 40}
	assert.False(t, o.IsProfitable())
}

func TestNetProfitUSD(t *testing.T) {
	o := &Opportunity{ProfitUSD: 100, GasCostUSD: 40}
	assert.InDelta(t, 60.0, o.NetProfitUSD(), 1e-9)
}

func TestOpportunityString(t *testing.T) {
	o := &Opportunity{
		ID:               "abc",
		Symbol:           "WETH/USDC",
		BuyDex:           "UniswapV2",
		SellDex:          "SushiSwap",
		AmountIn:         big.NewInt(1e18),
		ProfitUSD:        90,
		GasCostUSD:       43.2,
		ProfitPercentage: 3,
	}
	s := o.String()
	assert.Contains(t, s, "WETH/USDC")
	assert.Contains(t, s, "UniswapV2")
	assert.Contains(t, s, "SushiSwap")
}
