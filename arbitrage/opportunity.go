package arbitrage

import (
	"fmt"
	"math/big"

	"github.com/flashforge/flasharb/config"

	"github.com/ethereum/go-ethereum/common"
)

// Opportunity is a priced cross-exchange arbitrage candidate: buy on the
// venue quoting the highest output, sell on the one quoting the lowest.
type Opportunity struct {
	ID               string
	TokenIn          common.Address
	TokenOut         common.Address
	Symbol           string
	BuyDex           string
	SellDex          string
	AmountIn         *big.Int
	BuyAmountOut     *big.Int
	SellAmountOut    *big.Int
	EstimatedProfit  *big.Int
	ProfitUSD        float64
	GasEstimate      uint64
	GasCostUSD       float64
	ProfitPercentage float64
	Timestamp        int64
}

// IsProfitable reports whether the opportunity clears gas plus the minimum
// profit margin.
func (o *Opportunity) IsProfitable() bool {
	return o.ProfitUSD > o.GasCostUSD+config.MinProfitMarginUSD
}

// NetProfitUSD is the expected profit after gas.
func (o *Opportunity) NetProfitUSD() float64 {
	return o.ProfitUSD - o.GasCostUSD
}

func (o *Opportunity) String() string {
	return fmt.Sprintf("%s %s: buy %s / sell %s, profit $%.2f (%.2f%%), gas $%.2f",
		o.ID, o.Symbol, o.BuyDex, o.SellDex, o.ProfitUSD, o.ProfitPercentage, o.GasCostUSD)
}
