package dex

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Exchange is the capability set every liquidity venue adapter implements.
// The detector holds a slice of these and never depends on concrete venues;
// adding a venue means adding an adapter, not touching detection logic.
type Exchange interface {
	// GetName returns the venue identifier used for logging and routing.
	GetName() string

	// GetQuote quotes amountIn of tokenIn against tokenOut at current chain
	// state. The quote must carry a gas estimate for the swap.
	GetQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*Quote, error)

	// GetSwapRoute builds an executable route with a minimum-output bound
	// derived from the quoted output and the fixed slippage allowance.
	GetSwapRoute(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*SwapRoute, error)

	// ExecuteSwap submits the trade described by route.
	ExecuteSwap(ctx context.Context, route *SwapRoute) (common.Hash, error)
}

// TxSender abstracts signed transaction submission so adapters never touch
// keys or nonces themselves.
type TxSender interface {
	SendContractTx(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (common.Hash, error)
}

// PoolFinder locates a venue's liquidity pool for an arbitrary token pair.
// Registry-backed venues (Curve) implement it for real; venues without an
// on-chain registry must be given one by the operator.
type PoolFinder interface {
	FindPool(ctx context.Context, tokenIn, tokenOut common.Address) (common.Hash, error)
}

// Quote is one venue's reported output for a probe. It is consumed by the
// detector immediately and never persisted.
type Quote struct {
	ExchangeName  string
	TokenIn       common.Address
	TokenOut      common.Address
	AmountIn      *big.Int
	AmountOut     *big.Int
	PricePerToken float64
	GasEstimate   uint64
	Timestamp     int64
}

// SwapRoute describes an executable trade on a single venue.
type SwapRoute struct {
	ExchangeName string
	Router       common.Address
	Path         []common.Address
	AmountIn     *big.Int
	AmountOutMin *big.Int
	GasEstimate  uint64
}

// Slippage allowance applied to every route's minimum output:
// amountOut * 995 / 1000, a fixed 0.5% below the quoted output.
var (
	slippageNumerator   = big.NewInt(995)
	slippageDenominator = big.NewInt(1000)
)

// MinOutWithSlippage returns the minimum acceptable output for a quoted
// amount under the fixed slippage allowance.
func MinOutWithSlippage(amountOut *big.Int) *big.Int {
	min := new(big.Int).Mul(amountOut, slippageNumerator)
	return min.Div(min, slippageDenominator)
}

// NewQuote fills the derived fields of a Quote.
func NewQuote(exchange string, tokenIn, tokenOut common.Address, amountIn, amountOut *big.Int, gasEstimate uint64) *Quote {
	price := 0.0
	if amountIn.Sign() > 0 {
		in, _ := new(big.Float).SetInt(amountIn).Float64()
		out, _ := new(big.Float).SetInt(amountOut).Float64()
		price = out / in
	}
	return &Quote{
		ExchangeName:  exchange,
		TokenIn:       tokenIn,
		TokenOut:      tokenOut,
		AmountIn:      amountIn,
		AmountOut:     amountOut,
		PricePerToken: price,
		GasEstimate:   gasEstimate,
		Timestamp:     time.Now().Unix(),
	}
}
