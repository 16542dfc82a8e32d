package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/flashforge/flasharb/dex"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Router02 ABI, quoting and swapping only
const routerABIJson = `[
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"}
		],
		"name": "getAmountsOut",
		"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"},
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "deadline", "type": "uint256"}
		],
		"name": "swapExactTokensForTokens",
		"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

const (
	exchangeName = "UniswapV2"

	// A single-hop V2 router swap lands near here.
	defaultSwapGas = uint64(150000)

	// Seconds a submitted swap stays valid.
	swapDeadline = 300 * time.Second
)

// ContractCaller is the read-only chain surface the adapter quotes through.
// *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// UniswapV2 quotes and swaps through the V2 router.
type UniswapV2 struct {
	caller    ContractCaller
	sender    dex.TxSender
	router    common.Address
	recipient common.Address
	abi       abi.ABI
}

// NewUniswapV2 creates a Uniswap V2 adapter. sender may be nil for a
// quote-only adapter; recipient is the address swaps pay out to.
func NewUniswapV2(caller ContractCaller, sender dex.TxSender, router, recipient common.Address) (*UniswapV2, error) {
	parsedABI, err := abi.JSON(strings.NewReader(routerABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
	}

	return &UniswapV2{
		caller:    caller,
		sender:    sender,
		router:    router,
		recipient: recipient,
		abi:       parsedABI,
	}, nil
}

// GetName returns the exchange name
func (u *UniswapV2) GetName() string {
	return exchangeName
}

// GetRouterAddress returns the router contract address
func (u *UniswapV2) GetRouterAddress() common.Address {
	return u.router
}

// GetQuote quotes amountIn through the router's getAmountsOut.
func (u *UniswapV2) GetQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*dex.Quote, error) {
	amountOut, err := u.getAmountOut(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}

	return dex.NewQuote(exchangeName, tokenIn, tokenOut, amountIn, amountOut, defaultSwapGas), nil
}

// GetSwapRoute builds an executable route with the fixed slippage bound.
func (u *UniswapV2) GetSwapRoute(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*dex.SwapRoute, error) {
	amountOut, err := u.getAmountOut(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}

	return &dex.SwapRoute{
		ExchangeName: exchangeName,
		Router:       u.router,
		Path:         []common.Address{tokenIn, tokenOut},
		AmountIn:     amountIn,
		AmountOutMin: dex.MinOutWithSlippage(amountOut),
		GasEstimate:  defaultSwapGas,
	}, nil
}

// ExecuteSwap submits swapExactTokensForTokens for the route.
func (u *UniswapV2) ExecuteSwap(ctx context.Context, route *dex.SwapRoute) (common.Hash, error) {
	if u.sender == nil {
		return common.Hash{}, fmt.Errorf("no transaction sender configured")
	}

	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())
	data, err := u.abi.Pack("swapExactTokensForTokens",
		route.AmountIn,
		route.AmountOutMin,
		route.Path,
		u.recipient,
		deadline,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack swap calldata: %w", err)
	}

	hash, err := u.sender.SendContractTx(ctx, route.Router, data, route.GasEstimate)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to execute swap: %w", err)
	}
	return hash, nil
}

func (u *UniswapV2) getAmountOut(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	path := []common.Address{tokenIn, tokenOut}
	data, err := u.abi.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getAmountsOut: %w", err)
	}

	result, err := u.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &u.router,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call getAmountsOut: %w", err)
	}

	out, err := u.abi.Unpack("getAmountsOut", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack getAmountsOut: %w", err)
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return nil, fmt.Errorf("invalid amounts returned from router")
	}

	return amounts[len(amounts)-1], nil
}
