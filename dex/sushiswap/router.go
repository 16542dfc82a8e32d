package sushiswap

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

// SushiSwap runs the same router interface as Uniswap V2.
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
	exchangeName = "SushiSwap"

	// SushiSwap pairs tend to cost a little more than Uniswap's.
	defaultSwapGas = uint64(180000)

	swapDeadline = 300 * time.Second
)

// ContractCaller is the read-only chain surface the adapter quotes through.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// SushiSwap quotes and swaps through the SushiSwap router.
type SushiSwap struct {
	caller    ContractCaller
	sender    dex.TxSender
	router    common.Address
	recipient common.Address
	abi       abi.ABI
}

// NewSushiSwap creates a SushiSwap adapter.
func NewSushiSwap(caller ContractCaller, sender dex.TxSender, router, recipient common.Address) (*SushiSwap, error) {
	parsedABI, err := abi.JSON(strings.NewReader(routerABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
	}

	return &SushiSwap{
		caller:    caller,
		sender:    sender,
		router:    router,
		recipient: recipient,
		abi:       parsedABI,
	}, nil
}

// GetName returns the exchange name
func (s *SushiSwap) GetName() string {
	return exchangeName
}

// GetQuote quotes amountIn through the router's getAmountsOut.
func (s *SushiSwap) GetQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*dex.Quote, error) {
	amountOut, err := s.getAmountOut(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}

	return dex.NewQuote(exchangeName, tokenIn, tokenOut, amountIn, amountOut, defaultSwapGas), nil
}

// GetSwapRoute builds an executable route with the fixed slippage bound.
func (s *SushiSwap) GetSwapRoute(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*dex.SwapRoute, error) {
	amountOut, err := s.getAmountOut(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}

	return &dex.SwapRoute{
		ExchangeName: exchangeName,
		Router:       s.router,
		Path:         []common.Address{tokenIn, tokenOut},
		AmountIn:     amountIn,
		AmountOutMin: dex.MinOutWithSlippage(amountOut),
		GasEstimate:  defaultSwapGas,
	}, nil
}

// ExecuteSwap submits swapExactTokensForTokens for the route.
func (s *SushiSwap) ExecuteSwap(ctx context.Context, route *dex.SwapRoute) (common.Hash, error) {
	if s.sender == nil {
		return common.Hash{}, fmt.Errorf("no transaction sender configured")
	}

	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())
	data, err := s.abi.Pack("swapExactTokensForTokens",
		route.AmountIn,
		route.AmountOutMin,
		route.Path,
		s.recipient,
		deadline,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack swap calldata: %w", err)
	}

	hash, err := s.sender.SendContractTx(ctx, route.Router, data, route.GasEstimate)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to execute swap: %w", err)
	}
	return hash, nil
}

func (s *SushiSwap) getAmountOut(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	path := []common.Address{tokenIn, tokenOut}
	data, err := s.abi.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getAmountsOut: %w", err)
	}

	result, err := s.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &s.router,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call getAmountsOut: %w", err)
	}

	out, err := s.abi.Unpack("getAmountsOut", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack getAmountsOut: %w", err)
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return nil, fmt.Errorf("invalid amounts returned from router")
	}

	return amounts[len(amounts)-1], nil
}
