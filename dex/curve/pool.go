package curve

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/flashforge/flasharb/dex"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const registryABIJson = `[
	{
		"inputs": [
			{"internalType": "address", "name": "from", "type": "address"},
			{"internalType": "address", "name": "to", "type": "address"}
		],
		"name": "find_pool_for_coins",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

const poolABIJson = `[
	{
		"inputs": [
			{"internalType": "uint256", "name": "i", "type": "uint256"},
			{"internalType": "uint256", "name": "j", "type": "uint256"},
			{"internalType": "uint256", "name": "dx", "type": "uint256"}
		],
		"name": "get_dy",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "i", "type": "uint256"},
			{"internalType": "uint256", "name": "j", "type": "uint256"},
			{"internalType": "uint256", "name": "dx", "type": "uint256"},
			{"internalType": "uint256", "name": "min_dy", "type": "uint256"}
		],
		"name": "exchange",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "arg0", "type": "uint256"}],
		"name": "coins",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

const (
	exchangeName = "Curve"

	// Curve pools run heavier math than constant-product swaps.
	defaultSwapGas = uint64(200000)

	// Pools index at most this many coins for our purposes.
	maxPoolCoins = 4
)

// ContractCaller is the read-only chain surface the adapter quotes through.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Curve quotes and swaps through pools discovered via the on-chain registry.
// Its registry lookup is the real pool-discovery collaborator; the find_pool
// contract other venues stub out.
type Curve struct {
	caller      ContractCaller
	sender      dex.TxSender
	registry    common.Address
	registryABI abi.ABI
	poolABI     abi.ABI
}

// NewCurve creates a Curve adapter against the given registry.
func NewCurve(caller ContractCaller, sender dex.TxSender, registry common.Address) (*Curve, error) {
	parsedRegistry, err := abi.JSON(strings.NewReader(registryABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}
	parsedPool, err := abi.JSON(strings.NewReader(poolABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool ABI: %w", err)
	}

	return &Curve{
		caller:      caller,
		sender:      sender,
		registry:    registry,
		registryABI: parsedRegistry,
		poolABI:     parsedPool,
	}, nil
}

// GetName returns the exchange name
func (c *Curve) GetName() string {
	return exchangeName
}

// FindPool resolves the pool for a token pair through the registry. The pool
// address is returned padded into the opaque pool id.
func (c *Curve) FindPool(ctx context.Context, tokenIn, tokenOut common.Address) (common.Hash, error) {
	pool, err := c.findPoolAddress(ctx, tokenIn, tokenOut)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(pool.Bytes()), nil
}

// GetQuote quotes amountIn through the pool's get_dy.
func (c *Curve) GetQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*dex.Quote, error) {
	pool, i, j, err := c.resolvePool(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}

	amountOut, err := c.getDy(ctx, pool, i, j, amountIn)
	if err != nil {
		return nil, err
	}

	return dex.NewQuote(exchangeName, tokenIn, tokenOut, amountIn, amountOut, defaultSwapGas), nil
}

// GetSwapRoute builds an executable route against the discovered pool.
func (c *Curve) GetSwapRoute(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*dex.SwapRoute, error) {
	pool, i, j, err := c.resolvePool(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}

	amountOut, err := c.getDy(ctx, pool, i, j, amountIn)
	if err != nil {
		return nil, err
	}

	return &dex.SwapRoute{
		ExchangeName: exchangeName,
		Router:       pool,
		Path:         []common.Address{tokenIn, tokenOut},
		AmountIn:     amountIn,
		AmountOutMin: dex.MinOutWithSlippage(amountOut),
		GasEstimate:  defaultSwapGas,
	}, nil
}

// ExecuteSwap submits exchange() against the route's pool.
func (c *Curve) ExecuteSwap(ctx context.Context, route *dex.SwapRoute) (common.Hash, error) {
	if c.sender == nil {
		return common.Hash{}, fmt.Errorf("no transaction sender configured")
	}
	if len(route.Path) < 2 {
		return common.Hash{}, fmt.Errorf("invalid route path")
	}

	_, i, j, err := c.resolvePool(ctx, route.Path[0], route.Path[1])
	if err != nil {
		return common.Hash{}, err
	}

	data, err := c.poolABI.Pack("exchange", i, j, route.AmountIn, route.AmountOutMin)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack exchange calldata: %w", err)
	}

	hash, err := c.sender.SendContractTx(ctx, route.Router, data, route.GasEstimate)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to execute swap: %w", err)
	}
	return hash, nil
}

func (c *Curve) resolvePool(ctx context.Context, tokenIn, tokenOut common.Address) (common.Address, *big.Int, *big.Int, error) {
	pool, err := c.findPoolAddress(ctx, tokenIn, tokenOut)
	if err != nil {
		return common.Address{}, nil, nil, err
	}

	i, j, err := c.coinIndices(ctx, pool, tokenIn, tokenOut)
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	return pool, i, j, nil
}

func (c *Curve) findPoolAddress(ctx context.Context, tokenIn, tokenOut common.Address) (common.Address, error) {
	data, err := c.registryABI.Pack("find_pool_for_coins", tokenIn, tokenOut)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to pack find_pool_for_coins: %w", err)
	}

	result, err := c.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &c.registry,
		Data: data,
	}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to query pool registry: %w", err)
	}

	out, err := c.registryABI.Unpack("find_pool_for_coins", result)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unpack registry response: %w", err)
	}
	pool, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected registry response type")
	}
	if pool == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no pool found for token pair")
	}

	return pool, nil
}

// coinIndices scans the pool's coin slots for the pair's positions.
func (c *Curve) coinIndices(ctx context.Context, pool, tokenIn, tokenOut common.Address) (*big.Int, *big.Int, error) {
	coins := make([]common.Address, 0, maxPoolCoins)
	for idx := 0; idx < maxPoolCoins; idx++ {
		coin, err := c.coinAt(ctx, pool, idx)
		if err != nil {
			break
		}
		coins = append(coins, coin)
	}

	var i, j *big.Int
	for idx, coin := range coins {
		if coin == tokenIn {
			i = big.NewInt(int64(idx))
		}
		if coin == tokenOut {
			j = big.NewInt(int64(idx))
		}
	}
	if i == nil || j == nil {
		return nil, nil, fmt.Errorf("could not find coin indices in pool")
	}
	return i, j, nil
}

func (c *Curve) coinAt(ctx context.Context, pool common.Address, idx int) (common.Address, error) {
	data, err := c.poolABI.Pack("coins", big.NewInt(int64(idx)))
	if err != nil {
		return common.Address{}, err
	}

	result, err := c.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &pool,
		Data: data,
	}, nil)
	if err != nil {
		return common.Address{}, err
	}

	out, err := c.poolABI.Unpack("coins", result)
	if err != nil {
		return common.Address{}, err
	}
	coin, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected coins response type")
	}
	return coin, nil
}

func (c *Curve) getDy(ctx context.Context, pool common.Address, i, j, dx *big.Int) (*big.Int, error) {
	data, err := c.poolABI.Pack("get_dy", i, j, dx)
	if err != nil {
		return nil, fmt.Errorf("failed to pack get_dy: %w", err)
	}

	result, err := c.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &pool,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call get_dy: %w", err)
	}

	out, err := c.poolABI.Unpack("get_dy", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack get_dy: %w", err)
	}
	dy, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected get_dy response type")
	}
	return dy, nil
}
