package balancer

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

const vaultABIJson = `[
	{
		"inputs": [
			{"internalType": "uint8", "name": "kind", "type": "uint8"},
			{
				"components": [
					{"internalType": "bytes32", "name": "poolId", "type": "bytes32"},
					{"internalType": "uint256", "name": "assetInIndex", "type": "uint256"},
					{"internalType": "uint256", "name": "assetOutIndex", "type": "uint256"},
					{"internalType": "uint256", "name": "amount", "type": "uint256"},
					{"internalType": "bytes", "name": "userData", "type": "bytes"}
				],
				"internalType": "struct IVault.BatchSwapStep[]",
				"name": "swaps",
				"type": "tuple[]"
			},
			{"internalType": "address[]", "name": "assets", "type": "address[]"},
			{
				"components": [
					{"internalType": "address", "name": "sender", "type": "address"},
					{"internalType": "bool", "name": "fromInternalBalance", "type": "bool"},
					{"internalType": "address", "name": "recipient", "type": "address"},
					{"internalType": "bool", "name": "toInternalBalance", "type": "bool"}
				],
				"internalType": "struct IVault.FundManagement",
				"name": "funds",
				"type": "tuple"
			}
		],
		"name": "queryBatchSwap",
		"outputs": [{"internalType": "int256[]", "name": "", "type": "int256[]"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

const (
	exchangeName = "Balancer"

	// Vault batch swaps carry the heaviest gas of the venues we quote.
	defaultSwapGas = uint64(250000)

	// GIVEN_IN swap kind
	swapKindGivenIn = uint8(0)
)

type batchSwapStep struct {
	PoolId        [32]byte
	AssetInIndex  *big.Int
	AssetOutIndex *big.Int
	Amount        *big.Int
	UserData      []byte
}

type fundManagement struct {
	Sender              common.Address
	FromInternalBalance bool
	Recipient           common.Address
	ToInternalBalance   bool
}

// ContractCaller is the read-only chain surface the adapter quotes through.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Balancer quotes swaps through the vault's queryBatchSwap. Pool discovery
// for arbitrary pairs needs an off-chain registry (subgraph); until one is
// wired in, the adapter serves only the pool id it was configured with.
type Balancer struct {
	caller    ContractCaller
	vault     common.Address
	recipient common.Address
	poolID    common.Hash
	abi       abi.ABI
}

// NewBalancer creates a Balancer adapter bound to a single configured pool.
// A zero poolID leaves the adapter quoting nothing until discovery exists.
func NewBalancer(caller ContractCaller, vault, recipient common.Address, poolID common.Hash) (*Balancer, error) {
	parsedABI, err := abi.JSON(strings.NewReader(vaultABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse vault ABI: %w", err)
	}

	return &Balancer{
		caller:    caller,
		vault:     vault,
		recipient: recipient,
		poolID:    poolID,
		abi:       parsedABI,
	}, nil
}

// GetName returns the exchange name
func (b *Balancer) GetName() string {
	return exchangeName
}

// FindPool returns the configured pool id. Real discovery is an external
// collaborator contract this adapter does not implement.
func (b *Balancer) FindPool(ctx context.Context, tokenIn, tokenOut common.Address) (common.Hash, error) {
	if b.poolID == (common.Hash{}) {
		return common.Hash{}, fmt.Errorf("balancer pool discovery not configured for pair %s/%s", tokenIn.Hex(), tokenOut.Hex())
	}
	return b.poolID, nil
}

// GetQuote quotes amountIn through the vault's queryBatchSwap.
func (b *Balancer) GetQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*dex.Quote, error) {
	poolID, err := b.FindPool(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}

	amountOut, err := b.queryBatchSwap(ctx, poolID, tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}

	return dex.NewQuote(exchangeName, tokenIn, tokenOut, amountIn, amountOut, defaultSwapGas), nil
}

// GetSwapRoute builds an executable route with the fixed slippage bound.
func (b *Balancer) GetSwapRoute(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*dex.SwapRoute, error) {
	poolID, err := b.FindPool(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}

	amountOut, err := b.queryBatchSwap(ctx, poolID, tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}

	return &dex.SwapRoute{
		ExchangeName: exchangeName,
		Router:       b.vault,
		Path:         []common.Address{tokenIn, tokenOut},
		AmountIn:     amountIn,
		AmountOutMin: dex.MinOutWithSlippage(amountOut),
		GasEstimate:  defaultSwapGas,
	}, nil
}

// ExecuteSwap is not supported until batchSwap submission is wired to a
// sender; the arbitrage contract performs Balancer legs on-chain.
func (b *Balancer) ExecuteSwap(ctx context.Context, route *dex.SwapRoute) (common.Hash, error) {
	return common.Hash{}, fmt.Errorf("direct balancer swaps are executed by the arbitrage contract")
}

func (b *Balancer) queryBatchSwap(ctx context.Context, poolID common.Hash, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	swaps := []batchSwapStep{{
		PoolId:        poolID,
		AssetInIndex:  big.NewInt(0),
		AssetOutIndex: big.NewInt(1),
		Amount:        amountIn,
		UserData:      []byte{},
	}}
	assets := []common.Address{tokenIn, tokenOut}
	funds := fundManagement{
		Sender:    b.recipient,
		Recipient: b.recipient,
	}

	data, err := b.abi.Pack("queryBatchSwap", swapKindGivenIn, swaps, assets, funds)
	if err != nil {
		return nil, fmt.Errorf("failed to pack queryBatchSwap: %w", err)
	}

	result, err := b.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &b.vault,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch swap: %w", err)
	}

	out, err := b.abi.Unpack("queryBatchSwap", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack queryBatchSwap: %w", err)
	}
	deltas, ok := out[0].([]*big.Int)
	if !ok || len(deltas) < 2 {
		return nil, fmt.Errorf("invalid batch swap response")
	}

	// The vault reports the output delta from its own perspective, so the
	// amount leaving the vault is negative.
	amountOut := new(big.Int).Abs(deltas[1])
	return amountOut, nil
}
