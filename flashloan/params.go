package flashloan

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ArbitrageParams is what the on-chain callback needs to run both swap legs
// inside the borrowed-funds window.
type ArbitrageParams struct {
	TokenIn  common.Address
	TokenOut common.Address
	BuyDex   string
	SellDex  string
}

var arbitrageParamsArgs = func() abi.Arguments {
	addressTy, _ := abi.NewType("address", "", nil)
	stringTy, _ := abi.NewType("string", "", nil)
	return abi.Arguments{
		{Name: "tokenIn", Type: addressTy},
		{Name: "tokenOut", Type: addressTy},
		{Name: "buyDex", Type: stringTy},
		{Name: "sellDex", Type: stringTy},
	}
}()

// EncodeArbitrageParams ABI-encodes the callback parameters.
func EncodeArbitrageParams(p ArbitrageParams) ([]byte, error) {
	data, err := arbitrageParamsArgs.Pack(p.TokenIn, p.TokenOut, p.BuyDex, p.SellDex)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arbitrage params: %w", err)
	}
	return data, nil
}

// DecodeArbitrageParams is the inverse of EncodeArbitrageParams; the on-chain
// contract does this in Solidity, tests do it here.
func DecodeArbitrageParams(data []byte) (ArbitrageParams, error) {
	values, err := arbitrageParamsArgs.Unpack(data)
	if err != nil {
		return ArbitrageParams{}, fmt.Errorf("failed to decode arbitrage params: %w", err)
	}
	if len(values) != 4 {
		return ArbitrageParams{}, fmt.Errorf("unexpected arbitrage params layout")
	}

	p := ArbitrageParams{}
	var ok bool
	if p.TokenIn, ok = values[0].(common.Address); !ok {
		return ArbitrageParams{}, fmt.Errorf("invalid tokenIn")
	}
	if p.TokenOut, ok = values[1].(common.Address); !ok {
		return ArbitrageParams{}, fmt.Errorf("invalid tokenOut")
	}
	if p.BuyDex, ok = values[2].(string); !ok {
		return ArbitrageParams{}, fmt.Errorf("invalid buyDex")
	}
	if p.SellDex, ok = values[3].(string); !ok {
		return ArbitrageParams{}, fmt.Errorf("invalid sellDex")
	}
	return p, nil
}
