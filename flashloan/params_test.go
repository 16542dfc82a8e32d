package flashloan

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArbitrageParamsRoundTrip(t *testing.T) {
	params := ArbitrageParams{
		TokenIn:  common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		TokenOut: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		BuyDex:   "UniswapV2",
		SellDex:  "SushiSwap",
	}

	encoded, err := EncodeArbitrageParams(params)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := DecodeArbitrageParams(encoded)
	require.NoError(t, err)
	assert.Equal(t, params.TokenIn, decoded.TokenIn)
	assert.Equal(t, params.TokenOut, decoded.TokenOut)
	assert.Equal(t, params.BuyDex, decoded.BuyDex)
	assert.Equal(t, params.SellDex, decoded.SellDex)
}

func TestDecodeArbitrageParamsRejectsGarbage(t *testing.T) {
	_, err := DecodeArbitrageParams([]byte{0x01, 0x02})
	assert.Error(t, err)
}
