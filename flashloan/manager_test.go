package flashloan

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testAsset = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

type stubProvider struct {
	name      string
	liquidity *big.Int
	fee       *big.Int
	execHash  common.Hash
	execErr   error
	executed  bool
}

func (s *stubProvider) ExecuteFlashLoan(context.Context, common.Address, *big.Int, []byte) (common.Hash, error) {
	s.executed = true
	return s.execHash, s.execErr
}

func (s *stubProvider) GetAvailableLiquidity(context.Context, common.Address) (*big.Int, error) {
	if s.liquidity == nil {
		return nil, fmt.Errorf("no liquidity data")
	}
	return s.liquidity, nil
}

func (s *stubProvider) GetFlashLoanFee(_ context.Context, _ common.Address, _ *big.Int) (*big.Int, error) {
	if s.fee == nil {
		return nil, fmt.Errorf("no fee data")
	}
	return s.fee, nil
}

func (s *stubProvider) String() string { return s.name }

func TestManagerSelectsCheapestProvider(t *testing.T) {
	logger := zaptest.NewLogger(t)
	manager := NewManager(logger)

	expensive := &stubProvider{
		name:      "expensive",
		liquidity: big.NewInt(1e18),
		fee:       big.NewInt(500),
		execHash:  common.HexToHash("0x01"),
	}
	cheap := &stubProvider{
		name:      "cheap",
		liquidity: big.NewInt(1e18),
		fee:       big.NewInt(0),
		execHash:  common.HexToHash("0x02"),
	}
	manager.AddProvider(expensive)
	manager.AddProvider(cheap)

	hash, err := manager.ExecuteFlashLoan(context.Background(), testAsset, big.NewInt(1000), nil)
	require.NoError(t, err)
	assert.Equal(t, cheap.execHash, hash)
	assert.True(t, cheap.executed)
	assert.False(t, expensive.executed)
}

func TestManagerSkipsIlliquidProviders(t *testing.T) {
	logger := zaptest.NewLogger(t)
	manager := NewManager(logger)

	shallow := &stubProvider{
		name:      "shallow",
		liquidity: big.NewInt(10),
		fee:       big.NewInt(0),
	}
	deep := &stubProvider{
		name:      "deep",
		liquidity: big.NewInt(1e18),
		fee:       big.NewInt(500),
		execHash:  common.HexToHash("0x03"),
	}
	manager.AddProvider(shallow)
	manager.AddProvider(deep)

	hash, err := manager.ExecuteFlashLoan(context.Background(), testAsset, big.NewInt(1000), nil)
	require.NoError(t, err)
	assert.Equal(t, deep.execHash, hash)
	assert.False(t, shallow.executed)
}

func TestManagerNoProviders(t *testing.T) {
	logger := zaptest.NewLogger(t)
	manager := NewManager(logger)

	_, err := manager.ExecuteFlashLoan(context.Background(), testAsset, big.NewInt(1000), nil)
	assert.Error(t, err)
}

func TestManagerBestLiquidity(t *testing.T) {
	logger := zaptest.NewLogger(t)
	manager := NewManager(logger)

	manager.AddProvider(&stubProvider{name: "a", liquidity: big.NewInt(100)})
	manager.AddProvider(&stubProvider{name: "b", liquidity: big.NewInt(300)})
	manager.AddProvider(&stubProvider{name: "broken"})

	liquidity, err := manager.GetAvailableLiquidity(context.Background(), testAsset)
	require.NoError(t, err)
	assert.Equal(t, int64(300), liquidity.Int64())
}

func TestManagerBestFee(t *testing.T) {
	logger := zaptest.NewLogger(t)
	manager := NewManager(logger)

	manager.AddProvider(&stubProvider{name: "a", fee: big.NewInt(9)})
	manager.AddProvider(&stubProvider{name: "b", fee: big.NewInt(5)})

	fee, err := manager.GetFlashLoanFee(context.Background(), testAsset, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, int64(5), fee.Int64())
}
