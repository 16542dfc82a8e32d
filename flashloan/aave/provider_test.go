package aave

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	testPool     = common.HexToAddress("0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2")
	testContract = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testWETH     = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

type mockCaller struct {
	liquidity map[common.Address]*big.Int
	err       error
}

func (m *mockCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	asset := common.BytesToAddress(msg.Data[4:36])
	liquidity := m.liquidity[asset]
	if liquidity == nil {
		liquidity = big.NewInt(0)
	}
	result := make([]byte, 32)
	liquidity.FillBytes(result)
	return result, nil
}

type mockWallet struct {
	address  common.Address
	lastTo   common.Address
	lastData []byte
	lastGas  uint64
	status   uint64
	err      error
}

func (m *mockWallet) Address() common.Address { return m.address }

func (m *mockWallet) SendAndWait(_ context.Context, to common.Address, data []byte, gasLimit uint64) (*types.Receipt, error) {
	m.lastTo = to
	m.lastData = data
	m.lastGas = gasLimit
	if m.err != nil {
		return nil, m.err
	}
	return &types.Receipt{
		Status: m.status,
		TxHash: common.HexToHash("0xabc"),
	}, nil
}

func TestGetFlashLoanFee(t *testing.T) {
	logger := zaptest.NewLogger(t)
	provider, err := NewProvider(&mockCaller{}, &mockWallet{}, testPool, common.Address{}, logger)
	require.NoError(t, err)

	amount := new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))
	fee, err := provider.GetFlashLoanFee(context.Background(), testWETH, amount)
	require.NoError(t, err)

	// 0.05% of 10 ETH = 0.005 ETH
	expected := new(big.Int).Mul(big.NewInt(5), big.NewInt(1e15))
	assert.Equal(t, 0, fee.Cmp(expected))
}

func TestGetFlashLoanFeeRejectsInvalidAmount(t *testing.T) {
	logger := zaptest.NewLogger(t)
	provider, err := NewProvider(&mockCaller{}, &mockWallet{}, testPool, common.Address{}, logger)
	require.NoError(t, err)

	_, err = provider.GetFlashLoanFee(context.Background(), testWETH, big.NewInt(0))
	assert.Error(t, err)

	_, err = provider.GetFlashLoanFee(context.Background(), testWETH, nil)
	assert.Error(t, err)
}

func TestGetAvailableLiquidity(t *testing.T) {
	logger := zaptest.NewLogger(t)
	caller := &mockCaller{liquidity: map[common.Address]*big.Int{
		testWETH: new(big.Int).Mul(big.NewInt(500), big.NewInt(1e18)),
	}}
	provider, err := NewProvider(caller, &mockWallet{}, testPool, common.Address{}, logger)
	require.NoError(t, err)

	liquidity, err := provider.GetAvailableLiquidity(context.Background(), testWETH)
	require.NoError(t, err)
	assert.Equal(t, 0, liquidity.Cmp(new(big.Int).Mul(big.NewInt(500), big.NewInt(1e18))))
}

func TestExecuteFlashLoanRoutesThroughContract(t *testing.T) {
	logger := zaptest.NewLogger(t)
	wallet := &mockWallet{
		address: common.HexToAddress("0x2222222222222222222222222222222222222222"),
		status:  types.ReceiptStatusSuccessful,
	}
	provider, err := NewProvider(&mockCaller{}, wallet, testPool, testContract, logger)
	require.NoError(t, err)

	hash, err := provider.ExecuteFlashLoan(context.Background(), testWETH, big.NewInt(1e18), []byte{0x01})
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, hash)
	assert.Equal(t, testContract, wallet.lastTo)
	assert.Equal(t, startArbitrageGas, wallet.lastGas)
}

func TestExecuteFlashLoanFallsBackToPool(t *testing.T) {
	logger := zaptest.NewLogger(t)
	wallet := &mockWallet{
		address: common.HexToAddress("0x2222222222222222222222222222222222222222"),
		status:  types.ReceiptStatusSuccessful,
	}
	provider, err := NewProvider(&mockCaller{}, wallet, testPool, common.Address{}, logger)
	require.NoError(t, err)

	_, err = provider.ExecuteFlashLoan(context.Background(), testWETH, big.NewInt(1e18), nil)
	require.NoError(t, err)
	assert.Equal(t, testPool, wallet.lastTo)
	assert.Equal(t, poolFlashLoanGas, wallet.lastGas)
}

func TestExecuteFlashLoanRevertedReceipt(t *testing.T) {
	logger := zaptest.NewLogger(t)
	wallet := &mockWallet{
		address: common.HexToAddress("0x2222222222222222222222222222222222222222"),
		status:  types.ReceiptStatusFailed,
	}
	provider, err := NewProvider(&mockCaller{}, wallet, testPool, testContract, logger)
	require.NoError(t, err)

	_, err = provider.ExecuteFlashLoan(context.Background(), testWETH, big.NewInt(1e18), nil)
	assert.ErrorContains(t, err, "reverted")
}
