package balancer

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/flashforge/flasharb/flashloan"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Balancer V2 vault ABI, trimmed to flash loan entry points.
const vaultABIJson = `[
	{
		"inputs": [
			{"internalType": "contract IFlashLoanRecipient", "name": "recipient", "type": "address"},
			{"internalType": "contract IERC20[]", "name": "tokens", "type": "address[]"},
			{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"},
			{"internalType": "bytes", "name": "userData", "type": "bytes"}
		],
		"name": "flashLoan",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// Minimal ERC20 ABI for reading the vault's token balance.
const erc20ABIJson = `[
	{
		"inputs": [
			{"internalType": "address", "name": "account", "type": "address"}
		],
		"name": "balanceOf",
		"outputs": [
			{"internalType": "uint256", "name": "", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

const (
	providerName = "BalancerV2"

	vaultFlashLoanGas = uint64(450000)
)

// ContractCaller is the read-only subset of the eth client the provider needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Provider takes flash loans from the Balancer V2 vault. Balancer charges no
// flash loan fee, so the manager prefers it whenever the vault holds enough
// of the asset.
type Provider struct {
	caller   ContractCaller
	wallet   flashloan.Wallet
	vault    common.Address
	vaultABI abi.ABI
	erc20ABI abi.ABI
	logger   *zap.Logger
}

// NewProvider creates a Balancer flash loan provider.
func NewProvider(caller ContractCaller, wallet flashloan.Wallet, vault common.Address, logger *zap.Logger) (*Provider, error) {
	if caller == nil {
		return nil, fmt.Errorf("caller cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	parsedVaultABI, err := abi.JSON(strings.NewReader(vaultABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse vault ABI: %w", err)
	}
	parsedERC20ABI, err := abi.JSON(strings.NewReader(erc20ABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}

	return &Provider{
		caller:   caller,
		wallet:   wallet,
		vault:    vault,
		vaultABI: parsedVaultABI,
		erc20ABI: parsedERC20ABI,
		logger:   logger,
	}, nil
}

// ExecuteFlashLoan borrows amount of asset from the vault and waits for the
// transaction to be mined.
func (p *Provider) ExecuteFlashLoan(ctx context.Context, asset common.Address, amount *big.Int, params []byte) (common.Hash, error) {
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, fmt.Errorf("invalid loan amount")
	}
	if p.wallet == nil {
		return common.Hash{}, fmt.Errorf("no wallet configured")
	}

	start := time.Now()

	callData, err := p.vaultABI.Pack("flashLoan",
		p.wallet.Address(),
		[]common.Address{asset},
		[]*big.Int{amount},
		params,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack flash loan call: %w", err)
	}

	receipt, err := p.wallet.SendAndWait(ctx, p.vault, callData, vaultFlashLoanGas)
	if err != nil {
		return common.Hash{}, fmt.Errorf("flash loan transaction failed: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt.TxHash, fmt.Errorf("flash loan transaction reverted: %s", receipt.TxHash.Hex())
	}

	p.logger.Info("Flash loan executed",
		zap.String("asset", asset.Hex()),
		zap.String("amount", amount.String()),
		zap.String("tx", receipt.TxHash.Hex()),
		zap.Duration("elapsed", time.Since(start)))

	return receipt.TxHash, nil
}

// GetAvailableLiquidity returns the vault's balance of the asset, which caps
// the flash loan size on Balancer.
func (p *Provider) GetAvailableLiquidity(ctx context.Context, asset common.Address) (*big.Int, error) {
	callData, err := p.erc20ABI.Pack("balanceOf", p.vault)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
	}

	result, err := p.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &asset,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read vault balance: %w", err)
	}

	values, err := p.erc20ABI.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf: %w", err)
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type")
	}

	return balance, nil
}

// GetFlashLoanFee returns zero: Balancer V2 does not charge flash loan fees.
func (p *Provider) GetFlashLoanFee(_ context.Context, _ common.Address, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid loan amount")
	}
	return big.NewInt(0), nil
}

func (p *Provider) String() string {
	return providerName
}
