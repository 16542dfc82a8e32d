package flashloan

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Provider is the capability set of a flash-loan venue. The loan is borrowed,
// the borrower's callback runs with the opaque params, and repayment happens
// inside the same transaction; atomicity belongs to the on-chain contract,
// not to this interface.
type Provider interface {
	// ExecuteFlashLoan borrows amount of asset and invokes the borrower
	// callback with params. Returns the transaction hash on inclusion.
	ExecuteFlashLoan(ctx context.Context, asset common.Address, amount *big.Int, params []byte) (common.Hash, error)

	// GetAvailableLiquidity reports how much of asset the venue can lend.
	GetAvailableLiquidity(ctx context.Context, asset common.Address) (*big.Int, error)

	// GetFlashLoanFee returns the fee charged for borrowing amount of asset.
	GetFlashLoanFee(ctx context.Context, asset common.Address, amount *big.Int) (*big.Int, error)

	String() string
}

// Wallet submits signed contract calls and blocks until inclusion. The
// receipt lets providers surface on-chain reverts as errors.
type Wallet interface {
	// Address is the borrowing account, used as loan receiver when no
	// dedicated contract takes the callback.
	Address() common.Address

	SendAndWait(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (*types.Receipt, error)
}
