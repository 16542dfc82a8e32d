package arbitrage

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ExecutionResult records the outcome of one executed or simulated
// opportunity.
type ExecutionResult struct {
	OpportunityID string
	TxHash        common.Hash
	ExecutedAt    int64
	ActualProfit  *big.Int
	GasUsed       uint64
	Success       bool
	ErrorMessage  string
	Simulated     bool
}
