package gas

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// FlashLoanOverheadGas is the orchestration overhead added on top of the two
// swap legs: loan dispatch, callback entry and repayment transfer.
const FlashLoanOverheadGas = uint64(100000)

// CostUSD converts gas units into dollars through the configured gas price
// and the cached reference price of the native asset.
func CostUSD(gasUnits uint64, gasPriceGwei uint64, ethPriceUSD float64) float64 {
	gasCostEth := float64(gasUnits) * float64(gasPriceGwei) * 1e-9
	return gasCostEth * ethPriceUSD
}

// CostWei converts gas units into wei at the given gas price.
func CostWei(gasUnits uint64, gasPriceGwei uint64) *big.Int {
	gwei := new(big.Int).Mul(new(big.Int).SetUint64(gasUnits), new(big.Int).SetUint64(gasPriceGwei))
	return gwei.Mul(gwei, big.NewInt(1e9))
}

// TotalArbitrageGas sums the two swap legs and the flash loan overhead.
func TotalArbitrageGas(buyLegGas, sellLegGas uint64) uint64 {
	return buyLegGas + sellLegGas + FlashLoanOverheadGas
}

// Estimator tracks live base and priority fees from the chain so execution
// can price transactions off current conditions rather than the static
// configured gas price.
type Estimator struct {
	client       *ethclient.Client
	logger       *zap.Logger
	baseGasPrice *big.Int
	priorityFee  *big.Int
	mu           sync.RWMutex
	updateTicker *time.Ticker
	done         chan struct{}
}

// NewEstimator creates a gas estimator and starts its refresh loop.
func NewEstimator(client *ethclient.Client, logger *zap.Logger) *Estimator {
	e := &Estimator{
		client:       client,
		logger:       logger,
		baseGasPrice: big.NewInt(0),
		priorityFee:  big.NewInt(0),
		updateTicker: time.NewTicker(time.Second),
		done:         make(chan struct{}),
	}
	go e.updateLoop()
	return e
}

func (e *Estimator) updateLoop() {
	for {
		select {
		case <-e.done:
			return
		case <-e.updateTicker.C:
			if err := e.update(); err != nil {
				e.logger.Error("Failed to update gas prices", zap.Error(err))
			}
		}
	}
}

func (e *Estimator) update() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header, err := e.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to get latest header: %w", err)
	}

	priorityFee, err := e.client.SuggestGasTipCap(ctx)
	if err != nil {
		return fmt.Errorf("failed to get priority fee: %w", err)
	}

	e.mu.Lock()
	if header.BaseFee != nil {
		e.baseGasPrice = header.BaseFee
	}
	e.priorityFee = priorityFee
	e.mu.Unlock()

	return nil
}

// SuggestGasPrice returns base fee plus priority fee from the latest refresh.
func (e *Estimator) SuggestGasPrice() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return new(big.Int).Add(e.baseGasPrice, e.priorityFee)
}

// EstimateGasCost returns the wei cost of gasLimit units at current prices.
func (e *Estimator) EstimateGasCost(gasLimit uint64) *big.Int {
	price := e.SuggestGasPrice()
	return price.Mul(price, new(big.Int).SetUint64(gasLimit))
}

// Stop stops the gas price updates
func (e *Estimator) Stop() {
	e.updateTicker.Stop()
	close(e.done)
}
