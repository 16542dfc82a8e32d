package flashloan

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

// Manager fronts the registered loan venues and routes each loan through the
// one quoting the lowest fee with enough liquidity.
type Manager struct {
	mu      sync.RWMutex
	metrics struct {
		providerSelections prometheus.CounterVec
		executionLatency   prometheus.Histogram
		successRate        prometheus.Gauge
		successCount       prometheus.Counter
		totalCount         prometheus.Counter
		errors             prometheus.CounterVec
	}
	providers []Provider
	logger    *zap.Logger
}

// NewManager creates a flash loan manager
func NewManager(logger *zap.Logger) *Manager {
	manager := &Manager{
		logger: logger,
	}

	manager.metrics.providerSelections = *prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_loan_provider_selections_total",
		Help: "Number of times each loan provider was selected",
	}, []string{"provider"})

	manager.metrics.executionLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flasharb_loan_execution_latency_seconds",
		Help:    "Latency of flash loan execution",
		Buckets: prometheus.DefBuckets,
	})

	manager.metrics.successRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_loan_success_rate",
		Help: "Success rate of flash loan executions",
	})

	manager.metrics.successCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_loan_success_count",
		Help: "Number of successful flash loan executions",
	})

	manager.metrics.totalCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_loan_total_count",
		Help: "Total number of flash loan executions",
	})

	manager.metrics.errors = *prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_loan_errors_total",
		Help: "Number of flash loan errors by type",
	}, []string{"error_type"})

	return manager
}

// AddProvider registers a loan venue.
func (m *Manager) AddProvider(provider Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers = append(m.providers, provider)
}

// ExecuteFlashLoan selects the cheapest liquid provider and executes through it.
func (m *Manager) ExecuteFlashLoan(ctx context.Context, asset common.Address, amount *big.Int, params []byte) (common.Hash, error) {
	start := time.Now()
	defer func() {
		m.metrics.executionLatency.Observe(time.Since(start).Seconds())
	}()

	m.metrics.totalCount.Inc()

	provider, err := m.selectOptimalProvider(ctx, asset, amount)
	if err != nil {
		m.metrics.errors.WithLabelValues("provider_selection").Inc()
		m.updateSuccessRate()
		return common.Hash{}, fmt.Errorf("failed to select provider: %w", err)
	}

	hash, err := provider.ExecuteFlashLoan(ctx, asset, amount, params)
	if err != nil {
		m.metrics.errors.WithLabelValues("execution").Inc()
		m.updateSuccessRate()
		return common.Hash{}, fmt.Errorf("failed to execute flash loan: %w", err)
	}

	m.metrics.successCount.Inc()
	m.updateSuccessRate()

	return hash, nil
}

// GetAvailableLiquidity reports the deepest liquidity among providers.
func (m *Manager) GetAvailableLiquidity(ctx context.Context, asset common.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	best := big.NewInt(0)
	var lastErr error
	for _, provider := range m.providers {
		liquidity, err := provider.GetAvailableLiquidity(ctx, asset)
		if err != nil {
			lastErr = err
			continue
		}
		if liquidity.Cmp(best) > 0 {
			best = liquidity
		}
	}

	if best.Sign() == 0 && lastErr != nil {
		return nil, lastErr
	}
	return best, nil
}

// GetFlashLoanFee returns the lowest fee quoted for the loan.
func (m *Manager) GetFlashLoanFee(ctx context.Context, asset common.Address, amount *big.Int) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *big.Int
	for _, provider := range m.providers {
		fee, err := provider.GetFlashLoanFee(ctx, asset, amount)
		if err != nil {
			m.logger.Warn("Failed to get provider fee",
				zap.String("provider", provider.String()),
				zap.Error(err))
			continue
		}
		if best == nil || fee.Cmp(best) < 0 {
			best = fee
		}
	}

	if best == nil {
		return nil, fmt.Errorf("no provider quoted a fee")
	}
	return best, nil
}

func (m *Manager) String() string {
	return "LoanManager"
}

// selectOptimalProvider picks the cheapest provider that can cover the loan.
func (m *Manager) selectOptimalProvider(ctx context.Context, asset common.Address, amount *big.Int) (Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.providers) == 0 {
		return nil, fmt.Errorf("no providers available")
	}

	var (
		bestProvider Provider
		bestFee      *big.Int
	)

	for _, provider := range m.providers {
		liquidity, err := provider.GetAvailableLiquidity(ctx, asset)
		if err != nil {
			m.logger.Warn("Failed to get provider liquidity",
				zap.String("provider", provider.String()),
				zap.Error(err))
			continue
		}
		if liquidity.Cmp(amount) < 0 {
			continue
		}

		fee, err := provider.GetFlashLoanFee(ctx, asset, amount)
		if err != nil {
			m.logger.Warn("Failed to get provider fee",
				zap.String("provider", provider.String()),
				zap.Error(err))
			continue
		}

		if bestFee == nil || fee.Cmp(bestFee) < 0 {
			bestProvider = provider
			bestFee = fee
		}
	}

	if bestProvider == nil {
		return nil, fmt.Errorf("no suitable provider found")
	}

	m.metrics.providerSelections.WithLabelValues(bestProvider.String()).Inc()
	return bestProvider, nil
}

// updateSuccessRate recomputes the gauge from the raw counters.
func (m *Manager) updateSuccessRate() {
	successCount := counterValue(m.metrics.successCount)
	totalCount := counterValue(m.metrics.totalCount)

	if totalCount > 0 {
		m.metrics.successRate.Set(successCount / totalCount)
	}
}

func counterValue(c prometheus.Counter) float64 {
	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil || metric.Counter == nil {
		return 0
	}
	return metric.Counter.GetValue()
}
