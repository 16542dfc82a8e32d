package arbitrage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opportunitiesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_opportunities_detected_total",
		Help: "Arbitrage opportunities that passed the emission filters",
	}, []string{"pair", "buy_dex", "sell_dex"})

	opportunitiesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_opportunities_skipped_total",
		Help: "Opportunity candidates discarded before emission",
	}, []string{"reason"})

	quoteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_quote_errors_total",
		Help: "Quote failures per exchange",
	}, []string{"exchange"})

	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flasharb_scan_duration_seconds",
		Help:    "Duration of a full opportunity scan across all pairs",
		Buckets: prometheus.DefBuckets,
	})

	executions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_executions_total",
		Help: "Arbitrage executions by outcome",
	}, []string{"outcome"})

	executionProfitUSD = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flasharb_execution_profit_usd",
		Help:    "Estimated net profit of executed opportunities in USD",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	ethPriceUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_eth_price_usd",
		Help: "ETH price used for gas and profit conversion",
	})
)
