package arbitrage

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/flashforge/flasharb/config"
	"github.com/flashforge/flasharb/dex"
	"github.com/flashforge/flasharb/gas"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// An opportunity with the same pair, venues and probe size seen again
	// within this window is treated as a duplicate of the last emission.
	dedupeWindow = 10 * time.Second

	dedupeCacheSize = 4096
)

// PriceSource supplies the ETH/USD price used for gas and profit conversion.
type PriceSource interface {
	Read() float64
}

// Detector scans the configured trading pairs across all exchanges and emits
// priced opportunities. Quotes for one probe fan out concurrently, but every
// venue's answer (or failure) is collected before any comparison is made.
type Detector struct {
	exchanges    []dex.Exchange
	pairs        []config.TradingPair
	probeAmounts []*big.Int
	gasPriceGwei uint64
	minProfitUSD float64
	price        PriceSource
	limiter      *rate.Limiter
	quoteTimeout time.Duration
	seen         *lru.Cache
	logger       *zap.Logger
}

// NewDetector creates a detector over the given exchanges.
func NewDetector(cfg *config.Config, exchanges []dex.Exchange, price PriceSource, logger *zap.Logger) (*Detector, error) {
	if len(exchanges) == 0 {
		return nil, fmt.Errorf("at least one exchange is required")
	}
	if price == nil {
		return nil, fmt.Errorf("price source cannot be nil")
	}

	seen, err := lru.New(dedupeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedupe cache: %w", err)
	}

	limit := rate.Inf
	if cfg.Bot.RPCRateLimit > 0 {
		limit = rate.Limit(cfg.Bot.RPCRateLimit)
	}

	return &Detector{
		exchanges:    exchanges,
		pairs:        cfg.Arbitrage.TradingPairs,
		probeAmounts: config.ProbeAmounts,
		gasPriceGwei: cfg.Ethereum.GasPriceGwei,
		minProfitUSD: cfg.Arbitrage.MinProfitUSD,
		price:        price,
		limiter:      rate.NewLimiter(limit, cfg.Bot.RPCRateBurst),
		quoteTimeout: cfg.Bot.NetworkTimeout,
		seen:         seen,
		logger:       logger,
	}, nil
}

// DetectOpportunities runs one full scan over every pair and probe size.
// Venue quote failures are logged and excluded; they never abort the scan.
func (d *Detector) DetectOpportunities(ctx context.Context) ([]*Opportunity, error) {
	start := time.Now()
	defer func() {
		scanDuration.Observe(time.Since(start).Seconds())
	}()

	ethPrice := d.price.Read()
	ethPriceUSD.Set(ethPrice)

	var opportunities []*Opportunity
	for _, pair := range d.pairs {
		for _, amountIn := range d.probeAmounts {
			if err := ctx.Err(); err != nil {
				return opportunities, err
			}

			opportunity, err := d.findOpportunity(ctx, pair, amountIn, ethPrice)
			if err != nil {
				return opportunities, err
			}
			if opportunity == nil {
				continue
			}

			if opportunity.ProfitUSD < d.minProfitUSD {
				opportunitiesSkipped.WithLabelValues("below_min_profit").Inc()
				continue
			}
			if d.isDuplicate(opportunity) {
				opportunitiesSkipped.WithLabelValues("duplicate").Inc()
				continue
			}

			opportunitiesDetected.WithLabelValues(opportunity.Symbol, opportunity.BuyDex, opportunity.SellDex).Inc()
			d.logger.Info("Arbitrage opportunity detected",
				zap.String("id", opportunity.ID),
				zap.String("pair", opportunity.Symbol),
				zap.String("buy_dex", opportunity.BuyDex),
				zap.String("sell_dex", opportunity.SellDex),
				zap.Float64("profit_usd", opportunity.ProfitUSD),
				zap.Float64("profit_pct", opportunity.ProfitPercentage),
				zap.Float64("gas_cost_usd", opportunity.GasCostUSD))
			opportunities = append(opportunities, opportunity)
		}
	}

	return opportunities, nil
}

// findOpportunity quotes one probe on every exchange and compares the spread.
// Returns nil when fewer than two venues answered or the spread does not
// clear the emission thresholds.
func (d *Detector) findOpportunity(ctx context.Context, pair config.TradingPair, amountIn *big.Int, ethPrice float64) (*Opportunity, error) {
	quotes := make([]*dex.Quote, len(d.exchanges))

	g, gctx := errgroup.WithContext(ctx)
	for i, exchange := range d.exchanges {
		i, exchange := i, exchange
		g.Go(func() error {
			if err := d.limiter.Wait(gctx); err != nil {
				return err
			}

			quoteCtx := gctx
			if d.quoteTimeout > 0 {
				var cancel context.CancelFunc
				quoteCtx, cancel = context.WithTimeout(gctx, d.quoteTimeout)
				defer cancel()
			}

			quote, err := exchange.GetQuote(quoteCtx, pair.Token0, pair.Token1, amountIn)
			if err != nil {
				quoteErrors.WithLabelValues(exchange.GetName()).Inc()
				d.logger.Warn("Failed to get quote",
					zap.String("exchange", exchange.GetName()),
					zap.String("pair", pair.Symbol),
					zap.Error(err))
				return nil
			}
			quotes[i] = quote
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	valid := make([]*dex.Quote, 0, len(quotes))
	for _, quote := range quotes {
		if quote != nil {
			valid = append(valid, quote)
		}
	}
	if len(valid) < 2 {
		return nil, nil
	}

	// Buy where output is highest, sell where it is lowest. Strict
	// comparisons keep the earliest venue on ties.
	buy := valid[0]
	sell := valid[0]
	for _, quote := range valid {
		if quote.AmountOut.Cmp(buy.AmountOut) > 0 {
			buy = quote
		}
		if quote.AmountOut.Cmp(sell.AmountOut) < 0 {
			sell = quote
		}
	}

	if buy.AmountOut.Cmp(sell.AmountOut) <= 0 {
		return nil, nil
	}

	profit := new(big.Int).Sub(buy.AmountOut, sell.AmountOut)
	profitPct := bigToFloat(profit) / bigToFloat(amountIn) * 100.0

	totalGas := gas.TotalArbitrageGas(buy.GasEstimate, sell.GasEstimate)
	gasCostUSD := gas.CostUSD(totalGas, d.gasPriceGwei, ethPrice)
	profitUSD := bigToFloat(profit) / 1e18 * ethPrice

	if profitPct < config.MinProfitPercentage || profitUSD <= gasCostUSD {
		return nil, nil
	}

	return &Opportunity{
		ID:               uuid.NewString(),
		TokenIn:          pair.Token0,
		TokenOut:         pair.Token1,
		Symbol:           pair.Symbol,
		BuyDex:           buy.ExchangeName,
		SellDex:          sell.ExchangeName,
		AmountIn:         amountIn,
		BuyAmountOut:     buy.AmountOut,
		SellAmountOut:    sell.AmountOut,
		EstimatedProfit:  profit,
		ProfitUSD:        profitUSD,
		GasEstimate:      totalGas,
		GasCostUSD:       gasCostUSD,
		ProfitPercentage: profitPct,
		Timestamp:        time.Now().Unix(),
	}, nil
}

// isDuplicate remembers emitted opportunities by shape and suppresses
// re-emissions inside the dedupe window.
func (d *Detector) isDuplicate(o *Opportunity) bool {
	key := opportunityKey(o.TokenIn, o.TokenOut, o.BuyDex, o.SellDex, o.AmountIn)
	if last, ok := d.seen.Get(key); ok {
		if time.Since(last.(time.Time)) < dedupeWindow {
			return true
		}
	}
	d.seen.Add(key, time.Now())
	return false
}

func opportunityKey(tokenIn, tokenOut common.Address, buyDex, sellDex string, amountIn *big.Int) uint64 {
	h := xxhash.New()
	h.Write(tokenIn.Bytes())
	h.Write(tokenOut.Bytes())
	h.WriteString(buyDex)
	h.WriteString("|")
	h.WriteString(sellDex)
	h.WriteString("|")
	h.WriteString(amountIn.String())
	return h.Sum64()
}

func bigToFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
