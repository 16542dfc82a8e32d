package monitor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	goroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_runtime_goroutines",
		Help: "Current number of goroutines",
	})
	heapAlloc = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_runtime_heap_alloc_bytes",
		Help: "Current heap allocation in bytes",
	})
	heapObjects = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_runtime_heap_objects",
		Help: "Current number of heap objects",
	})
	gcPauseMs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_runtime_gc_pause_ms",
		Help: "Most recent GC pause in milliseconds",
	})
)

const collectInterval = 10 * time.Second

// SystemMonitor exports Go runtime health to the metrics endpoint so a scan
// loop that leaks goroutines or memory shows up before it falls over.
type SystemMonitor struct {
	cancel context.CancelFunc
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewSystemMonitor starts collecting runtime metrics until Stop is called.
func NewSystemMonitor(ctx context.Context, logger *zap.Logger) *SystemMonitor {
	ctx, cancel := context.WithCancel(ctx)
	m := &SystemMonitor{
		cancel: cancel,
		logger: logger,
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop(ctx)
	}()

	return m
}

func (m *SystemMonitor) loop(ctx context.Context) {
	ticker := time.NewTicker(collectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collect()
		}
	}
}

func (m *SystemMonitor) collect() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	goroutines.Set(float64(runtime.NumGoroutine()))
	heapAlloc.Set(float64(memStats.HeapAlloc))
	heapObjects.Set(float64(memStats.HeapObjects))
	gcPauseMs.Set(float64(memStats.PauseNs[(memStats.NumGC+255)%256]) / float64(time.Millisecond))

	m.logger.Debug("Runtime stats",
		zap.Int("goroutines", runtime.NumGoroutine()),
		zap.Uint64("heap_alloc", memStats.HeapAlloc))
}

// Stop ends collection and waits for the loop to exit.
func (m *SystemMonitor) Stop() {
	m.cancel()
	m.wg.Wait()
}
