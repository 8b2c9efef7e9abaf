package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// DCAMetrics exposes the engine's operational counters and gauges. The
// service layer observes them around each engine call; the engine itself
// stays metric-free.
type DCAMetrics struct {
	positionsCreated    *prometheus.CounterVec
	positionsModified   prometheus.Counter
	positionsTerminated prometheus.Counter
	withdrawals         prometheus.Counter
	swapsExecuted       *prometheus.CounterVec
	blankSwaps          *prometheus.CounterVec
	swapInput           *prometheus.GaugeVec
	operationFailures   *prometheus.CounterVec
}

var (
	dcaOnce     sync.Once
	dcaRegistry *DCAMetrics
)

// DCA returns the process-wide metric set, registering it on first use.
func DCA() *DCAMetrics {
	dcaOnce.Do(func() {
		dcaRegistry = &DCAMetrics{
			positionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dca_positions_created_total",
				Help: "Count of positions opened, by pair.",
			}, []string{"pair"}),
			positionsModified: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "dca_positions_modified_total",
				Help: "Count of position modifications.",
			}),
			positionsTerminated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "dca_positions_terminated_total",
				Help: "Count of positions terminated.",
			}),
			withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "dca_withdrawals_total",
				Help: "Count of successful swapped-balance withdrawals.",
			}),
			swapsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dca_swaps_executed_total",
				Help: "Count of batched swaps registered, by pair.",
			}, []string{"pair"}),
			blankSwaps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dca_blank_swaps_total",
				Help: "Count of bookkeeping-only swap advances, by pair.",
			}, []string{"pair"}),
			swapInput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "dca_swap_input",
				Help: "Aggregate input of the most recent swap, by pair.",
			}, []string{"pair"}),
			operationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dca_operation_failures_total",
				Help: "Count of failed engine operations, by operation.",
			}, []string{"op"}),
		}
		prometheus.MustRegister(
			dcaRegistry.positionsCreated,
			dcaRegistry.positionsModified,
			dcaRegistry.positionsTerminated,
			dcaRegistry.withdrawals,
			dcaRegistry.swapsExecuted,
			dcaRegistry.blankSwaps,
			dcaRegistry.swapInput,
			dcaRegistry.operationFailures,
		)
	})
	return dcaRegistry
}

func (m *DCAMetrics) ObservePositionCreated(pair string) {
	if m == nil {
		return
	}
	m.positionsCreated.WithLabelValues(pair).Inc()
}

func (m *DCAMetrics) ObservePositionModified() {
	if m == nil {
		return
	}
	m.positionsModified.Inc()
}

func (m *DCAMetrics) ObservePositionTerminated() {
	if m == nil {
		return
	}
	m.positionsTerminated.Inc()
}

func (m *DCAMetrics) ObserveWithdrawal() {
	if m == nil {
		return
	}
	m.withdrawals.Inc()
}

func (m *DCAMetrics) ObserveSwap(pair string, input float64) {
	if m == nil {
		return
	}
	m.swapsExecuted.WithLabelValues(pair).Inc()
	m.swapInput.WithLabelValues(pair).Set(input)
}

func (m *DCAMetrics) ObserveBlankSwap(pair string) {
	if m == nil {
		return
	}
	m.blankSwaps.WithLabelValues(pair).Inc()
}

func (m *DCAMetrics) ObserveFailure(op string) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	m.operationFailures.WithLabelValues(op).Inc()
}
