package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"nftlend/core/events"
)

type LendingMetrics struct {
	protocolEvents *prometheus.CounterVec
	requestErrors  *prometheus.CounterVec
	activeLoans    prometheus.Gauge
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			protocolEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lend_protocol_events_total",
				Help: "Count of protocol events emitted by type.",
			}, []string{"type"}),
			requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lend_request_errors_total",
				Help: "Count of failed API operations by endpoint.",
			}, []string{"endpoint"}),
			activeLoans: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lend_active_loans",
				Help: "Number of loans currently in a non-terminal state.",
			}),
		}
		prometheus.MustRegister(
			lendingRegistry.protocolEvents,
			lendingRegistry.requestErrors,
			lendingRegistry.activeLoans,
		)
	})
	return lendingRegistry
}

func (m *LendingMetrics) ObserveEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.protocolEvents.WithLabelValues(eventType).Inc()
}

func (m *LendingMetrics) ObserveRequestError(endpoint string) {
	if m == nil {
		return
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	m.requestErrors.WithLabelValues(endpoint).Inc()
}

func (m *LendingMetrics) AddActiveLoans(delta float64) {
	if m == nil {
		return
	}
	m.activeLoans.Add(delta)
}

// Emitter counts every emitted protocol event by type and forwards it to the
// wrapped emitter when one is set. It satisfies the engines' emitter
// interface, so it can sit directly between engine and subscriber.
type Emitter struct {
	metrics *LendingMetrics
	next    events.Emitter
}

// NewEmitter wraps next with event counting. A nil next discards events after
// counting.
func NewEmitter(next events.Emitter) *Emitter {
	return &Emitter{metrics: Lending(), next: next}
}

// Emit implements the events.Emitter interface.
func (e *Emitter) Emit(evt events.Event) {
	if e == nil || evt == nil {
		return
	}
	e.metrics.ObserveEvent(evt.EventType())
	if e.next != nil {
		e.next.Emit(evt)
	}
}
