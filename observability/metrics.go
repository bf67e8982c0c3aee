package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"nftlend/core/events"
)

// LoanMetrics counts ledger events by type and serves them in Prometheus
// exposition format. It implements events.Emitter so it can be wired directly
// into the loan engine, alone or inside an events.Fanout.
type LoanMetrics struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
}

// NewLoanMetrics constructs a metrics collector with its own registry.
func NewLoanMetrics() *LoanMetrics {
	registry := prometheus.NewRegistry()
	eventCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nftlend",
		Name:      "events_total",
		Help:      "Number of ledger events emitted, partitioned by event type.",
	}, []string{"type"})
	registry.MustRegister(eventCounter)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &LoanMetrics{registry: registry, events: eventCounter}
}

// Emit implements events.Emitter.
func (m *LoanMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.events.WithLabelValues(evt.EventType()).Inc()
}

// Handler returns the HTTP handler serving the metrics registry.
func (m *LoanMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// EventCount returns the current counter value for an event type. Intended for
// tests.
func (m *LoanMetrics) EventCount(eventType string) float64 {
	metric, err := m.events.GetMetricWithLabelValues(eventType)
	if err != nil {
		return 0
	}
	var pb dto.Metric
	if err := metric.Write(&pb); err != nil {
		return 0
	}
	return pb.GetCounter().GetValue()
}
