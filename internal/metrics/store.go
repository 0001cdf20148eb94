package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type StoreMetrics struct {
	writes    *prometheus.CounterVec
	pending   prometheus.Gauge
	coalesced prometheus.Counter
	auditSent *prometheus.CounterVec
}

var (
	storeOnce     sync.Once
	storeRegistry *StoreMetrics
)

func Store() *StoreMetrics {
	storeOnce.Do(func() {
		storeRegistry = &StoreMetrics{
			writes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tradepost_store_writes_total",
				Help: "Write-behind flushes by record kind and result.",
			}, []string{"kind", "result"}),
			pending: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "tradepost_store_pending",
				Help: "Writes queued and not yet flushed.",
			}),
			coalesced: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "tradepost_store_coalesced_total",
				Help: "Writes replaced by a newer value before they were flushed.",
			}),
			auditSent: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tradepost_audit_notifications_total",
				Help: "Audit notifications by destination and result.",
			}, []string{"destination", "result"}),
		}
		prometheus.MustRegister(
			storeRegistry.writes,
			storeRegistry.pending,
			storeRegistry.coalesced,
			storeRegistry.auditSent,
		)
	})
	return storeRegistry
}

func (m *StoreMetrics) ObserveWrite(kind, result string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(orUnknown(kind), orUnknown(result)).Inc()
}

func (m *StoreMetrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

func (m *StoreMetrics) IncCoalesced() {
	if m == nil {
		return
	}
	m.coalesced.Inc()
}

func (m *StoreMetrics) ObserveAudit(destination, result string) {
	if m == nil {
		return
	}
	m.auditSent.WithLabelValues(orUnknown(destination), orUnknown(result)).Inc()
}
