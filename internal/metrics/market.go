package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type MarketMetrics struct {
	transactions  *prometheus.CounterVec
	volume        *prometheus.CounterVec
	restoreTicks  prometheus.Counter
	restoredItems prometheus.Counter
	stock         *prometheus.GaugeVec
	quotaReads    *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tradepost_transactions_total",
				Help: "Transactions by kind and terminal status.",
			}, []string{"kind", "status"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tradepost_transaction_volume_total",
				Help: "Settled transaction value by kind and currency.",
			}, []string{"kind", "currency"}),
			restoreTicks: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "tradepost_restore_ticks_total",
				Help: "Number of stock restoration passes run.",
			}),
			restoredItems: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "tradepost_restored_items_total",
				Help: "Number of item stock adjustments made by restoration.",
			}),
			stock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "tradepost_item_stock",
				Help: "Current stock of dynamically priced items.",
			}, []string{"item"}),
			quotaReads: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tradepost_quota_hydrations_total",
				Help: "Quota counters loaded from the store by result.",
			}, []string{"result"}),
		}
		prometheus.MustRegister(
			marketRegistry.transactions,
			marketRegistry.volume,
			marketRegistry.restoreTicks,
			marketRegistry.restoredItems,
			marketRegistry.stock,
			marketRegistry.quotaReads,
		)
	})
	return marketRegistry
}

func (m *MarketMetrics) ObserveTransaction(kind, status string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(orUnknown(kind), orUnknown(status)).Inc()
}

func (m *MarketMetrics) AddVolume(kind, currency string, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.volume.WithLabelValues(orUnknown(kind), orUnknown(currency)).Add(amount)
}

func (m *MarketMetrics) ObserveRestore(changed int) {
	if m == nil {
		return
	}
	m.restoreTicks.Inc()
	if changed > 0 {
		m.restoredItems.Add(float64(changed))
	}
}

func (m *MarketMetrics) SetStock(item string, v int64) {
	if m == nil {
		return
	}
	m.stock.WithLabelValues(orUnknown(item)).Set(float64(v))
}

func (m *MarketMetrics) DeleteStock(item string) {
	if m == nil {
		return
	}
	m.stock.DeleteLabelValues(orUnknown(item))
}

func (m *MarketMetrics) ObserveQuotaHydration(result string) {
	if m == nil {
		return
	}
	m.quotaReads.WithLabelValues(orUnknown(result)).Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
