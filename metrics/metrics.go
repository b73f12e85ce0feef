// Package metrics defines the engine's prometheus collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// Operations accepted at the engine boundary, by op (submit,
	// add_resting, cancel) and synchronous status.
	Operations *prometheus.CounterVec
	// Trades generated by the matching passes.
	Trades prometheus.Counter
	// Terminal order states, by reason.
	OrdersDone *prometheus.CounterVec
	// Resting orders passed over for an unmet minimum quantity.
	MinQtySkips prometheus.Counter
	// Shard operations aborted by an invariant violation.
	OpsAborted prometheus.Counter
	// Inbound queue depth per shard.
	QueueDepth *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fenrir",
			Name:      "operations_total",
			Help:      "Engine boundary operations by op and status.",
		}, []string{"op", "status"}),
		Trades: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fenrir",
			Name:      "trades_total",
			Help:      "Matched pairs generated.",
		}),
		OrdersDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fenrir",
			Name:      "orders_done_total",
			Help:      "Orders reaching a terminal state, by reason.",
		}, []string{"reason"}),
		MinQtySkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fenrir",
			Name:      "min_qty_skips_total",
			Help:      "Resting orders skipped for an unmet minimum quantity.",
		}),
		OpsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fenrir",
			Name:      "ops_aborted_total",
			Help:      "Shard operations aborted by an invariant violation.",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fenrir",
			Name:      "shard_queue_depth",
			Help:      "Inbound queue depth per shard.",
		}, []string{"shard"}),
	}
	reg.MustRegister(
		m.Operations,
		m.Trades,
		m.OrdersDone,
		m.MinQtySkips,
		m.OpsAborted,
		m.QueueDepth,
	)
	return m
}
