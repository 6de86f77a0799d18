package metric

import "github.com/prometheus/client_golang/prometheus"

const namespace = "txnkv"

var (
	ServerOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "ops_total",
			Help:      "Store operations by kind and result.",
		}, []string{"op", "result"})

	OrderingAnomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "ordering_anomalies_total",
			Help:      "Requests carrying a txn id older than one already seen from the same client.",
		}, []string{"op"})

	UnrecognizedMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "unrecognized_messages_total",
			Help:      "Messages dropped because no handler is registered for their kind.",
		})

	LastTxnID = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "last_txn_id",
			Help:      "Last transaction id issued.",
		})

	ClientTxns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "txns_total",
			Help:      "Finished client transactions by outcome.",
		}, []string{"outcome"})

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Round trip latency of client requests by kind.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(ServerOps)
	prometheus.MustRegister(OrderingAnomalies)
	prometheus.MustRegister(UnrecognizedMessages)
	prometheus.MustRegister(LastTxnID)
	prometheus.MustRegister(ClientTxns)
	prometheus.MustRegister(RequestDuration)
}

// Result is the label value for a boolean outcome.
func Result(ok bool) string {
	if ok {
		return "ok"
	}
	return "rejected"
}
