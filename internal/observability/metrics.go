package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the ledger engine.
type Metrics struct {
	EntriesWritten   *prometheus.CounterVec
	EntriesMatured   *prometheus.CounterVec
	Reversals        *prometheus.CounterVec
	PayoutsByStatus  *prometheus.CounterVec
	PayoutRejections *prometheus.CounterVec
	WebhookOutcomes  *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	SoftFailures     *prometheus.CounterVec
}

// NewMetrics registers every collector with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EntriesWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_entries_written_total",
			Help: "Ledger rows appended, by reason and direction.",
		}, []string{"reason", "direction"}),
		EntriesMatured: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_entries_matured_total",
			Help: "Rows flipped from pending to available, by sweep scope.",
		}, []string{"scope"}),
		Reversals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_reversals_total",
			Help: "Compensating rows written on cancellation, by original reason.",
		}, []string{"reason"}),
		PayoutsByStatus: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_transitions_total",
			Help: "Payout state transitions, by target status.",
		}, []string{"status"}),
		PayoutRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_request_rejections_total",
			Help: "Payout requests rejected, by error code.",
		}, []string{"code"}),
		WebhookOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Provider webhook deliveries, by outcome.",
		}, []string{"outcome"}),
		ProviderLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payout_provider_call_seconds",
			Help:    "Latency of payment provider calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "result"}),
		SoftFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_soft_failures_total",
			Help: "Best-effort operations that failed and await reconciliation.",
		}, []string{"operation"}),
	}
}
