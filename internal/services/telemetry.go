package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/staybay/backend/internal/models"
	"github.com/staybay/backend/internal/observability"
)

// Telemetry bundles the logger, audit stream and metrics a service reports to.
type Telemetry struct {
	Log     zerolog.Logger
	Audit   *observability.AuditLogger
	Metrics *observability.Metrics
}

func NewTelemetry(log zerolog.Logger, reg prometheus.Registerer) Telemetry {
	return Telemetry{
		Log:     log,
		Audit:   observability.NewAuditLogger(log),
		Metrics: observability.NewMetrics(reg),
	}
}

func (t Telemetry) component(name string) Telemetry {
	t.Log = t.Log.With().Str("service", name).Logger()
	return t
}

func (t Telemetry) entryWritten(e models.LedgerEntry) {
	t.Metrics.EntriesWritten.WithLabelValues(string(e.Reason), string(e.Direction)).Inc()
	t.Audit.LogEntry(e.ID, e.Account.String(), string(e.Reason), string(e.Direction), string(e.Status), e.Amount, e.Source.ID)
}
