package observability

import (
	"github.com/rs/zerolog"
)

// AuditLogger writes one structured record per money-moving event.
type AuditLogger struct {
	log zerolog.Logger
}

func NewAuditLogger(log zerolog.Logger) *AuditLogger {
	return &AuditLogger{log: log.With().Str("stream", "audit").Logger()}
}

func (a *AuditLogger) LogEntry(entryID, account, reason, direction, status string, amount int64, sourceID string) {
	a.log.Info().
		Str("event_type", "LEDGER_ENTRY").
		Str("entry_id", entryID).
		Str("account", account).
		Str("reason", reason).
		Str("direction", direction).
		Str("status", status).
		Int64("amount", amount).
		Str("source_id", sourceID).
		Msg("ledger entry written")
}

func (a *AuditLogger) LogPayoutTransition(payoutID, payee, from, to string, amount int64, cause string) {
	a.log.Info().
		Str("event_type", "PAYOUT_TRANSITION").
		Str("payout_id", payoutID).
		Str("payee", payee).
		Str("from", from).
		Str("to", to).
		Int64("amount", amount).
		Str("cause", cause).
		Msg("payout status changed")
}

func (a *AuditLogger) LogError(operation, subjectID string, err error) {
	a.log.Error().
		Str("event_type", "ERROR").
		Str("operation", operation).
		Str("subject_id", subjectID).
		Err(err).
		Msg("operation failed")
}
