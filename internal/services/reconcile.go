package services

import (
	"context"
	"time"

	"github.com/staybay/backend/internal/config"
	"github.com/staybay/backend/internal/models"
)

// BookingSource lists bookings whose ledger state should be re-derived.
type BookingSource interface {
	Bookings(ctx context.Context, since time.Time) ([]models.BookingRecord, error)
}

// StaticBookings serves a fixed list, as posted to the reconcile endpoint.
type StaticBookings []models.BookingRecord

func (b StaticBookings) Bookings(ctx context.Context, since time.Time) ([]models.BookingRecord, error) {
	return b, nil
}

type ReconcileFailure struct {
	BookingID string `json:"bookingId"`
	Op        string `json:"op"`
	Error     string `json:"error"`
}

type ReconcileReport struct {
	Checked         int                `json:"checked"`
	EntriesInserted int                `json:"entriesInserted"`
	Reversed        int                `json:"reversed"`
	Matured         int64              `json:"matured"`
	Failures        []ReconcileFailure `json:"failures,omitempty"`
}

// Reconciler re-runs recording for confirmed bookings and reversal for
// canceled ones. Both are idempotent, so only missing rows get written.
type Reconciler struct {
	ledger    *LedgerService
	reversals *ReversalEngine
	maturity  *MaturityScheduler
	splits    *config.SplitsProvider
	lookback  time.Duration
	telemetry Telemetry
	now       func() time.Time
}

func NewReconciler(ledger *LedgerService, reversals *ReversalEngine, maturity *MaturityScheduler, splits *config.SplitsProvider, lookbackDays int, t Telemetry) *Reconciler {
	return &Reconciler{
		ledger:    ledger,
		reversals: reversals,
		maturity:  maturity,
		splits:    splits,
		lookback:  time.Duration(lookbackDays) * 24 * time.Hour,
		telemetry: t.component("reconcile"),
		now:       time.Now,
	}
}

func (r *Reconciler) Run(ctx context.Context, src BookingSource) (*ReconcileReport, error) {
	since := time.Time{}
	if r.lookback > 0 {
		since = r.now().Add(-r.lookback)
	}
	bookings, err := src.Bookings(ctx, since)
	if err != nil {
		return nil, err
	}

	snapshot := r.splits.Current(ctx)
	report := &ReconcileReport{}
	for _, b := range bookings {
		report.Checked++
		id := b.Input.BookingID

		// confirmed bookings are recorded first so a cancel reverses every reason
		if res, err := r.ledger.RecordBookingLedger(ctx, b.Input, snapshot); err != nil {
			report.Failures = append(report.Failures, ReconcileFailure{BookingID: id, Op: "record", Error: err.Error()})
		} else {
			report.EntriesInserted += res.Inserted
		}

		if b.Canceled {
			n, err := r.reversals.ReverseBookingLedger(ctx, id)
			report.Reversed += n
			if err != nil {
				report.Failures = append(report.Failures, ReconcileFailure{BookingID: id, Op: "reverse", Error: err.Error()})
			}
		}
	}

	matured, err := r.maturity.MatureAll(ctx)
	if err != nil {
		report.Failures = append(report.Failures, ReconcileFailure{Op: "mature", Error: err.Error()})
	}
	report.Matured = matured

	r.telemetry.Log.Info().
		Int("checked", report.Checked).
		Int("inserted", report.EntriesInserted).
		Int("reversed", report.Reversed).
		Int64("matured", report.Matured).
		Int("failures", len(report.Failures)).
		Msg("reconciliation finished")
	return report, nil
}
