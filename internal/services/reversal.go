package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/staybay/backend/internal/models"
	"github.com/staybay/backend/internal/store"
)

// EarningsMirror is the buyer and referrer earnings view kept outside the
// ledger. It receives every incentive reversal with the mirrored status.
type EarningsMirror interface {
	RecordReversal(ctx context.Context, original, reversal models.LedgerEntry) error
}

type noopMirror struct{}

func (noopMirror) RecordReversal(context.Context, models.LedgerEntry, models.LedgerEntry) error {
	return nil
}

var reversalOrder = []models.Reason{
	models.ReasonUserCashback,
	models.ReasonUserReferralCommission,
	models.ReasonVendorShare,
	models.ReasonPlatformCommission,
}

// ReversalEngine writes compensating debits for a canceled booking.
type ReversalEngine struct {
	store     store.Queries
	mirror    EarningsMirror
	telemetry Telemetry
}

func NewReversalEngine(st store.Queries, mirror EarningsMirror, t Telemetry) *ReversalEngine {
	if mirror == nil {
		mirror = noopMirror{}
	}
	return &ReversalEngine{store: st, mirror: mirror, telemetry: t.component("reversal")}
}

// ReverseBookingLedger mirrors each booking credit with one adjustment debit
// carrying the credit's status and release date. Credits already reversed
// are skipped, so a second call writes nothing. A failing reason class does
// not stop the others; their errors come back joined in a *SoftError.
func (r *ReversalEngine) ReverseBookingLedger(ctx context.Context, bookingID string) (int, error) {
	if bookingID == "" {
		return 0, fmt.Errorf("%w: booking id is required", ErrInvalidBooking)
	}

	var (
		reversed int
		errs     []error
	)
	for _, reason := range reversalOrder {
		n, err := r.reverseReason(ctx, bookingID, reason)
		reversed += n
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", reason, err))
		}
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		r.telemetry.Metrics.SoftFailures.WithLabelValues("reverse_booking_ledger").Inc()
		r.telemetry.Audit.LogError("reverse_booking_ledger", bookingID, err)
		return reversed, &SoftError{Op: "reverse_booking_ledger", Err: err}
	}

	r.telemetry.Log.Info().Str("booking_id", bookingID).Int("reversed", reversed).Msg("booking ledger reversed")
	return reversed, nil
}

func (r *ReversalEngine) reverseReason(ctx context.Context, bookingID string, reason models.Reason) (int, error) {
	credits, err := r.store.CreditsForBooking(ctx, bookingID, reason)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, original := range credits {
		done, err := r.store.HasReversal(ctx, original.ID)
		if err != nil {
			return n, err
		}
		if done {
			continue
		}

		rev := models.NewReversalEntry(original)
		if err := r.store.InsertEntry(ctx, rev); err != nil {
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			return n, err
		}
		n++
		r.telemetry.entryWritten(rev)
		r.telemetry.Metrics.Reversals.WithLabelValues(string(reason)).Inc()

		if original.Account.Type == models.AccountUser {
			if err := r.mirror.RecordReversal(ctx, original, rev); err != nil {
				r.telemetry.Log.Warn().Err(err).Str("entry_id", original.ID).Msg("earnings mirror rejected reversal")
			}
		}
	}
	return n, nil
}
