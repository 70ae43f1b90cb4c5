package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/staybay/backend/internal/config"
	"github.com/staybay/backend/internal/models"
	"github.com/staybay/backend/internal/store"
)

// LedgerService records the financial split of confirmed bookings.
type LedgerService struct {
	store     store.Store
	maturity  *MaturityScheduler
	validator *ValidationHelper
	currency  string
	telemetry Telemetry
}

func NewLedgerService(st store.Store, maturity *MaturityScheduler, currency string, t Telemetry) *LedgerService {
	return &LedgerService{
		store:     st,
		maturity:  maturity,
		validator: NewValidationHelper(),
		currency:  strings.ToUpper(currency),
		telemetry: t.component("ledger"),
	}
}

// RecordBookingLedger appends the vendor, platform and optional user credits
// for a booking in one transaction. Reasons already recorded are skipped, so
// calling it again for the same booking only fills in what is missing.
//
// Input errors are returned as is. Storage failures come back as a
// *SoftError: the booking stands and reconciliation re-runs this call.
func (s *LedgerService) RecordBookingLedger(ctx context.Context, in models.BookingLedgerInput, splits config.Splits) (*models.SplitResult, error) {
	if err := s.validator.ValidateStruct(&in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBooking, err)
	}
	if in.Currency == "" {
		in.Currency = s.currency
	}

	kind, recipient := ChooseSplitKind(in)
	category := NormalizeCategory(in.Category)
	split, err := CalculateSplit(in.GrossAmount, category, kind, splits)
	if err != nil {
		return nil, err
	}

	entries := s.bookingEntries(in, category, split, recipient, splits)

	var written []models.LedgerEntry
	err = s.store.RunInTx(ctx, func(q store.Queries) error {
		written = written[:0]
		for _, e := range entries {
			existing, err := q.CreditsForBooking(ctx, in.BookingID, e.Reason)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				continue
			}
			if err := q.InsertEntry(ctx, e); err != nil {
				if errors.Is(err, store.ErrConflict) {
					continue
				}
				return err
			}
			written = append(written, e)
		}
		return nil
	})
	if err != nil {
		s.telemetry.Metrics.SoftFailures.WithLabelValues("record_booking_ledger").Inc()
		s.telemetry.Audit.LogError("record_booking_ledger", in.BookingID, err)
		return nil, &SoftError{Op: "record_booking_ledger", Err: err}
	}

	for _, e := range written {
		s.telemetry.entryWritten(e)
	}
	split.Inserted = len(written)
	s.telemetry.Log.Info().
		Str("booking_id", in.BookingID).
		Str("category", string(category)).
		Str("split_kind", string(split.Kind)).
		Int64("vendor", split.VendorAmount).
		Int64("user", split.UserAmount).
		Int64("platform", split.PlatformAmount).
		Int("inserted", split.Inserted).
		Msg("booking ledger recorded")
	return &split, nil
}

func (s *LedgerService) bookingEntries(in models.BookingLedgerInput, category models.Category, split models.SplitResult, recipient string, splits config.Splits) []models.LedgerEntry {
	vendorRelease := s.maturity.VendorRelease(in)

	var entries []models.LedgerEntry
	if split.VendorAmount > 0 {
		entries = append(entries, models.NewVendorShareEntry(in.VendorID, in.BookingID, split.VendorAmount, in.Currency, vendorRelease, string(category)))
	}
	if split.PlatformAmount > 0 {
		entries = append(entries, models.NewPlatformCommissionEntry(in.BookingID, split.PlatformAmount, in.Currency,
			splits.PlatformMaturesWithVendor, vendorRelease, string(category)))
	}
	if split.UserAmount > 0 && recipient != "" {
		reason, pct := models.ReasonUserCashback, splits.CashbackPct
		if split.Kind == models.SplitReferral {
			reason, pct = models.ReasonUserReferralCommission, splits.ReferralPct
		}
		entries = append(entries, models.NewIncentiveEntry(recipient, in.BookingID, reason, split.UserAmount, in.Currency, s.maturity.UserRelease(in), pct))
	}
	return entries
}

func (s *LedgerService) AvailableBalance(ctx context.Context, acct models.Account) (int64, error) {
	if err := acct.Validate(); err != nil {
		return 0, err
	}
	return s.store.AvailableBalance(ctx, acct)
}
