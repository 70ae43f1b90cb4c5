package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/staybay/backend/internal/config"
	"github.com/staybay/backend/internal/models"
	"github.com/staybay/backend/internal/store"
)

type ReleasePolicy string

const (
	ReleaseOnCheckIn  ReleasePolicy = "checkin"
	ReleaseOnCheckOut ReleasePolicy = "checkout"
)

// ParseReleasePolicy defaults to checkout for anything it does not recognise.
func ParseReleasePolicy(raw string) ReleasePolicy {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "_", "")) {
	case "checkin":
		return ReleaseOnCheckIn
	default:
		return ReleaseOnCheckOut
	}
}

// ComputeReleaseDate anchors on check-in or check-out according to policy and
// adds the buffer. A missing anchor falls back to check-out, then check-in,
// then now. A non-positive buffer means the default 48h.
func ComputeReleaseDate(checkIn, checkOut *time.Time, policy ReleasePolicy, buffer time.Duration, now time.Time) time.Time {
	if buffer <= 0 {
		buffer = config.DefaultBufferHours * time.Hour
	}

	var anchor *time.Time
	if policy == ReleaseOnCheckIn {
		anchor = checkIn
	}
	if anchor == nil {
		anchor = checkOut
	}
	if anchor == nil {
		anchor = checkIn
	}
	if anchor == nil {
		anchor = &now
	}
	return anchor.Add(buffer).UTC()
}

var sweepReasons = map[models.AccountType][]models.Reason{
	models.AccountVendor:   {models.ReasonVendorShare, models.ReasonAdjustment},
	models.AccountUser:     {models.ReasonUserCashback, models.ReasonUserReferralCommission, models.ReasonAdjustment},
	models.AccountPlatform: {models.ReasonPlatformCommission, models.ReasonAdjustment},
}

// MaturityScheduler flips due pending rows to available. Every sweep is a
// single statement, so running it again or concurrently is harmless.
type MaturityScheduler struct {
	store     store.Queries
	policy    ReleasePolicy
	userPol   ReleasePolicy
	buffer    time.Duration
	telemetry Telemetry
	now       func() time.Time
}

func NewMaturityScheduler(st store.Queries, cfg config.MaturityConfig, t Telemetry) *MaturityScheduler {
	return &MaturityScheduler{
		store:     st,
		policy:    ParseReleasePolicy(cfg.Policy),
		userPol:   ParseReleasePolicy(cfg.UserPolicy),
		buffer:    time.Duration(cfg.BufferHours) * time.Hour,
		telemetry: t.component("maturity"),
		now:       time.Now,
	}
}

// VendorRelease is the release date for a booking's vendor share.
func (m *MaturityScheduler) VendorRelease(in models.BookingLedgerInput) time.Time {
	return ComputeReleaseDate(in.CheckIn, in.CheckOut, m.policy, m.buffer, m.now())
}

// UserRelease is the release date for cashback and referral credits.
func (m *MaturityScheduler) UserRelease(in models.BookingLedgerInput) time.Time {
	return ComputeReleaseDate(in.CheckIn, in.CheckOut, m.userPol, m.buffer, m.now())
}

// MatureBooking flips every due pending row of one booking.
func (m *MaturityScheduler) MatureBooking(ctx context.Context, bookingID string) (int64, error) {
	if bookingID == "" {
		return 0, fmt.Errorf("%w: booking id is required", ErrInvalidBooking)
	}
	return m.sweep(ctx, "booking", store.MatureFilter{BookingID: bookingID})
}

// MatureAccount flips due pending earnings for one account. Rows with no
// release date are stamped to now and matured.
func (m *MaturityScheduler) MatureAccount(ctx context.Context, acct models.Account) (int64, error) {
	if err := acct.Validate(); err != nil {
		return 0, err
	}
	return m.sweep(ctx, "account", store.MatureFilter{Account: &acct, Reasons: sweepReasons[acct.Type]})
}

// MatureAll runs the account sweep across every vendor and user row, plus
// platform commission held back to mature with the vendor.
func (m *MaturityScheduler) MatureAll(ctx context.Context) (int64, error) {
	return m.sweep(ctx, "global", store.MatureFilter{
		AccountTypes: []models.AccountType{models.AccountVendor, models.AccountUser, models.AccountPlatform},
		Reasons: []models.Reason{
			models.ReasonVendorShare,
			models.ReasonPlatformCommission,
			models.ReasonUserCashback,
			models.ReasonUserReferralCommission,
			models.ReasonAdjustment,
		},
	})
}

func (m *MaturityScheduler) sweep(ctx context.Context, scope string, f store.MatureFilter) (int64, error) {
	n, err := m.store.Mature(ctx, f, m.now().UTC())
	if err != nil {
		m.telemetry.Audit.LogError("mature_"+scope, f.BookingID, err)
		return 0, fmt.Errorf("mature %s: %w", scope, err)
	}
	if n > 0 {
		m.telemetry.Metrics.EntriesMatured.WithLabelValues(scope).Add(float64(n))
		m.telemetry.Log.Debug().Str("scope", scope).Int64("rows", n).Msg("matured pending entries")
	}
	return n, nil
}
