package services

import (
	"context"
	"testing"

	"github.com/staybay/backend/internal/config"
	"github.com/staybay/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciler_Run(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	tel := testTelemetry()
	reversals := NewReversalEngine(f.store, nil, tel)
	splits := config.NewSplitsProvider(f.store, 0)
	rec := NewReconciler(f.ledger, reversals, f.maturity, splits, 30, tel)

	// bk-200 was recorded earlier, bk-201 lost its ledger write, bk-202 was canceled
	_, err := f.ledger.RecordBookingLedger(ctx, cashbackBooking("bk-200"), config.DefaultSplits())
	require.NoError(t, err)
	_, err = f.ledger.RecordBookingLedger(ctx, cashbackBooking("bk-202"), config.DefaultSplits())
	require.NoError(t, err)

	src := StaticBookings{
		{Input: cashbackBooking("bk-200")},
		{Input: cashbackBooking("bk-201")},
		{Input: cashbackBooking("bk-202"), Canceled: true},
		{Input: models.BookingLedgerInput{BookingID: "bk-bad"}},
	}

	report, err := rec.Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Checked)
	assert.Equal(t, 3, report.EntriesInserted)
	assert.Equal(t, 3, report.Reversed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "bk-bad", report.Failures[0].BookingID)

	again, err := rec.Run(ctx, src)
	require.NoError(t, err)
	assert.Zero(t, again.EntriesInserted)
	assert.Zero(t, again.Reversed)
}

func TestReconciler_UsesCurrentSplits(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.store.SetSetting("platform_commission_pct", "20")
	tel := testTelemetry()
	rec := NewReconciler(f.ledger, NewReversalEngine(f.store, nil, tel), f.maturity, config.NewSplitsProvider(f.store, 0), 0, tel)

	in := cashbackBooking("bk-210")
	in.CashbackEligible = false
	_, err := rec.Run(ctx, StaticBookings{{Input: in}})
	require.NoError(t, err)

	rows := entriesByReason(f.store.Entries())
	assert.Equal(t, int64(80000), rows[models.ReasonVendorShare].Amount)
	assert.Equal(t, int64(20000), rows[models.ReasonPlatformCommission].Amount)
}
