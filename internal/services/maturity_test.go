package services

import (
	"context"
	"testing"
	"time"

	"github.com/staybay/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeReleaseDate(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	in, out := testCheckIn, testCheckOut

	t.Run("checkout policy", func(t *testing.T) {
		got := ComputeReleaseDate(&in, &out, ReleaseOnCheckOut, 48*time.Hour, now)
		assert.Equal(t, out.Add(48*time.Hour), got)
	})

	t.Run("checkin policy", func(t *testing.T) {
		got := ComputeReleaseDate(&in, &out, ReleaseOnCheckIn, 24*time.Hour, now)
		assert.Equal(t, in.Add(24*time.Hour), got)
	})

	t.Run("checkout falls back to checkin", func(t *testing.T) {
		got := ComputeReleaseDate(&in, nil, ReleaseOnCheckOut, 48*time.Hour, now)
		assert.Equal(t, in.Add(48*time.Hour), got)
	})

	t.Run("checkin falls back to checkout", func(t *testing.T) {
		got := ComputeReleaseDate(nil, &out, ReleaseOnCheckIn, 48*time.Hour, now)
		assert.Equal(t, out.Add(48*time.Hour), got)
	})

	t.Run("no dates anchors on now", func(t *testing.T) {
		got := ComputeReleaseDate(nil, nil, ReleaseOnCheckOut, 0, now)
		assert.Equal(t, now.Add(48*time.Hour), got)
	})
}

func TestParseReleasePolicy(t *testing.T) {
	assert.Equal(t, ReleaseOnCheckIn, ParseReleasePolicy("check_in"))
	assert.Equal(t, ReleaseOnCheckIn, ParseReleasePolicy("CheckIn"))
	assert.Equal(t, ReleaseOnCheckOut, ParseReleasePolicy("checkout"))
	assert.Equal(t, ReleaseOnCheckOut, ParseReleasePolicy(""))
}

func TestMaturityScheduler_MatureAccount(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	vendor := models.VendorAccount("vendor-7")

	undated := models.NewVendorShareEntry("vendor-7", "bk-20", 5000, "NGN", time.Time{}, "lodging")
	undated.ReleaseOn = nil
	require.NoError(t, f.store.InsertEntry(ctx, undated))

	future := models.NewVendorShareEntry("vendor-7", "bk-21", 7000, "NGN", f.clock.t.Add(time.Hour), "lodging")
	require.NoError(t, f.store.InsertEntry(ctx, future))

	other := models.NewVendorShareEntry("vendor-8", "bk-22", 9000, "NGN", f.clock.t.Add(-time.Hour), "lodging")
	require.NoError(t, f.store.InsertEntry(ctx, other))

	n, err := f.maturity.MatureAccount(ctx, vendor)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	balance, err := f.store.AvailableBalance(ctx, vendor)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)

	for _, e := range f.store.Entries() {
		if e.ID == undated.ID {
			require.NotNil(t, e.ReleaseOn)
			assert.Equal(t, f.clock.t, *e.ReleaseOn)
		}
	}

	// idempotent
	n, err = f.maturity.MatureAccount(ctx, vendor)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMaturityScheduler_MatureAll(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	due := f.clock.t.Add(-time.Minute)
	require.NoError(t, f.store.InsertEntry(ctx, models.NewVendorShareEntry("v1", "bk-30", 1000, "NGN", due, "lodging")))
	require.NoError(t, f.store.InsertEntry(ctx, models.NewIncentiveEntry("u1", "bk-30", models.ReasonUserCashback, 30, "NGN", due, 0.03)))
	require.NoError(t, f.store.InsertEntry(ctx, models.NewPlatformCommissionEntry("bk-30", 120, "NGN", true, due, "lodging")))
	require.NoError(t, f.store.InsertEntry(ctx, models.NewVendorShareEntry("v2", "bk-31", 1000, "NGN", f.clock.t.Add(time.Hour), "lodging")))

	n, err := f.maturity.MatureAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	for _, e := range f.store.Entries() {
		if e.BookingID == "bk-31" {
			assert.Equal(t, models.StatusPending, e.Status)
		} else {
			assert.Equal(t, models.StatusAvailable, e.Status)
		}
	}
}

func TestMaturityScheduler_RejectsEmptyScope(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.maturity.MatureBooking(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidBooking)

	_, err = f.maturity.MatureAccount(context.Background(), models.Account{Type: "guest", ID: "x"})
	assert.Error(t, err)
}
