package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/staybay/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisDigestCache(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	cache := NewRedisDigestCache(db)

	t.Run("seen digest", func(t *testing.T) {
		mock.ExpectExists("webhook:digest:abc").SetVal(1)

		seen, err := cache.Seen(ctx, "abc")
		require.NoError(t, err)
		assert.True(t, seen)
	})

	t.Run("new digest", func(t *testing.T) {
		mock.ExpectExists("webhook:digest:def").SetVal(0)

		seen, err := cache.Seen(ctx, "def")
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("lookup error", func(t *testing.T) {
		mock.ExpectExists("webhook:digest:ghi").SetErr(errors.New("connection reset"))

		_, err := cache.Seen(ctx, "ghi")
		assert.Error(t, err)
	})

	t.Run("remember", func(t *testing.T) {
		mock.ExpectSet("webhook:digest:abc", 1, 72*time.Hour).SetVal("OK")

		assert.NoError(t, cache.Remember(ctx, "abc"))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPayoutNotifier(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	notifier := NewRedisPayoutNotifier(db)

	ev := PayoutEvent{
		PayoutID:  "po-1",
		Payee:     models.VendorAccount("vendor-1"),
		Amount:    5000,
		Currency:  "NGN",
		From:      models.PayoutRequested,
		To:        models.PayoutProcessing,
		Cause:     "transfer_initiated",
		Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	mock.ExpectRPush(PayoutEventsQueue, data).SetVal(1)

	assert.NoError(t, notifier.PayoutChanged(ctx, ev))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisEarningsMirror(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	mirror := NewRedisEarningsMirror(db)

	release := time.Date(2026, 3, 6, 11, 0, 0, 0, time.UTC)
	original := models.NewIncentiveEntry("buyer-1", "bk-1", models.ReasonUserCashback, 3000, "NGN", release, 0.03)
	reversal := models.NewReversalEntry(original)

	data, err := json.Marshal(EarningsReversal{
		OriginalID: original.ID,
		ReversalID: reversal.ID,
		UserID:     "buyer-1",
		BookingID:  "bk-1",
		Reason:     models.ReasonUserCashback,
		Amount:     3000,
		Status:     models.StatusPending,
		ReleaseOn:  &release,
		Timestamp:  reversal.CreatedAt,
	})
	require.NoError(t, err)

	mock.ExpectRPush(EarningsReversalsQueue, data).SetVal(1)
	assert.NoError(t, mirror.RecordReversal(ctx, original, reversal))

	mock.ExpectRPush(EarningsReversalsQueue, data).SetErr(errors.New("connection reset"))
	assert.Error(t, mirror.RecordReversal(ctx, original, reversal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCollaborators_NilClient(t *testing.T) {
	cache, notifier := RedisCollaborators(nil)

	seen, err := cache.Seen(context.Background(), "x")
	assert.NoError(t, err)
	assert.False(t, seen)
	assert.NoError(t, cache.Remember(context.Background(), "x"))
	assert.NoError(t, notifier.PayoutChanged(context.Background(), PayoutEvent{}))
}

type countingCache struct {
	seen map[string]bool
}

func (c *countingCache) Seen(ctx context.Context, d string) (bool, error) { return c.seen[d], nil }

func (c *countingCache) Remember(ctx context.Context, d string) error {
	c.seen[d] = true
	return nil
}

func TestWebhookService_UsesDigestCache(t *testing.T) {
	f := newWebhookFixture(t)
	cache := &countingCache{seen: map[string]bool{}}
	f.webhooks.cache = cache

	body := transferBody(EventTransferSuccess, "test", "TRF_100", "")
	require.Equal(t, OutcomeApplied, f.deliver(t, body))
	assert.True(t, cache.seen[BodyDigest(body)])

	assert.Equal(t, OutcomeDuplicate, f.deliver(t, body))
}
