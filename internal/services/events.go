package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/staybay/backend/internal/models"
)

const (
	PayoutEventsQueue      = "payout_events"
	EarningsReversalsQueue = "earnings_reversals"
	digestKeyPrefix        = "webhook:digest:"
	digestTTL              = 72 * time.Hour
)

// DigestCache short-circuits webhook deliveries seen before. It is only a
// fast path; the digest list on the payout row stays authoritative.
type DigestCache interface {
	Seen(ctx context.Context, digest string) (bool, error)
	Remember(ctx context.Context, digest string) error
}

// PayoutNotifier announces payout transitions to downstream consumers.
type PayoutNotifier interface {
	PayoutChanged(ctx context.Context, ev PayoutEvent) error
}

type PayoutEvent struct {
	PayoutID  string              `json:"payoutId"`
	Payee     models.Account      `json:"payee"`
	Amount    int64               `json:"amount"`
	Currency  string              `json:"currency"`
	From      models.PayoutStatus `json:"from"`
	To        models.PayoutStatus `json:"to"`
	Cause     string              `json:"cause"`
	Timestamp time.Time           `json:"timestamp"`
}

type RedisDigestCache struct {
	rdb *redis.Client
}

func NewRedisDigestCache(rdb *redis.Client) *RedisDigestCache {
	return &RedisDigestCache{rdb: rdb}
}

func (c *RedisDigestCache) Seen(ctx context.Context, digest string) (bool, error) {
	n, err := c.rdb.Exists(ctx, digestKeyPrefix+digest).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisDigestCache) Remember(ctx context.Context, digest string) error {
	return c.rdb.Set(ctx, digestKeyPrefix+digest, 1, digestTTL).Err()
}

// RedisPayoutNotifier pushes events onto the payout_events list.
type RedisPayoutNotifier struct {
	rdb *redis.Client
}

func NewRedisPayoutNotifier(rdb *redis.Client) *RedisPayoutNotifier {
	return &RedisPayoutNotifier{rdb: rdb}
}

func (n *RedisPayoutNotifier) PayoutChanged(ctx context.Context, ev PayoutEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.rdb.RPush(ctx, PayoutEventsQueue, data).Err()
}

// EarningsReversal is what the earnings view receives for a reversed
// cashback or referral credit.
type EarningsReversal struct {
	OriginalID string             `json:"originalId"`
	ReversalID string             `json:"reversalId"`
	UserID     string             `json:"userId"`
	BookingID  string             `json:"bookingId"`
	Reason     models.Reason      `json:"reason"`
	Amount     int64              `json:"amount"`
	Status     models.EntryStatus `json:"status"`
	ReleaseOn  *time.Time         `json:"releaseOn,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// RedisEarningsMirror queues incentive reversals on earnings_reversals for
// the earnings service to apply.
type RedisEarningsMirror struct {
	rdb *redis.Client
}

func NewRedisEarningsMirror(rdb *redis.Client) *RedisEarningsMirror {
	return &RedisEarningsMirror{rdb: rdb}
}

func (m *RedisEarningsMirror) RecordReversal(ctx context.Context, original, reversal models.LedgerEntry) error {
	data, err := json.Marshal(EarningsReversal{
		OriginalID: original.ID,
		ReversalID: reversal.ID,
		UserID:     original.Account.ID,
		BookingID:  original.BookingID,
		Reason:     original.Reason,
		Amount:     reversal.Amount,
		Status:     reversal.Status,
		ReleaseOn:  reversal.ReleaseOn,
		Timestamp:  reversal.CreatedAt,
	})
	if err != nil {
		return err
	}
	return m.rdb.RPush(ctx, EarningsReversalsQueue, data).Err()
}

type noopDigestCache struct{}

func (noopDigestCache) Seen(context.Context, string) (bool, error) { return false, nil }
func (noopDigestCache) Remember(context.Context, string) error     { return nil }

type noopNotifier struct{}

func (noopNotifier) PayoutChanged(context.Context, PayoutEvent) error { return nil }

// RedisCollaborators returns the Redis-backed cache and notifier, or no-ops
// when rdb is nil.
func RedisCollaborators(rdb *redis.Client) (DigestCache, PayoutNotifier) {
	if rdb == nil {
		return noopDigestCache{}, noopNotifier{}
	}
	return NewRedisDigestCache(rdb), NewRedisPayoutNotifier(rdb)
}
