package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/staybay/backend/internal/models"
	"github.com/staybay/backend/internal/store"
)

const SignatureHeader = "x-paystack-signature"

type WebhookOutcome string

const (
	OutcomeApplied         WebhookOutcome = "applied"
	OutcomeNoChange        WebhookOutcome = "no_change"
	OutcomeDuplicate       WebhookOutcome = "duplicate"
	OutcomeRejected        WebhookOutcome = "rejected_signature"
	OutcomeModeMismatch    WebhookOutcome = "mode_mismatch"
	OutcomeMalformed       WebhookOutcome = "malformed"
	OutcomeIgnoredEvent    WebhookOutcome = "ignored_event"
	OutcomeUnknownTransfer WebhookOutcome = "unknown_transfer"
	OutcomeError           WebhookOutcome = "error"
)

const (
	EventTransferSuccess  = "transfer.success"
	EventTransferFailed   = "transfer.failed"
	EventTransferReversed = "transfer.reversed"
)

type transferEvent struct {
	Event string `json:"event"`
	Data  struct {
		Domain       string `json:"domain"`
		TransferCode string `json:"transfer_code"`
		Reference    string `json:"reference"`
		Status       string `json:"status"`
		Reason       string `json:"reason"`
	} `json:"data"`
}

// WebhookService applies provider transfer notifications to payouts.
// Deliveries are at-least-once; a body whose digest was seen before
// changes nothing.
type WebhookService struct {
	store     store.Store
	cache     DigestCache
	notifier  PayoutNotifier
	secret    []byte
	mode      string
	telemetry Telemetry
	now       func() time.Time
}

func NewWebhookService(st store.Store, cache DigestCache, notifier PayoutNotifier, secret, mode string, t Telemetry) *WebhookService {
	if cache == nil {
		cache = noopDigestCache{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &WebhookService{
		store:     st,
		cache:     cache,
		notifier:  notifier,
		secret:    []byte(secret),
		mode:      strings.ToLower(mode),
		telemetry: t.component("webhook"),
		now:       time.Now,
	}
}

// VerifySignature checks the hex HMAC-SHA512 of the raw body.
func (s *WebhookService) VerifySignature(body []byte, signature string) error {
	if len(s.secret) == 0 || signature == "" {
		return ErrInvalidSignature
	}
	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha512.New, s.secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), given) {
		return ErrInvalidSignature
	}
	return nil
}

func BodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Handle verifies and applies one delivery. Only ErrInvalidSignature should
// reach the provider as a failure; every other outcome is acknowledged.
func (s *WebhookService) Handle(ctx context.Context, body []byte, signature string) (WebhookOutcome, error) {
	outcome, err := s.handle(ctx, body, signature)
	s.telemetry.Metrics.WebhookOutcomes.WithLabelValues(string(outcome)).Inc()
	if err != nil && outcome == OutcomeError {
		s.telemetry.Audit.LogError("webhook_apply", BodyDigest(body), err)
	}
	return outcome, err
}

func (s *WebhookService) handle(ctx context.Context, body []byte, signature string) (WebhookOutcome, error) {
	if err := s.VerifySignature(body, signature); err != nil {
		return OutcomeRejected, err
	}

	var ev transferEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return OutcomeMalformed, nil
	}
	if d := strings.ToLower(ev.Data.Domain); s.mode != "" && d != "" && d != s.mode {
		s.telemetry.Log.Warn().Str("domain", d).Str("mode", s.mode).Msg("webhook for another environment ignored")
		return OutcomeModeMismatch, nil
	}
	switch ev.Event {
	case EventTransferSuccess, EventTransferFailed, EventTransferReversed:
	default:
		return OutcomeIgnoredEvent, nil
	}

	digest := BodyDigest(body)
	if seen, err := s.cache.Seen(ctx, digest); err != nil {
		s.telemetry.Log.Warn().Err(err).Msg("digest cache lookup failed")
	} else if seen {
		return OutcomeDuplicate, nil
	}

	p, err := s.store.FindPayoutByTransfer(ctx, ev.Data.TransferCode, ev.Data.Reference)
	if errors.Is(err, store.ErrNotFound) {
		s.telemetry.Log.Warn().Str("transfer_code", ev.Data.TransferCode).Str("reference", ev.Data.Reference).Msg("webhook for unknown transfer")
		return OutcomeUnknownTransfer, nil
	}
	if err != nil {
		return OutcomeError, err
	}
	if p.Meta.HasDigest(digest) {
		s.remember(ctx, digest)
		return OutcomeDuplicate, nil
	}

	var (
		from    models.PayoutStatus
		updated *models.Payout
		written []models.LedgerEntry
	)
	outcome := OutcomeNoChange
	err = s.store.RunInTx(ctx, func(q store.Queries) error {
		written = written[:0]
		cur, err := loadForUpdate(ctx, q, p.ID)
		if err != nil {
			return err
		}
		if cur.Meta.HasDigest(digest) {
			outcome = OutcomeDuplicate
			return nil
		}
		from = cur.Status
		now := s.now().UTC()

		switch ev.Event {
		case EventTransferSuccess:
			if cur.Status != models.PayoutPaid {
				// a failed payout already gave its funds back; take them again
				held, err := activeLock(ctx, q, cur.ID)
				if err != nil {
					return err
				}
				if held == nil {
					lock := models.NewPayoutLockEntry(cur.Payee, cur.ID, cur.Amount, cur.Currency)
					if err := q.InsertEntry(ctx, lock); err != nil {
						return err
					}
					written = append(written, lock)
				}
				cur.Status = models.PayoutPaid
				cur.PaidAt = &now
				if cur.TransferCode == "" {
					cur.TransferCode = ev.Data.TransferCode
				}
				outcome = OutcomeApplied
			}
		case EventTransferFailed, EventTransferReversed:
			if !cur.Status.Terminal() {
				unlock, err := releaseLock(ctx, q, cur.ID)
				if err != nil {
					return err
				}
				if unlock != nil {
					written = append(written, *unlock)
				}
				cur.Status = models.PayoutFailed
				cur.Meta.FailureReason = ev.Event
				if ev.Data.Reason != "" {
					cur.Meta.FailureReason += ": " + ev.Data.Reason
				}
				outcome = OutcomeApplied
			}
		}

		cur.Meta.AddDigest(digest)
		cur.UpdatedAt = now
		if err := q.UpdatePayout(ctx, cur); err != nil {
			return err
		}
		updated = cur
		return nil
	})
	if err != nil {
		return OutcomeError, err
	}

	s.remember(ctx, digest)
	for _, e := range written {
		s.telemetry.entryWritten(e)
	}
	if outcome == OutcomeApplied {
		announce(ctx, s.telemetry, s.notifier, updated, from, ev.Event, s.now())
	}
	return outcome, nil
}

func (s *WebhookService) remember(ctx context.Context, digest string) {
	if err := s.cache.Remember(ctx, digest); err != nil {
		s.telemetry.Log.Warn().Err(err).Msg("digest cache write failed")
	}
}
