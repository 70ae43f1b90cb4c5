package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/staybay/backend/internal/config"
	"github.com/staybay/backend/internal/models"
	"github.com/staybay/backend/internal/store"
)

// BankDirectory returns the payee's current destination bank details.
type BankDirectory interface {
	BankDetails(ctx context.Context, payee models.Account) (*models.BankSnapshot, error)
}

type PayoutRequest struct {
	Payee       models.Account
	Amount      int64
	All         bool // withdraw the whole available balance
	RequestedBy string
}

type PayoutResult struct {
	PayoutID            string              `json:"payoutId"`
	Status              models.PayoutStatus `json:"status"`
	LockedAmount        int64               `json:"lockedAmount"`
	NewAvailableBalance int64               `json:"newAvailableBalance"`
}

type BalanceView struct {
	Account   models.Account `json:"account"`
	Available int64          `json:"available"`
	OnHold    int64          `json:"onHold"`
}

type PayoutOptions struct {
	MinimumAmount   int64
	Method          string
	Currency        string
	ProviderTimeout time.Duration
}

func PayoutOptionsFromConfig(cfg *config.AppConfig) PayoutOptions {
	return PayoutOptions{
		MinimumAmount:   cfg.Payout.MinimumAmount,
		Method:          cfg.Payout.Method,
		Currency:        cfg.Currency,
		ProviderTimeout: cfg.Paystack.Timeout,
	}
}

type PayoutService struct {
	store     store.Store
	maturity  *MaturityScheduler
	banks     BankDirectory
	provider  PayoutProvider
	notifier  PayoutNotifier
	validator *ValidationHelper
	opts      PayoutOptions
	telemetry Telemetry
	now       func() time.Time
}

func NewPayoutService(st store.Store, maturity *MaturityScheduler, banks BankDirectory, provider PayoutProvider, notifier PayoutNotifier, opts PayoutOptions, t Telemetry) *PayoutService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 20 * time.Second
	}
	if opts.Method == "" {
		opts.Method = "bank_transfer"
	}
	opts.Currency = strings.ToUpper(opts.Currency)
	return &PayoutService{
		store:     st,
		maturity:  maturity,
		banks:     banks,
		provider:  provider,
		notifier:  notifier,
		validator: NewValidationHelper(),
		opts:      opts,
		telemetry: t.component("payout"),
		now:       time.Now,
	}
}

func validatePayee(acct models.Account) error {
	if acct.Type != models.AccountVendor && acct.Type != models.AccountUser {
		return ErrInvalidPayee
	}
	if err := acct.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayee, err)
	}
	return nil
}

// Balance sweeps the account's due earnings and reports what can be
// withdrawn alongside what active payouts are holding.
func (s *PayoutService) Balance(ctx context.Context, acct models.Account) (*BalanceView, error) {
	if err := acct.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.maturity.MatureAccount(ctx, acct); err != nil {
		s.telemetry.Log.Warn().Err(err).Str("account", acct.String()).Msg("lazy maturity sweep failed")
	}
	available, err := s.store.AvailableBalance(ctx, acct)
	if err != nil {
		return nil, err
	}
	view := &BalanceView{Account: acct, Available: available}
	if acct.Type != models.AccountPlatform {
		if view.OnHold, err = s.store.OnHoldAmount(ctx, acct); err != nil {
			return nil, err
		}
	}
	return view, nil
}

func (s *PayoutService) OnHoldAmount(ctx context.Context, payee models.Account) (int64, error) {
	if err := validatePayee(payee); err != nil {
		return 0, err
	}
	return s.store.OnHoldAmount(ctx, payee)
}

func (s *PayoutService) GetPayout(ctx context.Context, id string) (*models.Payout, error) {
	p, err := s.store.GetPayout(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPayoutNotFound
	}
	return p, err
}

// RequestPayout creates the payout and its lock debit in one transaction.
func (s *PayoutService) RequestPayout(ctx context.Context, req PayoutRequest) (*PayoutResult, error) {
	res, err := s.requestPayout(ctx, req)
	if err != nil {
		s.telemetry.Metrics.PayoutRejections.WithLabelValues(ErrorCode(err)).Inc()
		return nil, err
	}
	return res, nil
}

func (s *PayoutService) requestPayout(ctx context.Context, req PayoutRequest) (*PayoutResult, error) {
	if err := validatePayee(req.Payee); err != nil {
		return nil, err
	}
	if !req.All && req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrBelowMinimum)
	}

	if _, err := s.maturity.MatureAccount(ctx, req.Payee); err != nil {
		s.telemetry.Log.Warn().Err(err).Str("payee", req.Payee.String()).Msg("lazy maturity sweep failed")
	}

	active, err := s.store.ActivePayout(ctx, req.Payee)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w: payout %s is %s", ErrActivePayoutExists, active.ID, active.Status)
	}

	balance, err := s.store.AvailableBalance(ctx, req.Payee)
	if err != nil {
		return nil, err
	}
	if balance <= 0 {
		return nil, ErrNoBalance
	}

	amount := req.Amount
	if req.All {
		amount = balance
	}
	if amount < s.opts.MinimumAmount {
		return nil, fmt.Errorf("%w: minimum is %d, requested %d", ErrBelowMinimum, s.opts.MinimumAmount, amount)
	}
	if amount > balance {
		return nil, fmt.Errorf("%w: available %d, requested %d", ErrInsufficientBalance, balance, amount)
	}

	bank, err := s.banks.BankDetails(ctx, req.Payee)
	if errors.Is(err, store.ErrNotFound) || (err == nil && bank == nil) {
		return nil, ErrMissingBankDetails
	}
	if err != nil {
		return nil, fmt.Errorf("load bank details: %w", err)
	}
	if err := s.validator.ValidateStruct(bank); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingBankDetails, err)
	}

	now := s.now().UTC()
	payout := &models.Payout{
		ID:               uuid.New().String(),
		Payee:            req.Payee,
		Amount:           amount,
		Currency:         s.opts.Currency,
		Status:           models.PayoutRequested,
		Method:           s.opts.Method,
		Provider:         s.provider.Name(),
		TransferRef:      "po_" + strings.ReplaceAll(uuid.New().String(), "-", ""),
		Bank:             *bank,
		RequestedAt:      now,
		RequestedBy:      req.RequestedBy,
		BalanceAtRequest: balance,
		UpdatedAt:        now,
	}
	lock := models.NewPayoutLockEntry(req.Payee, payout.ID, amount, payout.Currency)

	err = s.store.RunInTx(ctx, func(q store.Queries) error {
		if err := q.InsertPayout(ctx, payout); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrActivePayoutExists
			}
			return err
		}
		current, err := q.AvailableBalance(ctx, req.Payee)
		if err != nil {
			return err
		}
		if amount > current {
			return fmt.Errorf("%w: available %d, requested %d", ErrInsufficientBalance, current, amount)
		}
		return q.InsertEntry(ctx, lock)
	})
	if err != nil {
		return nil, err
	}

	s.telemetry.entryWritten(lock)
	s.announce(ctx, payout, "", "requested")

	return &PayoutResult{
		PayoutID:            payout.ID,
		Status:              payout.Status,
		LockedAmount:        amount,
		NewAvailableBalance: balance - amount,
	}, nil
}

// InitiateTransfer hands a requested payout to the provider. Retrying a
// payout whose earlier attempt failed re-locks the funds first. A provider
// error or timeout releases the lock and leaves the payout requested.
func (s *PayoutService) InitiateTransfer(ctx context.Context, payoutID string) (*models.Payout, error) {
	var (
		payout *models.Payout
		relock *models.LedgerEntry
	)
	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		p, err := loadForUpdate(ctx, q, payoutID)
		if err != nil {
			return err
		}
		if p.Status != models.PayoutRequested {
			return fmt.Errorf("%w: payout is %s", ErrInvalidPayoutState, p.Status)
		}

		held, err := activeLock(ctx, q, payoutID)
		if err != nil {
			return err
		}
		if held == nil {
			balance, err := q.AvailableBalance(ctx, p.Payee)
			if err != nil {
				return err
			}
			if p.Amount > balance {
				return fmt.Errorf("%w: available %d, payout %d", ErrInsufficientBalance, balance, p.Amount)
			}
			lock := models.NewPayoutLockEntry(p.Payee, p.ID, p.Amount, p.Currency)
			if err := q.InsertEntry(ctx, lock); err != nil {
				return err
			}
			relock = &lock
		}

		p.Meta.Attempts++
		p.UpdatedAt = s.now().UTC()
		if err := q.UpdatePayout(ctx, p); err != nil {
			return err
		}
		payout = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if relock != nil {
		s.telemetry.entryWritten(*relock)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()

	started := time.Now()
	result, callErr := s.provider.CreateTransfer(callCtx, TransferRequest{
		Reference: payout.TransferRef,
		Amount:    payout.Amount,
		Currency:  payout.Currency,
		Reason:    "Payout " + payout.ID,
		Bank:      payout.Bank,
	})
	outcome := "ok"
	if callErr != nil {
		outcome = "error"
	}
	s.telemetry.Metrics.ProviderLatency.WithLabelValues("create_transfer", outcome).Observe(time.Since(started).Seconds())

	if callErr != nil {
		return s.handoffFailed(ctx, payout, callErr)
	}
	return s.handoffAccepted(ctx, payout, result)
}

func (s *PayoutService) handoffAccepted(ctx context.Context, payout *models.Payout, result *TransferResult) (*models.Payout, error) {
	var updated *models.Payout
	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		p, err := loadForUpdate(ctx, q, payout.ID)
		if err != nil {
			return err
		}
		// a webhook may already have settled it
		if p.Status != models.PayoutRequested {
			updated = p
			return nil
		}
		p.Status = models.PayoutProcessing
		p.TransferCode = result.TransferCode
		p.Meta.LastError = ""
		p.UpdatedAt = s.now().UTC()
		if err := q.UpdatePayout(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		s.telemetry.Audit.LogError("payout_handoff_accepted", payout.ID, err)
		return nil, err
	}
	if updated.Status == models.PayoutProcessing {
		s.announce(ctx, updated, models.PayoutRequested, "transfer_initiated")
	}
	return updated, nil
}

func (s *PayoutService) handoffFailed(ctx context.Context, payout *models.Payout, callErr error) (*models.Payout, error) {
	s.telemetry.Log.Warn().Err(callErr).Str("payout_id", payout.ID).Msg("provider rejected transfer, releasing lock")

	// the caller's context may be the one that timed out
	ctx = context.WithoutCancel(ctx)

	var (
		updated  *models.Payout
		released *models.LedgerEntry
		settled  bool
	)
	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		p, err := loadForUpdate(ctx, q, payout.ID)
		if err != nil {
			return err
		}
		// a webhook settled it first, so its lock is not ours to release
		if p.Status != models.PayoutRequested {
			updated, settled = p, true
			return nil
		}
		if released, err = releaseLock(ctx, q, p.ID); err != nil {
			return err
		}
		p.Meta.LastError = callErr.Error()
		p.UpdatedAt = s.now().UTC()
		if err := q.UpdatePayout(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		s.telemetry.Audit.LogError("payout_release_lock", payout.ID, err)
		return nil, fmt.Errorf("release lock after provider failure: %w", err)
	}
	if settled {
		return updated, nil
	}
	if released != nil {
		s.telemetry.entryWritten(*released)
	}
	return updated, fmt.Errorf("%w: %v", ErrProviderFailed, callErr)
}

// CancelPayout closes a payout that never reached the provider.
func (s *PayoutService) CancelPayout(ctx context.Context, payoutID, by string) (*models.Payout, error) {
	var (
		updated  *models.Payout
		released *models.LedgerEntry
	)
	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		p, err := loadForUpdate(ctx, q, payoutID)
		if err != nil {
			return err
		}
		if p.Status != models.PayoutRequested {
			return fmt.Errorf("%w: payout is %s", ErrInvalidPayoutState, p.Status)
		}
		if released, err = releaseLock(ctx, q, p.ID); err != nil {
			return err
		}
		p.Status = models.PayoutFailed
		p.Meta.FailureReason = "cancelled"
		p.UpdatedAt = s.now().UTC()
		if err := q.UpdatePayout(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if released != nil {
		s.telemetry.entryWritten(*released)
	}
	s.announce(ctx, updated, models.PayoutRequested, "cancelled_by:"+by)
	return updated, nil
}

func (s *PayoutService) announce(ctx context.Context, p *models.Payout, from models.PayoutStatus, cause string) {
	announce(ctx, s.telemetry, s.notifier, p, from, cause, s.now())
}

func announce(ctx context.Context, t Telemetry, n PayoutNotifier, p *models.Payout, from models.PayoutStatus, cause string, at time.Time) {
	t.Metrics.PayoutsByStatus.WithLabelValues(string(p.Status)).Inc()
	t.Audit.LogPayoutTransition(p.ID, p.Payee.String(), string(from), string(p.Status), p.Amount, cause)

	err := n.PayoutChanged(ctx, PayoutEvent{
		PayoutID:  p.ID,
		Payee:     p.Payee,
		Amount:    p.Amount,
		Currency:  p.Currency,
		From:      from,
		To:        p.Status,
		Cause:     cause,
		Timestamp: at.UTC(),
	})
	if err != nil {
		t.Log.Warn().Err(err).Str("payout_id", p.ID).Msg("payout event not published")
	}
}

func loadForUpdate(ctx context.Context, q store.Queries, id string) (*models.Payout, error) {
	p, err := q.GetPayoutForUpdate(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPayoutNotFound
	}
	return p, err
}

// activeLock returns the payout's lock debit that has not been released yet.
func activeLock(ctx context.Context, q store.Queries, payoutID string) (*models.LedgerEntry, error) {
	rows, err := q.PayoutLocks(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	released := make(map[string]bool)
	for _, e := range rows {
		if c := e.CancelOf(); c != "" {
			released[c] = true
		}
	}
	var held *models.LedgerEntry
	for i := range rows {
		e := rows[i]
		if e.Reason == models.ReasonPayout && e.Direction == models.Debit && !released[e.ID] {
			held = &e
		}
	}
	return held, nil
}

// releaseLock writes the unlock credit for the payout's held funds. It
// returns nil when nothing is held.
func releaseLock(ctx context.Context, q store.Queries, payoutID string) (*models.LedgerEntry, error) {
	held, err := activeLock(ctx, q, payoutID)
	if err != nil || held == nil {
		return nil, err
	}
	unlock := models.NewPayoutUnlockEntry(*held)
	if err := q.InsertEntry(ctx, unlock); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, nil
		}
		return nil, err
	}
	return &unlock, nil
}
