package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/staybay/backend/internal/models"
)

// MemoryStore keeps everything in process and enforces the same unique
// constraints as the Postgres schema.
type MemoryStore struct {
	mu       sync.Mutex
	state    *memState
	settings map[string]string
	banks    map[models.Account]models.BankSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state:    newMemState(),
		settings: map[string]string{},
		banks:    map[models.Account]models.BankSnapshot{},
	}
}

type memState struct {
	entries []models.LedgerEntry
	payouts map[string]models.Payout
}

func newMemState() *memState {
	return &memState{payouts: make(map[string]models.Payout)}
}

func (s *memState) clone() *memState {
	c := &memState{
		entries: append([]models.LedgerEntry(nil), s.entries...),
		payouts: make(map[string]models.Payout, len(s.payouts)),
	}
	for id, p := range s.payouts {
		c.payouts[id] = copyPayout(p)
	}
	return c
}

func copyPayout(p models.Payout) models.Payout {
	p.Meta.WebhookDigests = append([]string(nil), p.Meta.WebhookDigests...)
	return p
}

// SetSetting stores an admin setting for Settings.
func (m *MemoryStore) SetSetting(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
}

func (m *MemoryStore) Settings(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.settings))
	for k, v := range m.settings {
		out[k] = v
	}
	return out, nil
}

// RunInTx works on a copy of the state and swaps it in only when fn succeeds.
// The store lock is held for the whole call, so transactions are serial.
func (m *MemoryStore) RunInTx(ctx context.Context, fn func(q Queries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(work); err != nil {
		return err
	}
	m.state = work
	return nil
}

// Entries returns a copy of every stored row in insertion order.
func (m *MemoryStore) Entries() []models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.LedgerEntry(nil), m.state.entries...)
}

func (m *MemoryStore) locked(fn func(s *memState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.state)
}

func (m *MemoryStore) InsertEntry(ctx context.Context, e models.LedgerEntry) error {
	return m.locked(func(s *memState) error { return s.InsertEntry(ctx, e) })
}

func (m *MemoryStore) AvailableBalance(ctx context.Context, acct models.Account) (balance int64, err error) {
	err = m.locked(func(s *memState) error {
		balance, err = s.AvailableBalance(ctx, acct)
		return err
	})
	return balance, err
}

func (m *MemoryStore) CreditsForBooking(ctx context.Context, bookingID string, reason models.Reason) (out []models.LedgerEntry, err error) {
	err = m.locked(func(s *memState) error {
		out, err = s.CreditsForBooking(ctx, bookingID, reason)
		return err
	})
	return out, err
}

func (m *MemoryStore) EntriesForBooking(ctx context.Context, bookingID string) (out []models.LedgerEntry, err error) {
	err = m.locked(func(s *memState) error {
		out, err = s.EntriesForBooking(ctx, bookingID)
		return err
	})
	return out, err
}

func (m *MemoryStore) HasReversal(ctx context.Context, originalID string) (ok bool, err error) {
	err = m.locked(func(s *memState) error {
		ok, err = s.HasReversal(ctx, originalID)
		return err
	})
	return ok, err
}

func (m *MemoryStore) PayoutLocks(ctx context.Context, payoutID string) (out []models.LedgerEntry, err error) {
	err = m.locked(func(s *memState) error {
		out, err = s.PayoutLocks(ctx, payoutID)
		return err
	})
	return out, err
}

func (m *MemoryStore) Mature(ctx context.Context, f MatureFilter, now time.Time) (n int64, err error) {
	err = m.locked(func(s *memState) error {
		n, err = s.Mature(ctx, f, now)
		return err
	})
	return n, err
}

func (m *MemoryStore) InsertPayout(ctx context.Context, p *models.Payout) error {
	return m.locked(func(s *memState) error { return s.InsertPayout(ctx, p) })
}

func (m *MemoryStore) UpdatePayout(ctx context.Context, p *models.Payout) error {
	return m.locked(func(s *memState) error { return s.UpdatePayout(ctx, p) })
}

func (m *MemoryStore) GetPayout(ctx context.Context, id string) (p *models.Payout, err error) {
	err = m.locked(func(s *memState) error {
		p, err = s.GetPayout(ctx, id)
		return err
	})
	return p, err
}

func (m *MemoryStore) GetPayoutForUpdate(ctx context.Context, id string) (*models.Payout, error) {
	return m.GetPayout(ctx, id)
}

func (m *MemoryStore) FindPayoutByTransfer(ctx context.Context, transferCode, reference string) (p *models.Payout, err error) {
	err = m.locked(func(s *memState) error {
		p, err = s.FindPayoutByTransfer(ctx, transferCode, reference)
		return err
	})
	return p, err
}

func (m *MemoryStore) ActivePayout(ctx context.Context, payee models.Account) (p *models.Payout, err error) {
	err = m.locked(func(s *memState) error {
		p, err = s.ActivePayout(ctx, payee)
		return err
	})
	return p, err
}

func (m *MemoryStore) OnHoldAmount(ctx context.Context, payee models.Account) (n int64, err error) {
	err = m.locked(func(s *memState) error {
		n, err = s.OnHoldAmount(ctx, payee)
		return err
	})
	return n, err
}

// memState implements Queries without locking; callers hold MemoryStore.mu.

func (s *memState) InsertEntry(ctx context.Context, e models.LedgerEntry) error {
	for _, x := range s.entries {
		if x.ID == e.ID {
			return fmt.Errorf("%w: ledger entry %s", ErrConflict, e.ID)
		}
		if c := e.CancelOf(); c != "" && x.CancelOf() == c {
			return fmt.Errorf("%w: ledger_entries_cancel_of_uq", ErrConflict)
		}
		if e.Direction == models.Credit && e.Source.Kind == models.SourceBooking &&
			x.Direction == models.Credit && x.Source.Kind == models.SourceBooking &&
			x.BookingID == e.BookingID && x.Reason == e.Reason {
			return fmt.Errorf("%w: ledger_entries_booking_credit_uq", ErrConflict)
		}
	}
	if e.ReleaseOn != nil {
		r := *e.ReleaseOn
		e.ReleaseOn = &r
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *memState) AvailableBalance(ctx context.Context, acct models.Account) (int64, error) {
	var balance int64
	for _, e := range s.entries {
		if e.Account == acct && e.Status == models.StatusAvailable {
			balance += e.Signed()
		}
	}
	return balance, nil
}

func (s *memState) filter(keep func(e models.LedgerEntry) bool) []models.LedgerEntry {
	var out []models.LedgerEntry
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *memState) CreditsForBooking(ctx context.Context, bookingID string, reason models.Reason) ([]models.LedgerEntry, error) {
	return s.filter(func(e models.LedgerEntry) bool {
		return e.BookingID == bookingID && e.Reason == reason && e.Direction == models.Credit
	}), nil
}

func (s *memState) EntriesForBooking(ctx context.Context, bookingID string) ([]models.LedgerEntry, error) {
	return s.filter(func(e models.LedgerEntry) bool { return e.BookingID == bookingID }), nil
}

func (s *memState) HasReversal(ctx context.Context, originalID string) (bool, error) {
	for _, e := range s.entries {
		if e.CancelOf() == originalID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memState) PayoutLocks(ctx context.Context, payoutID string) ([]models.LedgerEntry, error) {
	return s.filter(func(e models.LedgerEntry) bool {
		return e.Source.Kind == models.SourcePayout && e.Source.ID == payoutID
	}), nil
}

func (s *memState) Mature(ctx context.Context, f MatureFilter, now time.Time) (int64, error) {
	var n int64
	for i := range s.entries {
		e := &s.entries[i]
		if e.Status != models.StatusPending {
			continue
		}
		if e.ReleaseOn != nil && e.ReleaseOn.After(now) {
			continue
		}
		if f.BookingID != "" && e.BookingID != f.BookingID {
			continue
		}
		if f.Account != nil && e.Account != *f.Account {
			continue
		}
		if len(f.Reasons) > 0 && !containsReason(f.Reasons, e.Reason) {
			continue
		}
		if len(f.AccountTypes) > 0 && !containsType(f.AccountTypes, e.Account.Type) {
			continue
		}
		if e.ReleaseOn == nil {
			stamp := now
			e.ReleaseOn = &stamp
		}
		e.Status = models.StatusAvailable
		n++
	}
	return n, nil
}

func containsReason(list []models.Reason, r models.Reason) bool {
	for _, x := range list {
		if x == r {
			return true
		}
	}
	return false
}

func containsType(list []models.AccountType, t models.AccountType) bool {
	for _, x := range list {
		if x == t {
			return true
		}
	}
	return false
}

func (s *memState) InsertPayout(ctx context.Context, p *models.Payout) error {
	if _, ok := s.payouts[p.ID]; ok {
		return fmt.Errorf("%w: payouts_pkey", ErrConflict)
	}
	for _, x := range s.payouts {
		if p.Status.Active() && x.Status.Active() && x.Payee == p.Payee {
			return fmt.Errorf("%w: payouts_one_active_per_payee", ErrConflict)
		}
		if x.TransferRef == p.TransferRef {
			return fmt.Errorf("%w: payouts_transfer_ref_uq", ErrConflict)
		}
	}
	s.payouts[p.ID] = copyPayout(*p)
	return nil
}

func (s *memState) UpdatePayout(ctx context.Context, p *models.Payout) error {
	cur, ok := s.payouts[p.ID]
	if !ok {
		return ErrNotFound
	}
	if p.Status.Active() {
		for id, x := range s.payouts {
			if id != p.ID && x.Status.Active() && x.Payee == cur.Payee {
				return fmt.Errorf("%w: payouts_one_active_per_payee", ErrConflict)
			}
		}
	}
	cur.Status = p.Status
	cur.TransferCode = p.TransferCode
	cur.Meta = p.Meta
	cur.UpdatedAt = p.UpdatedAt
	cur.PaidAt = p.PaidAt
	s.payouts[p.ID] = copyPayout(cur)
	return nil
}

func (s *memState) GetPayout(ctx context.Context, id string) (*models.Payout, error) {
	p, ok := s.payouts[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := copyPayout(p)
	return &c, nil
}

func (s *memState) GetPayoutForUpdate(ctx context.Context, id string) (*models.Payout, error) {
	return s.GetPayout(ctx, id)
}

func (s *memState) FindPayoutByTransfer(ctx context.Context, transferCode, reference string) (*models.Payout, error) {
	for _, p := range s.sortedPayouts() {
		if (transferCode != "" && p.TransferCode == transferCode) || (reference != "" && p.TransferRef == reference) {
			c := copyPayout(p)
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memState) ActivePayout(ctx context.Context, payee models.Account) (*models.Payout, error) {
	for _, p := range s.sortedPayouts() {
		if p.Payee == payee && p.Status.Active() {
			c := copyPayout(p)
			return &c, nil
		}
	}
	return nil, nil
}

func (s *memState) OnHoldAmount(ctx context.Context, payee models.Account) (int64, error) {
	var held int64
	for _, p := range s.payouts {
		if p.Payee == payee && p.Status.Active() {
			held += p.Amount
		}
	}
	return held, nil
}

func (s *memState) sortedPayouts() []models.Payout {
	out := make([]models.Payout, 0, len(s.payouts))
	for _, p := range s.payouts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out
}
