// Package store persists ledger entries and payouts. Entries are append-only;
// the only in-place change is the pending -> available maturity flip.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/staybay/backend/internal/models"
)

var (
	// ErrConflict is returned when a structural uniqueness constraint rejects a write.
	ErrConflict = errors.New("store: unique constraint violated")
	ErrNotFound = errors.New("store: not found")
)

// MatureFilter narrows a maturity sweep. Zero values mean "any".
type MatureFilter struct {
	BookingID    string
	Account      *models.Account
	Reasons      []models.Reason
	AccountTypes []models.AccountType
}

// Queries is the set of operations available both inside and outside a transaction.
type Queries interface {
	InsertEntry(ctx context.Context, e models.LedgerEntry) error
	AvailableBalance(ctx context.Context, acct models.Account) (int64, error)
	CreditsForBooking(ctx context.Context, bookingID string, reason models.Reason) ([]models.LedgerEntry, error)
	EntriesForBooking(ctx context.Context, bookingID string) ([]models.LedgerEntry, error)
	HasReversal(ctx context.Context, originalID string) (bool, error)
	PayoutLocks(ctx context.Context, payoutID string) ([]models.LedgerEntry, error)
	// Mature flips due pending rows to available, stamping a null release_on to now.
	Mature(ctx context.Context, f MatureFilter, now time.Time) (int64, error)

	InsertPayout(ctx context.Context, p *models.Payout) error
	UpdatePayout(ctx context.Context, p *models.Payout) error
	GetPayout(ctx context.Context, id string) (*models.Payout, error)
	// GetPayoutForUpdate locks the payout row until the transaction ends.
	GetPayoutForUpdate(ctx context.Context, id string) (*models.Payout, error)
	FindPayoutByTransfer(ctx context.Context, transferCode, reference string) (*models.Payout, error)
	ActivePayout(ctx context.Context, payee models.Account) (*models.Payout, error)
	OnHoldAmount(ctx context.Context, payee models.Account) (int64, error)
}

type Store interface {
	Queries
	// RunInTx runs fn in one transaction; any error rolls every write back.
	RunInTx(ctx context.Context, fn func(q Queries) error) error
	Settings(ctx context.Context) (map[string]string, error)
}

var (
	_ Store   = (*PostgresStore)(nil)
	_ Store   = (*MemoryStore)(nil)
	_ Queries = (*memState)(nil)
)
