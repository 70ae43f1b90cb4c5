package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/staybay/backend/internal/models"
)

const uniqueViolation = "23505"

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type pgQueries struct {
	db dbtx
}

// PostgresStore is the lib/pq backed store. JSON columns are sent as text;
// lib/pq would otherwise encode []byte as bytea.
type PostgresStore struct {
	pgQueries
	conn *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{pgQueries: pgQueries{db: db}, conn: db}
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgQueries{db: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT key, value FROM platform_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

func mapErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

const entryColumns = `id, account_type, account_id, direction, amount, currency, status, release_on,
	reason, source_type, source_id, booking_id, meta_kind, meta, created_at`

// InsertEntry appends one row. A row rejected by a unique index yields ErrConflict
// without aborting the surrounding transaction.
func (q *pgQueries) InsertEntry(ctx context.Context, e models.LedgerEntry) error {
	kind, meta, err := models.EncodeMeta(e.Meta)
	if err != nil {
		return err
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, account_type, account_id, direction, amount, currency, status, release_on,
			reason, source_type, source_id, booking_id, cancel_of, meta_kind, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT DO NOTHING`,
		e.ID, e.Account.Type, nullString(e.Account.ID), e.Direction, e.Amount, e.Currency, e.Status,
		nullTime(e.ReleaseOn), e.Reason, e.Source.Kind, e.Source.ID, nullString(e.BookingID),
		nullString(e.CancelOf()), kind, string(meta), e.CreatedAt)
	if err != nil {
		return mapErr(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: ledger entry %s", ErrConflict, e.ID)
	}
	return nil
}

func (q *pgQueries) AvailableBalance(ctx context.Context, acct models.Account) (int64, error) {
	var balance int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'credit' THEN amount ELSE -amount END), 0)
		FROM ledger_entries
		WHERE account_type = $1 AND account_id IS NOT DISTINCT FROM $2 AND status = 'available'`,
		acct.Type, nullString(acct.ID)).Scan(&balance)
	return balance, err
}

func (q *pgQueries) CreditsForBooking(ctx context.Context, bookingID string, reason models.Reason) ([]models.LedgerEntry, error) {
	return q.queryEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE booking_id = $1 AND reason = $2 AND direction = 'credit'
		ORDER BY created_at`, bookingID, reason)
}

func (q *pgQueries) EntriesForBooking(ctx context.Context, bookingID string) ([]models.LedgerEntry, error) {
	return q.queryEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE booking_id = $1 ORDER BY created_at`, bookingID)
}

func (q *pgQueries) PayoutLocks(ctx context.Context, payoutID string) ([]models.LedgerEntry, error) {
	return q.queryEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE source_type = 'payout' AND source_id = $1 ORDER BY created_at`, payoutID)
}

func (q *pgQueries) HasReversal(ctx context.Context, originalID string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE cancel_of = $1)`, originalID).Scan(&exists)
	return exists, err
}

func (q *pgQueries) Mature(ctx context.Context, f MatureFilter, now time.Time) (int64, error) {
	query := `UPDATE ledger_entries SET status = 'available', release_on = COALESCE(release_on, $1)
		WHERE status = 'pending' AND (release_on IS NULL OR release_on <= $1)`
	args := []any{now}

	if f.BookingID != "" {
		args = append(args, f.BookingID)
		query += fmt.Sprintf(" AND booking_id = $%d", len(args))
	}
	if f.Account != nil {
		args = append(args, f.Account.Type, nullString(f.Account.ID))
		query += fmt.Sprintf(" AND account_type = $%d AND account_id IS NOT DISTINCT FROM $%d", len(args)-1, len(args))
	}
	if len(f.Reasons) > 0 {
		reasons := make([]string, len(f.Reasons))
		for i, r := range f.Reasons {
			reasons[i] = string(r)
		}
		args = append(args, pq.Array(reasons))
		query += fmt.Sprintf(" AND reason = ANY($%d)", len(args))
	}
	if len(f.AccountTypes) > 0 {
		types := make([]string, len(f.AccountTypes))
		for i, t := range f.AccountTypes {
			types[i] = string(t)
		}
		args = append(args, pq.Array(types))
		query += fmt.Sprintf(" AND account_type = ANY($%d)", len(args))
	}

	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *pgQueries) queryEntries(ctx context.Context, query string, args ...any) ([]models.LedgerEntry, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var (
			e         models.LedgerEntry
			accountID sql.NullString
			bookingID sql.NullString
			releaseOn sql.NullTime
			metaKind  string
			meta      []byte
		)
		err := rows.Scan(&e.ID, &e.Account.Type, &accountID, &e.Direction, &e.Amount, &e.Currency, &e.Status,
			&releaseOn, &e.Reason, &e.Source.Kind, &e.Source.ID, &bookingID, &metaKind, &meta, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		e.Account.ID = accountID.String
		e.BookingID = bookingID.String
		if releaseOn.Valid {
			t := releaseOn.Time
			e.ReleaseOn = &t
		}
		if e.Meta, err = models.DecodeMeta(models.MetaKind(metaKind), meta); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const payoutColumns = `id, payee_type, payee_id, amount, currency, status, method, provider, transfer_code,
	transfer_ref, bank, requested_at, requested_by, balance_at_request, meta, updated_at, paid_at`

const activeStatuses = `('requested', 'processing', 'pending', 'approved')`

func (q *pgQueries) InsertPayout(ctx context.Context, p *models.Payout) error {
	bank, err := json.Marshal(p.Bank)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(p.Meta)
	if err != nil {
		return err
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO payouts (`+payoutColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		p.ID, p.Payee.Type, p.Payee.ID, p.Amount, p.Currency, p.Status, p.Method, p.Provider,
		nullString(p.TransferCode), p.TransferRef, string(bank), p.RequestedAt, p.RequestedBy, p.BalanceAtRequest,
		string(meta), p.UpdatedAt, nullTime(p.PaidAt))
	return mapErr(err)
}

func (q *pgQueries) UpdatePayout(ctx context.Context, p *models.Payout) error {
	meta, err := json.Marshal(p.Meta)
	if err != nil {
		return err
	}

	res, err := q.db.ExecContext(ctx, `
		UPDATE payouts SET status = $1, transfer_code = $2, meta = $3, updated_at = $4, paid_at = $5
		WHERE id = $6`,
		p.Status, nullString(p.TransferCode), string(meta), p.UpdatedAt, nullTime(p.PaidAt), p.ID)
	if err != nil {
		return mapErr(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *pgQueries) GetPayout(ctx context.Context, id string) (*models.Payout, error) {
	return q.queryPayout(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id)
}

func (q *pgQueries) GetPayoutForUpdate(ctx context.Context, id string) (*models.Payout, error) {
	return q.queryPayout(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1 FOR UPDATE`, id)
}

func (q *pgQueries) FindPayoutByTransfer(ctx context.Context, transferCode, reference string) (*models.Payout, error) {
	return q.queryPayout(ctx, `SELECT `+payoutColumns+` FROM payouts
		WHERE ($1 <> '' AND transfer_code = $1) OR ($2 <> '' AND transfer_ref = $2)
		LIMIT 1`, transferCode, reference)
}

// ActivePayout returns nil when the payee has no active payout.
func (q *pgQueries) ActivePayout(ctx context.Context, payee models.Account) (*models.Payout, error) {
	p, err := q.queryPayout(ctx, `SELECT `+payoutColumns+` FROM payouts
		WHERE payee_type = $1 AND payee_id = $2 AND status IN `+activeStatuses+`
		LIMIT 1`, payee.Type, payee.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return p, err
}

func (q *pgQueries) OnHoldAmount(ctx context.Context, payee models.Account) (int64, error) {
	var held int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payouts
		WHERE payee_type = $1 AND payee_id = $2 AND status IN `+activeStatuses,
		payee.Type, payee.ID).Scan(&held)
	return held, err
}

func (q *pgQueries) queryPayout(ctx context.Context, query string, args ...any) (*models.Payout, error) {
	var (
		p            models.Payout
		status       string
		transferCode sql.NullString
		bank         []byte
		meta         []byte
		paidAt       sql.NullTime
	)
	err := q.db.QueryRowContext(ctx, query, args...).Scan(&p.ID, &p.Payee.Type, &p.Payee.ID, &p.Amount, &p.Currency,
		&status, &p.Method, &p.Provider, &transferCode, &p.TransferRef, &bank, &p.RequestedAt, &p.RequestedBy,
		&p.BalanceAtRequest, &meta, &p.UpdatedAt, &paidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	canonical, ok := models.CanonicalPayoutStatus(status)
	if !ok {
		return nil, fmt.Errorf("payout %s has unknown status %q", p.ID, strings.TrimSpace(status))
	}
	p.Status = canonical
	p.TransferCode = transferCode.String
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	if err := json.Unmarshal(bank, &p.Bank); err != nil {
		return nil, fmt.Errorf("decode bank snapshot: %w", err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Meta); err != nil {
			return nil, fmt.Errorf("decode payout meta: %w", err)
		}
	}
	return &p, nil
}
