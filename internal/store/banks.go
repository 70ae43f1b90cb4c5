package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/staybay/backend/internal/models"
)

// BankDetails returns the payee's current destination account, or ErrNotFound.
func (s *PostgresStore) BankDetails(ctx context.Context, payee models.Account) (*models.BankSnapshot, error) {
	var b models.BankSnapshot
	err := s.conn.QueryRowContext(ctx, `
		SELECT bank_code, bank_name, account_number, account_name, recipient_code
		FROM payee_bank_accounts WHERE payee_type = $1 AND payee_id = $2`,
		payee.Type, payee.ID).Scan(&b.BankCode, &b.BankName, &b.AccountNumber, &b.AccountName, &b.RecipientCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// SaveBankDetails upserts the payee's destination account. Payouts already
// requested keep the snapshot they were created with.
func (s *PostgresStore) SaveBankDetails(ctx context.Context, payee models.Account, b models.BankSnapshot) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO payee_bank_accounts (payee_type, payee_id, bank_code, bank_name, account_number, account_name, recipient_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (payee_type, payee_id) DO UPDATE SET
			bank_code = EXCLUDED.bank_code, bank_name = EXCLUDED.bank_name,
			account_number = EXCLUDED.account_number, account_name = EXCLUDED.account_name,
			recipient_code = EXCLUDED.recipient_code, updated_at = now()`,
		payee.Type, payee.ID, b.BankCode, b.BankName, b.AccountNumber, b.AccountName, b.RecipientCode)
	return err
}

func (m *MemoryStore) BankDetails(ctx context.Context, payee models.Account) (*models.BankSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.banks[payee]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *MemoryStore) SaveBankDetails(ctx context.Context, payee models.Account, b models.BankSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banks[payee] = b
	return nil
}
