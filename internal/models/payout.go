package models

import (
	"strings"
	"time"
)

type PayoutStatus string

const (
	PayoutRequested  PayoutStatus = "requested"
	PayoutProcessing PayoutStatus = "processing"
	PayoutPaid       PayoutStatus = "paid"
	PayoutFailed     PayoutStatus = "failed"
)

// Active reports whether the payout still holds a claim on the payee's funds.
func (s PayoutStatus) Active() bool {
	return s == PayoutRequested || s == PayoutProcessing
}

func (s PayoutStatus) Terminal() bool {
	return s == PayoutPaid || s == PayoutFailed
}

// CanonicalPayoutStatus maps stored values, including legacy aliases, onto
// the four canonical states.
func CanonicalPayoutStatus(raw string) (PayoutStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "requested", "pending":
		return PayoutRequested, true
	case "processing", "approved":
		return PayoutProcessing, true
	case "paid":
		return PayoutPaid, true
	case "failed", "rejected", "cancelled", "canceled":
		return PayoutFailed, true
	}
	return "", false
}

// BankSnapshot is copied at request time and never updated afterwards.
type BankSnapshot struct {
	BankCode      string `json:"bankCode" validate:"required"`
	BankName      string `json:"bankName,omitempty"`
	AccountNumber string `json:"accountNumber" validate:"required,numeric,min=10,max=10"`
	AccountName   string `json:"accountName" validate:"required"`
	RecipientCode string `json:"recipientCode,omitempty"`
}

type PayoutMeta struct {
	WebhookDigests []string `json:"webhookDigests,omitempty"`
	LastError      string   `json:"lastError,omitempty"`
	FailureReason  string   `json:"failureReason,omitempty"`
	Attempts       int      `json:"attempts,omitempty"`
}

const MaxWebhookDigests = 50

// HasDigest reports whether a webhook body with this digest was applied already.
func (m PayoutMeta) HasDigest(d string) bool {
	for _, x := range m.WebhookDigests {
		if x == d {
			return true
		}
	}
	return false
}

// AddDigest appends d, keeping only the most recent MaxWebhookDigests.
func (m *PayoutMeta) AddDigest(d string) {
	if m.HasDigest(d) {
		return
	}
	m.WebhookDigests = append(m.WebhookDigests, d)
	if n := len(m.WebhookDigests); n > MaxWebhookDigests {
		m.WebhookDigests = append([]string(nil), m.WebhookDigests[n-MaxWebhookDigests:]...)
	}
}

type Payout struct {
	ID               string       `json:"id" db:"id"`
	Payee            Account      `json:"payee"`
	Amount           int64        `json:"amount" db:"amount"`
	Currency         string       `json:"currency" db:"currency"`
	Status           PayoutStatus `json:"status" db:"status"`
	Method           string       `json:"method" db:"method"`
	Provider         string       `json:"provider" db:"provider"`
	TransferCode     string       `json:"transferCode,omitempty" db:"transfer_code"`
	TransferRef      string       `json:"transferRef" db:"transfer_ref"`
	Bank             BankSnapshot `json:"bank"`
	RequestedAt      time.Time    `json:"requestedAt" db:"requested_at"`
	RequestedBy      string       `json:"requestedBy" db:"requested_by"`
	BalanceAtRequest int64        `json:"balanceAtRequest" db:"balance_at_request"`
	Meta             PayoutMeta   `json:"meta"`
	UpdatedAt        time.Time    `json:"updatedAt" db:"updated_at"`
	PaidAt           *time.Time   `json:"paidAt,omitempty" db:"paid_at"`
}
