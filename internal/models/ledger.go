package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AccountType string

const (
	AccountVendor   AccountType = "vendor"
	AccountUser     AccountType = "user"
	AccountPlatform AccountType = "platform"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountVendor, AccountUser, AccountPlatform:
		return true
	}
	return false
}

// Account identifies a balance holder. Platform accounts carry no ID.
type Account struct {
	Type AccountType `json:"accountType"`
	ID   string      `json:"accountId,omitempty"`
}

func VendorAccount(id string) Account { return Account{Type: AccountVendor, ID: id} }
func UserAccount(id string) Account   { return Account{Type: AccountUser, ID: id} }
func PlatformAccount() Account        { return Account{Type: AccountPlatform} }

func (a Account) Validate() error {
	if !a.Type.Valid() {
		return fmt.Errorf("invalid account type %q", a.Type)
	}
	if a.Type == AccountPlatform && a.ID != "" {
		return fmt.Errorf("platform account must not carry an id")
	}
	if a.Type != AccountPlatform && a.ID == "" {
		return fmt.Errorf("%s account requires an id", a.Type)
	}
	return nil
}

func (a Account) String() string {
	if a.Type == AccountPlatform {
		return string(a.Type)
	}
	return string(a.Type) + ":" + a.ID
}

type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusAvailable EntryStatus = "available"
)

type Reason string

const (
	ReasonVendorShare            Reason = "vendor_share"
	ReasonPlatformCommission     Reason = "platform_commission"
	ReasonUserCashback           Reason = "user_cashback"
	ReasonUserReferralCommission Reason = "user_referral_commission"
	ReasonPayout                 Reason = "payout"
	ReasonAdjustment             Reason = "adjustment"
)

type SourceKind string

const (
	SourceBooking SourceKind = "booking"
	SourcePayout  SourceKind = "payout"
)

// Source links an entry back to the booking or payout that produced it.
type Source struct {
	Kind SourceKind `json:"sourceType"`
	ID   string     `json:"sourceId"`
}

// LedgerEntry is one immutable money movement against one account.
// Status is the only field that changes after insert (pending -> available).
type LedgerEntry struct {
	ID        string      `json:"id" db:"id"`
	Account   Account     `json:"account"`
	Direction Direction   `json:"direction" db:"direction"`
	Amount    int64       `json:"amount" db:"amount"` // minor units
	Currency  string      `json:"currency" db:"currency"`
	Status    EntryStatus `json:"status" db:"status"`
	ReleaseOn *time.Time  `json:"releaseOn,omitempty" db:"release_on"`
	Reason    Reason      `json:"reason" db:"reason"`
	Source    Source      `json:"source"`
	BookingID string      `json:"bookingId,omitempty" db:"booking_id"`
	Meta      EntryMeta   `json:"meta,omitempty"`
	CreatedAt time.Time   `json:"createdAt" db:"created_at"`
}

// CancelOf returns the id of the entry this one compensates, if any.
func (e LedgerEntry) CancelOf() string {
	if m, ok := e.Meta.(ReversalMeta); ok {
		return m.OriginalEntryID
	}
	return ""
}

// Signed returns the amount with the direction applied.
func (e LedgerEntry) Signed() int64 {
	if e.Direction == Debit {
		return -e.Amount
	}
	return e.Amount
}

func (e LedgerEntry) IsCredit() bool { return e.Direction == Credit }

func newEntry(acct Account, dir Direction, amount int64, currency string, reason Reason, src Source, meta EntryMeta) LedgerEntry {
	return LedgerEntry{
		ID:        uuid.New().String(),
		Account:   acct,
		Direction: dir,
		Amount:    amount,
		Currency:  currency,
		Status:    StatusPending,
		Reason:    reason,
		Source:    src,
		Meta:      meta,
		CreatedAt: time.Now().UTC(),
	}
}

func NewVendorShareEntry(vendorID, bookingID string, amount int64, currency string, releaseOn time.Time, category string) LedgerEntry {
	e := newEntry(VendorAccount(vendorID), Credit, amount, currency, ReasonVendorShare,
		Source{Kind: SourceBooking, ID: bookingID}, VendorShareMeta{Category: category})
	e.BookingID = bookingID
	e.ReleaseOn = &releaseOn
	return e
}

// NewPlatformCommissionEntry is available immediately unless the commission
// matures with the vendor share, in which case it shares the vendor release date.
func NewPlatformCommissionEntry(bookingID string, amount int64, currency string, maturesWithVendor bool, vendorReleaseOn time.Time, category string) LedgerEntry {
	e := newEntry(PlatformAccount(), Credit, amount, currency, ReasonPlatformCommission,
		Source{Kind: SourceBooking, ID: bookingID},
		PlatformCommissionMeta{Category: category, MaturesWithVendor: maturesWithVendor})
	e.BookingID = bookingID
	if maturesWithVendor {
		e.ReleaseOn = &vendorReleaseOn
	} else {
		e.Status = StatusAvailable
	}
	return e
}

func NewIncentiveEntry(userID, bookingID string, reason Reason, amount int64, currency string, releaseOn time.Time, pct float64) LedgerEntry {
	e := newEntry(UserAccount(userID), Credit, amount, currency, reason,
		Source{Kind: SourceBooking, ID: bookingID}, IncentiveMeta{Percent: pct})
	e.BookingID = bookingID
	e.ReleaseOn = &releaseOn
	return e
}

// NewPayoutLockEntry holds funds for a payout. It is available at once so the
// lock reduces the payable balance immediately.
func NewPayoutLockEntry(payee Account, payoutID string, amount int64, currency string) LedgerEntry {
	e := newEntry(payee, Debit, amount, currency, ReasonPayout,
		Source{Kind: SourcePayout, ID: payoutID}, PayoutLockMeta{PayoutID: payoutID})
	e.Status = StatusAvailable
	return e
}

// NewPayoutUnlockEntry releases a lock with a compensating credit.
func NewPayoutUnlockEntry(lock LedgerEntry) LedgerEntry {
	e := newEntry(lock.Account, Credit, lock.Amount, lock.Currency, ReasonAdjustment, lock.Source,
		ReversalMeta{OriginalEntryID: lock.ID, Kind: KindPayoutUnlock})
	e.Status = lock.Status
	return e
}

// NewReversalEntry mirrors a booking credit as a debit. Status and release
// date are copied so the pair nets to zero in both pending and available views.
func NewReversalEntry(original LedgerEntry) LedgerEntry {
	e := newEntry(original.Account, Debit, original.Amount, original.Currency, ReasonAdjustment, original.Source,
		ReversalMeta{OriginalEntryID: original.ID, Kind: ReversalKindFor(original.Reason)})
	e.BookingID = original.BookingID
	e.Status = original.Status
	if original.ReleaseOn != nil {
		r := *original.ReleaseOn
		e.ReleaseOn = &r
	}
	return e
}

type MetaKind string

const (
	MetaVendorShare        MetaKind = "vendor_share"
	MetaPlatformCommission MetaKind = "platform_commission"
	MetaIncentive          MetaKind = "incentive"
	MetaPayoutLock         MetaKind = "payout_lock"
	MetaReversal           MetaKind = "reversal"
)

// EntryMeta is the closed set of per-reason annotations.
type EntryMeta interface {
	MetaKind() MetaKind
}

type VendorShareMeta struct {
	Category string `json:"category,omitempty"`
}

type PlatformCommissionMeta struct {
	Category          string `json:"category,omitempty"`
	MaturesWithVendor bool   `json:"maturesWithVendor,omitempty"`
}

type IncentiveMeta struct {
	Percent float64 `json:"percent"`
}

type PayoutLockMeta struct {
	PayoutID string `json:"payoutId"`
}

type ReversalKind string

const (
	KindVendorShareReversal        ReversalKind = "vendor_share_reversal"
	KindPlatformCommissionReversal ReversalKind = "platform_commission_reversal"
	KindUserCashbackReversal       ReversalKind = "user_cashback_reversal"
	KindUserReferralReversal       ReversalKind = "user_referral_commission_reversal"
	KindPayoutUnlock               ReversalKind = "payout_unlock"
)

type ReversalMeta struct {
	OriginalEntryID string       `json:"cancelOf"`
	Kind            ReversalKind `json:"kind"`
}

func (VendorShareMeta) MetaKind() MetaKind        { return MetaVendorShare }
func (PlatformCommissionMeta) MetaKind() MetaKind { return MetaPlatformCommission }
func (IncentiveMeta) MetaKind() MetaKind          { return MetaIncentive }
func (PayoutLockMeta) MetaKind() MetaKind         { return MetaPayoutLock }
func (ReversalMeta) MetaKind() MetaKind           { return MetaReversal }

func ReversalKindFor(r Reason) ReversalKind {
	switch r {
	case ReasonVendorShare:
		return KindVendorShareReversal
	case ReasonPlatformCommission:
		return KindPlatformCommissionReversal
	case ReasonUserCashback:
		return KindUserCashbackReversal
	case ReasonUserReferralCommission:
		return KindUserReferralReversal
	}
	return ReversalKind(string(r) + "_reversal")
}

// EncodeMeta returns the kind tag and JSON body for storage.
func EncodeMeta(m EntryMeta) (MetaKind, []byte, error) {
	if m == nil {
		return "", []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", nil, err
	}
	return m.MetaKind(), b, nil
}

func DecodeMeta(kind MetaKind, raw []byte) (EntryMeta, error) {
	if kind == "" {
		return nil, nil
	}
	var (
		m   EntryMeta
		err error
	)
	switch kind {
	case MetaVendorShare:
		var v VendorShareMeta
		err = json.Unmarshal(raw, &v)
		m = v
	case MetaPlatformCommission:
		var v PlatformCommissionMeta
		err = json.Unmarshal(raw, &v)
		m = v
	case MetaIncentive:
		var v IncentiveMeta
		err = json.Unmarshal(raw, &v)
		m = v
	case MetaPayoutLock:
		var v PayoutLockMeta
		err = json.Unmarshal(raw, &v)
		m = v
	case MetaReversal:
		var v ReversalMeta
		err = json.Unmarshal(raw, &v)
		m = v
	default:
		return nil, fmt.Errorf("unknown meta kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s meta: %w", kind, err)
	}
	return m, nil
}
