package models

import "time"

type Category string

const (
	CategoryLodging     Category = "lodging"
	CategoryEventCenter Category = "event_center"
	CategoryChopsGifts  Category = "chops_gifts"
	CategoryRestaurant  Category = "restaurant"
	CategoryTourGuide   Category = "tour_guide"
	CategoryOther       Category = "other"
)

type SplitKind string

const (
	SplitNone     SplitKind = "none"
	SplitCashback SplitKind = "cashback"
	SplitReferral SplitKind = "referral"
)

// BookingLedgerInput is what the booking collaborator hands over once a
// booking is confirmed.
type BookingLedgerInput struct {
	BookingID        string     `json:"bookingId" validate:"required"`
	VendorID         string     `json:"vendorId" validate:"required"`
	BuyerID          string     `json:"buyerId,omitempty"`
	GrossAmount      int64      `json:"grossAmount" validate:"gte=0"`
	Currency         string     `json:"currency,omitempty" validate:"omitempty,len=3"`
	CheckIn          *time.Time `json:"checkIn,omitempty"`
	CheckOut         *time.Time `json:"checkOut,omitempty"`
	Category         string     `json:"category"`
	CashbackEligible bool       `json:"cashbackEligible"`
	ReferrerID       string     `json:"referrerId,omitempty"`
}

type SplitResult struct {
	Kind           SplitKind `json:"splitKind"`
	VendorAmount   int64     `json:"vendorAmount"`
	UserAmount     int64     `json:"userAmount"`
	PlatformAmount int64     `json:"platformAmount"`
	Inserted       int       `json:"inserted"`
}

// BookingRecord is the reconciliation view of a booking owned by the
// booking collaborator.
type BookingRecord struct {
	Input    BookingLedgerInput
	Canceled bool
}
