package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Validation errors: nothing is written.
var (
	ErrInvalidSplitInput   = errors.New("invalid split input")
	ErrInvalidBooking      = errors.New("invalid booking ledger input")
	ErrInvalidPayee        = errors.New("payouts are only available to vendors and users")
	ErrNoBalance           = errors.New("no available balance to withdraw")
	ErrBelowMinimum        = errors.New("requested amount is below the minimum payout")
	ErrInsufficientBalance = errors.New("requested amount exceeds available balance")
	ErrMissingBankDetails  = errors.New("no valid bank details on file for payee")
)

// Conflict and state errors.
var (
	ErrActivePayoutExists = errors.New("payee already has a payout in progress")
	ErrPayoutNotFound     = errors.New("payout not found")
	ErrInvalidPayoutState = errors.New("payout is not in a state that allows this action")
)

var (
	ErrInvalidSignature = errors.New("webhook signature mismatch")
	ErrProviderFailed   = errors.New("payment provider did not accept the transfer")
)

// SoftError marks a best-effort operation that failed after the caller's own
// record was already saved. Reconciliation repairs it by re-running Op.
type SoftError struct {
	Op  string
	Err error
}

func (e *SoftError) Error() string {
	return fmt.Sprintf("%s (will reconcile): %v", e.Op, e.Err)
}

func (e *SoftError) Unwrap() error { return e.Err }

func IsSoft(err error) bool {
	var soft *SoftError
	return errors.As(err, &soft)
}

// ErrorCode is the stable machine-readable code reported to API callers.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNoBalance):
		return "no_balance"
	case errors.Is(err, ErrBelowMinimum):
		return "below_minimum"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrActivePayoutExists):
		return "active_payout_exists"
	case errors.Is(err, ErrMissingBankDetails):
		return "missing_bank_details"
	case errors.Is(err, ErrInvalidPayee):
		return "invalid_payee"
	case errors.Is(err, ErrInvalidBooking), errors.Is(err, ErrInvalidSplitInput):
		return "invalid_input"
	case errors.Is(err, ErrPayoutNotFound):
		return "payout_not_found"
	case errors.Is(err, ErrInvalidPayoutState):
		return "invalid_payout_state"
	case errors.Is(err, ErrProviderFailed):
		return "provider_failed"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	}
	return "internal"
}

// HTTPStatus maps an error onto the response status for API callers.
func HTTPStatus(err error) int {
	switch ErrorCode(err) {
	case "no_balance", "below_minimum", "insufficient_balance", "missing_bank_details", "invalid_payee", "invalid_input":
		return http.StatusBadRequest
	case "active_payout_exists", "invalid_payout_state":
		return http.StatusConflict
	case "payout_not_found":
		return http.StatusNotFound
	case "provider_failed":
		return http.StatusBadGateway
	case "invalid_signature":
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
