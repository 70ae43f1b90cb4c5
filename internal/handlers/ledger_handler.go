package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/staybay/backend/internal/config"
	"github.com/staybay/backend/internal/models"
	"github.com/staybay/backend/internal/services"
)

// LedgerHandler serves the booking collaborator's internal endpoints.
type LedgerHandler struct {
	ledger     *services.LedgerService
	reversals  *services.ReversalEngine
	maturity   *services.MaturityScheduler
	reconciler *services.Reconciler
	splits     *config.SplitsProvider
	validator  *services.ValidationHelper
}

func NewLedgerHandler(ledger *services.LedgerService, reversals *services.ReversalEngine, maturity *services.MaturityScheduler, reconciler *services.Reconciler, splits *config.SplitsProvider) *LedgerHandler {
	return &LedgerHandler{
		ledger:     ledger,
		reversals:  reversals,
		maturity:   maturity,
		reconciler: reconciler,
		splits:     splits,
		validator:  services.NewValidationHelper(),
	}
}

type recordResponse struct {
	Recorded bool `json:"recorded"`
	*models.SplitResult
	Generation uint64 `json:"configGeneration"`
	Error      string `json:"error,omitempty"`
}

// RecordBookingLedger writes the split for a confirmed booking.
// A storage failure still answers 200 with recorded=false: the booking stands.
// @Summary Record a booking's ledger split
// @Description Splits the gross amount into vendor, user and platform shares
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param bookingId path string true "Booking ID"
// @Param booking body models.BookingLedgerInput true "Confirmed booking"
// @Success 200 {object} recordResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {string} string
// @Router /internal/bookings/{bookingId}/ledger [post]
func (h *LedgerHandler) RecordBookingLedger(w http.ResponseWriter, r *http.Request) {
	var in models.BookingLedgerInput
	if err := decodeJSON(w, r, &in); err != nil {
		badBody(w, err)
		return
	}
	in.BookingID = chi.URLParam(r, "bookingId")

	if err := h.validator.ValidateStruct(&in); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	snapshot := h.splits.Current(r.Context())
	res, err := h.ledger.RecordBookingLedger(r.Context(), in, snapshot)
	if err != nil {
		if services.IsSoft(err) {
			writeJSON(w, http.StatusOK, recordResponse{Recorded: false, Generation: snapshot.Generation, Error: err.Error()})
			return
		}
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, recordResponse{Recorded: true, SplitResult: res, Generation: snapshot.Generation})
}

// ReverseBookingLedger compensates every credit of a canceled booking.
// @Summary Reverse a canceled booking
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param bookingId path string true "Booking ID"
// @Success 200 {object} map[string]any
// @Failure 500 {object} services.ErrorResponse
// @Router /internal/bookings/{bookingId}/reversal [post]
func (h *LedgerHandler) ReverseBookingLedger(w http.ResponseWriter, r *http.Request) {
	n, err := h.reversals.ReverseBookingLedger(r.Context(), chi.URLParam(r, "bookingId"))
	if err != nil && !services.IsSoft(err) {
		services.SendServiceError(w, err)
		return
	}

	resp := map[string]any{"reversed": n, "complete": err == nil}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// CheckOut matures the booking's due rows when the guest checks out.
// @Summary Mature a booking's due earnings
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param bookingId path string true "Booking ID"
// @Success 200 {object} map[string]int64
// @Failure 500 {object} services.ErrorResponse
// @Router /internal/bookings/{bookingId}/checkout [post]
func (h *LedgerHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	n, err := h.maturity.MatureBooking(r.Context(), chi.URLParam(r, "bookingId"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matured": n})
}

type reconcileRequest struct {
	Bookings []struct {
		Booking  models.BookingLedgerInput `json:"booking"`
		Canceled bool                      `json:"canceled"`
	} `json:"bookings"`
}

// Reconcile re-derives ledger rows for the posted bookings.
// @Summary Reconcile bookings against the ledger
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param bookings body reconcileRequest true "Bookings to re-derive"
// @Success 200 {object} services.ReconcileReport
// @Failure 400 {object} services.ErrorResponse
// @Router /internal/reconcile [post]
func (h *LedgerHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	src := make(services.StaticBookings, 0, len(req.Bookings))
	for _, b := range req.Bookings {
		src = append(src, models.BookingRecord{Input: b.Booking, Canceled: b.Canceled})
	}

	report, err := h.reconciler.Run(r.Context(), src)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
