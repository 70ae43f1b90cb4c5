package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/staybay/backend/internal/middleware"
	"github.com/staybay/backend/internal/models"
	"github.com/staybay/backend/internal/services"
)

type PayoutHandler struct {
	payouts *services.PayoutService
	log     zerolog.Logger
}

func NewPayoutHandler(payouts *services.PayoutService, log zerolog.Logger) *PayoutHandler {
	return &PayoutHandler{payouts: payouts, log: log}
}

// payoutAmount accepts a positive integer or the string "all".
type payoutAmount struct {
	value int64
	all   bool
}

func (a *payoutAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.EqualFold(strings.TrimSpace(s), "all") {
			a.all = true
			return nil
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return errors.New(`amount must be an integer or "all"`)
		}
		a.value = n
		return nil
	}
	return json.Unmarshal(b, &a.value)
}

// resolveAccount is the caller's own account, or for service and admin
// callers the one named in the query string.
func resolveAccount(r *http.Request) (models.Account, bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		return models.Account{}, false
	}
	if acct, ok := p.Account(); ok {
		return acct, true
	}
	if p.Role != middleware.RoleAdmin && p.Role != middleware.RoleService {
		return models.Account{}, false
	}
	acct := models.Account{
		Type: models.AccountType(r.URL.Query().Get("accountType")),
		ID:   r.URL.Query().Get("accountId"),
	}
	return acct, acct.Validate() == nil
}

// canAccess allows the payee itself and service or admin callers.
func canAccess(r *http.Request, payee models.Account) bool {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		return false
	}
	if own, ok := principal.Account(); ok {
		return own == payee
	}
	return principal.Role == middleware.RoleAdmin || principal.Role == middleware.RoleService
}

func (h *PayoutHandler) authorize(w http.ResponseWriter, r *http.Request) (*models.Payout, bool) {
	p, err := h.payouts.GetPayout(r.Context(), chi.URLParam(r, "payoutId"))
	if err != nil {
		services.SendServiceError(w, err)
		return nil, false
	}
	if !canAccess(r, p.Payee) {
		services.SendServiceError(w, services.ErrPayoutNotFound)
		return nil, false
	}
	return p, true
}

// Balance reports the available and on-hold amounts after a lazy sweep.
// @Summary Get an account balance
// @Tags payouts
// @Produce json
// @Security BearerAuth
// @Param accountType query string false "Account type, service and admin callers only"
// @Param accountId query string false "Account ID, service and admin callers only"
// @Success 200 {object} services.BalanceView
// @Failure 400 {object} services.ErrorResponse
// @Router /balance [get]
func (h *PayoutHandler) Balance(w http.ResponseWriter, r *http.Request) {
	acct, ok := resolveAccount(r)
	if !ok {
		services.SendErrorResponse(w, "Unknown account", http.StatusBadRequest, nil)
		return
	}

	view, err := h.payouts.Balance(r.Context(), acct)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type requestPayoutResponse struct {
	*services.PayoutResult
	TransferCode string `json:"transferCode,omitempty"`
	LastError    string `json:"lastError,omitempty"`
}

// RequestPayout locks the funds and hands the payout to the provider. A
// provider failure still answers 201: the payout stays requested for retry.
// @Summary Request a payout
// @Description Locks the amount, or the whole balance for "all", and submits the transfer
// @Tags payouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object true "Amount in minor units, or the string all"
// @Success 201 {object} requestPayoutResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /payouts [post]
func (h *PayoutHandler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFrom(r.Context())
	payee, ok := principal.Account()
	if !ok {
		services.SendServiceError(w, services.ErrInvalidPayee)
		return
	}

	var req struct {
		Amount *payoutAmount `json:"amount"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Amount == nil {
		badBody(w, err)
		return
	}

	res, err := h.payouts.RequestPayout(r.Context(), services.PayoutRequest{
		Payee:       payee,
		Amount:      req.Amount.value,
		All:         req.Amount.all,
		RequestedBy: principal.Subject,
	})
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	resp := requestPayoutResponse{PayoutResult: res}
	p, err := h.payouts.InitiateTransfer(r.Context(), res.PayoutID)
	switch {
	case err == nil:
		res.Status = p.Status
		resp.TransferCode = p.TransferCode
	case p != nil:
		res.Status = p.Status
		res.NewAvailableBalance += res.LockedAmount
		resp.LastError = p.Meta.LastError
	default:
		h.log.Error().Err(err).Str("payout_id", res.PayoutID).Msg("transfer handoff failed")
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetPayout returns a payout its owner or an operator may see.
// @Summary Get a payout
// @Tags payouts
// @Produce json
// @Security BearerAuth
// @Param payoutId path string true "Payout ID"
// @Success 200 {object} models.Payout
// @Failure 404 {object} services.ErrorResponse
// @Router /payouts/{payoutId} [get]
func (h *PayoutHandler) GetPayout(w http.ResponseWriter, r *http.Request) {
	p, ok := h.authorize(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// RetryPayout re-locks and re-submits a payout left requested.
// @Summary Retry a requested payout
// @Tags payouts
// @Produce json
// @Security BearerAuth
// @Param payoutId path string true "Payout ID"
// @Success 200 {object} models.Payout
// @Failure 409 {object} services.ErrorResponse
// @Failure 502 {object} services.ErrorResponse
// @Router /payouts/{payoutId}/retry [post]
func (h *PayoutHandler) RetryPayout(w http.ResponseWriter, r *http.Request) {
	p, ok := h.authorize(w, r)
	if !ok {
		return
	}

	updated, err := h.payouts.InitiateTransfer(r.Context(), p.ID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// CancelPayout fails a payout that never reached the provider.
// @Summary Cancel a requested payout
// @Tags payouts
// @Produce json
// @Security BearerAuth
// @Param payoutId path string true "Payout ID"
// @Success 200 {object} models.Payout
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /payouts/{payoutId}/cancel [post]
func (h *PayoutHandler) CancelPayout(w http.ResponseWriter, r *http.Request) {
	p, ok := h.authorize(w, r)
	if !ok {
		return
	}

	principal, _ := middleware.PrincipalFrom(r.Context())
	updated, err := h.payouts.CancelPayout(r.Context(), p.ID, principal.Subject)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
