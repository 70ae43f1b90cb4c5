package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/staybay/backend/internal/services"
)

type WebhookHandler struct {
	webhooks *services.WebhookService
	log      zerolog.Logger
}

func NewWebhookHandler(webhooks *services.WebhookService, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, log: log}
}

// Paystack answers 401 when the signature is bad or cannot be checked and 200
// for everything else, including internal failures, so the provider never
// retry-storms.
// @Summary Paystack transfer webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Param x-paystack-signature header string true "HMAC-SHA512 of the body"
// @Success 200 {object} map[string]bool
// @Failure 401 {object} services.ErrorResponse
// @Router /webhooks/paystack [post]
func (h *WebhookHandler) Paystack(w http.ResponseWriter, r *http.Request) {
	// a body that cannot be read whole cannot have its signature verified
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.log.Warn().Err(err).Msg("unreadable webhook body")
		services.SendErrorResponse(w, "Invalid signature", http.StatusUnauthorized, nil)
		return
	}

	outcome, err := h.webhooks.Handle(r.Context(), body, r.Header.Get(services.SignatureHeader))
	if errors.Is(err, services.ErrInvalidSignature) {
		services.SendErrorResponse(w, "Invalid signature", http.StatusUnauthorized, nil)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("outcome", string(outcome)).Msg("webhook processing failed")
	}

	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}
