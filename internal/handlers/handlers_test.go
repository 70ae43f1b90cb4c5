package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/staybay/backend/internal/config"
	"github.com/staybay/backend/internal/models"
	"github.com/staybay/backend/internal/services"
	"github.com/staybay/backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testJWTSecret     = "handlers-test-secret"
	testWebhookSecret = "sk_test_handlers"
)

// fakeProvider answers transfers with sequential codes until fail is set.
type fakeProvider struct {
	mu    sync.Mutex
	fail  error
	calls int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) CreateTransfer(ctx context.Context, req services.TransferRequest) (*services.TransferResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail != nil {
		return nil, p.fail
	}
	return &services.TransferResult{
		TransferCode: fmt.Sprintf("TRF_%d", p.calls),
		Reference:    req.Reference,
		Status:       "pending",
	}, nil
}

func (p *fakeProvider) setFailure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

type server struct {
	handler  http.Handler
	store    *store.MemoryStore
	provider *fakeProvider
}

func newServer(t *testing.T) *server {
	t.Helper()
	st := store.NewMemoryStore()
	reg := prometheus.NewRegistry()
	tel := services.NewTelemetry(zerolog.Nop(), reg)
	provider := &fakeProvider{}

	maturity := services.NewMaturityScheduler(st, config.MaturityConfig{Policy: "checkout", UserPolicy: "checkout", BufferHours: 48}, tel)
	ledger := services.NewLedgerService(st, maturity, "NGN", tel)
	reversals := services.NewReversalEngine(st, nil, tel)
	splits := config.NewSplitsProvider(st, 0)
	reconciler := services.NewReconciler(ledger, reversals, maturity, splits, 30, tel)
	cache, notifier := services.RedisCollaborators(nil)
	payouts := services.NewPayoutService(st, maturity, st, provider, notifier, services.PayoutOptions{
		MinimumAmount:   1000,
		Method:          "bank_transfer",
		Currency:        "NGN",
		ProviderTimeout: time.Second,
	}, tel)
	webhooks := services.NewWebhookService(st, cache, notifier, testWebhookSecret, "test", tel)

	for _, acct := range []models.Account{models.VendorAccount("vendor-1"), models.VendorAccount("vendor-2"), models.UserAccount("buyer-1")} {
		require.NoError(t, st.SaveBankDetails(context.Background(), acct, models.BankSnapshot{
			BankCode: "058", BankName: "GTBank", AccountNumber: "0123456789", AccountName: "Ada Obi",
		}))
	}

	return &server{
		handler: NewRouter(RouterDeps{
			Ledger:    NewLedgerHandler(ledger, reversals, maturity, reconciler, splits),
			Payouts:   NewPayoutHandler(payouts, zerolog.Nop()),
			Webhooks:  NewWebhookHandler(webhooks, zerolog.Nop()),
			JWTSecret: testJWTSecret,
			Gatherer:  reg,
		}),
		store:    st,
		provider: provider,
	}
}

func bearer(t *testing.T, sub, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

func (s *server) do(t *testing.T, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// pastBooking checked out long ago, so its vendor share is already due.
func pastBooking(vendor string, gross int64) map[string]any {
	return map[string]any{
		"vendorId":         vendor,
		"buyerId":          "buyer-1",
		"grossAmount":      gross,
		"checkIn":          "2020-01-01T14:00:00Z",
		"checkOut":         "2020-01-04T11:00:00Z",
		"category":         "Hotel",
		"cashbackEligible": true,
	}
}

func (s *server) record(t *testing.T, bookingID, vendor string, gross int64) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/internal/bookings/"+bookingID+"/ledger", bearer(t, "bookings", "service"), pastBooking(vendor, gross))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func signWebhook(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *server) webhook(t *testing.T, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", bytes.NewReader(body))
	req.Header.Set(services.SignatureHeader, signature)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestLedgerHandler_RecordBookingLedger(t *testing.T) {
	t.Run("records the split", func(t *testing.T) {
		s := newServer(t)
		w := s.do(t, http.MethodPost, "/api/v1/internal/bookings/bk-1/ledger", bearer(t, "bookings", "service"), pastBooking("vendor-1", 100000))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decode(t, w)
		assert.Equal(t, true, resp["recorded"])
		assert.Equal(t, "cashback", resp["splitKind"])
		assert.EqualValues(t, 85000, resp["vendorAmount"])
		assert.EqualValues(t, 3000, resp["userAmount"])
		assert.EqualValues(t, 12000, resp["platformAmount"])
		assert.EqualValues(t, 3, resp["inserted"])
	})

	t.Run("repeat call inserts nothing", func(t *testing.T) {
		s := newServer(t)
		s.record(t, "bk-2", "vendor-1", 100000)

		w := s.do(t, http.MethodPost, "/api/v1/internal/bookings/bk-2/ledger", bearer(t, "bookings", "service"), pastBooking("vendor-1", 100000))
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 0, decode(t, w)["inserted"])
		assert.Len(t, s.store.Entries(), 3)
	})

	t.Run("vendor tokens cannot post", func(t *testing.T) {
		s := newServer(t)
		w := s.do(t, http.MethodPost, "/api/v1/internal/bookings/bk-3/ledger", bearer(t, "vendor-1", "vendor"), pastBooking("vendor-1", 100000))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, s.store.Entries())
	})

	t.Run("missing token", func(t *testing.T) {
		s := newServer(t)
		w := s.do(t, http.MethodPost, "/api/v1/internal/bookings/bk-4/ledger", "", pastBooking("vendor-1", 100000))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		s := newServer(t)
		body := pastBooking("vendor-1", 100000)
		body["surprise"] = 1
		w := s.do(t, http.MethodPost, "/api/v1/internal/bookings/bk-5/ledger", bearer(t, "bookings", "service"), body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing vendor fails validation", func(t *testing.T) {
		s := newServer(t)
		w := s.do(t, http.MethodPost, "/api/v1/internal/bookings/bk-6/ledger", bearer(t, "bookings", "service"), pastBooking("", 100000))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode(t, w)["details"], "VendorID")
	})
}

func TestLedgerHandler_ReverseAndCheckOut(t *testing.T) {
	s := newServer(t)
	s.record(t, "bk-10", "vendor-1", 100000)
	svc := bearer(t, "bookings", "service")

	w := s.do(t, http.MethodPost, "/api/v1/internal/bookings/bk-10/checkout", svc, nil)
	require.Equal(t, http.StatusOK, w.Code)
	// platform commission is available from the start
	assert.EqualValues(t, 2, decode(t, w)["matured"])

	w = s.do(t, http.MethodPost, "/api/v1/internal/bookings/bk-10/reversal", svc, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.EqualValues(t, 3, resp["reversed"])
	assert.Equal(t, true, resp["complete"])

	w = s.do(t, http.MethodPost, "/api/v1/internal/bookings/bk-10/reversal", svc, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["reversed"])

	w = s.do(t, http.MethodGet, "/api/v1/balance", bearer(t, "vendor-1", "vendor"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["available"])
}

func TestLedgerHandler_Reconcile(t *testing.T) {
	s := newServer(t)
	s.record(t, "bk-20", "vendor-1", 50000)

	live := pastBooking("vendor-1", 100000)
	live["bookingId"] = "bk-21"
	canceled := pastBooking("vendor-1", 50000)
	canceled["bookingId"] = "bk-20"

	w := s.do(t, http.MethodPost, "/api/v1/internal/reconcile", bearer(t, "ops", "admin"), map[string]any{
		"bookings": []map[string]any{
			{"booking": live},
			{"booking": canceled, "canceled": true},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report services.ReconcileReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 3, report.EntriesInserted)
	assert.Equal(t, 3, report.Reversed)
	assert.Empty(t, report.Failures)
}

func TestPayoutHandler_Balance(t *testing.T) {
	s := newServer(t)
	s.record(t, "bk-30", "vendor-1", 100000)

	t.Run("own balance after lazy maturity", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/balance", bearer(t, "vendor-1", "vendor"), nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		assert.EqualValues(t, 85000, resp["available"])
		assert.EqualValues(t, 0, resp["onHold"])
	})

	t.Run("admin names the account", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/balance?accountType=user&accountId=buyer-1", bearer(t, "ops", "admin"), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 3000, decode(t, w)["available"])
	})

	t.Run("admin without account", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/balance", bearer(t, "ops", "admin"), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPayoutHandler_Lifecycle(t *testing.T) {
	s := newServer(t)
	s.record(t, "bk-40", "vendor-1", 100000)
	vendor := bearer(t, "vendor-1", "vendor")

	w := s.do(t, http.MethodPost, "/api/v1/payouts", vendor, map[string]any{"amount": "all"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode(t, w)
	payoutID := resp["payoutId"].(string)
	assert.Equal(t, "processing", resp["status"])
	assert.Equal(t, "TRF_1", resp["transferCode"])
	assert.EqualValues(t, 85000, resp["lockedAmount"])
	assert.EqualValues(t, 0, resp["newAvailableBalance"])

	t.Run("second request conflicts", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/payouts", vendor, map[string]any{"amount": 1000})
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "active_payout_exists", decode(t, w)["code"])
	})

	t.Run("other vendors cannot see it", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/payouts/"+payoutID, bearer(t, "vendor-2", "vendor"), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("owner sees it", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/payouts/"+payoutID, vendor, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "processing", decode(t, w)["status"])
	})

	t.Run("processing payouts cannot be cancelled", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/payouts/"+payoutID+"/cancel", vendor, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		body := []byte(`{"event":"transfer.success","data":{"domain":"test","transfer_code":"TRF_1"}}`)
		w := s.webhook(t, body, "deadbeef")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("success webhook marks paid", func(t *testing.T) {
		body := []byte(`{"event":"transfer.success","data":{"domain":"test","transfer_code":"TRF_1","status":"success"}}`)
		w := s.webhook(t, body, signWebhook(body))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decode(t, w)["received"])

		w = s.do(t, http.MethodGet, "/api/v1/payouts/"+payoutID, vendor, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "paid", decode(t, w)["status"])

		// replay is acknowledged and changes nothing
		w = s.webhook(t, body, signWebhook(body))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("balance stays debited", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/balance", vendor, nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		assert.EqualValues(t, 0, resp["available"])
		assert.EqualValues(t, 0, resp["onHold"])
	})
}

func TestPayoutHandler_ProviderFailureAndRetry(t *testing.T) {
	s := newServer(t)
	s.record(t, "bk-50", "vendor-1", 100000)
	vendor := bearer(t, "vendor-1", "vendor")
	s.provider.setFailure(errors.New("upstream unavailable"))

	w := s.do(t, http.MethodPost, "/api/v1/payouts", vendor, map[string]any{"amount": 20000})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode(t, w)
	payoutID := resp["payoutId"].(string)
	assert.Equal(t, "requested", resp["status"])
	assert.EqualValues(t, 85000, resp["newAvailableBalance"])
	assert.NotEmpty(t, resp["lastError"])

	w = s.do(t, http.MethodPost, "/api/v1/payouts/"+payoutID+"/retry", vendor, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	s.provider.setFailure(nil)
	w = s.do(t, http.MethodPost, "/api/v1/payouts/"+payoutID+"/retry", vendor, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "processing", decode(t, w)["status"])

	w = s.do(t, http.MethodGet, "/api/v1/balance", vendor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode(t, w)
	assert.EqualValues(t, 65000, resp["available"])
	assert.EqualValues(t, 20000, resp["onHold"])
}

func TestPayoutHandler_Cancel(t *testing.T) {
	s := newServer(t)
	s.record(t, "bk-60", "vendor-1", 100000)
	vendor := bearer(t, "vendor-1", "vendor")
	s.provider.setFailure(errors.New("upstream unavailable"))

	w := s.do(t, http.MethodPost, "/api/v1/payouts", vendor, map[string]any{"amount": 20000})
	require.Equal(t, http.StatusCreated, w.Code)
	payoutID := decode(t, w)["payoutId"].(string)

	w = s.do(t, http.MethodPost, "/api/v1/payouts/"+payoutID+"/cancel", vendor, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "failed", decode(t, w)["status"])

	w = s.do(t, http.MethodGet, "/api/v1/balance", vendor, nil)
	assert.EqualValues(t, 85000, decode(t, w)["available"])
}

func TestPayoutHandler_RejectsUnknownRoles(t *testing.T) {
	s := newServer(t)
	s.record(t, "bk-65", "vendor-1", 100000)
	vendor := bearer(t, "vendor-1", "vendor")
	s.provider.setFailure(errors.New("upstream unavailable"))

	w := s.do(t, http.MethodPost, "/api/v1/payouts", vendor, map[string]any{"amount": 20000})
	require.Equal(t, http.StatusCreated, w.Code)
	payoutID := decode(t, w)["payoutId"].(string)

	for _, role := range []string{"", "guest"} {
		tok := bearer(t, "mallory", role)

		w = s.do(t, http.MethodGet, "/api/v1/payouts/"+payoutID, tok, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, "role %q read", role)

		w = s.do(t, http.MethodPost, "/api/v1/payouts/"+payoutID+"/cancel", tok, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, "role %q cancel", role)

		w = s.do(t, http.MethodPost, "/api/v1/payouts/"+payoutID+"/retry", tok, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, "role %q retry", role)

		w = s.do(t, http.MethodGet, "/api/v1/balance?accountType=vendor&accountId=vendor-1", tok, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, "role %q balance", role)
	}

	w = s.do(t, http.MethodGet, "/api/v1/payouts/"+payoutID, vendor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "requested", decode(t, w)["status"])

	w = s.do(t, http.MethodGet, "/api/v1/payouts/"+payoutID, bearer(t, "ops", "admin"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPayoutHandler_RequestValidation(t *testing.T) {
	s := newServer(t)
	s.record(t, "bk-70", "vendor-1", 100000)
	vendor := bearer(t, "vendor-1", "vendor")

	t.Run("below minimum", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/payouts", vendor, map[string]any{"amount": 10})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "below_minimum", decode(t, w)["code"])
	})

	t.Run("more than available", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/payouts", vendor, map[string]any{"amount": 90000})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "insufficient_balance", decode(t, w)["code"])
	})

	t.Run("missing amount", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/payouts", vendor, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("garbage amount", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/payouts", vendor, map[string]any{"amount": "lots"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("service tokens cannot request payouts", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/payouts", bearer(t, "bookings", "service"), map[string]any{"amount": "all"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing bank details", func(t *testing.T) {
		s.record(t, "bk-71", "vendor-9", 100000)
		w := s.do(t, http.MethodPost, "/api/v1/payouts", bearer(t, "vendor-9", "vendor"), map[string]any{"amount": "all"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "missing_bank_details", decode(t, w)["code"])
	})
}

func TestWebhookHandler_AcknowledgesUnknownTransfers(t *testing.T) {
	s := newServer(t)
	body := []byte(`{"event":"transfer.success","data":{"domain":"test","transfer_code":"TRF_UNKNOWN"}}`)
	w := s.webhook(t, body, signWebhook(body))
	assert.Equal(t, http.StatusOK, w.Code)

	live := []byte(`{"event":"transfer.success","data":{"domain":"live","transfer_code":"TRF_UNKNOWN"}}`)
	w = s.webhook(t, live, signWebhook(live))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookHandler_OversizedBodyIsUnauthorized(t *testing.T) {
	s := newServer(t)
	body := append([]byte(`{"event":"transfer.success","data":{"note":"`), bytes.Repeat([]byte("x"), maxBodyBytes)...)
	body = append(body, []byte(`"}}`)...)

	w := s.webhook(t, body, signWebhook(body))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	s.record(t, "bk-80", "vendor-1", 100000)

	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ledger_entries_written_total")
}

func TestSwaggerDoc(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "/api/v1", doc.BasePath)
	assert.Contains(t, doc.Paths, "/payouts")
	assert.Contains(t, doc.Paths["/payouts/{payoutId}/cancel"], "post")
	assert.Contains(t, doc.Paths["/webhooks/paystack"], "post")
}
