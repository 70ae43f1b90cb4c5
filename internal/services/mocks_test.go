package services

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/staybay/backend/internal/config"
	"github.com/staybay/backend/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) CreateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TransferResult), args.Error(1)
}

type MockBankDirectory struct {
	mock.Mock
}

func (m *MockBankDirectory) BankDetails(ctx context.Context, payee models.Account) (*models.BankSnapshot, error) {
	args := m.Called(ctx, payee)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BankSnapshot), args.Error(1)
}

type MockEarningsMirror struct {
	mock.Mock
}

func (m *MockEarningsMirror) RecordReversal(ctx context.Context, original, reversal models.LedgerEntry) error {
	args := m.Called(ctx, original, reversal)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PayoutChanged(ctx context.Context, ev PayoutEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func testTelemetry() Telemetry {
	return NewTelemetry(zerolog.Nop(), prometheus.NewRegistry())
}

func testMaturityConfig() config.MaturityConfig {
	return config.MaturityConfig{Policy: "checkout", UserPolicy: "checkout", BufferHours: 48}
}

func testBank() *models.BankSnapshot {
	return &models.BankSnapshot{BankCode: "058", BankName: "GTBank", AccountNumber: "0123456789", AccountName: "Ada Obi"}
}

// fixedClock returns a settable clock for services that take a now func.
type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }
