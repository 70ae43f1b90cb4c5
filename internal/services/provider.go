package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/staybay/backend/internal/config"
	"github.com/staybay/backend/internal/models"
)

type TransferRequest struct {
	Reference string
	Amount    int64
	Currency  string
	Reason    string
	Bank      models.BankSnapshot
}

type TransferResult struct {
	TransferCode  string
	Reference     string
	RecipientCode string
	Status        string
}

// PayoutProvider hands a payout to the payment rail.
type PayoutProvider interface {
	Name() string
	CreateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

// PaystackClient talks to the Paystack transfers API.
type PaystackClient struct {
	secret  string
	baseURL string
	http    *http.Client
}

func NewPaystackClient(cfg config.PaystackConfig) *PaystackClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &PaystackClient{
		secret:  cfg.SecretKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *PaystackClient) Name() string { return "paystack" }

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CreateTransfer registers the recipient when the snapshot has no recipient
// code yet, then initiates the transfer from the platform balance.
func (c *PaystackClient) CreateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	recipient := req.Bank.RecipientCode
	if recipient == "" {
		var data struct {
			RecipientCode string `json:"recipient_code"`
		}
		err := c.post(ctx, "/transferrecipient", map[string]any{
			"type":           "nuban",
			"name":           req.Bank.AccountName,
			"account_number": req.Bank.AccountNumber,
			"bank_code":      req.Bank.BankCode,
			"currency":       req.Currency,
		}, &data)
		if err != nil {
			return nil, fmt.Errorf("create recipient: %w", err)
		}
		recipient = data.RecipientCode
	}

	var data struct {
		TransferCode string `json:"transfer_code"`
		Reference    string `json:"reference"`
		Status       string `json:"status"`
	}
	err := c.post(ctx, "/transfer", map[string]any{
		"source":    "balance",
		"amount":    req.Amount,
		"currency":  req.Currency,
		"recipient": recipient,
		"reason":    req.Reason,
		"reference": req.Reference,
	}, &data)
	if err != nil {
		return nil, fmt.Errorf("initiate transfer: %w", err)
	}

	ref := data.Reference
	if ref == "" {
		ref = req.Reference
	}
	return &TransferResult{TransferCode: data.TransferCode, Reference: ref, RecipientCode: recipient, Status: data.Status}, nil
}

func (c *PaystackClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: status %d, unreadable body", ErrProviderFailed, resp.StatusCode)
	}
	if resp.StatusCode >= 300 || !env.Status {
		return fmt.Errorf("%w: status %d: %s", ErrProviderFailed, resp.StatusCode, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}
