package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/remixhub/remixhub-api/internal/pkg/upstream"
)

// Payment statuses reported by the provider.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// Config holds Mercado Pago API configuration
type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// Client represents a Mercado Pago PIX payment client
type Client struct {
	httpClient *http.Client
	config     Config
}

// CreatePaymentRequest represents a PIX payment creation request
type CreatePaymentRequest struct {
	Amount      float64
	Description string
	PayerEmail  string
	PayerName   string
	PayerCPF    string
}

// TransactionData carries the PIX settlement artifacts.
type TransactionData struct {
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
	TicketURL    string `json:"ticket_url"`
}

// Payment is the provider's payment resource, reduced to what we consume.
type Payment struct {
	ID                 int64  `json:"id"`
	Status             string `json:"status"`
	PointOfInteraction struct {
		TransactionData TransactionData `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

// NewClient creates a Mercado Pago API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// CreatePayment creates a PIX payment. An idempotency key is attached so a
// retried request cannot double-charge the payer.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}
	if strings.TrimSpace(c.config.AccessToken) == "" {
		return nil, fmt.Errorf("mercadopago config error: access token is empty")
	}

	cpf := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, req.PayerCPF)

	body := map[string]interface{}{
		"transaction_amount": req.Amount,
		"description":        req.Description,
		"payment_method_id":  "pix",
		"payer": map[string]interface{}{
			"email":      req.PayerEmail,
			"first_name": req.PayerName,
			"identification": map[string]string{
				"type":   "CPF",
				"number": cpf,
			},
		},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mercadopago request: %w", err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/v1/payments"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("mercadopago api call failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	httpReq.Header.Set("X-Idempotency-Key", uuid.New().String())

	return c.send(httpReq)
}

// GetPayment fetches a payment by the provider's payment id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, fmt.Errorf("validation error: payment id must be non-empty")
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/v1/payments/" + paymentID

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("mercadopago api call failed: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.AccessToken)

	return c.send(httpReq)
}

func (c *Client) send(req *http.Request) (*Payment, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mercadopago api call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mercadopago api call failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &upstream.Error{Service: "mercadopago", StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out Payment
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse mercadopago response: %w", err)
	}
	return &out, nil
}
