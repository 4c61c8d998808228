package payment

import "time"

// Status defines payment order lifecycle states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCancelled Status = "cancelled"
)

// Order is one PIX credit purchase. Orders transition from pending to exactly
// one terminal status; a cancelled order is never resurrected.
type Order struct {
	ID                string     `db:"id" json:"id"`
	UserID            string     `db:"user_id" json:"user_id"`
	Amount            float64    `db:"amount" json:"amount"`
	CreditsPurchased  int        `db:"credits_purchased" json:"credits_purchased"`
	Status            Status     `db:"status" json:"status"`
	ProviderPaymentID string     `db:"provider_payment_id" json:"provider_payment_id"`
	QRCode            string     `db:"qr_code" json:"qr_code,omitempty"`
	QRCodeBase64      string     `db:"qr_code_base64" json:"qr_code_base64,omitempty"`
	TicketURL         string     `db:"ticket_url" json:"ticket_url,omitempty"`
	ExpiresAt         time.Time  `db:"expires_at" json:"expires_at"`
	ApprovedAt        *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	CancelledAt       *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// IsExpired reports whether a pending order has outlived its payment window.
func (o *Order) IsExpired(now time.Time) bool {
	return o.Status == StatusPending && now.After(o.ExpiresAt)
}
