package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/remixhub/remixhub-api/internal/domain/credit"
)

const queryTimeout = 3 * time.Second

// Ledger is the slice of the credit ledger the payment repository needs to
// grant purchased credits inside its own transaction.
type Ledger interface {
	AddTx(ctx context.Context, tx *sqlx.Tx, userID string, amount int, txType credit.TxType, meta credit.TxMeta) error
}

type Repository interface {
	CreatePending(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByProviderPaymentID(ctx context.Context, providerID string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	ApproveAndCredit(ctx context.Context, o *Order) (bool, error)
	CancelIfPending(ctx context.Context, id string) (bool, error)
	CancelExpired(ctx context.Context, now time.Time) (int64, error)
}

// PostgresRepository stores payment orders in Postgres.
type PostgresRepository struct {
	db     *sqlx.DB
	ledger Ledger
}

func NewRepository(db *sqlx.DB, ledger Ledger) *PostgresRepository {
	return &PostgresRepository{db: db, ledger: ledger}
}

func (r *PostgresRepository) CreatePending(ctx context.Context, o *Order) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.db.QueryRowxContext(ctx2, `
		INSERT INTO payments (
			id, user_id, amount, credits_purchased, status,
			provider_payment_id, qr_code, qr_code_base64, ticket_url, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, o.ID, o.UserID, o.Amount, o.CreditsPurchased, string(o.Status),
		o.ProviderPaymentID, o.QRCode, o.QRCodeBase64, o.TicketURL, o.ExpiresAt).
		Scan(&o.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: create payment: %v", ErrInternal, err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByProviderPaymentID(ctx context.Context, providerID string) (*Order, error) {
	return r.getOne(ctx, `WHERE provider_payment_id = $1`, providerID)
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg interface{}) (*Order, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var o Order
	err := r.db.GetContext(ctx2, &o, `
		SELECT id, user_id, amount, credits_purchased, status, provider_payment_id,
		       qr_code, qr_code_base64, ticket_url, expires_at, approved_at, cancelled_at, created_at
		FROM payments
	`+where, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("%w: get payment: %v", ErrInternal, err)
	}

	return &o, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	orders := make([]Order, 0)
	err := r.db.SelectContext(ctx2, &orders, `
		SELECT id, user_id, amount, credits_purchased, status, provider_payment_id,
		       qr_code, qr_code_base64, ticket_url, expires_at, approved_at, cancelled_at, created_at
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list payments: %v", ErrInternal, err)
	}

	return orders, nil
}

// ApproveAndCredit moves a pending order to approved and grants its credits
// in one transaction. The conditional UPDATE is the arbitration point between
// the poll path and the webhook path: only the caller that wins the
// pending->approved transition grants credits, so duplicates are harmless.
// Returns false when the order was no longer pending.
func (r *PostgresRepository) ApproveAndCredit(ctx context.Context, o *Order) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx2, `
		UPDATE payments
		SET status = 'approved', approved_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, o.ID)
	if err != nil {
		return false, fmt.Errorf("%w: approve payment: %v", ErrInternal, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", ErrInternal, err)
	}
	if rows == 0 {
		return false, nil
	}

	err = r.ledger.AddTx(ctx2, tx, o.UserID, o.CreditsPurchased, credit.TxTypePurchase, credit.TxMeta{
		RelatedEntityType: "payment",
		RelatedEntityID:   o.ID,
		Description:       fmt.Sprintf("Purchase of %d credits via PIX", o.CreditsPurchased),
	})
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit tx: %v", ErrInternal, err)
	}

	return true, nil
}

// CancelIfPending moves a pending order to cancelled. Returns false when the
// order was already terminal.
func (r *PostgresRepository) CancelIfPending(ctx context.Context, id string) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE payments
		SET status = 'cancelled', cancelled_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, fmt.Errorf("%w: cancel payment: %v", ErrInternal, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", ErrInternal, err)
	}

	return rows > 0, nil
}

// CancelExpired cancels every pending order whose payment window has closed.
func (r *PostgresRepository) CancelExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE payments
		SET status = 'cancelled', cancelled_at = NOW()
		WHERE status = 'pending' AND expires_at < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("%w: cancel expired payments: %v", ErrInternal, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %v", ErrInternal, err)
	}

	return rows, nil
}
