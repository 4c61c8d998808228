package credit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

type Repository interface {
	Debit(ctx context.Context, userID string, amount int, meta TxMeta) error
	Add(ctx context.Context, userID string, amount int, txType TxType, meta TxMeta) error
	AddTx(ctx context.Context, tx *sqlx.Tx, userID string, amount int, txType TxType, meta TxMeta) error
	GetBalance(ctx context.Context, userID string) (int, error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]Transaction, error)
}

// LedgerRepository provides credit balance and transaction journal operations.
type LedgerRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Debit subtracts amount from the user's balance. The balance check and the
// subtraction are one conditional UPDATE, so the balance can never go
// negative under concurrent debits.
func (r *LedgerRepository) Debit(ctx context.Context, userID string, amount int, meta TxMeta) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx2, `
		UPDATE credits
		SET balance = balance - $2
		WHERE user_id = $1 AND balance >= $2
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("%w: update balance: %v", ErrInternal, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", ErrInternal, err)
	}
	if rows == 0 {
		return ErrInsufficientCredits
	}

	if err := r.insertJournal(ctx2, tx, userID, -amount, TxTypeRemix, meta); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %v", ErrInternal, err)
	}

	return nil
}

// Add increases the user's balance, creating the balance row on first
// purchase.
func (r *LedgerRepository) Add(ctx context.Context, userID string, amount int, txType TxType, meta TxMeta) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	if err := r.AddTx(ctx2, tx, userID, amount, txType, meta); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %v", ErrInternal, err)
	}

	return nil
}

// AddTx increases the balance within an external transaction. Used by the
// payment reconciler so the pending->approved transition and the credit
// grant commit together. Does not commit or rollback; the caller owns tx.
func (r *LedgerRepository) AddTx(ctx context.Context, tx *sqlx.Tx, userID string, amount int, txType TxType, meta TxMeta) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO credits (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = credits.balance + EXCLUDED.balance
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("%w: upsert balance: %v", ErrInternal, err)
	}

	return r.insertJournal(ctx, tx, userID, amount, txType, meta)
}

func (r *LedgerRepository) GetBalance(ctx context.Context, userID string) (int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var balance int
	err := r.db.GetContext(ctx2, &balance, `SELECT balance FROM credits WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: get balance: %v", ErrInternal, err)
	}

	return balance, nil
}

func (r *LedgerRepository) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT id, user_id, amount_delta, tx_type, related_entity_type, related_entity_id, description, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", ErrInternal, err)
	}

	return transactions, nil
}

func (r *LedgerRepository) insertJournal(ctx context.Context, tx *sqlx.Tx, userID string, amountDelta int, txType TxType, meta TxMeta) error {
	if txType != TxTypeRemix && txType != TxTypePurchase && txType != TxTypeGrant {
		return ErrInternal
	}

	if strings.TrimSpace(meta.Description) == "" {
		meta.Description = "credit balance adjustment"
	}

	var entityType, entityID *string
	if meta.RelatedEntityType != "" {
		entityType = &meta.RelatedEntityType
	}
	if meta.RelatedEntityID != "" {
		entityID = &meta.RelatedEntityID
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (
			id, user_id, amount_delta, tx_type, related_entity_type, related_entity_id, description
		)
		VALUES (
			gen_random_uuid(), $1, $2, $3, $4, $5, $6
		)
	`, userID, amountDelta, string(txType), entityType, entityID, meta.Description)
	if err != nil {
		return fmt.Errorf("%w: insert transaction: %v", ErrInternal, err)
	}

	return nil
}
