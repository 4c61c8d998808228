package credit

import (
	"context"

	"github.com/google/uuid"
)

// Service is the ledger surface the rest of the application consumes.
type Service interface {
	Debit(ctx context.Context, userID uuid.UUID, amount int, meta TxMeta) error
	Add(ctx context.Context, userID uuid.UUID, amount int, txType TxType, meta TxMeta) error
	GetBalance(ctx context.Context, userID uuid.UUID) (int, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error)
}

type service struct {
	repo Repository
}

// NewService creates a new credit service
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Debit atomically deducts credits from a user. Used when a remix succeeds:
// the debit happens only after the copy is confirmed.
func (s *service) Debit(ctx context.Context, userID uuid.UUID, amount int, meta TxMeta) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.repo.Debit(ctx, userID.String(), amount, meta)
}

// Add atomically adds credits to a user.
func (s *service) Add(ctx context.Context, userID uuid.UUID, amount int, txType TxType, meta TxMeta) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.repo.Add(ctx, userID.String(), amount, txType, meta)
}

// GetBalance returns the current credit balance for a user. Consumers always
// query fresh; there is no cached balance anywhere.
func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.GetBalance(ctx, userID.String())
}

// ListTransactions returns paginated ledger history for a user
func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListTransactions(ctx, userID.String(), limit, offset)
}
