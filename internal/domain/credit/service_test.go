package credit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/remixhub/remixhub-api/internal/domain/credit"
)

type fakeRepo struct {
	balances map[string]int
	journal  []string
	debitErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{balances: map[string]int{}}
}

func (f *fakeRepo) Debit(ctx context.Context, userID string, amount int, meta credit.TxMeta) error {
	if f.debitErr != nil {
		return f.debitErr
	}
	if f.balances[userID] < amount {
		return credit.ErrInsufficientCredits
	}
	f.balances[userID] -= amount
	f.journal = append(f.journal, "debit")
	return nil
}

func (f *fakeRepo) Add(ctx context.Context, userID string, amount int, txType credit.TxType, meta credit.TxMeta) error {
	f.balances[userID] += amount
	f.journal = append(f.journal, string(txType))
	return nil
}

func (f *fakeRepo) AddTx(ctx context.Context, tx *sqlx.Tx, userID string, amount int, txType credit.TxType, meta credit.TxMeta) error {
	return f.Add(ctx, userID, amount, txType, meta)
}

func (f *fakeRepo) GetBalance(ctx context.Context, userID string) (int, error) {
	return f.balances[userID], nil
}

func (f *fakeRepo) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]credit.Transaction, error) {
	return nil, nil
}

func TestDebitRejectsInvalidAmount(t *testing.T) {
	svc := credit.NewService(newFakeRepo())

	if err := svc.Debit(context.Background(), uuid.New(), 0, credit.TxMeta{}); !errors.Is(err, credit.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := svc.Add(context.Background(), uuid.New(), -1, credit.TxTypePurchase, credit.TxMeta{}); !errors.Is(err, credit.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestDebitInsufficientBalance(t *testing.T) {
	repo := newFakeRepo()
	svc := credit.NewService(repo)
	userID := uuid.New()

	err := svc.Debit(context.Background(), userID, 1, credit.TxMeta{Description: "remix"})
	if !errors.Is(err, credit.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	balance, err := svc.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected balance 0, got %d", balance)
	}
}

func TestAddThenDebit(t *testing.T) {
	repo := newFakeRepo()
	svc := credit.NewService(repo)
	userID := uuid.New()

	if err := svc.Add(context.Background(), userID, 10, credit.TxTypePurchase, credit.TxMeta{Description: "purchase"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Debit(context.Background(), userID, 1, credit.TxMeta{Description: "remix"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	balance, err := svc.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 9 {
		t.Fatalf("expected balance 9, got %d", balance)
	}
	if len(repo.journal) != 2 {
		t.Fatalf("expected 2 journal entries, got %d", len(repo.journal))
	}
}
