package remix

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/remixhub/remixhub-api/internal/domain/credit"
)

type fakeRemixRepo struct {
	records      map[string]*Remix
	recentCount  int
	statusCalls  []Status
	lastErrMsg   *string
	lastCommit   *string
	lastBlobsSet int
}

func newFakeRemixRepo() *fakeRemixRepo {
	return &fakeRemixRepo{records: map[string]*Remix{}}
}

func (f *fakeRemixRepo) Create(ctx context.Context, r *Remix) error {
	r.CreatedAt = time.Now()
	f.records[r.ID] = r
	return nil
}

func (f *fakeRemixRepo) SetStatus(ctx context.Context, id string, status Status, blobsCopied int, commitSHA, errMsg *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, ok := f.records[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	r.BlobsCopied = blobsCopied
	f.statusCalls = append(f.statusCalls, status)
	f.lastErrMsg = errMsg
	f.lastCommit = commitSHA
	f.lastBlobsSet = blobsCopied
	return nil
}

func (f *fakeRemixRepo) GetByID(ctx context.Context, id string) (*Remix, error) {
	if r, ok := f.records[id]; ok {
		return r, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRemixRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Remix, error) {
	out := make([]Remix, 0)
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRemixRepo) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	return f.recentCount, nil
}

type fakeCredits struct {
	balance  int
	debits   int
	debitErr error
}

func (f *fakeCredits) Debit(ctx context.Context, userID uuid.UUID, amount int, meta credit.TxMeta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.debitErr != nil {
		return f.debitErr
	}
	f.balance -= amount
	f.debits++
	return nil
}

func (f *fakeCredits) Add(ctx context.Context, userID uuid.UUID, amount int, txType credit.TxType, meta credit.TxMeta) error {
	f.balance += amount
	return nil
}

func (f *fakeCredits) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	return f.balance, nil
}

func (f *fakeCredits) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]credit.Transaction, error) {
	return nil, nil
}

type fakeCopier struct {
	result *CopyResult
	err    error
	calls  int
	onCopy func(ctx context.Context)
}

func (f *fakeCopier) Copy(ctx context.Context, in CopyInput) (*CopyResult, error) {
	f.calls++
	if f.onCopy != nil {
		f.onCopy(ctx)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return f.result, nil
}

func validRequest() CreateRemixRequest {
	return CreateRemixRequest{
		SourceRepo:  "https://github.com/alice/src",
		DestRepo:    "https://github.com/bob/dst",
		GitHubToken: "token-a",
		DestToken:   "token-b",
	}
}

func TestCreateDebitsOnlyAfterSuccess(t *testing.T) {
	repo := newFakeRemixRepo()
	credits := &fakeCredits{balance: 3}
	copier := &fakeCopier{result: &CopyResult{BlobsCopied: 7, BlobsTotal: 7, CommitSHA: "abc123", Branch: "main"}}
	svc := NewService(repo, copier, credits, ServiceConfig{HourlyLimit: 5, CopyTimeout: time.Minute})

	resp, err := svc.Create(context.Background(), uuid.New(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Remix.Status != StatusSuccess {
		t.Fatalf("expected success status, got %s", resp.Remix.Status)
	}
	if credits.debits != 1 || credits.balance != 2 {
		t.Fatalf("expected exactly one debit, got debits=%d balance=%d", credits.debits, credits.balance)
	}
	if repo.lastCommit == nil || *repo.lastCommit != "abc123" {
		t.Fatalf("expected commit sha recorded, got %v", repo.lastCommit)
	}
}

func TestCreateNoDebitOnCopyFailure(t *testing.T) {
	repo := newFakeRemixRepo()
	credits := &fakeCredits{balance: 3}
	copier := &fakeCopier{err: errors.New("update destination ref: boom")}
	svc := NewService(repo, copier, credits, ServiceConfig{})

	_, err := svc.Create(context.Background(), uuid.New(), validRequest())
	if err == nil {
		t.Fatal("expected error")
	}

	if credits.debits != 0 || credits.balance != 3 {
		t.Fatalf("expected no debit on failure, got debits=%d balance=%d", credits.debits, credits.balance)
	}
	if len(repo.statusCalls) != 1 || repo.statusCalls[0] != StatusError {
		t.Fatalf("expected error status recorded, got %v", repo.statusCalls)
	}
	if repo.lastErrMsg == nil || *repo.lastErrMsg == "" {
		t.Fatal("expected error message recorded")
	}
}

func TestCreateRecordsFailureAfterClientDisconnect(t *testing.T) {
	repo := newFakeRemixRepo()
	credits := &fakeCredits{balance: 3}

	ctx, disconnect := context.WithCancel(context.Background())
	copier := &fakeCopier{onCopy: func(c context.Context) { disconnect() }}
	svc := NewService(repo, copier, credits, ServiceConfig{})

	_, err := svc.Create(ctx, uuid.New(), validRequest())
	if err == nil {
		t.Fatal("expected error")
	}

	if len(repo.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(repo.records))
	}
	for _, r := range repo.records {
		if r.Status != StatusError {
			t.Fatalf("remix left in %s after client disconnect", r.Status)
		}
	}
	if repo.lastErrMsg == nil {
		t.Fatal("expected error message recorded despite cancelled request context")
	}
}

func TestCreateDebitsAfterClientDisconnect(t *testing.T) {
	repo := newFakeRemixRepo()
	credits := &fakeCredits{balance: 3}

	ctx, disconnect := context.WithCancel(context.Background())
	copier := &fakeCopier{
		result: &CopyResult{BlobsCopied: 1, BlobsTotal: 1, CommitSHA: "sha"},
		// Copy finishes, then the client goes away before bookkeeping.
		onCopy: func(c context.Context) { disconnect() },
	}
	svc := NewService(repo, copier, credits, ServiceConfig{})

	resp, err := svc.Create(ctx, uuid.New(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.records[resp.Remix.ID].Status != StatusSuccess {
		t.Fatalf("expected success recorded, got %s", repo.records[resp.Remix.ID].Status)
	}
	if credits.debits != 1 {
		t.Fatalf("expected debit despite cancelled request context, got %d", credits.debits)
	}
}

func TestCreateRejectsWhenRateLimited(t *testing.T) {
	repo := newFakeRemixRepo()
	repo.recentCount = 5
	credits := &fakeCredits{balance: 10}
	copier := &fakeCopier{}
	svc := NewService(repo, copier, credits, ServiceConfig{HourlyLimit: 5})

	_, err := svc.Create(context.Background(), uuid.New(), validRequest())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if copier.calls != 0 {
		t.Fatal("copier must not run when rate limited")
	}
	if len(repo.records) != 0 {
		t.Fatal("no record should be created when rate limited")
	}
}

func TestCreateRejectsWithoutBalance(t *testing.T) {
	repo := newFakeRemixRepo()
	credits := &fakeCredits{balance: 0}
	copier := &fakeCopier{}
	svc := NewService(repo, copier, credits, ServiceConfig{})

	_, err := svc.Create(context.Background(), uuid.New(), validRequest())
	if !errors.Is(err, credit.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if copier.calls != 0 {
		t.Fatal("copier must not run without balance")
	}
}

func TestCreateRequiresDestTokenForCrossAccount(t *testing.T) {
	repo := newFakeRemixRepo()
	credits := &fakeCredits{balance: 1}
	svc := NewService(repo, &fakeCopier{}, credits, ServiceConfig{})

	req := validRequest()
	req.DestToken = ""
	req.SameAccount = false

	_, err := svc.Create(context.Background(), uuid.New(), req)
	if !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestCreateSameAccountReusesToken(t *testing.T) {
	repo := newFakeRemixRepo()
	credits := &fakeCredits{balance: 1}
	copier := &fakeCopier{result: &CopyResult{BlobsCopied: 1, BlobsTotal: 1, CommitSHA: "sha"}}
	svc := NewService(repo, copier, credits, ServiceConfig{})

	req := validRequest()
	req.DestToken = ""
	req.SameAccount = true

	if _, err := svc.Create(context.Background(), uuid.New(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateRejectsInvalidURLs(t *testing.T) {
	svc := NewService(newFakeRemixRepo(), &fakeCopier{}, &fakeCredits{balance: 1}, ServiceConfig{})

	req := validRequest()
	req.SourceRepo = "https://example.com/not/github"

	_, err := svc.Create(context.Background(), uuid.New(), req)
	if !errors.Is(err, ErrInvalidRepoURL) {
		t.Fatalf("expected ErrInvalidRepoURL, got %v", err)
	}
}

func TestGetByIDScopedToOwner(t *testing.T) {
	repo := newFakeRemixRepo()
	owner := uuid.New()
	record := &Remix{ID: uuid.New().String(), UserID: owner.String(), Status: StatusSuccess}
	repo.records[record.ID] = record

	svc := NewService(repo, &fakeCopier{}, &fakeCredits{}, ServiceConfig{})

	if _, err := svc.GetByID(context.Background(), owner, record.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.GetByID(context.Background(), uuid.New(), record.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
}
