package remix

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/remixhub/remixhub-api/internal/domain/credit"
)

const maxErrorMessageLen = 500

// copyRunner runs a single repository copy.
type copyRunner interface {
	Copy(ctx context.Context, in CopyInput) (*CopyResult, error)
}

// Service orchestrates remix creation and history.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, req CreateRemixRequest) (*CreateRemixResponse, error)
	GetByID(ctx context.Context, userID uuid.UUID, id string) (*Remix, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Remix, error)
}

// ServiceConfig tunes the orchestrator.
type ServiceConfig struct {
	// HourlyLimit caps remix attempts per user per trailing hour.
	HourlyLimit int

	// CopyTimeout bounds one full copy operation.
	CopyTimeout time.Duration
}

type service struct {
	repo    Repository
	copier  copyRunner
	credits credit.Service
	cfg     ServiceConfig
}

// NewService creates the remix orchestrator.
func NewService(repo Repository, copier copyRunner, credits credit.Service, cfg ServiceConfig) Service {
	if cfg.HourlyLimit <= 0 {
		cfg.HourlyLimit = 5
	}
	if cfg.CopyTimeout <= 0 {
		cfg.CopyTimeout = 3 * time.Minute
	}
	return &service{repo: repo, copier: copier, credits: credits, cfg: cfg}
}

// Create runs one remix synchronously. The credit is debited only after the
// copy is confirmed on the destination; a failed copy costs nothing. Every
// attempt counts against the hourly limit, successful or not.
func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateRemixRequest) (*CreateRemixResponse, error) {
	source, err := ParseRepoURL(req.SourceRepo)
	if err != nil {
		return nil, err
	}
	dest, err := ParseRepoURL(req.DestRepo)
	if err != nil {
		return nil, err
	}

	destToken := req.GitHubToken
	if !req.SameAccount {
		if req.DestToken == "" {
			return nil, ErrMissingToken
		}
		destToken = req.DestToken
	}

	since := time.Now().Add(-time.Hour)
	count, err := s.repo.CountCreatedSince(ctx, userID.String(), since)
	if err != nil {
		return nil, err
	}
	if count >= s.cfg.HourlyLimit {
		return nil, ErrRateLimited
	}

	balance, err := s.credits.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance < 1 {
		return nil, credit.ErrInsufficientCredits
	}

	record := &Remix{
		ID:              uuid.New().String(),
		UserID:          userID.String(),
		SourceRepo:      source.String(),
		DestinationRepo: dest.String(),
		Status:          StatusProcessing,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}

	copyCtx, cancel := context.WithTimeout(ctx, s.cfg.CopyTimeout)
	defer cancel()

	result, copyErr := s.copier.Copy(copyCtx, CopyInput{
		Source:      source,
		Destination: dest,
		SourceToken: req.GitHubToken,
		DestToken:   destToken,
	})

	// The request context dies with the client connection; terminal status
	// and billing must still land so the row cannot stay processing forever.
	persistCtx := context.WithoutCancel(ctx)

	if copyErr != nil {
		msg := truncate(copyErr.Error(), maxErrorMessageLen)
		if err := s.repo.SetStatus(persistCtx, record.ID, StatusError, 0, nil, &msg); err != nil {
			log.Error().Err(err).Str("remix_id", record.ID).Msg("failed to record remix failure")
		}
		return nil, fmt.Errorf("remix failed: %w", copyErr)
	}

	if err := s.repo.SetStatus(persistCtx, record.ID, StatusSuccess, result.BlobsCopied, &result.CommitSHA, nil); err != nil {
		log.Error().Err(err).Str("remix_id", record.ID).Msg("failed to record remix success")
	}
	record.Status = StatusSuccess
	record.BlobsCopied = result.BlobsCopied
	record.CommitSHA = &result.CommitSHA

	// Copy confirmed, charge now. A debit failure here means the user got a
	// free remix; log it loudly rather than undo a successful copy.
	err = s.credits.Debit(persistCtx, userID, 1, credit.TxMeta{
		RelatedEntityType: "remix",
		RelatedEntityID:   record.ID,
		Description:       fmt.Sprintf("Remix %s -> %s", source, dest),
	})
	if err != nil {
		log.Error().Err(err).
			Str("remix_id", record.ID).
			Str("user_id", userID.String()).
			Msg("credit debit failed after successful remix")
	}

	return &CreateRemixResponse{
		Remix:       record,
		BlobsCopied: result.BlobsCopied,
		BlobsTotal:  result.BlobsTotal,
		CommitSHA:   result.CommitSHA,
	}, nil
}

func (s *service) GetByID(ctx context.Context, userID uuid.UUID, id string) (*Remix, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.UserID != userID.String() {
		return nil, ErrNotFound
	}
	return record, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Remix, error) {
	return s.repo.ListByUser(ctx, userID.String(), limit, offset)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
