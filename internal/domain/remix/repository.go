package remix

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

type Repository interface {
	Create(ctx context.Context, r *Remix) error
	SetStatus(ctx context.Context, id string, status Status, blobsCopied int, commitSHA, errMsg *string) error
	GetByID(ctx context.Context, id string) (*Remix, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Remix, error)
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// PostgresRepository stores remix records in Postgres.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, remix *Remix) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.db.QueryRowxContext(ctx2, `
		INSERT INTO remixes (id, user_id, source_repo, destination_repo, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, remix.ID, remix.UserID, remix.SourceRepo, remix.DestinationRepo, remix.Status).
		Scan(&remix.CreatedAt, &remix.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: create remix: %v", ErrInternal, err)
	}

	return nil
}

// SetStatus moves a remix to a new status. Terminal transitions only happen
// once per remix because the orchestrator owns the record between create and
// completion.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status Status, blobsCopied int, commitSHA, errMsg *string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE remixes
		SET status = $2, blobs_copied = $3, commit_sha = $4, error_message = $5, updated_at = NOW()
		WHERE id = $1
	`, id, string(status), blobsCopied, commitSHA, errMsg)
	if err != nil {
		return fmt.Errorf("%w: update remix status: %v", ErrInternal, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", ErrInternal, err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Remix, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var remix Remix
	err := r.db.GetContext(ctx2, &remix, `
		SELECT id, user_id, source_repo, destination_repo, status, blobs_copied, commit_sha, error_message, created_at, updated_at
		FROM remixes
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get remix: %v", ErrInternal, err)
	}

	return &remix, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Remix, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	remixes := make([]Remix, 0)
	err := r.db.SelectContext(ctx2, &remixes, `
		SELECT id, user_id, source_repo, destination_repo, status, blobs_copied, commit_sha, error_message, created_at, updated_at
		FROM remixes
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list remixes: %v", ErrInternal, err)
	}

	return remixes, nil
}

// CountCreatedSince counts remix attempts by a user after the given instant.
// All attempts count against the hourly limit, including failed ones.
func (r *PostgresRepository) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	err := r.db.GetContext(ctx2, &count, `
		SELECT COUNT(*) FROM remixes
		WHERE user_id = $1 AND created_at > $2
	`, userID, since)
	if err != nil {
		return 0, fmt.Errorf("%w: count remixes: %v", ErrInternal, err)
	}

	return count, nil
}
