package remix

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
)

type failingDriver struct{}

func (failingDriver) Open(string) (driver.Conn, error) { return failingConn{}, nil }

type failingConn struct{}

func (failingConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("pq: connection reset by peer")
}
func (failingConn) Close() error              { return nil }
func (failingConn) Begin() (driver.Tx, error) { return nil, errors.New("pq: connection reset by peer") }

func init() { sql.Register("failing-remix", failingDriver{}) }

func newFailingDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sql.Open("failing-remix", "")
	if err != nil {
		t.Fatalf("open failing db: %v", err)
	}
	return sqlx.NewDb(db, "postgres")
}

func TestRepositoryErrorsKeepDatabaseCause(t *testing.T) {
	repo := NewRepository(newFailingDB(t))
	ctx := context.Background()

	err := repo.Create(ctx, &Remix{ID: "r1", Status: StatusProcessing})
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("database cause lost: %v", err)
	}

	err = repo.SetStatus(ctx, "r1", StatusError, 0, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("database cause lost: %v", err)
	}

	_, err = repo.CountCreatedSince(ctx, "u1", time.Now().Add(-time.Hour))
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("database cause lost: %v", err)
	}
}
