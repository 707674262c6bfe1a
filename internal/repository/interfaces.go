package repository

import (
	"context"

	"github.com/empirewand/wandcore/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// StateRepository persists the single state document.
type StateRepository interface {
	// Load returns the stored document, or nil when nothing has been saved.
	Load(ctx context.Context) (*domain.Document, error)

	// Save replaces the stored document.
	Save(ctx context.Context, doc *domain.Document) error
}
