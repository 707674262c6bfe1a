package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/empirewand/wandcore/internal/domain"
)

// SQLiteStateRepository stores the state document in a SQLite database.
type SQLiteStateRepository struct {
	db *sql.DB
}

// NewSQLiteStateRepository wraps an open SQLite handle. The wand_state table
// must already exist.
func NewSQLiteStateRepository(db *sql.DB) *SQLiteStateRepository {
	return &SQLiteStateRepository{db: db}
}

func (r *SQLiteStateRepository) Load(ctx context.Context) (*domain.Document, error) {
	var doc domain.Document
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT version, payload FROM wand_state WHERE id = 1`).Scan(&doc.Version, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load wand state: %w", err)
	}
	doc.Payload = []byte(payload)
	return &doc, nil
}

func (r *SQLiteStateRepository) Save(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO wand_state (id, version, payload, updated_at)
		VALUES (1, ?, ?, CURRENT_TIMESTAMP)`,
		doc.Version, string(doc.Payload))
	if err != nil {
		return fmt.Errorf("save wand state: %w", err)
	}
	return nil
}
