package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/empirewand/wandcore/internal/domain"
	"github.com/jackc/pgx/v5"
)

type pgStateRepo struct {
	db DBTX
}

// NewPostgresStateRepository returns a pgx-backed StateRepository.
func NewPostgresStateRepository(db DBTX) StateRepository {
	return &pgStateRepo{db: db}
}

func (r *pgStateRepo) Load(ctx context.Context) (*domain.Document, error) {
	var doc domain.Document
	var payload string
	err := r.db.QueryRow(ctx, `SELECT version, payload FROM wand_state WHERE id = 1`).Scan(&doc.Version, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load wand state: %w", err)
	}
	doc.Payload = []byte(payload)
	return &doc, nil
}

func (r *pgStateRepo) Save(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO wand_state (id, version, payload, updated_at)
		VALUES (1, $1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET version = EXCLUDED.version, payload = EXCLUDED.payload, updated_at = now()`,
		doc.Version, string(doc.Payload))
	if err != nil {
		return fmt.Errorf("save wand state: %w", err)
	}
	return nil
}
