package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	createSettingsTable = `
		CREATE TABLE IF NOT EXISTS ctrl_settings (
			id         INT PRIMARY KEY,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`

	selectSettings = `SELECT data FROM ctrl_settings WHERE id = 1`

	upsertSettings = `
		INSERT INTO ctrl_settings (id, data, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`
)

// Querier is the subset of *pgxpool.Pool the persister uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresPersister keeps the blob in a single JSONB row.
type PostgresPersister struct {
	db Querier
}

// NewPostgresPersister ensures the settings table exists.
func NewPostgresPersister(ctx context.Context, db Querier) (*PostgresPersister, error) {
	if _, err := db.Exec(ctx, createSettingsTable); err != nil {
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}
	return &PostgresPersister{db: db}, nil
}

func (p *PostgresPersister) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := p.db.QueryRow(ctx, selectSettings).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoBlob
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	return data, nil
}

func (p *PostgresPersister) Save(ctx context.Context, data []byte) error {
	if _, err := p.db.Exec(ctx, upsertSettings, data); err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}
	return nil
}
