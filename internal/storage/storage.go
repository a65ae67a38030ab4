// Package storage opens the shared database pool and keeps the recolor history.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HistoryLimit caps how many projects are kept per owner.
const HistoryLimit = 50

// ErrNotFound indicates that a project could not be located in the backing store.
var ErrNotFound = errors.New("project not found")

// ProjectRecord is one finished recolor as shown in the history panel.
type ProjectRecord struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"-"`
	Original      string    `json:"original"`
	Result        string    `json:"result"`
	FurnitureType string    `json:"furniture_type"`
	ColorName     string    `json:"color_name"`
	Hex           string    `json:"hex,omitempty"`
	Strategy      string    `json:"strategy,omitempty"`
	Degraded      bool      `json:"degraded,omitempty"`
	CreatedAt     time.Time `json:"date"`
}

// Store defines the persistence behaviors the history relies on.
type Store interface {
	AddProject(ctx context.Context, input ProjectRecord) (ProjectRecord, error)
	ListProjects(ctx context.Context, ownerID string) ([]ProjectRecord, error)
	DeleteProject(ctx context.Context, ownerID, id string) error
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// NewStore selects a backing store based on whether a pool is provided.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (Store, error) {
	if pool == nil {
		return NewInMemoryStore(), nil
	}
	if err := ensureSchema(ctx, pool); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS projects (
        id TEXT PRIMARY KEY,
        owner_id TEXT NOT NULL,
        original TEXT NOT NULL,
        result TEXT NOT NULL,
        furniture_type TEXT,
        color_name TEXT,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`)
	if err != nil {
		return fmt.Errorf("create projects table: %w", err)
	}

	var schemaAlters = []string{
		`ALTER TABLE projects ADD COLUMN IF NOT EXISTS hex TEXT`,
		`ALTER TABLE projects ADD COLUMN IF NOT EXISTS strategy TEXT`,
		`ALTER TABLE projects ADD COLUMN IF NOT EXISTS degraded BOOLEAN DEFAULT false`,
		`CREATE INDEX IF NOT EXISTS projects_owner_created_idx ON projects (owner_id, created_at DESC)`,
	}
	for _, stmt := range schemaAlters {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("alter projects table: %w", err)
		}
	}

	return nil
}
