package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists projects in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// AddProject stores the project and trims the owner's list to HistoryLimit.
func (s *PostgresStore) AddProject(ctx context.Context, input ProjectRecord) (ProjectRecord, error) {
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now().UTC()
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, owner_id, original, result, furniture_type, color_name, hex, strategy, degraded, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		input.ID, input.OwnerID, input.Original, input.Result, input.FurnitureType, input.ColorName,
		input.Hex, input.Strategy, input.Degraded, input.CreatedAt); err != nil {
		return ProjectRecord{}, fmt.Errorf("insert project: %w", err)
	}

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM projects WHERE owner_id = $1 AND id NOT IN (
            SELECT id FROM projects WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2)`,
		input.OwnerID, HistoryLimit); err != nil {
		return ProjectRecord{}, fmt.Errorf("trim projects: %w", err)
	}

	return input, nil
}

// ListProjects returns the most recent projects of an owner.
func (s *PostgresStore) ListProjects(ctx context.Context, ownerID string) ([]ProjectRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, original, result, COALESCE(furniture_type, ''), COALESCE(color_name, ''),
                COALESCE(hex, ''), COALESCE(strategy, ''), COALESCE(degraded, false), created_at
         FROM projects WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2`, ownerID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	projects := []ProjectRecord{}
	for rows.Next() {
		var item ProjectRecord
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.Original, &item.Result, &item.FurnitureType,
			&item.ColorName, &item.Hex, &item.Strategy, &item.Degraded, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	return projects, nil
}

// DeleteProject removes a project owned by ownerID.
func (s *PostgresStore) DeleteProject(ctx context.Context, ownerID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
