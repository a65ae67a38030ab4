package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the catalog in PostgreSQL. The pool is owned by the caller.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore ensures the catalog tables exist and returns a store on pool.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if err := ensureSchema(ctx, pool); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS categories (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL UNIQUE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
		`CREATE TABLE IF NOT EXISTS palettes (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        hex TEXT NOT NULL,
        category TEXT NOT NULL,
        finish TEXT NOT NULL DEFAULT 'matte',
        image_url TEXT,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
		`ALTER TABLE palettes ADD COLUMN IF NOT EXISTS image_url TEXT`,
		`CREATE INDEX IF NOT EXISTS palettes_category_idx ON palettes (category)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("catalog: ensure schema: %w", err)
		}
	}
	return nil
}

const swatchColumns = `id, name, hex, category, finish, image_url, created_at`

func scanSwatch(row pgx.Row) (Swatch, error) {
	var s Swatch
	var finish string
	if err := row.Scan(&s.ID, &s.Name, &s.Hex, &s.Category, &finish, &s.ImageURL, &s.CreatedAt); err != nil {
		return Swatch{}, err
	}
	s.Finish = Finish(finish)
	return s, nil
}

// ListSwatches returns swatches oldest first.
func (s *PostgresStore) ListSwatches(ctx context.Context) ([]Swatch, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+swatchColumns+` FROM palettes ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("catalog: query swatches: %w", err)
	}
	defer rows.Close()

	swatches := []Swatch{}
	for rows.Next() {
		item, err := scanSwatch(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan swatch: %w", err)
		}
		swatches = append(swatches, item)
	}
	return swatches, rows.Err()
}

// CreateSwatch inserts a swatch.
func (s *PostgresStore) CreateSwatch(ctx context.Context, in Swatch) (Swatch, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO palettes (id, name, hex, category, finish, image_url, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+swatchColumns,
		in.ID, in.Name, in.Hex, in.Category, string(in.Finish), in.ImageURL, in.CreatedAt)
	out, err := scanSwatch(row)
	if err != nil {
		return Swatch{}, fmt.Errorf("catalog: insert swatch: %w", err)
	}
	return out, nil
}

// UpdateSwatch applies patch in one statement.
func (s *PostgresStore) UpdateSwatch(ctx context.Context, id string, patch SwatchPatch) (Swatch, error) {
	var finish *string
	if patch.Finish != nil {
		f := string(*patch.Finish)
		finish = &f
	}
	setImage := patch.ImageURL != nil
	image := ""
	if setImage {
		image = *patch.ImageURL
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE palettes SET
            name = COALESCE($2, name),
            hex = COALESCE($3, hex),
            category = COALESCE($4, category),
            finish = COALESCE($5, finish),
            image_url = CASE WHEN $6::boolean THEN NULLIF($7, '') ELSE image_url END
         WHERE id = $1 RETURNING `+swatchColumns,
		id, patch.Name, patch.Hex, patch.Category, finish, setImage, image)
	out, err := scanSwatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Swatch{}, ErrNotFound
	}
	if err != nil {
		return Swatch{}, fmt.Errorf("catalog: update swatch: %w", err)
	}
	return out, nil
}

// DeleteSwatch removes a swatch.
func (s *PostgresStore) DeleteSwatch(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM palettes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete swatch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCategories returns categories oldest first.
func (s *PostgresStore) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM categories ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("catalog: query categories: %w", err)
	}
	defer rows.Close()

	categories := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateCategory inserts a category.
func (s *PostgresStore) CreateCategory(ctx context.Context, c Category) (Category, error) {
	_, err := s.pool.Exec(ctx, `INSERT INTO categories (id, name, created_at) VALUES ($1, $2, $3)`, c.ID, c.Name, c.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Category{}, ErrCategoryExists
	}
	if err != nil {
		return Category{}, fmt.Errorf("catalog: insert category: %w", err)
	}
	return c, nil
}

// DeleteCategory removes a category.
func (s *PostgresStore) DeleteCategory(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountSwatchesInCategory counts swatches labelled name.
func (s *PostgresStore) CountSwatchesInCategory(ctx context.Context, name string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM palettes WHERE category = $1`, name).Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog: count swatches: %w", err)
	}
	return n, nil
}
