package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps accounts in the app_users table. The pool is owned by the caller.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore ensures app_users exists and returns a store on pool.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS app_users (
        id TEXT PRIMARY KEY,
        username TEXT NOT NULL UNIQUE,
        password TEXT NOT NULL,
        credits INTEGER NOT NULL DEFAULT 0 CHECK (credits >= 0),
        is_admin BOOLEAN NOT NULL DEFAULT false,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
		`ALTER TABLE app_users ADD COLUMN IF NOT EXISTS is_admin BOOLEAN NOT NULL DEFAULT false`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("account: ensure schema: %w", err)
		}
	}
	return &PostgresStore{pool: pool}, nil
}

const accountColumns = `id, username, password, credits, is_admin, created_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Username, &a.Password, &a.Credits, &a.IsAdmin, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	return a, err
}

// GetByUsername finds an account by exact username.
func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM app_users WHERE username = $1`, username))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Account{}, fmt.Errorf("account: get by username: %w", err)
	}
	return a, err
}

// GetByID finds an account by id.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM app_users WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Account{}, fmt.Errorf("account: get by id: %w", err)
	}
	return a, err
}

// Create inserts an account.
func (s *PostgresStore) Create(ctx context.Context, a Account) (Account, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO app_users (id, username, password, credits, is_admin, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Username, a.Password, a.Credits, a.IsAdmin, a.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Account{}, ErrExists
	}
	if err != nil {
		return Account{}, fmt.Errorf("account: insert: %w", err)
	}
	return a, nil
}

// List returns every account oldest first.
func (s *PostgresStore) List(ctx context.Context) ([]Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM app_users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("account: list: %w", err)
	}
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("account: scan: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// DeductCredit decrements in a single conditional update so concurrent
// callers can never push the balance below zero.
func (s *PostgresStore) DeductCredit(ctx context.Context, id string) (int, error) {
	var credits int
	err := s.pool.QueryRow(ctx,
		`UPDATE app_users SET credits = credits - 1 WHERE id = $1 AND credits > 0 RETURNING credits`, id).Scan(&credits)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return 0, getErr
		}
		return 0, ErrInsufficientCredits
	}
	if err != nil {
		return 0, fmt.Errorf("account: deduct credit: %w", err)
	}
	return credits, nil
}

// RefundCredit increments the balance.
func (s *PostgresStore) RefundCredit(ctx context.Context, id string) (int, error) {
	var credits int
	err := s.pool.QueryRow(ctx, `UPDATE app_users SET credits = credits + 1 WHERE id = $1 RETURNING credits`, id).Scan(&credits)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("account: refund credit: %w", err)
	}
	return credits, nil
}

// SetCredits overwrites the balance.
func (s *PostgresStore) SetCredits(ctx context.Context, id string, credits int) error {
	return s.exec(ctx, `UPDATE app_users SET credits = $2 WHERE id = $1`, id, credits)
}

// SetAdmin toggles the admin flag.
func (s *PostgresStore) SetAdmin(ctx context.Context, id string, admin bool) error {
	return s.exec(ctx, `UPDATE app_users SET is_admin = $2 WHERE id = $1`, id, admin)
}

// UpdatePassword stores a new password value.
func (s *PostgresStore) UpdatePassword(ctx context.Context, id string, password string) error {
	return s.exec(ctx, `UPDATE app_users SET password = $2 WHERE id = $1`, id, password)
}

func (s *PostgresStore) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("account: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
