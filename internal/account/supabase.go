package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

// maxCASRetries bounds the compare-and-swap loop used for credit changes.
const maxCASRetries = 8

// ErrContention is returned when a credit update kept losing races.
var ErrContention = errors.New("account: too many concurrent credit updates")

// SupabaseStore keeps accounts in the app_users table of a Supabase project.
type SupabaseStore struct {
	client *supabase.Client
}

// NewSupabaseStore returns a store backed by client.
func NewSupabaseStore(client *supabase.Client) *SupabaseStore {
	return &SupabaseStore{client: client}
}

func decodeAccounts(data []byte) ([]Account, error) {
	var rows []struct {
		Account
		Password string `json:"password"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("account: decode rows: %w", err)
	}
	out := make([]Account, 0, len(rows))
	for _, r := range rows {
		a := r.Account
		a.Password = r.Password
		out = append(out, a)
	}
	return out, nil
}

func (s *SupabaseStore) getOne(column, value string) (Account, error) {
	data, _, err := s.client.From("app_users").
		Select("*", "", false).
		Eq(column, value).
		Execute()
	if err != nil {
		return Account{}, fmt.Errorf("account: supabase select: %w", err)
	}
	rows, err := decodeAccounts(data)
	if err != nil {
		return Account{}, err
	}
	if len(rows) == 0 {
		return Account{}, ErrNotFound
	}
	return rows[0], nil
}

// GetByUsername finds an account by exact username.
func (s *SupabaseStore) GetByUsername(_ context.Context, username string) (Account, error) {
	return s.getOne("username", username)
}

// GetByID finds an account by id.
func (s *SupabaseStore) GetByID(_ context.Context, id string) (Account, error) {
	return s.getOne("id", id)
}

// Create inserts an account.
func (s *SupabaseStore) Create(_ context.Context, a Account) (Account, error) {
	row := map[string]any{
		"id":         a.ID,
		"username":   a.Username,
		"password":   a.Password,
		"credits":    a.Credits,
		"is_admin":   a.IsAdmin,
		"created_at": a.CreatedAt,
	}
	_, _, err := s.client.From("app_users").
		Insert(row, false, "", "minimal", "").
		Execute()
	if err != nil {
		if strings.Contains(err.Error(), "23505") || strings.Contains(strings.ToLower(err.Error()), "duplicate") {
			return Account{}, ErrExists
		}
		return Account{}, fmt.Errorf("account: supabase insert: %w", err)
	}
	return a, nil
}

// List returns every account oldest first.
func (s *SupabaseStore) List(_ context.Context) ([]Account, error) {
	data, _, err := s.client.From("app_users").
		Select("*", "", false).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("account: supabase list: %w", err)
	}
	return decodeAccounts(data)
}

// DeductCredit takes one credit using a compare-and-swap on the current balance.
func (s *SupabaseStore) DeductCredit(ctx context.Context, id string) (int, error) {
	return s.adjust(ctx, id, -1)
}

// RefundCredit gives one credit back using the same compare-and-swap.
func (s *SupabaseStore) RefundCredit(ctx context.Context, id string) (int, error) {
	return s.adjust(ctx, id, 1)
}

func (s *SupabaseStore) adjust(ctx context.Context, id string, delta int) (int, error) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		acc, err := s.getOne("id", id)
		if err != nil {
			return 0, err
		}
		next := acc.Credits + delta
		if next < 0 {
			return 0, ErrInsufficientCredits
		}
		data, _, err := s.client.From("app_users").
			Update(map[string]any{"credits": next}, "representation", "").
			Eq("id", id).
			Eq("credits", strconv.Itoa(acc.Credits)).
			Execute()
		if err != nil {
			return 0, fmt.Errorf("account: supabase credit update: %w", err)
		}
		rows, err := decodeAccounts(data)
		if err != nil {
			return 0, err
		}
		if len(rows) == 1 {
			return rows[0].Credits, nil
		}
	}
	return 0, ErrContention
}

// SetCredits overwrites the balance.
func (s *SupabaseStore) SetCredits(_ context.Context, id string, credits int) error {
	return s.update(id, map[string]any{"credits": credits})
}

// SetAdmin toggles the admin flag.
func (s *SupabaseStore) SetAdmin(_ context.Context, id string, admin bool) error {
	return s.update(id, map[string]any{"is_admin": admin})
}

// UpdatePassword stores a new password value.
func (s *SupabaseStore) UpdatePassword(_ context.Context, id string, password string) error {
	return s.update(id, map[string]any{"password": password})
}

func (s *SupabaseStore) update(id string, values map[string]any) error {
	data, _, err := s.client.From("app_users").
		Update(values, "representation", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("account: supabase update: %w", err)
	}
	rows, err := decodeAccounts(data)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}
