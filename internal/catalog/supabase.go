package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

// SupabaseStore keeps the catalog in a hosted Supabase project
// (tables palettes and categories).
type SupabaseStore struct {
	client *supabase.Client
}

// NewSupabaseStore returns a store backed by client.
func NewSupabaseStore(client *supabase.Client) *SupabaseStore {
	return &SupabaseStore{client: client}
}

type swatchRow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Hex       string    `json:"hex"`
	Category  string    `json:"category"`
	Finish    string    `json:"finish"`
	ImageURL  *string   `json:"image_url"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func (r swatchRow) swatch() Swatch {
	return Swatch{ID: r.ID, Name: r.Name, Hex: r.Hex, Category: r.Category, Finish: Finish(r.Finish), ImageURL: r.ImageURL, CreatedAt: r.CreatedAt}
}

var ascending = &postgrest.OrderOpts{Ascending: true}

// ListSwatches returns swatches oldest first.
func (s *SupabaseStore) ListSwatches(_ context.Context) ([]Swatch, error) {
	data, _, err := s.client.From("palettes").
		Select("*", "", false).
		Order("created_at", ascending).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("catalog: supabase list swatches: %w", err)
	}
	var rows []swatchRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("catalog: decode swatches: %w", err)
	}
	out := make([]Swatch, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.swatch())
	}
	return out, nil
}

// CreateSwatch inserts a swatch and returns the stored row.
func (s *SupabaseStore) CreateSwatch(_ context.Context, in Swatch) (Swatch, error) {
	row := swatchRow{ID: in.ID, Name: in.Name, Hex: in.Hex, Category: in.Category, Finish: string(in.Finish), ImageURL: in.ImageURL, CreatedAt: in.CreatedAt}
	data, _, err := s.client.From("palettes").
		Insert(row, false, "", "representation", "").
		Execute()
	if err != nil {
		return Swatch{}, fmt.Errorf("catalog: supabase insert swatch: %w", err)
	}
	var rows []swatchRow
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return in, nil
	}
	return rows[0].swatch(), nil
}

// UpdateSwatch applies patch to the row with id.
func (s *SupabaseStore) UpdateSwatch(_ context.Context, id string, patch SwatchPatch) (Swatch, error) {
	values := map[string]any{}
	if patch.Name != nil {
		values["name"] = *patch.Name
	}
	if patch.Hex != nil {
		values["hex"] = *patch.Hex
	}
	if patch.Category != nil {
		values["category"] = *patch.Category
	}
	if patch.Finish != nil {
		values["finish"] = string(*patch.Finish)
	}
	if patch.ImageURL != nil {
		if *patch.ImageURL == "" {
			values["image_url"] = nil
		} else {
			values["image_url"] = *patch.ImageURL
		}
	}
	data, _, err := s.client.From("palettes").
		Update(values, "representation", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return Swatch{}, fmt.Errorf("catalog: supabase update swatch: %w", err)
	}
	var rows []swatchRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return Swatch{}, fmt.Errorf("catalog: decode swatch: %w", err)
	}
	if len(rows) == 0 {
		return Swatch{}, ErrNotFound
	}
	return rows[0].swatch(), nil
}

// DeleteSwatch removes the row with id.
func (s *SupabaseStore) DeleteSwatch(_ context.Context, id string) error {
	return s.delete("palettes", id)
}

type categoryRow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ListCategories returns categories oldest first.
func (s *SupabaseStore) ListCategories(_ context.Context) ([]Category, error) {
	data, _, err := s.client.From("categories").
		Select("*", "", false).
		Order("created_at", ascending).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("catalog: supabase list categories: %w", err)
	}
	var rows []categoryRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("catalog: decode categories: %w", err)
	}
	out := make([]Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, Category(r))
	}
	return out, nil
}

// CreateCategory inserts a category.
func (s *SupabaseStore) CreateCategory(_ context.Context, c Category) (Category, error) {
	_, _, err := s.client.From("categories").
		Insert(categoryRow(c), false, "", "minimal", "").
		Execute()
	if err != nil {
		if strings.Contains(err.Error(), "23505") || strings.Contains(strings.ToLower(err.Error()), "duplicate") {
			return Category{}, ErrCategoryExists
		}
		return Category{}, fmt.Errorf("catalog: supabase insert category: %w", err)
	}
	return c, nil
}

// DeleteCategory removes the category with id.
func (s *SupabaseStore) DeleteCategory(_ context.Context, id string) error {
	return s.delete("categories", id)
}

// CountSwatchesInCategory counts swatches labelled name.
func (s *SupabaseStore) CountSwatchesInCategory(_ context.Context, name string) (int, error) {
	data, _, err := s.client.From("palettes").
		Select("id", "", false).
		Eq("category", name).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("catalog: supabase count swatches: %w", err)
	}
	var rows []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("catalog: decode count: %w", err)
	}
	return len(rows), nil
}

func (s *SupabaseStore) delete(table, id string) error {
	data, _, err := s.client.From(table).
		Delete("representation", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("catalog: supabase delete from %s: %w", table, err)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("catalog: decode delete: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}
