package catalog

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is a thread-safe store used when no database is configured.
type MemoryStore struct {
	mu         sync.RWMutex
	swatches   []Swatch
	categories []Category
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func cloneSwatch(s Swatch) Swatch {
	if s.ImageURL != nil {
		url := *s.ImageURL
		s.ImageURL = &url
	}
	return s
}

// ListSwatches returns a snapshot in insertion order.
func (m *MemoryStore) ListSwatches(_ context.Context) ([]Swatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Swatch, len(m.swatches))
	for i, s := range m.swatches {
		out[i] = cloneSwatch(s)
	}
	return out, nil
}

// CreateSwatch appends s.
func (m *MemoryStore) CreateSwatch(_ context.Context, s Swatch) (Swatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swatches = append(m.swatches, cloneSwatch(s))
	return cloneSwatch(s), nil
}

// UpdateSwatch applies patch to the swatch with id.
func (m *MemoryStore) UpdateSwatch(_ context.Context, id string, patch SwatchPatch) (Swatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.swatches {
		if s.ID == id {
			m.swatches[i] = patch.Apply(s)
			return cloneSwatch(m.swatches[i]), nil
		}
	}
	return Swatch{}, ErrNotFound
}

// DeleteSwatch removes the swatch with id.
func (m *MemoryStore) DeleteSwatch(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.swatches {
		if s.ID == id {
			m.swatches = append(m.swatches[:i], m.swatches[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// ListCategories returns a snapshot in insertion order.
func (m *MemoryStore) ListCategories(_ context.Context) ([]Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Category, len(m.categories))
	copy(out, m.categories)
	return out, nil
}

// CreateCategory appends c. Names are unique, ignoring case.
func (m *MemoryStore) CreateCategory(_ context.Context, c Category) (Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return Category{}, ErrCategoryExists
		}
	}
	m.categories = append(m.categories, c)
	return c, nil
}

// DeleteCategory removes the category with id.
func (m *MemoryStore) DeleteCategory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.categories {
		if c.ID == id {
			m.categories = append(m.categories[:i], m.categories[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// CountSwatchesInCategory counts swatches whose category label is name.
func (m *MemoryStore) CountSwatchesInCategory(_ context.Context, name string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.swatches {
		if s.Category == name {
			n++
		}
	}
	return n, nil
}
