// Package catalog stores the swatches and categories users pick from.
package catalog

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a swatch or category does not exist.
	ErrNotFound = errors.New("catalog: not found")
	// ErrInvalid marks a swatch or category that failed validation.
	ErrInvalid = errors.New("catalog: invalid input")
	// ErrInvalidHex is returned for colors that are not #RRGGBB.
	ErrInvalidHex = errors.New("catalog: hex must be #RRGGBB")
	// ErrCategoryInUse blocks deleting a category that swatches still reference.
	ErrCategoryInUse = errors.New("catalog: category still has swatches")
	// ErrCategoryExists is returned when a category name is taken.
	ErrCategoryExists = errors.New("catalog: category already exists")
	// ErrUploadFailed is returned when a texture could not be stored; nothing was written.
	ErrUploadFailed = errors.New("catalog: texture upload failed")
	// ErrOrphanedAsset is returned when the texture was stored but the swatch write failed.
	ErrOrphanedAsset = errors.New("catalog: texture uploaded but swatch not saved")
)

// Finish is the surface treatment of a swatch.
type Finish string

const (
	FinishMatte  Finish = "matte"
	FinishGlossy Finish = "glossy"
	FinishWood   Finish = "wood"
)

// Valid reports whether f is a known finish.
func (f Finish) Valid() bool {
	switch f {
	case FinishMatte, FinishGlossy, FinishWood:
		return true
	}
	return false
}

// DeriveFinish picks a finish from the category label when none is given.
func DeriveFinish(category string) Finish {
	switch strings.TrimSpace(category) {
	case "木纹":
		return FinishWood
	case "金属", "大理石纹":
		return FinishGlossy
	default:
		return FinishMatte
	}
}

// Swatch is a named color or material sample.
type Swatch struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Hex      string `json:"hex" yaml:"hex"`
	Category string `json:"category" yaml:"category"`
	Finish   Finish `json:"finish" yaml:"finish"`
	// ImageURL is an optional texture; nil means none.
	ImageURL  *string   `json:"image_url" yaml:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Category groups swatches. Swatches reference it by name.
type Category struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// SwatchPatch is a partial update. Nil fields are left unchanged; an
// ImageURL pointing at "" clears the texture.
type SwatchPatch struct {
	Name     *string `json:"name,omitempty"`
	Hex      *string `json:"hex,omitempty"`
	Category *string `json:"category,omitempty"`
	Finish   *Finish `json:"finish,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SwatchPatch) Empty() bool {
	return p.Name == nil && p.Hex == nil && p.Category == nil && p.Finish == nil && p.ImageURL == nil
}

// Apply returns s with the patch applied.
func (p SwatchPatch) Apply(s Swatch) Swatch {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Hex != nil {
		s.Hex = *p.Hex
	}
	if p.Category != nil {
		s.Category = *p.Category
	}
	if p.Finish != nil {
		s.Finish = *p.Finish
	}
	if p.ImageURL != nil {
		if *p.ImageURL == "" {
			s.ImageURL = nil
		} else {
			url := *p.ImageURL
			s.ImageURL = &url
		}
	}
	return s
}

// Store persists swatches and categories. Lists are in creation order.
type Store interface {
	ListSwatches(ctx context.Context) ([]Swatch, error)
	CreateSwatch(ctx context.Context, s Swatch) (Swatch, error)
	UpdateSwatch(ctx context.Context, id string, patch SwatchPatch) (Swatch, error)
	DeleteSwatch(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, c Category) (Category, error)
	DeleteCategory(ctx context.Context, id string) error
	CountSwatchesInCategory(ctx context.Context, name string) (int, error)
}

var hexPattern = regexp.MustCompile(`^#[0-9A-F]{6}$`)

// NormalizeHex upper-cases a color and adds a missing leading '#'.
func NormalizeHex(hex string) (string, error) {
	hex = strings.ToUpper(strings.TrimSpace(hex))
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	if !hexPattern.MatchString(hex) {
		return "", ErrInvalidHex
	}
	return hex, nil
}
