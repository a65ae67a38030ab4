package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"furnicolor/internal/imaging"
	"furnicolor/internal/media"
)

// Catalog is what the picker shows. Defaults is true when the built-in set
// was substituted because the store was empty or unreachable.
type Catalog struct {
	Swatches   []Swatch   `json:"swatches"`
	Categories []Category `json:"categories"`
	Defaults   bool       `json:"defaults"`
}

// NewSwatch is the input for AddSwatch.
type NewSwatch struct {
	Name     string  `json:"name"`
	Hex      string  `json:"hex"`
	Category string  `json:"category"`
	Finish   Finish  `json:"finish,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
}

// Service applies catalog rules on top of a Store.
type Service struct {
	Store    Store
	Uploader media.Uploader
	Logger   zerolog.Logger

	now func() time.Time
}

// NewService wires a Service. A nil uploader disables texture uploads.
func NewService(store Store, uploader media.Uploader, logger zerolog.Logger) *Service {
	if uploader == nil {
		uploader = media.Disabled()
	}
	return &Service{Store: store, Uploader: uploader, Logger: logger, now: time.Now}
}

// List returns the catalog, substituting the built-in set when the store
// fails or has no swatches. Both cases degrade the same way.
func (s *Service) List(ctx context.Context) Catalog {
	swatches, err := s.Store.ListSwatches(ctx)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("catalog unavailable, using defaults")
	}
	if err != nil || len(swatches) == 0 {
		ds, dc := Defaults()
		return Catalog{Swatches: ds, Categories: dc, Defaults: true}
	}

	categories, err := s.Store.ListCategories(ctx)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("categories unavailable, deriving from swatches")
		categories = nil
	}
	if len(categories) == 0 {
		categories = categoriesFromSwatches(swatches)
	}
	return Catalog{Swatches: swatches, Categories: categories}
}

func categoriesFromSwatches(swatches []Swatch) []Category {
	seen := map[string]bool{}
	var out []Category
	for _, sw := range swatches {
		if sw.Category == "" || seen[sw.Category] {
			continue
		}
		seen[sw.Category] = true
		out = append(out, Category{ID: sw.Category, Name: sw.Category})
	}
	return out
}

// Swatch finds a swatch by id in the current catalog, defaults included.
func (s *Service) Swatch(ctx context.Context, id string) (Swatch, error) {
	for _, sw := range s.List(ctx).Swatches {
		if sw.ID == id {
			return sw, nil
		}
	}
	return Swatch{}, ErrNotFound
}

// AddSwatch validates in, uploads asset when present and stores the swatch.
// A failed upload writes nothing; a failed write after a successful upload
// returns ErrOrphanedAsset and the uploaded URL is discarded.
func (s *Service) AddSwatch(ctx context.Context, in NewSwatch, asset *imaging.Source) (Swatch, error) {
	sw := Swatch{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(in.Name),
		Category: strings.TrimSpace(in.Category),
		Finish:   in.Finish,
		ImageURL: nonEmpty(in.ImageURL),
	}
	if sw.Name == "" || sw.Category == "" {
		return Swatch{}, fmt.Errorf("%w: name and category are required", ErrInvalid)
	}
	hex, err := NormalizeHex(in.Hex)
	if err != nil {
		return Swatch{}, err
	}
	sw.Hex = hex
	if sw.Finish == "" {
		sw.Finish = DeriveFinish(sw.Category)
	}
	if !sw.Finish.Valid() {
		return Swatch{}, fmt.Errorf("%w: unknown finish %q", ErrInvalid, sw.Finish)
	}

	uploaded, err := s.upload(ctx, asset)
	if err != nil {
		return Swatch{}, err
	}
	if uploaded != "" {
		sw.ImageURL = &uploaded
	}
	sw.CreatedAt = s.now().UTC()

	created, err := s.Store.CreateSwatch(ctx, sw)
	if err != nil {
		return Swatch{}, s.orphaned(uploaded, err)
	}
	return created, nil
}

// UpdateSwatch validates patch, uploads asset when present and applies it.
func (s *Service) UpdateSwatch(ctx context.Context, id string, patch SwatchPatch, asset *imaging.Source) (Swatch, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return Swatch{}, fmt.Errorf("%w: name cannot be empty", ErrInvalid)
		}
		patch.Name = &name
	}
	if patch.Category != nil {
		category := strings.TrimSpace(*patch.Category)
		if category == "" {
			return Swatch{}, fmt.Errorf("%w: category cannot be empty", ErrInvalid)
		}
		patch.Category = &category
	}
	if patch.Hex != nil {
		hex, err := NormalizeHex(*patch.Hex)
		if err != nil {
			return Swatch{}, err
		}
		patch.Hex = &hex
	}
	if patch.Finish != nil && !patch.Finish.Valid() {
		return Swatch{}, fmt.Errorf("%w: unknown finish %q", ErrInvalid, *patch.Finish)
	}

	if patch.Empty() && (asset == nil || len(asset.Data) == 0) {
		return Swatch{}, fmt.Errorf("%w: nothing to update", ErrInvalid)
	}

	uploaded, err := s.upload(ctx, asset)
	if err != nil {
		return Swatch{}, err
	}
	if uploaded != "" {
		patch.ImageURL = &uploaded
	}

	updated, err := s.Store.UpdateSwatch(ctx, id, patch)
	if err != nil {
		return Swatch{}, s.orphaned(uploaded, err)
	}
	return updated, nil
}

// DeleteSwatch removes a swatch.
func (s *Service) DeleteSwatch(ctx context.Context, id string) error {
	return s.Store.DeleteSwatch(ctx, id)
}

// AddCategory creates a category.
func (s *Service) AddCategory(ctx context.Context, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", ErrInvalid)
	}
	return s.Store.CreateCategory(ctx, Category{ID: uuid.NewString(), Name: name, CreatedAt: s.now().UTC()})
}

// DeleteCategory removes a category unless swatches still reference it.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	categories, err := s.Store.ListCategories(ctx)
	if err != nil {
		return err
	}
	var target *Category
	for i := range categories {
		if categories[i].ID == id {
			target = &categories[i]
			break
		}
	}
	if target == nil {
		return ErrNotFound
	}
	n, err := s.Store.CountSwatchesInCategory(ctx, target.Name)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %d swatches in %s", ErrCategoryInUse, n, target.Name)
	}
	return s.Store.DeleteCategory(ctx, id)
}

func (s *Service) upload(ctx context.Context, asset *imaging.Source) (string, error) {
	if asset == nil || len(asset.Data) == 0 {
		return "", nil
	}
	res, err := s.Uploader.Upload(ctx, media.UploadInput{
		Filename:    asset.Name,
		ContentType: asset.MIMEType,
		Body:        asset.Reader(),
		Size:        int64(len(asset.Data)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	if strings.TrimSpace(res.URL) == "" {
		return "", fmt.Errorf("%w: storage returned no public url", ErrUploadFailed)
	}
	return res.URL, nil
}

func (s *Service) orphaned(uploaded string, err error) error {
	if uploaded == "" {
		return err
	}
	s.Logger.Error().Err(err).Str("asset_url", uploaded).Msg("swatch write failed after texture upload")
	return fmt.Errorf("%w: %w", ErrOrphanedAsset, err)
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
