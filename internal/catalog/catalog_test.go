package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"furnicolor/internal/imaging"
	"furnicolor/internal/media"
)

type stubUploader struct {
	url   string
	err   error
	calls int
}

func (s *stubUploader) Upload(_ context.Context, in media.UploadInput) (media.UploadResult, error) {
	s.calls++
	if s.err != nil {
		return media.UploadResult{}, s.err
	}
	_, _ = io.Copy(io.Discard, in.Body)
	return media.UploadResult{Key: "textures/x.png", URL: s.url}, nil
}

type failingStore struct {
	*MemoryStore
	listErr   error
	createErr error
	updateErr error
}

func (f *failingStore) ListSwatches(ctx context.Context) ([]Swatch, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.MemoryStore.ListSwatches(ctx)
}

func (f *failingStore) CreateSwatch(ctx context.Context, s Swatch) (Swatch, error) {
	if f.createErr != nil {
		return Swatch{}, f.createErr
	}
	return f.MemoryStore.CreateSwatch(ctx, s)
}

func (f *failingStore) UpdateSwatch(ctx context.Context, id string, p SwatchPatch) (Swatch, error) {
	if f.updateErr != nil {
		return Swatch{}, f.updateErr
	}
	return f.MemoryStore.UpdateSwatch(ctx, id, p)
}

func texture(t *testing.T) *imaging.Source {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	src, err := imaging.FromBytes(buf.Bytes(), "oak.png")
	if err != nil {
		t.Fatal(err)
	}
	return &src
}

func TestDefaults(t *testing.T) {
	swatches, categories := Defaults()
	if len(categories) != 5 {
		t.Fatalf("expected 5 categories, got %d", len(categories))
	}
	if len(swatches) != 28 {
		t.Fatalf("expected 28 swatches, got %d", len(swatches))
	}
	counts := map[string]int{}
	for _, s := range swatches {
		counts[s.Category]++
		if s.ImageURL != nil {
			t.Fatalf("default swatch %s should have no texture", s.ID)
		}
	}
	want := []int{6, 7, 5, 5, 5}
	for i, c := range categories {
		if counts[c.Name] != want[i] {
			t.Fatalf("category %s has %d swatches, want %d", c.Name, counts[c.Name], want[i])
		}
	}
	if swatches[0].ID != "w1" || swatches[0].Finish != FinishWood || swatches[0].Hex != "#3B2F2F" {
		t.Fatalf("first default swatch mismatch: %+v", swatches[0])
	}

	swatches[0].Name = "mutated"
	again, _ := Defaults()
	if again[0].Name == "mutated" {
		t.Fatal("Defaults must return copies")
	}
}

func TestDeriveFinish(t *testing.T) {
	cases := map[string]Finish{"木纹": FinishWood, "金属": FinishGlossy, "大理石纹": FinishGlossy, "纯色": FinishMatte, "肤感": FinishMatte, "": FinishMatte}
	for in, want := range cases {
		if got := DeriveFinish(in); got != want {
			t.Fatalf("DeriveFinish(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNormalizeHex(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "#3b2f2f", want: "#3B2F2F"},
		{in: " 8B5A2B ", want: "#8B5A2B"},
		{in: "#FFF", wantErr: true},
		{in: "#GGGGGG", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range tests {
		got, err := NormalizeHex(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidHex) {
				t.Fatalf("%q: expected ErrInvalidHex, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %q, %v", tc.in, got, err)
		}
	}
}

func TestListFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()

	empty := NewService(NewMemoryStore(), nil, zerolog.Nop())
	got := empty.List(ctx)
	if !got.Defaults || len(got.Swatches) != 28 || len(got.Categories) != 5 {
		t.Fatalf("empty store: defaults=%v swatches=%d categories=%d", got.Defaults, len(got.Swatches), len(got.Categories))
	}

	down := NewService(&failingStore{MemoryStore: NewMemoryStore(), listErr: errors.New("connection refused")}, nil, zerolog.Nop())
	got2 := down.List(ctx)
	if !got2.Defaults || len(got2.Swatches) != len(got.Swatches) {
		t.Fatal("unreachable store must degrade exactly like an empty one")
	}
}

func TestSwatchRoundTripKeepsNilImage(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(), nil, zerolog.Nop())

	created, err := svc.AddSwatch(ctx, NewSwatch{Name: "胡桃", Hex: "#3b2f2f", Category: "木纹"}, nil)
	if err != nil {
		t.Fatalf("AddSwatch error: %v", err)
	}
	if created.ImageURL != nil {
		t.Fatalf("image url should stay nil, got %q", *created.ImageURL)
	}
	if created.Finish != FinishWood || created.Hex != "#3B2F2F" || created.ID == "" {
		t.Fatalf("unexpected swatch: %+v", created)
	}

	listed := svc.List(ctx)
	if listed.Defaults || len(listed.Swatches) != 1 {
		t.Fatalf("expected stored swatch, got %+v", listed)
	}
	if listed.Swatches[0].ImageURL != nil {
		t.Fatal("image url should stay nil after listing")
	}
	raw, _ := json.Marshal(listed.Swatches[0])
	if !strings.Contains(string(raw), `"image_url":null`) {
		t.Fatalf("absent image should serialize as null: %s", raw)
	}
	if len(listed.Categories) != 1 || listed.Categories[0].Name != "木纹" {
		t.Fatalf("categories should be derived from swatches: %+v", listed.Categories)
	}
}

func TestAddSwatchUploadsBeforeWrite(t *testing.T) {
	ctx := context.Background()
	up := &stubUploader{url: "https://cdn/textures/x.png"}
	svc := NewService(NewMemoryStore(), up, zerolog.Nop())

	created, err := svc.AddSwatch(ctx, NewSwatch{Name: "Oak", Hex: "#D2B48C", Category: "木纹"}, texture(t))
	if err != nil {
		t.Fatalf("AddSwatch error: %v", err)
	}
	if up.calls != 1 || created.ImageURL == nil || *created.ImageURL != up.url {
		t.Fatalf("texture not persisted: %+v", created)
	}
}

func TestAddSwatchUploadFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store, &stubUploader{err: errors.New("bucket missing")}, zerolog.Nop())

	_, err := svc.AddSwatch(ctx, NewSwatch{Name: "Oak", Hex: "#D2B48C", Category: "木纹"}, texture(t))
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if rows, _ := store.ListSwatches(ctx); len(rows) != 0 {
		t.Fatalf("nothing should be written, found %d rows", len(rows))
	}

	noURL := NewService(store, &stubUploader{}, zerolog.Nop())
	if _, err := noURL.AddSwatch(ctx, NewSwatch{Name: "Oak", Hex: "#D2B48C", Category: "木纹"}, texture(t)); !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("upload without url should fail, got %v", err)
	}
}

func TestWriteFailureAfterUploadIsOrphaned(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: NewMemoryStore(), createErr: errors.New("insert failed")}
	svc := NewService(store, &stubUploader{url: "https://cdn/x.png"}, zerolog.Nop())

	created, err := svc.AddSwatch(ctx, NewSwatch{Name: "Oak", Hex: "#D2B48C", Category: "木纹"}, texture(t))
	if !errors.Is(err, ErrOrphanedAsset) {
		t.Fatalf("expected ErrOrphanedAsset, got %v", err)
	}
	if created.ImageURL != nil {
		t.Fatal("uploaded url must not be returned")
	}

	withoutAsset := NewService(store, &stubUploader{url: "https://cdn/x.png"}, zerolog.Nop())
	if _, err := withoutAsset.AddSwatch(ctx, NewSwatch{Name: "Oak", Hex: "#D2B48C", Category: "木纹"}, nil); errors.Is(err, ErrOrphanedAsset) || err == nil {
		t.Fatalf("write failure without upload should be a plain error, got %v", err)
	}
}

func TestUpdateSwatchPatchSemantics(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(), &stubUploader{url: "https://cdn/new.png"}, zerolog.Nop())
	existing := "https://cdn/old.png"
	created, err := svc.AddSwatch(ctx, NewSwatch{Name: "Gold", Hex: "#D4AF37", Category: "金属", ImageURL: &existing}, nil)
	if err != nil {
		t.Fatal(err)
	}

	name := "Champagne"
	updated, err := svc.UpdateSwatch(ctx, created.ID, SwatchPatch{Name: &name}, nil)
	if err != nil {
		t.Fatalf("UpdateSwatch error: %v", err)
	}
	if updated.Name != name || updated.ImageURL == nil || *updated.ImageURL != existing || updated.Finish != FinishGlossy {
		t.Fatalf("nil fields must be kept: %+v", updated)
	}

	updated, err = svc.UpdateSwatch(ctx, created.ID, SwatchPatch{}, texture(t))
	if err != nil || updated.ImageURL == nil || *updated.ImageURL != "https://cdn/new.png" {
		t.Fatalf("texture replace failed: %+v, %v", updated, err)
	}

	none := ""
	updated, err = svc.UpdateSwatch(ctx, created.ID, SwatchPatch{ImageURL: &none}, nil)
	if err != nil || updated.ImageURL != nil {
		t.Fatalf("empty image url should clear: %+v, %v", updated, err)
	}

	bad := "red"
	if _, err := svc.UpdateSwatch(ctx, created.ID, SwatchPatch{Hex: &bad}, nil); !errors.Is(err, ErrInvalidHex) {
		t.Fatalf("expected ErrInvalidHex, got %v", err)
	}
	if _, err := svc.UpdateSwatch(ctx, "missing", SwatchPatch{Name: &name}, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.UpdateSwatch(ctx, created.ID, SwatchPatch{}, nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("empty patch should be rejected, got %v", err)
	}
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(), nil, zerolog.Nop())

	wood, err := svc.AddCategory(ctx, " 木纹 ")
	if err != nil || wood.Name != "木纹" {
		t.Fatalf("AddCategory = %+v, %v", wood, err)
	}
	if _, err := svc.AddCategory(ctx, "木纹"); !errors.Is(err, ErrCategoryExists) {
		t.Fatalf("expected ErrCategoryExists, got %v", err)
	}
	sw, err := svc.AddSwatch(ctx, NewSwatch{Name: "Walnut", Hex: "#3B2F2F", Category: "木纹"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteCategory(ctx, wood.ID); !errors.Is(err, ErrCategoryInUse) {
		t.Fatalf("expected ErrCategoryInUse, got %v", err)
	}
	if err := svc.DeleteSwatch(ctx, sw.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteCategory(ctx, wood.ID); err != nil {
		t.Fatalf("delete of unused category failed: %v", err)
	}
	if err := svc.DeleteCategory(ctx, wood.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceSwatchLookupIncludesDefaults(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, zerolog.Nop())
	sw, err := svc.Swatch(context.Background(), "m1")
	if err != nil || sw.Name != "香槟金" {
		t.Fatalf("Swatch(m1) = %+v, %v", sw, err)
	}
	if _, err := svc.Swatch(context.Background(), "zz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
