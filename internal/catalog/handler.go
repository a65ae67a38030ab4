package catalog

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"furnicolor/internal/httpx"
	"furnicolor/internal/i18n"
	"furnicolor/internal/imaging"
)

// Handler exposes the catalog over HTTP. Mutating routes are mounted behind
// an admin check by the router.
type Handler struct {
	Service        *Service
	MaxUploadBytes int64
}

// List handles GET /api/catalog.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.Service.List(r.Context()))
}

// CreateSwatch handles POST /api/catalog/swatches (JSON or multipart with a texture file).
func (h Handler) CreateSwatch(w http.ResponseWriter, r *http.Request) {
	var in NewSwatch
	var asset *imaging.Source
	if isMultipart(r) {
		form, texture, err := h.readForm(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		in.Name = first(form, "name")
		in.Hex = first(form, "hex")
		in.Category = first(form, "category")
		in.Finish = Finish(first(form, "finish"))
		if v, ok := form["image_url"]; ok && len(v) > 0 {
			in.ImageURL = &v[0]
		}
		asset = texture
	} else if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, i18n.BadRequest)
		return
	}

	created, err := h.Service.AddSwatch(r.Context(), in, asset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

// UpdateSwatch handles PATCH /api/catalog/swatches/{id}.
func (h Handler) UpdateSwatch(w http.ResponseWriter, r *http.Request) {
	var patch SwatchPatch
	var asset *imaging.Source
	if isMultipart(r) {
		form, texture, err := h.readForm(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		patch.Name = optional(form, "name")
		patch.Hex = optional(form, "hex")
		patch.Category = optional(form, "category")
		patch.ImageURL = optional(form, "image_url")
		if f := optional(form, "finish"); f != nil {
			finish := Finish(*f)
			patch.Finish = &finish
		}
		asset = texture
	} else if err := httpx.DecodeJSON(w, r, &patch); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, i18n.BadRequest)
		return
	}

	updated, err := h.Service.UpdateSwatch(r.Context(), chi.URLParam(r, "id"), patch, asset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

// DeleteSwatch handles DELETE /api/catalog/swatches/{id}.
func (h Handler) DeleteSwatch(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteSwatch(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateCategory handles POST /api/catalog/categories.
func (h Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := httpx.DecodeJSON(w, r, &payload); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, i18n.BadRequest)
		return
	}
	created, err := h.Service.AddCategory(r.Context(), payload.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

// DeleteCategory handles DELETE /api/catalog/categories/{id}.
func (h Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handler) maxBytes() int64 {
	if h.MaxUploadBytes <= 0 {
		return imaging.DefaultMaxBytes
	}
	return h.MaxUploadBytes
}

func (h Handler) readForm(r *http.Request) (map[string][]string, *imaging.Source, error) {
	if err := r.ParseMultipartForm(h.maxBytes()); err != nil {
		return nil, nil, ErrInvalid
	}
	form := r.MultipartForm.Value
	file, header, err := r.FormFile("texture")
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil, nil
	}
	if err != nil {
		return nil, nil, ErrInvalid
	}
	defer file.Close()
	src, err := imaging.Read(file, header.Filename, h.maxBytes())
	if err != nil {
		return nil, nil, err
	}
	return form, &src, nil
}

func (h Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrOrphanedAsset):
		httpx.Error(w, r, http.StatusInternalServerError, i18n.OrphanedAsset)
	case errors.Is(err, ErrInvalidHex):
		httpx.Error(w, r, http.StatusBadRequest, i18n.InvalidHex)
	case errors.Is(err, ErrInvalid):
		httpx.Error(w, r, http.StatusBadRequest, i18n.BadRequest)
	case errors.Is(err, imaging.ErrNotImage), errors.Is(err, imaging.ErrEmpty):
		httpx.Error(w, r, http.StatusBadRequest, i18n.NotAnImage)
	case errors.Is(err, imaging.ErrTooLarge):
		httpx.Error(w, r, http.StatusRequestEntityTooLarge, i18n.TooLarge, h.maxBytes()>>20)
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, r, http.StatusNotFound, i18n.NotFound)
	case errors.Is(err, ErrCategoryInUse):
		httpx.Error(w, r, http.StatusConflict, i18n.CategoryInUse)
	case errors.Is(err, ErrCategoryExists):
		httpx.Error(w, r, http.StatusConflict, i18n.CategoryExists)
	case errors.Is(err, ErrUploadFailed):
		httpx.Error(w, r, http.StatusBadGateway, i18n.UploadFailed)
	default:
		httpx.Error(w, r, http.StatusInternalServerError, i18n.Internal)
	}
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func first(form map[string][]string, key string) string {
	if v := form[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func optional(form map[string][]string, key string) *string {
	v, ok := form[key]
	if !ok || len(v) == 0 {
		return nil
	}
	value := v[0]
	return &value
}
