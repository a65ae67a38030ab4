package studio

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"furnicolor/internal/account"
	"furnicolor/internal/auth"
	"furnicolor/internal/catalog"
	"furnicolor/internal/httpx"
	"furnicolor/internal/i18n"
	"furnicolor/internal/imaging"
	"furnicolor/internal/recolor"
	"furnicolor/internal/storage"
	"furnicolor/internal/vision"
)

// ModelLister reports the models the analysis key can use.
type ModelLister interface {
	ListModels(ctx context.Context) ([]vision.ModelInfo, error)
}

// Handler exposes the studio pipeline over HTTP.
type Handler struct {
	Service        *Service
	Models         ModelLister
	MaxUploadBytes int64
	Logger         zerolog.Logger
}

type analyzeRequest struct {
	Image string `json:"image"`
}

type recolorRequest struct {
	Image    string           `json:"image"`
	Analysis *vision.Analysis `json:"analysis"`
	SwatchID string           `json:"swatch_id"`
	Swatch   *catalog.Swatch  `json:"swatch"`
	Strategy string           `json:"strategy"`
	Async    bool             `json:"async"`
}

// Task states reported to the client.
const (
	taskRunning  = "running"
	taskDone     = "done"
	taskCanceled = "canceled"
)

type recolorResponse struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Image    string `json:"image,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	Degraded bool   `json:"degraded"`
	Error    string `json:"error,omitempty"`
}

// Analyze handles POST /api/studio/analyze with a multipart photo or a JSON data URL.
func (h Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	src, err := h.readPhoto(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.Service.Analyze(r.Context(), src))
}

// Recolor handles POST /api/studio/recolor. With async the response is 202 and
// the result is fetched from /api/studio/tasks/{id}.
func (h Handler) Recolor(w http.ResponseWriter, r *http.Request) {
	acc, ok := auth.AccountFromContext(r.Context())
	if !ok {
		httpx.Error(w, r, http.StatusUnauthorized, i18n.Unauthorized)
		return
	}

	var payload recolorRequest
	if err := httpx.DecodeJSON(w, r, &payload); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, i18n.BadRequest)
		return
	}
	if v := r.URL.Query().Get("async"); v == "1" || strings.EqualFold(v, "true") {
		payload.Async = true
	}

	src, err := h.parseImage(payload.Image)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	swatch, err := h.swatch(r.Context(), payload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	in := Input{Source: src, Swatch: swatch, Strategy: payload.Strategy}
	if payload.Analysis != nil {
		in.Analysis = *payload.Analysis
	}

	task, err := h.Service.Start(r.Context(), acc, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if payload.Async {
		httpx.JSON(w, http.StatusAccepted, recolorResponse{TaskID: task.ID, Status: taskRunning})
		return
	}

	out, err := task.Wait(r.Context())
	if err != nil {
		// client went away
		task.Cancel()
		return
	}
	httpx.JSON(w, http.StatusOK, render(r.Context(), task.ID, out))
}

// Task handles GET /api/studio/tasks/{id}.
func (h Handler) Task(w http.ResponseWriter, r *http.Request) {
	task, ok := h.ownTask(r)
	if !ok {
		httpx.Error(w, r, http.StatusNotFound, i18n.NotFound)
		return
	}
	out, finished := task.Outcome()
	if !finished {
		httpx.JSON(w, http.StatusAccepted, recolorResponse{TaskID: task.ID, Status: taskRunning, Error: i18n.T(r.Context(), i18n.TaskPending)})
		return
	}
	httpx.JSON(w, http.StatusOK, render(r.Context(), task.ID, out))
}

// CancelTask handles DELETE /api/studio/tasks/{id}.
func (h Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.ownTask(r)
	if !ok {
		httpx.Error(w, r, http.StatusNotFound, i18n.NotFound)
		return
	}
	if task.Cancel() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	// the result was already settled; report it instead
	out, err := task.Wait(r.Context())
	if err != nil {
		return
	}
	httpx.JSON(w, http.StatusOK, render(r.Context(), task.ID, out))
}

// History handles GET /api/studio/history.
func (h Handler) History(w http.ResponseWriter, r *http.Request) {
	acc, ok := auth.AccountFromContext(r.Context())
	if !ok {
		httpx.Error(w, r, http.StatusUnauthorized, i18n.Unauthorized)
		return
	}
	projects, err := h.Service.Projects(r.Context(), acc.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, projects)
}

// DeleteProject handles DELETE /api/studio/history/{id}.
func (h Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	acc, ok := auth.AccountFromContext(r.Context())
	if !ok {
		httpx.Error(w, r, http.StatusUnauthorized, i18n.Unauthorized)
		return
	}
	if err := h.Service.DeleteProject(r.Context(), acc.ID, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListModels handles GET /api/admin/models.
func (h Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	if h.Models == nil {
		httpx.JSON(w, http.StatusOK, []vision.ModelInfo{})
		return
	}
	models, err := h.Models.ListModels(r.Context())
	if err != nil {
		h.Logger.Warn().Err(err).Msg("list models")
		httpx.Error(w, r, http.StatusBadGateway, i18n.UpstreamFailed, err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, models)
}

func render(ctx context.Context, taskID string, out recolor.Outcome) recolorResponse {
	resp := recolorResponse{
		TaskID:   taskID,
		Status:   taskDone,
		Image:    out.Result.Display(),
		Strategy: out.Result.Strategy,
		Degraded: out.Degraded,
	}
	switch {
	case out.Err == nil:
	case errors.Is(out.Err, context.Canceled):
		resp.Status = taskCanceled
		resp.Error = i18n.T(ctx, i18n.RecolorCanceled)
	case errors.Is(out.Err, recolor.ErrTimeout):
		resp.Error = i18n.T(ctx, i18n.RecolorTimeout)
	default:
		resp.Error = i18n.T(ctx, i18n.RecolorFailed, out.Err.Error())
	}
	return resp
}

func (h Handler) ownTask(r *http.Request) (*recolor.Task, bool) {
	acc, ok := auth.AccountFromContext(r.Context())
	if !ok {
		return nil, false
	}
	task, ok := h.Service.Tasks.Get(chi.URLParam(r, "id"))
	if !ok || task.SessionID != acc.ID {
		return nil, false
	}
	return task, true
}

func (h Handler) swatch(ctx context.Context, payload recolorRequest) (catalog.Swatch, error) {
	if id := strings.TrimSpace(payload.SwatchID); id != "" {
		return h.Service.ResolveSwatch(ctx, id)
	}
	if payload.Swatch == nil {
		return catalog.Swatch{}, errSwatchRequired
	}
	sw := *payload.Swatch
	hex, err := catalog.NormalizeHex(sw.Hex)
	if err != nil {
		return catalog.Swatch{}, err
	}
	sw.Hex = hex
	return sw, nil
}

var errSwatchRequired = errors.New("studio: swatch required")

func (h Handler) maxBytes() int64 {
	if h.MaxUploadBytes <= 0 {
		return imaging.DefaultMaxBytes
	}
	return h.MaxUploadBytes
}

func (h Handler) parseImage(raw string) (imaging.Source, error) {
	if strings.TrimSpace(raw) == "" {
		return imaging.Source{}, imaging.ErrEmpty
	}
	src, err := imaging.ParseDataURL(raw)
	if err != nil {
		return imaging.Source{}, err
	}
	if int64(len(src.Data)) > h.maxBytes() {
		return imaging.Source{}, imaging.ErrTooLarge
	}
	return src, nil
}

func (h Handler) readPhoto(w http.ResponseWriter, r *http.Request) (imaging.Source, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var payload analyzeRequest
		if err := httpx.DecodeJSON(w, r, &payload); err != nil {
			return imaging.Source{}, imaging.ErrBadDataURL
		}
		return h.parseImage(payload.Image)
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes()+1<<20)
	file, header, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return imaging.Source{}, imaging.ErrEmpty
	}
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return imaging.Source{}, imaging.ErrTooLarge
		}
		return imaging.Source{}, imaging.ErrBadDataURL
	}
	defer file.Close()
	return imaging.Read(file, header.Filename, h.maxBytes())
}

func (h Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, imaging.ErrEmpty):
		httpx.Error(w, r, http.StatusBadRequest, i18n.PhotoRequired)
	case errors.Is(err, imaging.ErrNotImage), errors.Is(err, imaging.ErrBadDataURL):
		httpx.Error(w, r, http.StatusBadRequest, i18n.NotAnImage)
	case errors.Is(err, imaging.ErrTooLarge):
		httpx.Error(w, r, http.StatusRequestEntityTooLarge, i18n.TooLarge, h.maxBytes()>>20)
	case errors.Is(err, errSwatchRequired), errors.Is(err, catalog.ErrNotFound):
		httpx.Error(w, r, http.StatusBadRequest, i18n.SwatchRequired)
	case errors.Is(err, catalog.ErrInvalidHex):
		httpx.Error(w, r, http.StatusBadRequest, i18n.InvalidHex)
	case errors.Is(err, ErrUnknownStrategy):
		httpx.Error(w, r, http.StatusBadRequest, i18n.BadRequest)
	case errors.Is(err, account.ErrInsufficientCredits):
		httpx.Error(w, r, http.StatusPaymentRequired, i18n.InsufficientCredits)
	case errors.Is(err, account.ErrNotFound):
		httpx.Error(w, r, http.StatusUnauthorized, i18n.Unauthorized)
	case errors.Is(err, recolor.ErrBusy):
		httpx.Error(w, r, http.StatusConflict, i18n.RecolorBusy)
	case errors.Is(err, storage.ErrNotFound):
		httpx.Error(w, r, http.StatusNotFound, i18n.NotFound)
	default:
		h.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("studio request failed")
		httpx.Error(w, r, http.StatusInternalServerError, i18n.Internal)
	}
}
