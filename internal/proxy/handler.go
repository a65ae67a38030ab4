// Package proxy exposes the recolor job backends over HTTP and consumes that
// surface again as a job backend.
package proxy

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"furnicolor/internal/dashscope"
	"furnicolor/internal/httpx"
	"furnicolor/internal/i18n"
	"furnicolor/internal/recolor"
	"furnicolor/internal/replicate"
)

// StyleRunner runs a blocking style-transfer prediction.
type StyleRunner interface {
	Run(ctx context.Context, req replicate.StyleRequest, poller recolor.Poller) ([]string, error)
}

// Handler serves the job proxy and the style-transfer proxy.
type Handler struct {
	Jobs   recolor.JobBackend
	Styles StyleRunner
	Poller recolor.Poller
	Logger zerolog.Logger
}

type jobRequest struct {
	Action   string `json:"action"`
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt"`
	TaskID   string `json:"task_id"`
}

// Job handles POST /api/jobs with action submit or check.
func (h Handler) Job(w http.ResponseWriter, r *http.Request) {
	if h.Jobs == nil {
		httpx.Error(w, r, http.StatusServiceUnavailable, i18n.UpstreamFailed, "no job backend")
		return
	}
	var req jobRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, i18n.BadRequest)
		return
	}

	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "submit":
		if strings.TrimSpace(req.ImageURL) == "" || strings.TrimSpace(req.Prompt) == "" {
			httpx.Error(w, r, http.StatusBadRequest, i18n.MissingJobFields)
			return
		}
		taskID, err := h.Jobs.Submit(r.Context(), req.ImageURL, req.Prompt)
		if err != nil {
			h.Logger.Error().Err(err).Msg("job submit failed")
			httpx.Error(w, r, http.StatusBadGateway, i18n.UpstreamFailed, err.Error())
			return
		}
		httpx.JSON(w, http.StatusOK, dashscope.FromJob(recolor.Job{TaskID: taskID, Status: recolor.StatusPending}))
	case "check":
		if strings.TrimSpace(req.TaskID) == "" {
			httpx.Error(w, r, http.StatusBadRequest, i18n.MissingTaskID)
			return
		}
		job, err := h.Jobs.Check(r.Context(), req.TaskID)
		if err != nil {
			h.Logger.Error().Err(err).Str("task_id", req.TaskID).Msg("job check failed")
			httpx.Error(w, r, http.StatusBadGateway, i18n.UpstreamFailed, err.Error())
			return
		}
		httpx.JSON(w, http.StatusOK, dashscope.FromJob(job))
	default:
		httpx.Error(w, r, http.StatusBadRequest, i18n.UnknownAction)
	}
}

// StyleTransfer handles POST /api/style-transfer. It blocks until the
// prediction finishes or the poll budget is spent.
func (h Handler) StyleTransfer(w http.ResponseWriter, r *http.Request) {
	if h.Styles == nil {
		httpx.Error(w, r, http.StatusServiceUnavailable, i18n.UpstreamFailed, "no style backend")
		return
	}
	var req replicate.StyleRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, i18n.BadRequest)
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" || strings.TrimSpace(req.Prompt) == "" {
		httpx.Error(w, r, http.StatusBadRequest, i18n.MissingJobFields)
		return
	}

	output, err := h.Styles.Run(r.Context(), req, h.Poller)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("style transfer failed")
		status := http.StatusBadGateway
		if errors.Is(err, recolor.ErrTimeout) {
			status = http.StatusGatewayTimeout
		}
		httpx.Error(w, r, status, i18n.PredictionFailed, err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"output": output})
}
