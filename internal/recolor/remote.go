package recolor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"furnicolor/internal/media"
)

// RemoteJob uploads the photo, submits an asynchronous job and polls it to completion.
type RemoteJob struct {
	Backend  JobBackend
	Uploader media.Uploader
	Poller   Poller
	Logger   zerolog.Logger
	// Label distinguishes backends in results, e.g. "remote:dashscope".
	Label string
}

// Name implements Strategy.
func (s *RemoteJob) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return "remote"
}

// Recolor implements Strategy.
func (s *RemoteJob) Recolor(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	if s.Backend == nil || s.Uploader == nil {
		return Result{}, errors.New("recolor: remote strategy not configured")
	}

	uploaded, err := s.Uploader.Upload(ctx, media.UploadInput{
		Filename:    req.Source.Name,
		ContentType: req.Source.MIMEType,
		Body:        req.Source.Reader(),
		Size:        int64(len(req.Source.Data)),
	})
	if err != nil {
		return Result{}, fmt.Errorf("recolor: upload source: %w", err)
	}
	if strings.TrimSpace(uploaded.URL) == "" {
		return Result{}, ErrNoPublicURL
	}
	report(ctx, Progress{Stage: StageUploaded})

	taskID, err := s.Backend.Submit(ctx, uploaded.URL, req.Prompt())
	if err != nil {
		return Result{}, fmt.Errorf("recolor: submit: %w", err)
	}
	s.Logger.Info().Str("task_id", taskID).Str("backend", s.Name()).Msg("recolor job submitted")
	report(ctx, Progress{Stage: StageSubmitted, TaskID: taskID})

	poller := s.Poller
	poller.OnAttempt = func(attempt int, job Job) {
		s.Logger.Debug().Str("task_id", taskID).Int("attempt", attempt).Str("status", string(job.Status)).Msg("recolor job polled")
		report(ctx, Progress{Stage: StagePolling, TaskID: taskID, Attempt: attempt, Status: job.Status})
	}
	job, err := poller.Wait(ctx, taskID, s.Backend.Check)
	if err != nil {
		return Result{}, err
	}

	switch job.Status {
	case StatusSucceeded:
		if len(job.ResultURLs) == 0 || strings.TrimSpace(job.ResultURLs[0]) == "" {
			return Result{}, ErrNoResult
		}
		return Result{ImageURL: job.ResultURLs[0], Strategy: s.Name()}, nil
	default:
		return Result{}, &JobFailedError{Status: job.Status, Message: job.Message}
	}
}
