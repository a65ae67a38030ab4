// Package studio runs the user pipeline: upload, analyze, pick a swatch,
// recolor and keep the result in the history.
package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"furnicolor/internal/account"
	"furnicolor/internal/catalog"
	"furnicolor/internal/events"
	"furnicolor/internal/imaging"
	"furnicolor/internal/recolor"
	"furnicolor/internal/storage"
	"furnicolor/internal/vision"
)

// ErrUnknownStrategy is returned when a request names a strategy that is not configured.
var ErrUnknownStrategy = errors.New("studio: unknown strategy")

// Input is a parsed recolor submission.
type Input struct {
	Source   imaging.Source
	Analysis vision.Analysis
	Swatch   catalog.Swatch
	Strategy string
}

// Service wires the pipeline components together.
type Service struct {
	Analyzer   vision.Analyzer
	Strategies map[string]recolor.Strategy
	Default    string
	Catalog    *catalog.Service
	Accounts   account.Store
	History    storage.Store
	Events     *events.Broker
	Tasks      *recolor.Tasks
	Logger     zerolog.Logger
}

// Analyze identifies the furniture in src. It never fails: when the model is
// unavailable the placeholder analysis is returned.
func (s *Service) Analyze(ctx context.Context, src imaging.Source) vision.Analysis {
	out, _ := vision.Degrading{Analyzer: s.Analyzer, Logger: s.Logger}.Analyze(ctx, src)
	return out
}

// Strategy returns the configured strategy called name, or the default one.
func (s *Service) Strategy(name string) (recolor.Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = s.Default
	}
	st, ok := s.Strategies[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return st, nil
}

// ResolveSwatch loads a catalog swatch (defaults included) by id.
func (s *Service) ResolveSwatch(ctx context.Context, id string) (catalog.Swatch, error) {
	return s.Catalog.Swatch(ctx, id)
}

// Start charges one credit and launches the recolor as a background task.
// The credit is returned when the outcome is degraded or the task is cancelled.
func (s *Service) Start(ctx context.Context, acc account.Account, in Input) (*recolor.Task, error) {
	strategy, err := s.Strategy(in.Strategy)
	if err != nil {
		return nil, err
	}
	req := recolor.Request{
		Source:           in.Source,
		FurnitureType:    in.Analysis.Type,
		ColorDescription: ColorDescription(in.Swatch),
		Hex:              in.Swatch.Hex,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.Accounts.DeductCredit(ctx, acc.ID); err != nil {
		return nil, err
	}

	task, err := s.Tasks.Start(acc.ID, func(ctx context.Context) recolor.Outcome {
		return s.run(ctx, acc.ID, strategy, req, in)
	})
	if err != nil {
		s.refund(acc.ID, "")
		return nil, err
	}
	s.Logger.Info().
		Str("account_id", acc.ID).
		Str("task_id", task.ID).
		Str("strategy", strategy.Name()).
		Str("hex", in.Swatch.Hex).
		Msg("recolor started")
	return task, nil
}

func (s *Service) run(ctx context.Context, ownerID string, strategy recolor.Strategy, req recolor.Request, in Input) recolor.Outcome {
	taskID := recolor.TaskID(ctx)
	ctx = recolor.WithProgress(ctx, func(p recolor.Progress) {
		s.publish(events.Event{SessionID: ownerID, TaskID: taskID, Progress: p})
	})

	out := recolor.Fallback{Strategy: strategy, Logger: s.Logger}.Run(ctx, req)
	if !recolor.Commit(ctx) {
		out = recolor.Outcome{Err: context.Canceled}
	}

	if out.Err != nil {
		s.refund(ownerID, taskID)
	}
	if out.Err == nil || out.Degraded {
		s.record(ctx, ownerID, strategy.Name(), in, out)
	}

	s.publish(events.Event{
		SessionID: ownerID,
		TaskID:    taskID,
		Progress:  recolor.Progress{Stage: recolor.StageDone, TaskID: taskID},
		Done:      true,
		Degraded:  out.Degraded,
	})
	return out
}

func (s *Service) record(ctx context.Context, ownerID, strategy string, in Input, out recolor.Outcome) {
	if s.History == nil {
		return
	}
	_, err := s.History.AddProject(ctx, storage.ProjectRecord{
		OwnerID:       ownerID,
		Original:      in.Source.DataURL(),
		Result:        out.Result.Display(),
		FurnitureType: in.Analysis.Type,
		ColorName:     in.Swatch.Name,
		Hex:           in.Swatch.Hex,
		Strategy:      strategy,
		Degraded:      out.Degraded,
	})
	if err != nil {
		s.Logger.Error().Err(err).Str("account_id", ownerID).Msg("record project")
	}
}

func (s *Service) refund(ownerID, taskID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	balance, err := s.Accounts.RefundCredit(ctx, ownerID)
	if err != nil {
		s.Logger.Error().Err(err).Str("account_id", ownerID).Str("task_id", taskID).Msg("refund credit")
		return
	}
	s.Logger.Info().Str("account_id", ownerID).Str("task_id", taskID).Int("credits", balance).Msg("credit refunded")
}

func (s *Service) publish(evt events.Event) {
	if s.Events != nil {
		s.Events.Publish(evt)
	}
}

// Projects lists the owner's history, newest first.
func (s *Service) Projects(ctx context.Context, ownerID string) ([]storage.ProjectRecord, error) {
	if s.History == nil {
		return []storage.ProjectRecord{}, nil
	}
	return s.History.ListProjects(ctx, ownerID)
}

// DeleteProject removes one history entry.
func (s *Service) DeleteProject(ctx context.Context, ownerID, id string) error {
	if s.History == nil {
		return storage.ErrNotFound
	}
	return s.History.DeleteProject(ctx, ownerID, id)
}

// ColorDescription is how a swatch is named in prompts: "<category> - <name>".
func ColorDescription(sw catalog.Swatch) string {
	name := strings.TrimSpace(sw.Name)
	category := strings.TrimSpace(sw.Category)
	switch {
	case category == "":
		return name
	case name == "":
		return category
	}
	return category + " - " + name
}
