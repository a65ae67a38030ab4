package recolor

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Outcome is what the user sees: a result image and, when degraded, the reason.
type Outcome struct {
	Result   Result
	Degraded bool
	Err      error
}

// Fallback wraps a Strategy so that failures surface the original image
// together with the error instead of failing the request.
type Fallback struct {
	Strategy Strategy
	Logger   zerolog.Logger
}

// Run executes the wrapped strategy. Cancellation is not degraded: a
// cancelled run reports ctx.Err() and no result.
func (f Fallback) Run(ctx context.Context, req Request) Outcome {
	res, err := f.Strategy.Recolor(ctx, req)
	if err == nil {
		return Outcome{Result: res}
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return Outcome{Err: err}
	}
	f.Logger.Warn().Err(err).Str("strategy", f.Strategy.Name()).Msg("recolor failed, returning original image")
	return Outcome{
		Result: Result{
			Data:     req.Source.Data,
			MIMEType: req.Source.MIMEType,
			Strategy: f.Strategy.Name(),
		},
		Degraded: true,
		Err:      err,
	}
}
