package recolor

import "context"

// Stage names reported while a recolor is in flight.
const (
	StageUploaded  = "uploaded"
	StageSubmitted = "submitted"
	StagePolling   = "polling"
	StageEditing   = "editing"
	StageDone      = "done"
)

// Progress is a single step reported by a strategy.
type Progress struct {
	Stage   string    `json:"stage"`
	TaskID  string    `json:"task_id,omitempty"`
	Attempt int       `json:"attempt,omitempty"`
	Status  JobStatus `json:"status,omitempty"`
}

type progressKey struct{}

// WithProgress attaches a progress callback to ctx.
func WithProgress(ctx context.Context, fn func(Progress)) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

func report(ctx context.Context, p Progress) {
	if fn, ok := ctx.Value(progressKey{}).(func(Progress)); ok && fn != nil {
		fn(p)
	}
}
