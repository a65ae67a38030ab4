package recolor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Task is a recolor running in the background that can be cancelled.
type Task struct {
	ID        string
	SessionID string
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	outcome    Outcome
	canceled   bool
	committed  bool
	finishedAt time.Time
}

// Cancel stops the task and reports whether it took effect. Any result that
// arrives afterwards is discarded. Once the run has committed its result
// (see Commit) Cancel is a no-op and returns false.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	if t.committed {
		t.mu.Unlock()
		return false
	}
	t.canceled = true
	t.mu.Unlock()
	t.cancel()
	return true
}

// Commit is called by a run before it acts on its result (charging,
// recording). It returns false when the task was cancelled first; after a
// true return the task can no longer be cancelled.
func Commit(ctx context.Context) bool {
	t, ok := ctx.Value(taskKey{}).(*Task)
	if !ok {
		return ctx.Err() == nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.canceled {
		return false
	}
	t.committed = true
	return true
}

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Outcome returns the final outcome and whether the task has finished.
func (t *Task) Outcome() (Outcome, bool) {
	select {
	case <-t.done:
	default:
		return Outcome{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome, true
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		out, _ := t.Outcome()
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (t *Task) finish(out Outcome) {
	t.mu.Lock()
	if t.canceled && !t.committed {
		out = Outcome{Err: context.Canceled}
	}
	t.outcome = out
	t.finishedAt = time.Now()
	t.mu.Unlock()
	close(t.done)
}

// Tasks tracks background recolors and allows one in flight per session.
type Tasks struct {
	// Retention is how long finished tasks stay retrievable.
	Retention time.Duration

	mu       sync.Mutex
	sessions map[string]*semaphore.Weighted
	tasks    map[string]*Task
}

// NewTasks constructs an empty registry.
func NewTasks() *Tasks {
	return &Tasks{
		Retention: 15 * time.Minute,
		sessions:  make(map[string]*semaphore.Weighted),
		tasks:     make(map[string]*Task),
	}
}

// Start launches run in the background for the session. A second Start for a
// session whose previous task is still running is rejected with ErrBusy.
func (ts *Tasks) Start(sessionID string, run func(ctx context.Context) Outcome) (*Task, error) {
	ts.mu.Lock()
	ts.pruneLocked(time.Now())
	sem, ok := ts.sessions[sessionID]
	if !ok {
		sem = semaphore.NewWeighted(1)
		ts.sessions[sessionID] = sem
	}
	// acquired under ts.mu so pruneLocked never drops a semaphore about to be taken
	if !sem.TryAcquire(1) {
		ts.mu.Unlock()
		return nil, ErrBusy
	}
	ts.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	task := &Task{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	ctx = context.WithValue(ctx, taskKey{}, task)

	ts.mu.Lock()
	ts.tasks[task.ID] = task
	ts.mu.Unlock()

	go func() {
		out := run(ctx)
		cancel()
		sem.Release(1)
		task.finish(out)
	}()
	return task, nil
}

type taskKey struct{}

// TaskID returns the id of the task whose run function received ctx.
func TaskID(ctx context.Context) string {
	if t, ok := ctx.Value(taskKey{}).(*Task); ok {
		return t.ID
	}
	return ""
}

// Get returns a task by id.
func (ts *Tasks) Get(id string) (*Task, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t, ok := ts.tasks[id]
	return t, ok
}

func (ts *Tasks) pruneLocked(now time.Time) {
	retention := ts.Retention
	if retention <= 0 {
		retention = 15 * time.Minute
	}
	for id, t := range ts.tasks {
		t.mu.Lock()
		expired := !t.finishedAt.IsZero() && now.Sub(t.finishedAt) > retention
		t.mu.Unlock()
		if expired {
			delete(ts.tasks, id)
		}
	}
	for sessionID, sem := range ts.sessions {
		if sem.TryAcquire(1) {
			sem.Release(1)
			delete(ts.sessions, sessionID)
		}
	}
}
