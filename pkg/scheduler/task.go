package scheduler

import (
	"context"
	"time"
)

// Priority orders tasks in the wait queue; higher is more urgent.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityNormal   Priority = 5
	PriorityHigh     Priority = 10
	PriorityCritical Priority = 20
)

// Status is a task's lifecycle state. Transitions are forward-only:
// pending → scheduled → running → completed|failed, with cancellation legal
// only from pending or scheduled.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// terminal reports whether no further transition is legal from s.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job is one schedulable unit of work, typically a batch processor.
type Job interface {
	Run(ctx context.Context) (any, error)
}

// JobFunc adapts a plain function into a Job.
type JobFunc func(ctx context.Context) (any, error)

func (f JobFunc) Run(ctx context.Context) (any, error) { return f(ctx) }

// task is the scheduler's internal record of one submitted job. All fields
// are guarded by the owning scheduler's lock except done, which is closed
// exactly once on the terminal transition.
type task struct {
	id        string
	job       Job
	priority  Priority
	effective Priority
	createdAt time.Time
	seq       uint64
	metadata  map[string]any

	status      Status
	transitions map[Status]time.Time
	result      any
	err         error

	done chan struct{}
}

func (t *task) transition(status Status) {
	t.status = status
	t.transitions[status] = time.Now()
}

// execDuration is the wall time the task spent running; zero until terminal.
func (t *task) execDuration() time.Duration {
	started, ok := t.transitions[StatusRunning]
	if !ok {
		return 0
	}

	finished, ok := t.transitions[t.status]
	if !ok || !t.status.terminal() {
		return 0
	}

	return finished.Sub(started)
}

// TaskInfo is a point-in-time snapshot of a task, safe to hold outside the
// scheduler's lock.
type TaskInfo struct {
	ID                string
	Priority          Priority
	EffectivePriority Priority
	Status            Status
	CreatedAt         time.Time
	Transitions       map[Status]time.Time
	Result            any
	Err               error
	Metadata          map[string]any
}

func (t *task) snapshot() TaskInfo {
	transitions := make(map[Status]time.Time, len(t.transitions))
	for status, at := range t.transitions {
		transitions[status] = at
	}

	return TaskInfo{
		ID:                t.id,
		Priority:          t.priority,
		EffectivePriority: t.effective,
		Status:            t.status,
		CreatedAt:         t.createdAt,
		Transitions:       transitions,
		Result:            t.result,
		Err:               t.err,
		Metadata:          t.metadata,
	}
}
