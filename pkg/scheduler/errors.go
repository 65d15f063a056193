package scheduler

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrShuttingDown  = errors.New("scheduler is shutting down")
	ErrTaskCancelled = errors.New("task was cancelled")
)

// QueueFullError rejects a submission when the wait queue is at capacity.
type QueueFullError struct {
	MaxQueueSize int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("wait queue is full (max %d)", e.MaxQueueSize)
}

// SchedulingError reports an operation against an unknown task id or a task
// in a state that does not permit the operation.
type SchedulingError struct {
	TaskID string
	Reason string
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("task %s: %s", e.TaskID, e.Reason)
}
