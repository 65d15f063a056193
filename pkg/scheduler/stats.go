package scheduler

import (
	"runtime"
	"time"

	"github.com/samber/lo"
)

// Stats is a point-in-time view of the scheduler's load. MemoryAlloc is
// informational process-wide heap usage, not scheduler-owned memory.
type Stats struct {
	Active           int
	Queued           int
	Completed        int
	Failed           int
	AvgExecTime      time.Duration
	MemoryAlloc      uint64
	QueueUtilization float64
}

// ResourceStats reports active/queued/completed/failed counts, the average
// execution time over completed tasks still in the task table, process
// memory usage and queue utilization as a percentage of the queue cap.
func (s *Scheduler) ResourceStats() Stats {
	var memStats runtime.MemStats

	runtime.ReadMemStats(&memStats)

	s.mu.Lock()
	defer s.mu.Unlock()

	completedTasks := lo.Filter(lo.Values(s.tasks), func(t *task, _ int) bool {
		return t.status == StatusCompleted
	})

	avg := time.Duration(0)
	if len(completedTasks) > 0 {
		total := lo.SumBy(completedTasks, func(t *task) time.Duration { return t.execDuration() })
		avg = total / time.Duration(len(completedTasks))
	}

	return Stats{
		Active:           len(s.running),
		Queued:           len(s.queue),
		Completed:        s.completed,
		Failed:           s.failed,
		AvgExecTime:      avg,
		MemoryAlloc:      memStats.Alloc,
		QueueUtilization: float64(len(s.queue)) / float64(s.maxQueueSize) * 100,
	}
}
