// Package scheduler provides priority admission control for many batch-like
// jobs sharing one global concurrency ceiling, independent of each job's own
// internal parallelism.
//
// Submitted jobs become tasks in a wait queue kept sorted by (priority
// descending, creation time ascending) before every dispatch decision. The
// admission loop drains capacity continuously: whenever a running task
// finishes, the highest-priority queued task starts. Long-waiting tasks can
// optionally have their effective priority boosted on a fixed interval so
// low-priority work is never starved.
//
// Event listeners are invoked outside the scheduler's lock and may call back
// into it.
package scheduler
