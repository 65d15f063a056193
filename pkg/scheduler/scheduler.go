package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/convio/conveyor/pkg/event"
)

const (
	defaultMaxConcurrent = 2
	defaultMaxQueueSize  = 100
	defaultBoostAmount   = 1
)

// Event names emitted by a scheduler. Payloads are TaskInfo snapshots except
// for the lifecycle events, which carry no payload.
const (
	EventTaskScheduled = "scheduler:task:scheduled"
	EventTaskStarted   = "scheduler:task:started"
	EventTaskCompleted = "scheduler:task:completed"
	EventTaskFailed    = "scheduler:task:failed"
	EventTaskCancelled = "scheduler:task:cancelled"
	EventPaused        = "scheduler:paused"
	EventResumed       = "scheduler:resumed"
	EventShutdown      = "scheduler:shutdown"
)

// Option configures a new scheduler.
type Option func(s *Scheduler)

// WithMaxConcurrent caps how many tasks may run simultaneously, independent
// of each task's internal parallelism.
func WithMaxConcurrent(maxConcurrent int) Option {
	return func(s *Scheduler) {
		if maxConcurrent > 0 {
			s.maxConcurrent = maxConcurrent
		}
	}
}

// WithMaxQueueSize caps the wait queue; submissions beyond it are rejected
// with a QueueFullError.
func WithMaxQueueSize(maxQueueSize int) Option {
	return func(s *Scheduler) {
		if maxQueueSize > 0 {
			s.maxQueueSize = maxQueueSize
		}
	}
}

// WithBoost enables priority boosting: on every interval, each queued task
// waiting longer than threshold gains amount effective priority, so
// low-priority work is not starved under sustained high-priority load.
func WithBoost(interval, threshold time.Duration, amount Priority) Option {
	return func(s *Scheduler) {
		s.boostInterval = interval
		s.boostThreshold = threshold
		if amount > 0 {
			s.boostAmount = amount
		}
	}
}

// WithEmitter sets the emitter task lifecycle events are published on.
func WithEmitter(emitter *event.Emitter) Option {
	return func(s *Scheduler) {
		s.emitter = emitter
	}
}

// Scheduler admits and prioritizes jobs under a global concurrency ceiling.
// Safe for concurrent use; one coarse lock guards the task table, wait queue
// and running set.
type Scheduler struct {
	maxConcurrent  int
	maxQueueSize   int
	boostInterval  time.Duration
	boostThreshold time.Duration
	boostAmount    Priority
	emitter        *event.Emitter

	runCtx    context.Context
	cancelRun context.CancelFunc

	mu          sync.Mutex
	tasks       map[string]*task
	queue       []*task
	running     map[string]*task
	seq         uint64
	paused      bool
	stopped     bool
	completed   int
	failed      int
	idleWaiters []chan struct{}

	stopBoost chan struct{}
	boostDone chan struct{}
}

// New creates a scheduler and starts its boost ticker when boosting is
// configured.
func New(opts ...Option) *Scheduler {
	runCtx, cancelRun := context.WithCancel(context.Background())

	sched := &Scheduler{
		maxConcurrent: defaultMaxConcurrent,
		maxQueueSize:  defaultMaxQueueSize,
		boostAmount:   defaultBoostAmount,
		emitter:       event.NewEmitter(),
		runCtx:        runCtx,
		cancelRun:     cancelRun,
		tasks:         make(map[string]*task),
		running:       make(map[string]*task),
	}

	for _, opt := range opts {
		opt(sched)
	}

	if sched.boostInterval > 0 {
		sched.stopBoost = make(chan struct{})
		sched.boostDone = make(chan struct{})

		go sched.boostLoop()
	}

	return sched
}

// Emitter returns the emitter lifecycle events are published on.
func (s *Scheduler) Emitter() *event.Emitter { return s.emitter }

// ScheduleOption configures one submission.
type ScheduleOption func(t *task)

// WithPriority sets the task's priority (default PriorityNormal).
func WithPriority(priority Priority) ScheduleOption {
	return func(t *task) {
		t.priority = priority
		t.effective = priority
	}
}

// WithTaskID overrides the generated task id.
func WithTaskID(id string) ScheduleOption {
	return func(t *task) {
		t.id = id
	}
}

// WithTaskMetadata attaches caller metadata to the task.
func WithTaskMetadata(metadata map[string]any) ScheduleOption {
	return func(t *task) {
		t.metadata = metadata
	}
}

// Schedule submits a job and returns its task id. It rejects with a
// QueueFullError when the wait queue is at capacity, then re-runs the
// admission loop so the task starts immediately if a slot is free.
func (s *Scheduler) Schedule(job Job, opts ...ScheduleOption) (string, error) {
	if job == nil {
		return "", errors.New("job must be set")
	}

	s.mu.Lock()

	if s.stopped {
		s.mu.Unlock()

		return "", ErrShuttingDown
	}

	if len(s.queue) >= s.maxQueueSize {
		maxQueueSize := s.maxQueueSize
		s.mu.Unlock()

		return "", &QueueFullError{MaxQueueSize: maxQueueSize}
	}

	s.seq++
	newTask := &task{
		id:          uuid.New().String(),
		job:         job,
		priority:    PriorityNormal,
		effective:   PriorityNormal,
		createdAt:   time.Now(),
		seq:         s.seq,
		status:      StatusPending,
		transitions: map[Status]time.Time{StatusPending: time.Now()},
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(newTask)
	}

	s.tasks[newTask.id] = newTask
	s.queue = append(s.queue, newTask)

	events, toStart := s.dispatchLocked()
	id := newTask.id
	s.mu.Unlock()

	s.launch(events, toStart)

	return id, nil
}

// Cancel cancels a task that has not been dispatched yet. It fails with a
// SchedulingError for unknown ids and for tasks already running or terminal.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()

	target, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()

		return &SchedulingError{TaskID: id, Reason: "unknown task"}
	}

	if target.status != StatusPending && target.status != StatusScheduled {
		reason := "cannot cancel task in status " + string(target.status)
		s.mu.Unlock()

		return &SchedulingError{TaskID: id, Reason: reason}
	}

	for i, queued := range s.queue {
		if queued.id == id {
			s.queue = append(s.queue[:i:i], s.queue[i+1:]...)

			break
		}
	}

	target.transition(StatusCancelled)
	target.err = ErrTaskCancelled
	close(target.done)
	s.notifyIdleLocked()

	info := target.snapshot()
	s.mu.Unlock()

	s.publish([]taskEvent{{name: EventTaskCancelled, info: info}})

	return nil
}

// WaitFor blocks until the task reaches a terminal status and returns its
// outcome. Already-terminal tasks return immediately.
func (s *Scheduler) WaitFor(ctx context.Context, id string) (any, error) {
	s.mu.Lock()
	target, ok := s.tasks[id]
	s.mu.Unlock()

	if !ok {
		return nil, &SchedulingError{TaskID: id, Reason: "unknown task"}
	}

	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "waiting for task")
	case <-target.done:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return target.result, target.err
}

// WaitForAll blocks until the wait queue and the running set are
// simultaneously empty.
func (s *Scheduler) WaitForAll(ctx context.Context) error {
	s.mu.Lock()

	if s.isIdleLocked() {
		s.mu.Unlock()

		return nil
	}

	idle := make(chan struct{})
	s.idleWaiters = append(s.idleWaiters, idle)
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for all tasks")
	case <-idle:
		return nil
	}
}

// Pause halts new admissions. Running tasks keep running.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()

	s.emitter.Emit(EventPaused, nil)
}

// Resume re-enables admissions and drains any available capacity.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	events, toStart := s.dispatchLocked()
	s.mu.Unlock()

	s.emitter.Emit(EventResumed, nil)
	s.launch(events, toStart)
}

// ClearCompleted purges terminal tasks from the task table and returns the
// purge count. A positive olderThan keeps terminal tasks younger than it.
func (s *Scheduler) ClearCompleted(olderThan time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	purged := 0

	for id, target := range s.tasks {
		if !target.status.terminal() {
			continue
		}

		if olderThan > 0 {
			if finishedAt, ok := target.transitions[target.status]; ok && finishedAt.After(cutoff) {
				continue
			}
		}

		delete(s.tasks, id)
		purged++
	}

	return purged
}

// Shutdown drops the pending queue immediately. With graceful set it awaits
// all currently running tasks; otherwise it clears the running set without
// waiting and cancels the context their jobs run under, so cooperative jobs
// stop early while work that ignores it continues untracked.
func (s *Scheduler) Shutdown(ctx context.Context, graceful bool) error {
	s.mu.Lock()

	if s.stopped {
		s.mu.Unlock()

		return nil
	}

	s.stopped = true

	if s.stopBoost != nil {
		close(s.stopBoost)
	}

	events := make([]taskEvent, 0, len(s.queue)+1)

	for _, queued := range s.queue {
		queued.transition(StatusCancelled)
		queued.err = ErrTaskCancelled
		close(queued.done)
		events = append(events, taskEvent{name: EventTaskCancelled, info: queued.snapshot()})
	}

	s.queue = nil

	if !graceful {
		for id := range s.running {
			delete(s.running, id)
		}

		s.cancelRun()
	}

	s.notifyIdleLocked()
	s.mu.Unlock()

	s.publish(events)
	s.emitter.Emit(EventShutdown, nil)

	if graceful {
		if err := s.WaitForAll(ctx); err != nil {
			return err
		}

		s.cancelRun()
	}

	if s.boostDone != nil {
		<-s.boostDone
	}

	return nil
}

// Task returns a snapshot of the task with the given id.
func (s *Scheduler) Task(id string) (TaskInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.tasks[id]
	if !ok {
		return TaskInfo{}, &SchedulingError{TaskID: id, Reason: "unknown task"}
	}

	return target.snapshot(), nil
}

type taskEvent struct {
	name string
	info TaskInfo
}

func (s *Scheduler) publish(events []taskEvent) {
	for _, ev := range events {
		s.emitter.Emit(ev.name, ev.info)
	}
}

// launch publishes the admission events, then starts the dispatched tasks.
// Publishing first keeps scheduled/started events ahead of the task's own
// terminal event.
func (s *Scheduler) launch(events []taskEvent, toStart []*task) {
	s.publish(events)

	for _, next := range toStart {
		go s.execute(next)
	}
}

// dispatchLocked is the admission loop: while capacity remains and the queue
// is non-empty, pop the highest-priority task and mark it running. The queue
// is re-sorted before every dispatch decision. Caller holds s.mu and must
// hand the results to launch after unlocking.
func (s *Scheduler) dispatchLocked() ([]taskEvent, []*task) {
	if s.paused || s.stopped {
		return nil, nil
	}

	var (
		events  []taskEvent
		toStart []*task
	)

	s.sortQueueLocked()

	for len(s.running) < s.maxConcurrent && len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]

		next.transition(StatusScheduled)
		events = append(events, taskEvent{name: EventTaskScheduled, info: next.snapshot()})

		next.transition(StatusRunning)
		s.running[next.id] = next
		events = append(events, taskEvent{name: EventTaskStarted, info: next.snapshot()})

		toStart = append(toStart, next)
	}

	return events, toStart
}

func (s *Scheduler) execute(target *task) {
	result, err := runJob(s.runCtx, target.job)

	s.mu.Lock()

	delete(s.running, target.id)

	name := EventTaskCompleted
	if err != nil {
		target.transition(StatusFailed)
		target.err = err
		s.failed++
		name = EventTaskFailed
	} else {
		target.transition(StatusCompleted)
		target.result = result
		s.completed++
	}

	close(target.done)

	events, toStart := s.dispatchLocked()
	events = append([]taskEvent{{name: name, info: target.snapshot()}}, events...)
	s.notifyIdleLocked()
	s.mu.Unlock()

	s.launch(events, toStart)
}

// runJob isolates a panicking job into a task failure.
func runJob(ctx context.Context, job Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("job panicked: %v", r)
		}
	}()

	return job.Run(ctx)
}

func (s *Scheduler) sortQueueLocked() {
	sort.SliceStable(s.queue, func(i, j int) bool {
		if s.queue[i].effective != s.queue[j].effective {
			return s.queue[i].effective > s.queue[j].effective
		}
		if !s.queue[i].createdAt.Equal(s.queue[j].createdAt) {
			return s.queue[i].createdAt.Before(s.queue[j].createdAt)
		}

		return s.queue[i].seq < s.queue[j].seq
	})
}

func (s *Scheduler) isIdleLocked() bool {
	return len(s.queue) == 0 && len(s.running) == 0
}

func (s *Scheduler) notifyIdleLocked() {
	if !s.isIdleLocked() {
		return
	}

	for _, idle := range s.idleWaiters {
		close(idle)
	}

	s.idleWaiters = nil
}

// boostLoop grows the effective priority of long-waiting queued tasks on a
// fixed interval.
func (s *Scheduler) boostLoop() {
	defer close(s.boostDone)

	ticker := time.NewTicker(s.boostInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopBoost:
			return
		case <-ticker.C:
			s.mu.Lock()

			now := time.Now()
			for _, queued := range s.queue {
				if now.Sub(queued.createdAt) > s.boostThreshold {
					queued.effective += s.boostAmount
				}
			}

			s.sortQueueLocked()
			s.mu.Unlock()
		}
	}
}
