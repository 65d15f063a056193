package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/convio/conveyor/pkg/event"
	"github.com/convio/conveyor/pkg/format"
	"github.com/convio/conveyor/pkg/pipeline"
)

const defaultParallel = 4

var (
	ErrNilRegistry      = errors.New("format registry must be set")
	ErrUnknownOperation = errors.New("unknown batch operation")
)

// ProcessorOption configures a new processor.
type ProcessorOption func(p *Processor)

// WithParallel caps how many items may be in flight simultaneously.
func WithParallel(parallel int) ProcessorOption {
	return func(p *Processor) {
		if parallel > 0 {
			p.parallel = parallel
		}
	}
}

// WithContinueOnError controls whether new items keep starting after a
// failure. Enabled by default; when disabled, a first failure blocks new
// starts while items already in flight finish.
func WithContinueOnError(continueOnError bool) ProcessorOption {
	return func(p *Processor) {
		p.continueOnError = continueOnError
	}
}

// WithDetailedErrors attaches the failing step's detail and partial trace to
// failed item results.
func WithDetailedErrors() ProcessorOption {
	return func(p *Processor) {
		p.detailedErrors = true
	}
}

// WithItemProvenance attaches a per-item execution trace to successful
// results.
func WithItemProvenance() ProcessorOption {
	return func(p *Processor) {
		p.includeProvenance = true
	}
}

// WithEmitter sets the emitter progress and per-item events are published on.
func WithEmitter(emitter *event.Emitter) ProcessorOption {
	return func(p *Processor) {
		p.emitter = emitter
	}
}

// Processor applies one operation to many independent work items
// concurrently. Items must be added before Execute; a processor must not be
// mutated concurrently with its own execution.
type Processor struct {
	id        string
	operation Operation
	registry  *format.Registry
	emitter   *event.Emitter

	parallel          int
	continueOnError   bool
	detailedErrors    bool
	includeProvenance bool

	mu    sync.Mutex
	items []WorkItem
}

// NewProcessor creates a processor for the given operation.
func NewProcessor(operation Operation, registry *format.Registry, opts ...ProcessorOption) (*Processor, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}

	switch operation {
	case OperationParse, OperationFormat, OperationConvert:
	default:
		return nil, errors.Wrap(ErrUnknownOperation, string(operation))
	}

	proc := &Processor{
		id:              uuid.New().String(),
		operation:       operation,
		registry:        registry,
		emitter:         event.NewEmitter(),
		parallel:        defaultParallel,
		continueOnError: true,
	}

	for _, opt := range opts {
		opt(proc)
	}

	return proc, nil
}

// ID returns the batch identity.
func (p *Processor) ID() string { return p.id }

// Emitter returns the emitter progress events are published on.
func (p *Processor) Emitter() *event.Emitter { return p.emitter }

// Add enqueues a work item.
func (p *Processor) Add(id string, payload any, formatName string, opts format.Options) *Processor {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.items = append(p.items, WorkItem{ID: id, Payload: payload, Format: formatName, Options: opts})

	return p
}

// AddConversion enqueues a work item converting from one format to another.
func (p *Processor) AddConversion(id string, payload any, from, to string, opts format.Options) *Processor {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.items = append(p.items, WorkItem{ID: id, Payload: payload, Format: from, ToFormat: to, Options: opts})

	return p
}

// Len reports how many items are enqueued.
func (p *Processor) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.items)
}

// Execute runs all enqueued items under the sliding-window scheduler and
// returns the aggregate summary. Aggregate runs always complete: item
// failures are recorded, never propagated as an execution error.
func (p *Processor) Execute(ctx context.Context) (*Summary, error) {
	p.mu.Lock()
	items := make([]WorkItem, len(p.items))
	copy(items, p.items)
	p.mu.Unlock()

	pool, err := ants.NewPool(p.parallel)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create worker pool")
	}
	defer pool.Release()

	start := time.Now()

	var (
		wg       sync.WaitGroup
		stopped  atomic.Bool
		progress progressState
	)

	progress.total = len(items)

	results := make([]ItemResult, len(items))
	ran := make([]bool, len(items))

	for i := range items {
		if !p.continueOnError && stopped.Load() {
			break
		}

		item := items[i]
		idx := i

		wg.Add(1)

		// Submit blocks while parallel items are in flight, so at most
		// parallel items ever run simultaneously.
		err := pool.Submit(func() {
			defer wg.Done()

			// A failure may have landed while this item waited for a
			// worker slot; it must not start anymore.
			if !p.continueOnError && stopped.Load() {
				return
			}

			ran[idx] = true
			results[idx] = p.runItem(ctx, item)

			if !results[idx].Success {
				stopped.Store(true)
			}

			p.publish(&progress, results[idx])
		})
		if err != nil {
			wg.Done()

			return nil, errors.Wrap(err, "unable to submit work item")
		}
	}

	wg.Wait()

	return p.summarize(items, results, ran, time.Since(start)), nil
}

// Run executes the batch, satisfying the scheduler's job contract.
func (p *Processor) Run(ctx context.Context) (any, error) {
	return p.Execute(ctx)
}

type progressState struct {
	mu         sync.Mutex
	total      int
	completed  int
	successful int
	failed     int
}

// publish fires the progress and per-item events in completion order. The
// state lock keeps the running counts consistent with the event order.
func (p *Processor) publish(progress *progressState, result ItemResult) {
	progress.mu.Lock()
	defer progress.mu.Unlock()

	progress.completed++
	if result.Success {
		progress.successful++
	} else {
		progress.failed++
	}

	p.emitter.Emit(EventProgress, Progress{
		Completed:  progress.completed,
		Total:      progress.total,
		Successful: progress.successful,
		Failed:     progress.failed,
		Percent:    float64(progress.completed) / float64(progress.total) * 100,
		Result:     result,
	})
	p.emitter.Emit(EventItemDone, result)
}

// runItem executes one item through a single-use pipeline for the
// processor's operation. The item's failure stays isolated in its result.
func (p *Processor) runItem(ctx context.Context, item WorkItem) ItemResult {
	pipe := pipeline.New(p.registry, pipeline.WithID(p.id+"/"+item.ID))

	switch p.operation {
	case OperationParse:
		pipe.From(item.Format, item.Options)
	case OperationFormat:
		pipe.To(item.Format, item.Options)
	case OperationConvert:
		pipe.From(item.Format, item.Options).To(item.ToFormat, item.Options)
	}

	var execOpts []pipeline.ExecOption
	if p.includeProvenance {
		execOpts = append(execOpts, pipeline.WithProvenance())
	}

	start := time.Now()
	res, err := pipe.Execute(ctx, item.Payload, execOpts...)
	elapsed := time.Since(start)

	if err != nil {
		result := ItemResult{ID: item.ID, Err: err, Duration: elapsed}

		if p.detailedErrors {
			result.Detail = err.Error()

			var stepErr *pipeline.StepExecutionError
			if errors.As(err, &stepErr) {
				result.Provenance = stepErr.Trace
			}
		}

		return result
	}

	return ItemResult{
		ID:         item.ID,
		Success:    true,
		Data:       res.Data,
		Duration:   elapsed,
		Provenance: res.Provenance,
	}
}

func (p *Processor) summarize(items []WorkItem, results []ItemResult, ran []bool, wallClock time.Duration) *Summary {
	// Only items that actually started belong in the summary, in insertion
	// order.
	started := make([]ItemResult, 0, len(results))
	for i := range results {
		if ran[i] {
			started = append(started, results[i])
		}
	}

	successful := lo.CountBy(started, func(r ItemResult) bool { return r.Success })
	totalDuration := lo.SumBy(started, func(r ItemResult) time.Duration { return r.Duration })

	avg := time.Duration(0)
	if len(started) > 0 {
		avg = totalDuration / time.Duration(len(started))
	}

	return &Summary{
		Total:         len(started),
		Successful:    successful,
		Failed:        len(started) - successful,
		Results:       started,
		TotalDuration: totalDuration,
		AvgDuration:   avg,
		Trace: &Trace{
			BatchID:     p.id,
			Operation:   p.operation,
			ItemCount:   len(items),
			Started:     len(started),
			Parallelism: p.parallel,
			WallClock:   wallClock,
		},
	}
}
