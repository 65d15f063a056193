package batch

import (
	"time"

	"github.com/convio/conveyor/pkg/format"
	"github.com/convio/conveyor/pkg/pipeline/model"
)

// Operation is the kind of work a processor applies to every item.
type Operation string

const (
	OperationParse   Operation = "parse"
	OperationFormat  Operation = "format"
	OperationConvert Operation = "convert"
)

// Event names emitted by a processor.
const (
	// EventProgress fires after every item, success or failure, with a
	// Progress payload. Events fire in completion order.
	EventProgress = "batch:progress"
	// EventItemDone fires after every item with its ItemResult.
	EventItemDone = "batch:item"
)

// WorkItem is one independent unit of work.
type WorkItem struct {
	ID       string
	Payload  any
	Format   string
	ToFormat string
	Options  format.Options
}

// ItemResult is the isolated outcome of one work item.
type ItemResult struct {
	ID         string
	Success    bool
	Data       any
	Err        error
	Detail     string
	Duration   time.Duration
	Provenance *model.ExecutionTrace
}

// Progress is the payload of EventProgress.
type Progress struct {
	Completed  int
	Total      int
	Successful int
	Failed     int
	Percent    float64
	Result     ItemResult
}

// Trace is the batch-level execution record.
type Trace struct {
	BatchID     string
	Operation   Operation
	ItemCount   int
	Started     int
	Parallelism int
	WallClock   time.Duration
}

// Summary aggregates a batch run. Results preserves item-insertion order
// regardless of completion order and covers only items that were started.
type Summary struct {
	Total         int
	Successful    int
	Failed        int
	Results       []ItemResult
	TotalDuration time.Duration
	AvgDuration   time.Duration
	Trace         *Trace
}
