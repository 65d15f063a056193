package pipeline

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/convio/conveyor/pkg/pipeline/model"
)

var (
	ErrNilTransform     = errors.New("transform function must be set")
	ErrNilCondition     = errors.New("branch condition must be set")
	ErrNilSchema        = errors.New("schema validator must be set")
	ErrNilBuilder       = errors.New("sub-pipeline builder must be set")
	ErrEmptyParallel    = errors.New("parallel requires at least one branch builder")
	ErrNilComposeTarget = errors.New("compose target must be a built pipeline")
	ErrNilRegistry      = errors.New("format registry must be set")
)

// ConfigurationError reports malformed builder usage: a non-callable
// transform, an empty parallel set, a nil compose target or an adapter name
// that cannot be resolved. It is never retried.
type ConfigurationError struct {
	Op    string
	Cause error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("pipeline configuration: %s: %v", e.Op, e.Cause)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

func newConfigErr(op string, cause error) *ConfigurationError {
	return &ConfigurationError{Op: op, Cause: cause}
}

// StepExecutionError wraps a failure inside a pipeline step with the failing
// step's index and kind, the original error, and the trace accumulated
// through the failed step. It is always fatal to that execution.
type StepExecutionError struct {
	Index int
	Kind  model.StepKind
	Trace *model.ExecutionTrace
	Cause error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Kind, e.Cause)
}

func (e *StepExecutionError) Unwrap() error { return e.Cause }
