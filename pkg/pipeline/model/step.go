package model

import "time"

// StepKind identifies what a pipeline step does. The payload a step carries
// is exactly determined by its kind.
type StepKind string

const (
	ParseStepKind     StepKind = "parse"
	FormatStepKind    StepKind = "format"
	ValidateStepKind  StepKind = "validate"
	TransformStepKind StepKind = "transform"
	BranchStepKind    StepKind = "branch"
	ParallelStepKind  StepKind = "parallel"
	ComposeStepKind   StepKind = "compose"
)

// StepInfo describes one declared step without exposing its payload.
type StepInfo struct {
	Kind        StepKind
	ID          string
	Description string
}

// StepRecord is the trace entry for one executed (or, on a dry run,
// declared) step.
type StepRecord struct {
	Kind      StepKind
	StepID    string
	Timestamp time.Time
	Duration  time.Duration
	Metadata  map[string]any
	Error     string
}
