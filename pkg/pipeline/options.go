package pipeline

import "github.com/convio/conveyor/pkg/pipeline/model"

// OnStepFunc observes every executed step with its record and the data
// produced by the step. Failures inside the callback are not caught.
type OnStepFunc func(record model.StepRecord, data any)

type execConfig struct {
	includeProvenance bool
	dryRun            bool
	stopAt            int
	metadata          map[string]any
	onStep            OnStepFunc
}

// ExecOption configures a single execution.
type ExecOption func(cfg *execConfig)

// WithProvenance attaches the execution trace to the result.
func WithProvenance() ExecOption {
	return func(cfg *execConfig) {
		cfg.includeProvenance = true
	}
}

// WithDryRun previews the workflow's shape: no adapter, validator or user
// function is invoked, and the result carries a synthesized trace with one
// description per declared step and zero duration.
func WithDryRun() ExecOption {
	return func(cfg *execConfig) {
		cfg.dryRun = true
	}
}

// WithStopAt halts execution before the step at index k. The data
// accumulated so far is returned as a valid, non-error result.
func WithStopAt(k int) ExecOption {
	return func(cfg *execConfig) {
		cfg.stopAt = k
	}
}

// WithMetadata attaches caller metadata to the execution trace.
func WithMetadata(metadata map[string]any) ExecOption {
	return func(cfg *execConfig) {
		cfg.metadata = metadata
	}
}

// WithOnStep registers a callback invoked after every executed step.
func WithOnStep(fn OnStepFunc) ExecOption {
	return func(cfg *execConfig) {
		cfg.onStep = fn
	}
}
