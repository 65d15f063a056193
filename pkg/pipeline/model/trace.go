package model

import "time"

// ExecutionTrace is the structured record of one pipeline execution: which
// steps ran, when, for how long and with what outcome.
type ExecutionTrace struct {
	PipelineID    string
	Steps         []StepRecord
	Descriptions  []string
	StartedAt     time.Time
	EndedAt       time.Time
	TotalDuration time.Duration
	Metadata      map[string]any
}

// Summary describes a pipeline's declared shape without executing it.
type Summary struct {
	ID               string
	StepCount        int
	StepDescriptions []string
}
