package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/convio/conveyor/pkg/format"
	"github.com/convio/conveyor/pkg/pipeline/model"
)

// TransformFunc is a user-supplied unary step function.
type TransformFunc func(ctx context.Context, data any) (any, error)

// Condition decides which arm of a branch step runs.
type Condition func(ctx context.Context, data any) (bool, error)

// Merger combines the ordered outputs of a parallel step's branches.
// Branch outputs are passed in builder order regardless of completion order.
type Merger func(ctx context.Context, outputs []any) (any, error)

// BuilderFunc populates a fresh sub-pipeline for a branch or parallel step.
type BuilderFunc func(p *Pipeline)

// Pipeline is an identity plus an ordered sequence of steps. It is built
// incrementally and must not be mutated concurrently with its own execution.
type Pipeline struct {
	id       string
	registry *format.Registry
	steps    []step
	buildErr error
}

type step struct {
	kind    model.StepKind
	id      string
	payload stepPayload
}

// stepPayload is the per-kind step payload. The payload shape is exactly
// determined by the step kind.
type stepPayload interface {
	describe() string
}

type parsePayload struct {
	format string
	opts   format.Options
}

func (p parsePayload) describe() string { return fmt.Sprintf("parse from %q", p.format) }

type formatPayload struct {
	format string
	opts   format.Options
}

func (p formatPayload) describe() string { return fmt.Sprintf("format to %q", p.format) }

type validatePayload struct {
	schema format.SchemaValidator
}

func (validatePayload) describe() string { return "validate against schema" }

type transformPayload struct {
	fn TransformFunc
}

func (transformPayload) describe() string { return "transform" }

type branchPayload struct {
	cond   Condition
	thenFn BuilderFunc
	elseFn BuilderFunc
}

func (p branchPayload) describe() string {
	if p.elseFn != nil {
		return "branch (then/else)"
	}

	return "branch (then)"
}

type parallelPayload struct {
	builders []BuilderFunc
	merger   Merger
}

func (p parallelPayload) describe() string {
	return fmt.Sprintf("parallel (%d branches)", len(p.builders))
}

type composePayload struct {
	inner *Pipeline
}

func (p composePayload) describe() string {
	return fmt.Sprintf("compose pipeline %s", p.inner.id)
}

// PipelineOption configures a new pipeline.
type PipelineOption func(p *Pipeline)

// WithID overrides the generated pipeline identity.
func WithID(id string) PipelineOption {
	return func(p *Pipeline) {
		p.id = id
	}
}

// New creates an empty pipeline resolving format names against registry.
func New(registry *format.Registry, opts ...PipelineOption) *Pipeline {
	pipe := &Pipeline{
		id:       uuid.New().String(),
		registry: registry,
	}
	if registry == nil {
		pipe.fail("new", ErrNilRegistry)
	}

	for _, opt := range opts {
		opt(pipe)
	}

	return pipe
}

// fail records the first builder error. The fluent chain keeps accepting
// calls so the error surfaces once, at Execute or Err.
func (p *Pipeline) fail(op string, cause error) {
	if p.buildErr == nil {
		p.buildErr = newConfigErr(op, cause)
	}
}

func (p *Pipeline) append(kind model.StepKind, payload stepPayload) *Pipeline {
	p.steps = append(p.steps, step{
		kind:    kind,
		id:      fmt.Sprintf("%s-%d", kind, len(p.steps)+1),
		payload: payload,
	})

	return p
}

// ID returns the pipeline identity.
func (p *Pipeline) ID() string { return p.id }

// Err returns the first builder error, if any, without executing.
func (p *Pipeline) Err() error {
	if p.buildErr != nil {
		return p.buildErr
	}

	return nil
}

// From appends a parse step that decodes the current data from the named
// format. The adapter is resolved at step-dispatch time, not at build time.
func (p *Pipeline) From(formatName string, opts format.Options) *Pipeline {
	return p.append(model.ParseStepKind, parsePayload{format: formatName, opts: opts})
}

// To appends a format step that encodes the current data into the named
// format. The adapter is resolved at step-dispatch time, not at build time.
func (p *Pipeline) To(formatName string, opts format.Options) *Pipeline {
	return p.append(model.FormatStepKind, formatPayload{format: formatName, opts: opts})
}

// Validate appends a step that passes the current data through schema. The
// validator may coerce the data; its output becomes the new current data.
func (p *Pipeline) Validate(schema format.SchemaValidator) *Pipeline {
	if schema == nil {
		p.fail("validate", ErrNilSchema)

		return p
	}

	return p.append(model.ValidateStepKind, validatePayload{schema: schema})
}

// Transform appends a step wrapping a unary user function.
func (p *Pipeline) Transform(fn TransformFunc) *Pipeline {
	if fn == nil {
		p.fail("transform", ErrNilTransform)

		return p
	}

	return p.append(model.TransformStepKind, transformPayload{fn: fn})
}

// Branch appends a conditional step. When cond reports true the then-builder
// runs against the current data, otherwise the else-builder; a nil
// else-builder passes the data through unchanged.
func (p *Pipeline) Branch(cond Condition, thenFn BuilderFunc, elseFn BuilderFunc) *Pipeline {
	if cond == nil {
		p.fail("branch", ErrNilCondition)

		return p
	}
	if thenFn == nil {
		p.fail("branch", ErrNilBuilder)

		return p
	}

	return p.append(model.BranchStepKind, branchPayload{cond: cond, thenFn: thenFn, elseFn: elseFn})
}

// Parallel appends a fan-out/fan-in step: one fresh sub-pipeline per builder,
// all run concurrently against the current data, joined all-or-nothing. The
// merger combines the branch outputs in builder order; a nil merger returns
// the ordered output slice as-is.
func (p *Pipeline) Parallel(builders []BuilderFunc, merger Merger) *Pipeline {
	if len(builders) == 0 {
		p.fail("parallel", ErrEmptyParallel)

		return p
	}

	for _, builder := range builders {
		if builder == nil {
			p.fail("parallel", ErrEmptyParallel)

			return p
		}
	}

	return p.append(model.ParallelStepKind, parallelPayload{builders: builders, merger: merger})
}

// Compose appends a step that delegates fully to a previously built
// pipeline. The inner pipeline runs with its own trace suppressed.
func (p *Pipeline) Compose(other *Pipeline) *Pipeline {
	if other == nil {
		p.fail("compose", ErrNilComposeTarget)

		return p
	}

	return p.append(model.ComposeStepKind, composePayload{inner: other})
}

// Summary describes the declared steps without executing them.
func (p *Pipeline) Summary() model.Summary {
	return model.Summary{
		ID:               p.id,
		StepCount:        len(p.steps),
		StepDescriptions: p.descriptions(),
	}
}

// Clone produces a pipeline with its own identity and an independent copy of
// the step list. Appending to the clone does not affect the original.
func (p *Pipeline) Clone() *Pipeline {
	clone := &Pipeline{
		id:       uuid.New().String(),
		registry: p.registry,
		steps:    make([]step, len(p.steps)),
		buildErr: p.buildErr,
	}
	copy(clone.steps, p.steps)

	return clone
}

// Infos returns one StepInfo per declared step, in append order.
func (p *Pipeline) Infos() []model.StepInfo {
	infos := make([]model.StepInfo, len(p.steps))
	for i, st := range p.steps {
		infos[i] = model.StepInfo{
			Kind:        st.kind,
			ID:          st.id,
			Description: st.payload.describe(),
		}
	}

	return infos
}

func (p *Pipeline) descriptions() []string {
	descriptions := make([]string, len(p.steps))
	for i, st := range p.steps {
		descriptions[i] = st.payload.describe()
	}

	return descriptions
}

// sub creates a fresh pipeline sharing the registry, used by branch and
// parallel steps to scope their builders.
func (p *Pipeline) sub() *Pipeline {
	return New(p.registry)
}
