package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/convio/conveyor/pkg/pipeline/model"
)

// Result is the outcome of one execution. Provenance is nil unless the
// execution ran with WithProvenance or WithDryRun.
type Result struct {
	Data          any
	Provenance    *model.ExecutionTrace
	StepsExecuted int
}

// Run executes the pipeline and returns the final data only.
func (p *Pipeline) Run(ctx context.Context, input any) (any, error) {
	res, err := p.Execute(ctx, input)
	if err != nil {
		return nil, err
	}

	return res.Data, nil
}

// Execute runs the declared steps strictly in append order against input.
//
// Any step failure aborts the remainder immediately; the returned error is a
// *StepExecutionError carrying the failing step's index and kind, the
// original error and the trace accumulated through the failed step.
func (p *Pipeline) Execute(ctx context.Context, input any, opts ...ExecOption) (*Result, error) {
	if p.buildErr != nil {
		return nil, p.buildErr
	}

	cfg := &execConfig{stopAt: -1}
	for _, opt := range opts {
		opt(cfg)
	}

	trace := &model.ExecutionTrace{
		PipelineID:   p.id,
		StartedAt:    time.Now(),
		Descriptions: p.descriptions(),
		Metadata:     cfg.metadata,
	}

	if cfg.dryRun {
		return p.dryRun(trace, input), nil
	}

	data := input
	executed := 0

	for i, st := range p.steps {
		if cfg.stopAt >= 0 && i >= cfg.stopAt {
			break
		}

		start := time.Now()
		out, meta, err := p.dispatch(ctx, st, data, cfg)

		record := model.StepRecord{
			Kind:      st.kind,
			StepID:    st.id,
			Timestamp: start,
			Duration:  time.Since(start),
			Metadata:  meta,
		}

		if err != nil {
			record.Error = err.Error()
			trace.Steps = append(trace.Steps, record)
			p.finish(trace)

			return nil, &StepExecutionError{Index: i, Kind: st.kind, Trace: trace, Cause: err}
		}

		trace.Steps = append(trace.Steps, record)
		executed++
		data = out

		if cfg.onStep != nil {
			cfg.onStep(record, data)
		}
	}

	p.finish(trace)

	res := &Result{Data: data, StepsExecuted: executed}
	if cfg.includeProvenance {
		res.Provenance = trace
	}

	return res, nil
}

func (p *Pipeline) finish(trace *model.ExecutionTrace) {
	trace.EndedAt = time.Now()
	trace.TotalDuration = trace.EndedAt.Sub(trace.StartedAt)
}

// dryRun synthesizes a trace with one zero-duration record per declared step
// without invoking any underlying call. The trace is always attached, since
// previewing the workflow's shape is the sole point of a dry run.
func (p *Pipeline) dryRun(trace *model.ExecutionTrace, input any) *Result {
	trace.EndedAt = trace.StartedAt
	trace.Steps = make([]model.StepRecord, len(p.steps))
	for i, st := range p.steps {
		trace.Steps[i] = model.StepRecord{
			Kind:      st.kind,
			StepID:    st.id,
			Timestamp: trace.StartedAt,
			Metadata:  map[string]any{"description": st.payload.describe(), "dryRun": true},
		}
	}

	return &Result{Data: input, Provenance: trace, StepsExecuted: 0}
}

//nolint:cyclop // one arm per step kind
func (p *Pipeline) dispatch(ctx context.Context, st step, data any, cfg *execConfig) (any, map[string]any, error) {
	switch payload := st.payload.(type) {
	case parsePayload:
		adapter, err := p.registry.Lookup(payload.format)
		if err != nil {
			return nil, nil, newConfigErr("parse", err)
		}

		out, err := adapter.Parse(ctx, data, payload.opts)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "parse from %q", payload.format)
		}

		return out.Data, out.Metadata, nil

	case formatPayload:
		adapter, err := p.registry.Lookup(payload.format)
		if err != nil {
			return nil, nil, newConfigErr("format", err)
		}

		out, err := adapter.Format(ctx, data, payload.opts)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "format to %q", payload.format)
		}

		return out.Data, out.Metadata, nil

	case validatePayload:
		out, err := payload.schema.Parse(ctx, data)
		if err != nil {
			return nil, nil, errors.Wrap(err, "validate")
		}

		return out, nil, nil

	case transformPayload:
		out, err := payload.fn(ctx, data)
		if err != nil {
			return nil, nil, errors.Wrap(err, "transform")
		}

		return out, nil, nil

	case branchPayload:
		return p.runBranch(ctx, payload, data)

	case parallelPayload:
		return p.runParallel(ctx, payload, data)

	case composePayload:
		out, err := payload.inner.Run(ctx, data)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "compose pipeline %s", payload.inner.id)
		}

		return out, map[string]any{"composedPipeline": payload.inner.id}, nil
	}

	return nil, nil, errors.Errorf("unknown step kind %q", st.kind)
}

// runBranch evaluates the condition, then builds and runs exactly one
// sub-pipeline against the current data. With no else-builder and a false
// condition the data passes through unchanged.
func (p *Pipeline) runBranch(ctx context.Context, payload branchPayload, data any) (any, map[string]any, error) {
	take, err := payload.cond(ctx, data)
	if err != nil {
		return nil, nil, errors.Wrap(err, "branch condition")
	}

	var builder BuilderFunc

	arm := "else"
	if take {
		arm = "then"
		builder = payload.thenFn
	} else {
		builder = payload.elseFn
	}

	meta := map[string]any{"branch": arm}

	if builder == nil {
		meta["branch"] = "none"

		return data, meta, nil
	}

	sub := p.sub()
	builder(sub)

	out, err := sub.Run(ctx, data)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "branch %s", arm)
	}

	return out, meta, nil
}

// runParallel builds one fresh sub-pipeline per builder and runs all of them
// concurrently against the current data. Any branch failure fails the whole
// step; on success the outputs are combined in builder order.
func (p *Pipeline) runParallel(ctx context.Context, payload parallelPayload, data any) (any, map[string]any, error) {
	outputs := make([]any, len(payload.builders))

	grp, gCtx := errgroup.WithContext(ctx)

	for i, builder := range payload.builders {
		sub := p.sub()
		builder(sub)

		idx := i

		grp.Go(func() error {
			out, err := sub.Run(gCtx, data)
			if err != nil {
				return errors.Wrapf(err, "parallel branch %d", idx)
			}
			outputs[idx] = out

			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, nil, err
	}

	meta := map[string]any{"branches": len(payload.builders)}

	if payload.merger == nil {
		return outputs, meta, nil
	}

	merged, err := payload.merger(ctx, outputs)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parallel merge")
	}

	return merged, meta, nil
}
