package pipeline_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convio/conveyor/pkg/format"
	"github.com/convio/conveyor/pkg/pipeline"
	"github.com/convio/conveyor/pkg/pipeline/model"
)

func TestExecuteParseValidateTransformFormat(t *testing.T) {
	t.Parallel()

	pipe := pipeline.New(testRegistry(t)).
		From("json", nil).
		Validate(format.ValidatorFunc(requireFields)).
		Transform(func(_ context.Context, data any) (any, error) {
			m, _ := data.(map[string]any)
			m["enriched"] = true

			return m, nil
		}).
		To("json", nil)

	res, err := pipe.Execute(context.Background(), `{"id":1,"value":"a"}`, pipeline.WithProvenance())
	require.NoError(t, err)

	assert.JSONEq(t, `{"id":1,"value":"a","enriched":true}`, res.Data.(string))
	assert.Equal(t, 4, res.StepsExecuted)
	require.NotNil(t, res.Provenance)
	assert.Len(t, res.Provenance.Steps, 4)
}

func TestExecuteWithoutProvenance(t *testing.T) {
	t.Parallel()

	pipe := pipeline.New(testRegistry(t)).From("json", nil)

	res, err := pipe.Execute(context.Background(), `[1,2]`)
	require.NoError(t, err)
	assert.Nil(t, res.Provenance)
	assert.Equal(t, []any{float64(1), float64(2)}, res.Data)
}

func TestExecuteDryRun(t *testing.T) {
	t.Parallel()

	calls := int32(0)

	registry := format.NewRegistry()
	registry.Register("json", format.AdapterFuncs{
		ParseFunc: func(_ context.Context, input any, _ format.Options) (format.Payload, error) {
			atomic.AddInt32(&calls, 1)

			return format.Payload{Data: input}, nil
		},
		FormatFunc: func(_ context.Context, data any, _ format.Options) (format.Payload, error) {
			atomic.AddInt32(&calls, 1)

			return format.Payload{Data: data}, nil
		},
	})

	pipe := pipeline.New(registry).
		From("json", nil).
		Transform(func(_ context.Context, data any) (any, error) {
			atomic.AddInt32(&calls, 1)

			return data, nil
		}).
		To("json", nil)

	res, err := pipe.Execute(context.Background(), "input", pipeline.WithDryRun())
	require.NoError(t, err)

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, res.StepsExecuted)
	require.NotNil(t, res.Provenance)
	assert.Equal(t, time.Duration(0), res.Provenance.TotalDuration)
	assert.Len(t, res.Provenance.Descriptions, 3)
	assert.Len(t, res.Provenance.Steps, 3)

	for _, record := range res.Provenance.Steps {
		assert.Equal(t, time.Duration(0), record.Duration)
	}
}

func TestExecuteStopAt(t *testing.T) {
	t.Parallel()

	pipe := pipeline.New(testRegistry(t)).
		From("json", nil).
		Transform(func(_ context.Context, data any) (any, error) {
			m, _ := data.(map[string]any)
			m["touched"] = true

			return m, nil
		}).
		To("json", nil)

	res, err := pipe.Execute(context.Background(), `{"id":1,"value":"a"}`, pipeline.WithStopAt(2))
	require.NoError(t, err)
	assert.Equal(t, 2, res.StepsExecuted)

	m, ok := res.Data.(map[string]any)
	require.True(t, ok, "data should be as it stood after the transform step, not formatted")
	assert.Equal(t, true, m["touched"])
}

func TestExecuteStopAtBeyondLength(t *testing.T) {
	t.Parallel()

	pipe := pipeline.New(testRegistry(t)).From("json", nil)

	res, err := pipe.Execute(context.Background(), `1`, pipeline.WithStopAt(10))
	require.NoError(t, err)
	assert.Equal(t, 1, res.StepsExecuted)
}

func TestExecuteStepFailure(t *testing.T) {
	t.Parallel()

	pipe := pipeline.New(testRegistry(t)).
		From("json", nil).
		Transform(func(_ context.Context, _ any) (any, error) {
			return nil, assert.AnError
		}).
		To("json", nil)

	_, err := pipe.Execute(context.Background(), `{}`)
	require.Error(t, err)

	var stepErr *pipeline.StepExecutionError

	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 1, stepErr.Index)
	assert.Equal(t, model.TransformStepKind, stepErr.Kind)
	assert.ErrorIs(t, err, assert.AnError)
	require.NotNil(t, stepErr.Trace)
	assert.Len(t, stepErr.Trace.Steps, 2, "trace covers steps through the failed one")
	assert.NotEmpty(t, stepErr.Trace.Steps[1].Error)
}

func TestExecuteUnknownAdapter(t *testing.T) {
	t.Parallel()

	pipe := pipeline.New(testRegistry(t)).From("yaml", nil)

	_, err := pipe.Execute(context.Background(), "a: 1")
	require.Error(t, err)

	var cfgErr *pipeline.ConfigurationError

	assert.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, format.ErrUnknownFormat)
}

func TestExecuteBranch(t *testing.T) {
	t.Parallel()

	build := func(isLarge bool) *pipeline.Pipeline {
		return pipeline.New(testRegistry(t)).
			Branch(
				func(_ context.Context, _ any) (bool, error) { return isLarge, nil },
				func(p *pipeline.Pipeline) {
					p.Transform(func(_ context.Context, _ any) (any, error) { return "then", nil })
				},
				func(p *pipeline.Pipeline) {
					p.Transform(func(_ context.Context, _ any) (any, error) { return "else", nil })
				},
			)
	}

	out, err := build(true).Run(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "then", out)

	out, err = build(false).Run(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "else", out)
}

func TestExecuteBranchNoElsePassesThrough(t *testing.T) {
	t.Parallel()

	pipe := pipeline.New(testRegistry(t)).
		Branch(
			func(_ context.Context, _ any) (bool, error) { return false, nil },
			func(p *pipeline.Pipeline) {
				p.Transform(func(_ context.Context, _ any) (any, error) { return "then", nil })
			},
			nil,
		)

	out, err := pipe.Run(context.Background(), "unchanged")
	require.NoError(t, err)
	assert.Equal(t, "unchanged", out)
}

func TestExecuteParallelPreservesBuilderOrder(t *testing.T) {
	t.Parallel()

	// The slow branch is declared first; its output must still come first.
	delayed := func(delay time.Duration, out string) pipeline.BuilderFunc {
		return func(p *pipeline.Pipeline) {
			p.Transform(func(_ context.Context, _ any) (any, error) {
				time.Sleep(delay)

				return out, nil
			})
		}
	}

	pipe := pipeline.New(testRegistry(t)).
		Parallel([]pipeline.BuilderFunc{
			delayed(50*time.Millisecond, "first"),
			delayed(time.Millisecond, "second"),
			delayed(10*time.Millisecond, "third"),
		}, nil)

	for i := 0; i < 3; i++ {
		out, err := pipe.Run(context.Background(), "x")
		require.NoError(t, err)
		assert.Equal(t, []any{"first", "second", "third"}, out)
	}
}

func TestExecuteParallelMerger(t *testing.T) {
	t.Parallel()

	pipe := pipeline.New(testRegistry(t)).
		Parallel([]pipeline.BuilderFunc{
			func(p *pipeline.Pipeline) {
				p.Transform(func(_ context.Context, data any) (any, error) { return data.(int) + 1, nil })
			},
			func(p *pipeline.Pipeline) {
				p.Transform(func(_ context.Context, data any) (any, error) { return data.(int) * 10, nil })
			},
		}, func(_ context.Context, outputs []any) (any, error) {
			return outputs[0].(int) + outputs[1].(int), nil
		})

	out, err := pipe.Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 23, out)
}

func TestExecuteParallelBranchFailureFailsStep(t *testing.T) {
	t.Parallel()

	pipe := pipeline.New(testRegistry(t)).
		Parallel([]pipeline.BuilderFunc{
			func(p *pipeline.Pipeline) {
				p.Transform(func(_ context.Context, data any) (any, error) { return data, nil })
			},
			func(p *pipeline.Pipeline) {
				p.Transform(func(_ context.Context, _ any) (any, error) { return nil, assert.AnError })
			},
		}, nil)

	_, err := pipe.Run(context.Background(), "x")
	require.Error(t, err)

	var stepErr *pipeline.StepExecutionError

	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, model.ParallelStepKind, stepErr.Kind)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestExecuteCompose(t *testing.T) {
	t.Parallel()

	inner := pipeline.New(testRegistry(t)).
		Transform(func(_ context.Context, data any) (any, error) { return data.(int) * 2, nil })

	outer := pipeline.New(testRegistry(t)).
		Transform(func(_ context.Context, data any) (any, error) { return data.(int) + 1, nil }).
		Compose(inner)

	res, err := outer.Execute(context.Background(), 3, pipeline.WithProvenance())
	require.NoError(t, err)
	assert.Equal(t, 8, res.Data)
	// The composed pipeline's own trace stays suppressed: one record for the
	// compose step itself.
	assert.Len(t, res.Provenance.Steps, 2)
}

func TestExecuteOnStep(t *testing.T) {
	t.Parallel()

	var seen []model.StepKind

	pipe := pipeline.New(testRegistry(t)).
		From("json", nil).
		To("json", nil)

	_, err := pipe.Execute(context.Background(), `1`, pipeline.WithOnStep(func(record model.StepRecord, _ any) {
		seen = append(seen, record.Kind)
	}))
	require.NoError(t, err)
	assert.Equal(t, []model.StepKind{model.ParseStepKind, model.FormatStepKind}, seen)
}

func TestExecuteMetadata(t *testing.T) {
	t.Parallel()

	pipe := pipeline.New(testRegistry(t)).From("json", nil)

	res, err := pipe.Execute(context.Background(), `1`,
		pipeline.WithProvenance(),
		pipeline.WithMetadata(map[string]any{"requestID": "r-1"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "r-1", res.Provenance.Metadata["requestID"])
}
