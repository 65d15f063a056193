package batch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convio/conveyor/pkg/batch"
	"github.com/convio/conveyor/pkg/format"
	"github.com/convio/conveyor/pkg/resource"
)

// Items briefly hold a pooled resource while parsing; with the pool sized to
// the batch parallelism, no acquire may ever block past one release cycle
// and the observed concurrency stays within the window.
func TestProcessorItemsShareResourcePool(t *testing.T) {
	t.Parallel()

	const parallel = 3

	pool, err := resource.NewPool(parallel, func(_ context.Context) (int, error) {
		return 0, nil
	})
	require.NoError(t, err)

	registry := format.NewRegistry()
	registry.Register("text", format.AdapterFuncs{
		ParseFunc: func(ctx context.Context, input any, _ format.Options) (format.Payload, error) {
			handle, err := pool.Acquire(ctx)
			if err != nil {
				return format.Payload{}, err
			}
			defer pool.Release(handle)

			time.Sleep(2 * time.Millisecond)

			return format.Payload{Data: input}, nil
		},
		FormatFunc: func(_ context.Context, data any, _ format.Options) (format.Payload, error) {
			return format.Payload{Data: data}, nil
		},
	})

	proc, err := batch.NewProcessor(batch.OperationParse, registry, batch.WithParallel(parallel))
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		proc.Add(string(rune('a'+i)), "payload", "text", nil)
	}

	summary, err := proc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, summary.Successful)

	available, inUse := pool.Stats()
	assert.Equal(t, 0, inUse)
	assert.LessOrEqual(t, available, parallel)
}
