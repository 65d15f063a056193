package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/convio/conveyor/pkg/event"
)

func TestEmitCallsListenersInOrder(t *testing.T) {
	t.Parallel()

	emitter := event.NewEmitter()

	var got []int

	emitter.On("tick", func(any) { got = append(got, 1) })
	emitter.On("tick", func(any) { got = append(got, 2) })
	emitter.On("tock", func(any) { got = append(got, 3) })

	emitter.Emit("tick", nil)

	assert.Equal(t, []int{1, 2}, got)
}

func TestEmitPayload(t *testing.T) {
	t.Parallel()

	emitter := event.NewEmitter()

	var got any

	emitter.On("done", func(payload any) { got = payload })
	emitter.Emit("done", 42)

	assert.Equal(t, 42, got)
}

func TestEmitUnknownEvent(t *testing.T) {
	t.Parallel()

	emitter := event.NewEmitter()
	assert.NotPanics(t, func() { emitter.Emit("missing", nil) })
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()

	emitter := event.NewEmitter()

	count := 0
	off := emitter.On("tick", func(any) { count++ })

	emitter.Emit("tick", nil)
	off()
	off() // second call is a no-op
	emitter.Emit("tick", nil)

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, emitter.ListenerCount("tick"))
}
