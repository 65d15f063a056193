package event

import "sync"

// Listener receives the payload attached to an emitted event.
type Listener func(payload any)

// Emitter dispatches named events to subscribed listeners. The zero value is
// ready to use. All methods are safe for concurrent use.
type Emitter struct {
	mu        sync.Mutex
	listeners map[string][]*entry
	nextID    int
}

type entry struct {
	id int
	fn Listener
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// On subscribes fn to events with the given name and returns a function that
// removes the subscription. Unsubscribing twice is a no-op.
func (e *Emitter) On(name string, fn Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[string][]*entry)
	}

	e.nextID++
	ent := &entry{id: e.nextID, fn: fn}
	e.listeners[name] = append(e.listeners[name], ent)

	id := ent.id

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		list := e.listeners[name]
		for i, cur := range list {
			if cur.id == id {
				e.listeners[name] = append(list[:i:i], list[i+1:]...)

				break
			}
		}
	}
}

// Emit calls every listener subscribed to name, in subscription order, from
// the calling goroutine. Emitting an event nobody listens to is a no-op.
func (e *Emitter) Emit(name string, payload any) {
	e.mu.Lock()
	list := make([]*entry, len(e.listeners[name]))
	copy(list, e.listeners[name])
	e.mu.Unlock()

	for _, ent := range list {
		ent.fn(payload)
	}
}

// ListenerCount reports how many listeners are subscribed to name.
func (e *Emitter) ListenerCount(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.listeners[name])
}
