package resource

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

var ErrPoolSize = errors.New("max resources must be greater than 0")

// Factory constructs one resource instance. It may block.
type Factory[T any] func(ctx context.Context) (T, error)

// Destructor tears one resource instance down during Destroy.
type Destructor[T any] func(value T) error

// Handle is an opaque pooled instance. The pool tracks every handle as
// exactly one of available or in-use.
type Handle[T any] struct {
	value T
}

// Value returns the underlying resource.
func (h *Handle[T]) Value() T { return h.value }

// PoolOption configures a new pool.
type PoolOption[T any] func(p *Pool[T])

// WithDestructor sets the per-handle teardown run by Destroy.
func WithDestructor[T any](destructor Destructor[T]) PoolOption[T] {
	return func(p *Pool[T]) {
		p.destructor = destructor
	}
}

// Pool caps the number of concurrently live instances of a shared resource
// and hands them out fairly under contention. Safe for concurrent use.
type Pool[T any] struct {
	factory    Factory[T]
	destructor Destructor[T]
	max        int64

	// sem bounds live+pending instances; its FIFO fairness is what gives the
	// longest-waiting caller the next freed handle.
	sem *semaphore.Weighted

	mu    sync.Mutex
	free  []*Handle[T]
	inUse map[*Handle[T]]struct{}
}

// NewPool creates a pool that lazily builds at most maxResources instances
// through factory.
func NewPool[T any](maxResources int, factory Factory[T], opts ...PoolOption[T]) (*Pool[T], error) {
	if maxResources <= 0 {
		return nil, ErrPoolSize
	}

	pool := &Pool[T]{
		factory: factory,
		max:     int64(maxResources),
		sem:     semaphore.NewWeighted(int64(maxResources)),
		inUse:   make(map[*Handle[T]]struct{}),
	}

	for _, opt := range opts {
		opt(pool)
	}

	return pool, nil
}

// Acquire returns an available handle, constructs a new one while the live
// count is below the cap, or blocks until a release frees one. Blocked
// callers are served in FIFO order.
func (p *Pool[T]) Acquire(ctx context.Context) (*Handle[T], error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, "unable to acquire resource slot")
	}

	p.mu.Lock()

	if n := len(p.free); n > 0 {
		handle := p.free[n-1]
		p.free = p.free[:n-1]
		p.inUse[handle] = struct{}{}
		p.mu.Unlock()

		return handle, nil
	}

	sem := p.sem
	p.mu.Unlock()

	// Below the cap: build a new instance. The semaphore slot held above
	// keeps the live count bounded while the factory runs unlocked.
	value, err := p.factory(ctx)
	if err != nil {
		sem.Release(1)

		return nil, errors.Wrap(err, "unable to construct resource")
	}

	handle := &Handle[T]{value: value}

	p.mu.Lock()
	if p.sem == sem {
		p.inUse[handle] = struct{}{}
	}
	p.mu.Unlock()

	return handle, nil
}

// Release moves a recognized in-use handle back to available and wakes the
// longest-waiting acquirer, if any. Releasing an unrecognized or
// already-released handle is a silent no-op.
func (p *Pool[T]) Release(handle *Handle[T]) {
	if handle == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.inUse[handle]; !ok {
		return
	}

	delete(p.inUse, handle)
	p.free = append(p.free, handle)
	p.sem.Release(1)
}

// Destroy runs the destructor, when set, on every live handle, then clears
// all tracking. The pool is empty and reusable from zero afterwards; handles
// from before the teardown are no longer recognized.
func (p *Pool[T]) Destroy() error {
	p.mu.Lock()

	handles := make([]*Handle[T], 0, len(p.free)+len(p.inUse))
	handles = append(handles, p.free...)
	for handle := range p.inUse {
		handles = append(handles, handle)
	}

	p.free = nil
	p.inUse = make(map[*Handle[T]]struct{})
	// Fresh semaphore: slots held by still-outstanding handles must not leak
	// into the reset pool.
	p.sem = semaphore.NewWeighted(p.max)
	destructor := p.destructor
	p.mu.Unlock()

	if destructor == nil {
		return nil
	}

	for _, handle := range handles {
		if err := destructor(handle.value); err != nil {
			return errors.Wrap(err, "unable to destroy resource")
		}
	}

	return nil
}

// Stats reports the current available and in-use counts.
func (p *Pool[T]) Stats() (available, inUse int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.free), len(p.inUse)
}
