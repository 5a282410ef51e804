package query

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/folio/internal/store"
)

// State is what a consumer renders. Data keeps the last good value through
// refetches and errors; IsPending is true only while there is no value at
// all.
type State[T any] struct {
	Data       T
	HasData    bool
	IsPending  bool
	IsFetching bool
	IsError    bool
	IsSuccess  bool
	IsStale    bool
	Err        error
	UpdatedAt  time.Time
}

// Query describes one observed key.
type Query[T any] struct {
	Key   store.Key
	Fetch func(ctx context.Context) (T, error)

	// Seed is a server-provided snapshot: when the key is empty it is stored
	// as a successful entry and no request is made.
	Seed *T

	// Placeholder is a persisted snapshot from a previous session: it is
	// shown immediately and revalidated in the background.
	Placeholder *T
}

// Observer is a mounted query. It keeps its key fresh while open and
// forwards every change to its listeners. Closing it unsubscribes but never
// cancels a request other observers may be waiting on.
type Observer[T any] struct {
	c *Client
	q Query[T]

	mu        sync.Mutex
	closed    bool
	listeners map[uint64]func(State[T])
	next      uint64

	unsubscribe func()
	unregister  func()
}

// Observe mounts q on c.
func Observe[T any](c *Client, q Query[T]) *Observer[T] {
	o := &Observer[T]{
		c:         c,
		q:         q,
		listeners: make(map[uint64]func(State[T])),
	}
	o.unsubscribe = c.store.Subscribe(q.Key, o.onEvent)
	o.unregister = c.register(q.Key, o.revalidate)

	switch {
	case q.Seed != nil:
		if c.Seed(q.Key, *q.Seed) {
			return o
		}
	case q.Placeholder != nil:
		if c.Seed(q.Key, *q.Placeholder) {
			c.store.Invalidate(q.Key)
			return o
		}
	}

	o.revalidate()
	return o
}

// State returns the current state of the observed key.
func (o *Observer[T]) State() State[T] {
	e, ok := o.c.store.Get(o.q.Key)
	if !ok {
		return State[T]{IsPending: true}
	}
	return stateOf[T](e)
}

// Key returns the observed key.
func (o *Observer[T]) Key() store.Key { return o.q.Key }

// Subscribe registers fn for state changes until the returned function is
// called. fn runs on the goroutine that wrote to the store.
func (o *Observer[T]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next++
	id := o.next
	o.listeners[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.listeners, id)
	}
}

// Refetch starts a background request for the key even when it is fresh,
// joining one already in flight.
func (o *Observer[T]) Refetch() {
	o.start(false)
}

// revalidate fetches only when the entry is missing or stale.
func (o *Observer[T]) revalidate() {
	o.start(true)
}

func (o *Observer[T]) start(ifNeeded bool) {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return
	}
	o.c.background(o.q.Key, erase(o.q.Fetch), ifNeeded)
}

// Close unmounts the observer.
func (o *Observer[T]) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.listeners = make(map[uint64]func(State[T]))
	o.mu.Unlock()

	o.unsubscribe()
	o.unregister()
}

func (o *Observer[T]) onEvent(ev store.Event) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	ids := make([]uint64, 0, len(o.listeners))
	for id := range o.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(State[T]), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, o.listeners[id])
	}
	o.mu.Unlock()

	var st State[T]
	if ev.Type == store.EventRemove {
		st = State[T]{IsPending: true}
	} else {
		st = stateOf[T](ev.Entry)
	}
	for _, fn := range fns {
		fn(st)
	}

	if ev.Type == store.EventInvalidate {
		o.revalidate()
	}
}

func stateOf[T any](e store.Entry) State[T] {
	st := State[T]{
		IsFetching: e.Fetching,
		IsError:    e.Status == store.StatusError,
		IsSuccess:  e.Status == store.StatusSuccess,
		IsStale:    e.Stale,
		Err:        e.Err,
		UpdatedAt:  e.UpdatedAt,
	}
	if v, ok := store.ValueAs[T](e); ok {
		st.Data = v
		st.HasData = true
	}
	st.IsPending = !st.HasData && !st.IsError
	return st
}

func erase[T any](fn func(context.Context) (T, error)) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// Fetch runs fn for key through the shared request registry and blocks for
// the result, which is also written to the cache.
func Fetch[T any](ctx context.Context, c *Client, key store.Key, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.fetch(ctx, key, erase(fn))
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache key %s holds %T, not %T", key, v, zero)
	}
	return t, nil
}

// Ensure returns the cached value for key when it is fresh and fetches it
// otherwise.
func Ensure[T any](ctx context.Context, c *Client, key store.Key, fn func(context.Context) (T, error)) (T, error) {
	if !c.needsFetch(key) {
		if e, ok := c.store.Get(key); ok {
			if v, ok := store.ValueAs[T](e); ok {
				return v, nil
			}
		}
	}
	return Fetch(ctx, c, key, fn)
}
