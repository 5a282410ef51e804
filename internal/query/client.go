package query

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/folio/internal/store"
)

// Options configures a Client.
type Options struct {
	// StaleTime is how long a successful entry counts as fresh. Zero means
	// entries are fresh until invalidated.
	StaleTime time.Duration

	// RefetchOnFocus enables refetching stale observed entries when Focus is
	// called. Off by default so a form being edited is never reloaded under
	// the user.
	RefetchOnFocus bool
}

// Client is the explicit cache context: one per process, created at startup
// and handed to every hook set. Requests run on the client's base context,
// so they outlive the observers that started them and stop only on Close.
type Client struct {
	store  *store.Store
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	nextObs   uint64
	observers map[uint64]observed
}

type observed struct {
	key     store.Key
	refetch func()
}

// NewClient creates a client over st.
func NewClient(st *store.Store, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		store:     st,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		observers: make(map[uint64]observed),
	}
}

// Store returns the underlying cache store.
func (c *Client) Store() *store.Store { return c.store }

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Close cancels in-flight requests and waits for them to settle.
func (c *Client) Close() {
	c.cancel()
	c.wg.Wait()
}

// Focus signals that the application regained focus.
func (c *Client) Focus() {
	if !c.opts.RefetchOnFocus {
		return
	}
	c.mu.Lock()
	var due []func()
	for _, o := range c.observers {
		due = append(due, o.refetch)
	}
	c.mu.Unlock()

	c.logger.Debug("focus revalidate", "observers", len(due))
	for _, fn := range due {
		fn()
	}
}

func (c *Client) register(key store.Key, refetch func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextObs++
	id := c.nextObs
	c.observers[id] = observed{key: key, refetch: refetch}
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// needsFetch reports whether key is missing, stale, or past StaleTime.
func (c *Client) needsFetch(key store.Key) bool {
	e, ok := c.store.Get(key)
	if !ok {
		return true
	}
	return c.wantsFetch(&e)
}

// wantsFetch is needsFetch over an entry already read. It runs under the
// store lock from Begin.
func (c *Client) wantsFetch(e *store.Entry) bool {
	if e == nil || !e.HasValue() || e.Stale {
		return true
	}
	if e.Status == store.StatusError {
		return false
	}
	return c.opts.StaleTime > 0 && c.now().Sub(e.UpdatedAt) > c.opts.StaleTime
}

// Invalidate marks key stale; mounted observers refetch in the background.
func (c *Client) Invalidate(key store.Key) {
	c.store.Invalidate(key)
}

// Seed writes value as a fresh successful entry unless key already holds
// data. It reports whether the seed was applied.
func (c *Client) Seed(key store.Key, value any) bool {
	_, ok := c.store.SetIf(key, func(old *store.Entry) (store.Entry, bool) {
		if old != nil && old.HasValue() {
			return store.Entry{}, false
		}
		return store.Entry{Value: value, Status: store.StatusSuccess}, true
	})
	if ok {
		c.logger.Debug("seeded cache entry", "key", key.String())
	}
	return ok
}

// fetch performs a deduplicated request for key and applies the result to
// the store, honouring issue order. It blocks until the shared request
// settles or ctx is done.
func (c *Client) fetch(ctx context.Context, key store.Key, fn func(context.Context) (any, error)) (any, error) {
	val, err, shared := c.store.Do(ctx, key, func(seq uint64) (any, error) {
		c.markFetching(key, seq)

		val, err := fn(c.ctx)
		c.apply(key, seq, val, err)
		return val, err
	})
	if shared {
		c.logger.Debug("joined in-flight request", "key", key.String())
	}
	return val, err
}

// background starts a request for key on its own goroutine unless one is
// already in flight. The flight is registered and the entry marked fetching
// before it returns, so readers see IsFetching at once and later mounts
// join instead of issuing their own request. With ifNeeded set nothing
// starts while the entry is fresh.
func (c *Client) background(key store.Key, fn func(context.Context) (any, error), ifNeeded bool) {
	var want func(*store.Entry) bool
	if ifNeeded {
		want = c.wantsFetch
	}
	f, started := c.store.Begin(key, want)
	if !started {
		return
	}
	seq := f.Seq()
	c.markFetching(key, seq)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		val, err := fn(c.ctx)
		c.apply(key, seq, val, err)
		f.Finish(val, err)
	}()
}

func (c *Client) markFetching(key store.Key, seq uint64) {
	c.store.Set(key, func(old *store.Entry) store.Entry {
		if old == nil {
			return store.Entry{Status: store.StatusLoading, Fetching: true, Seq: seq}
		}
		next := *old
		next.Fetching = true
		if !next.HasValue() {
			next.Status = store.StatusLoading
		}
		next.UpdatedAt = old.UpdatedAt
		return next
	})
}

// apply writes a response unless the request was detached by an
// invalidation or removal, or a newer write has landed since it was issued.
func (c *Client) apply(key store.Key, seq uint64, val any, err error) {
	if current, ok := c.store.FlightSeq(key); !ok || current != seq {
		c.logger.Debug("discarding detached response", "key", key.String(), "seq", seq)
		c.clearFetching(key, seq)
		return
	}
	_, applied := c.store.SetIf(key, func(old *store.Entry) (store.Entry, bool) {
		if old != nil && old.Seq > seq {
			return store.Entry{}, false
		}
		if err != nil {
			next := store.Entry{Status: store.StatusError, Err: err}
			if old != nil {
				next.Value = old.Value
				next.Stale = old.Stale
			}
			return next, true
		}
		return store.Entry{Value: val, Status: store.StatusSuccess}, true
	})

	switch {
	case !applied:
		c.logger.Debug("discarding out-of-order response", "key", key.String(), "seq", seq)
		c.clearFetching(key, seq)
	case err != nil:
		c.logger.Error("failed to fetch", "error", err, "key", key.String())
	default:
		c.logger.Debug("fetched", "key", key.String())
	}
}

// clearFetching drops the fetching flag left by a discarded response when
// no other request has taken over the key.
func (c *Client) clearFetching(key store.Key, seq uint64) {
	if current, ok := c.store.FlightSeq(key); ok && current != seq {
		return
	}
	c.store.SetIf(key, func(old *store.Entry) (store.Entry, bool) {
		if old == nil || !old.Fetching {
			return store.Entry{}, false
		}
		next := *old
		next.Fetching = false
		if !next.HasValue() && next.Status == store.StatusLoading {
			next.Status = store.StatusIdle
		}
		return next, true
	})
}
