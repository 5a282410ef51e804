package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/folio/internal/store"
)

func TestKey_Equality(t *testing.T) {
	a := store.ListKey("quizzes", "c1", 0, 10, "")
	b := store.ListKey("quizzes", "c1", 0, 10, "")
	c := store.ListKey("quizzes", "c2", 0, 10, "")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))

	m := map[store.Key]int{a: 1}
	assert.Equal(t, 1, m[b], "structurally equal keys must address the same map slot")
	assert.NotEqual(t, a.String(), c.String())
}

func TestPattern_Match(t *testing.T) {
	scoped := store.ListKey("quizzes", "c1", 0, 10, "")
	unscoped := store.ListKey("quizzes", "", 0, 10, "")
	record := store.RecordKey("quiz", "q1")

	t.Run("Lists narrowed to parent", func(t *testing.T) {
		p := store.Lists("quizzes", "c1")
		assert.True(t, p.Match(scoped))
		assert.False(t, p.Match(unscoped))
		assert.False(t, p.Match(record))
	})

	t.Run("Lists of any parent", func(t *testing.T) {
		p := store.Lists("quizzes", "")
		assert.True(t, p.Match(scoped))
		assert.True(t, p.Match(unscoped))
	})

	t.Run("Zero pattern matches everything", func(t *testing.T) {
		assert.True(t, store.Pattern{}.Match(record))
	})
}

func TestStore_SetAndNotify(t *testing.T) {
	st := store.New(nil)
	key := store.RecordKey("course", "c1")

	var exact, matched []store.EventType
	unsub := st.Subscribe(key, func(ev store.Event) { exact = append(exact, ev.Type) })
	unsubMatch := st.SubscribeMatch(store.Pattern{Tag: "course"}, func(ev store.Event) { matched = append(matched, ev.Type) })

	e := st.Set(key, func(old *store.Entry) store.Entry {
		assert.Nil(t, old)
		return store.Entry{Value: "v1", Status: store.StatusSuccess}
	})
	assert.Equal(t, key, e.Key)
	assert.NotZero(t, e.Seq)
	assert.False(t, e.UpdatedAt.IsZero())

	require.True(t, st.Invalidate(key))
	got, ok := st.Get(key)
	require.True(t, ok)
	assert.True(t, got.Stale)
	assert.Equal(t, "v1", got.Value, "invalidation keeps the value")

	require.True(t, st.Remove(key))
	_, ok = st.Get(key)
	assert.False(t, ok)

	want := []store.EventType{store.EventSet, store.EventInvalidate, store.EventRemove}
	assert.Equal(t, want, exact)
	assert.Equal(t, want, matched)

	unsub()
	unsubMatch()
	st.Set(key, func(*store.Entry) store.Entry { return store.Entry{Value: "v2"} })
	assert.Len(t, exact, 3, "unsubscribed callbacks must not fire")
}

func TestStore_SetIfVeto(t *testing.T) {
	st := store.New(nil)
	key := store.RecordKey("course", "c1")
	st.Set(key, func(*store.Entry) store.Entry { return store.Entry{Value: 1} })

	var calls int
	st.Subscribe(key, func(store.Event) { calls++ })

	e, ok := st.SetIf(key, func(old *store.Entry) (store.Entry, bool) {
		return store.Entry{Value: 2}, false
	})
	assert.False(t, ok)
	assert.Equal(t, 1, e.Value)
	assert.Zero(t, calls)
}

func TestStore_InvalidateMatch(t *testing.T) {
	st := store.New(nil)
	for _, k := range []store.Key{
		store.ListKey("quizzes", "c1", 0, 10, ""),
		store.ListKey("quizzes", "c1", 1, 10, ""),
		store.ListKey("quizzes", "c2", 0, 10, ""),
		store.RecordKey("quiz", "q1"),
	} {
		st.Set(k, func(*store.Entry) store.Entry { return store.Entry{Value: 1, Status: store.StatusSuccess} })
	}

	n := st.InvalidateMatch(store.Lists("quizzes", "c1"))
	assert.Equal(t, 2, n)

	e, _ := st.Get(store.ListKey("quizzes", "c2", 0, 10, ""))
	assert.False(t, e.Stale, "other parents are untouched")
	e, _ = st.Get(store.RecordKey("quiz", "q1"))
	assert.False(t, e.Stale)

	keys := st.Keys(store.Lists("quizzes", ""))
	assert.Len(t, keys, 3)
}

func TestStore_Do(t *testing.T) {
	ctx := context.Background()
	key := store.ListKey("courses", "", 0, 10, "")

	t.Run("Concurrent callers share one request", func(t *testing.T) {
		st := store.New(nil)
		var calls atomic.Int32
		release := make(chan struct{})

		var wg sync.WaitGroup
		results := make([]any, 5)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v, err, _ := st.Do(ctx, key, func(uint64) (any, error) {
					calls.Add(1)
					<-release
					return "page", nil
				})
				assert.NoError(t, err)
				results[i] = v
			}(i)
		}

		require.Eventually(t, func() bool { return st.InFlight(key) }, time.Second, time.Millisecond)
		// Give the joiners time to attach before the leader finishes
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load())
		for _, v := range results {
			assert.Equal(t, "page", v)
		}
		assert.False(t, st.InFlight(key), "registry is cleared after completion")
	})

	t.Run("Failure is shared and cleared", func(t *testing.T) {
		st := store.New(nil)
		boom := errors.New("boom")
		_, err, shared := st.Do(ctx, key, func(uint64) (any, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
		assert.False(t, shared)
		assert.False(t, st.InFlight(key))

		v, err, _ := st.Do(ctx, key, func(uint64) (any, error) { return "ok", nil })
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
	})

	t.Run("Invalidate detaches the in-flight request", func(t *testing.T) {
		st := store.New(nil)
		st.Set(key, func(*store.Entry) store.Entry { return store.Entry{Value: "old", Status: store.StatusSuccess} })

		release := make(chan struct{})
		done := make(chan uint64)
		go func() {
			st.Do(ctx, key, func(seq uint64) (any, error) {
				done <- seq
				<-release
				return "late", nil
			})
		}()
		seq := <-done

		st.Invalidate(key)
		assert.False(t, st.InFlight(key))

		e, _ := st.Get(key)
		assert.Greater(t, e.Seq, seq, "invalidation outranks the detached request")

		var second atomic.Int32
		st.Do(ctx, key, func(uint64) (any, error) {
			second.Add(1)
			return "fresh", nil
		})
		assert.Equal(t, int32(1), second.Load(), "a fetch after invalidation goes to the network")
		close(release)
	})

	t.Run("Joiner gives up on its own context", func(t *testing.T) {
		st := store.New(nil)
		release := make(chan struct{})
		started := make(chan struct{})
		go st.Do(ctx, key, func(uint64) (any, error) {
			close(started)
			<-release
			return nil, nil
		})
		<-started

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err, shared := st.Do(cctx, key, func(uint64) (any, error) { return nil, nil })
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, shared)
		close(release)
	})
}

func TestStore_Begin(t *testing.T) {
	key := store.ListKey("courses", "", 0, 10, "")
	needed := func(old *store.Entry) bool { return old == nil || old.Stale }

	t.Run("Registers synchronously", func(t *testing.T) {
		st := store.New(nil)
		f, started := st.Begin(key, nil)
		require.True(t, started)
		assert.True(t, st.InFlight(key))

		seq, ok := st.FlightSeq(key)
		require.True(t, ok)
		assert.Equal(t, f.Seq(), seq)

		joined, started := st.Begin(key, nil)
		assert.False(t, started)
		assert.Same(t, f, joined)

		f.Finish("page", nil)
		assert.False(t, st.InFlight(key))
		v, err := joined.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "page", v)
	})

	t.Run("Condition sees the current entry", func(t *testing.T) {
		st := store.New(nil)
		st.Set(key, func(*store.Entry) store.Entry { return store.Entry{Value: "v", Status: store.StatusSuccess} })

		f, started := st.Begin(key, needed)
		assert.False(t, started)
		assert.Nil(t, f)
		assert.False(t, st.InFlight(key))

		st.Invalidate(key)
		f, started = st.Begin(key, needed)
		require.True(t, started)
		f.Finish(nil, nil)
	})

	t.Run("Finish after invalidation leaves the new flight", func(t *testing.T) {
		st := store.New(nil)
		st.Set(key, func(*store.Entry) store.Entry { return store.Entry{Value: "v", Status: store.StatusSuccess} })

		old, _ := st.Begin(key, nil)
		st.Invalidate(key)
		next, started := st.Begin(key, nil)
		require.True(t, started)

		old.Finish("late", nil)
		seq, ok := st.FlightSeq(key)
		require.True(t, ok)
		assert.Equal(t, next.Seq(), seq)
		next.Finish(nil, nil)
	})
}
