package mutation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/folio/internal/mutation"
	"github.com/mmcdole/folio/internal/store"
)

func seed(st *store.Store, key store.Key, value any) {
	st.Set(key, func(*store.Entry) store.Entry {
		return store.Entry{Value: value, Status: store.StatusSuccess}
	})
}

func TestMachine_RollbackRestoresSnapshots(t *testing.T) {
	st := store.New(nil)
	page := store.ListKey("courses", "", 0, 10, "")
	missing := store.ListKey("courses", "", 1, 10, "")
	seed(st, page, []string{"a", "b"})
	before, _ := st.Get(page)

	m := mutation.NewMachine(st, nil)
	require.NoError(t, m.Begin(page, missing))
	assert.Equal(t, mutation.PhaseOptimistic, m.Phase())

	require.NoError(t, m.Apply(page, func(old store.Entry) (store.Entry, bool) {
		old.Value = []string{"tmp", "a", "b"}
		return old, true
	}))
	e, _ := st.Get(page)
	assert.Equal(t, []string{"tmp", "a", "b"}, e.Value)

	require.NoError(t, m.Rollback())
	assert.Equal(t, mutation.PhaseRolledBack, m.Phase())

	e, _ = st.Get(page)
	assert.Equal(t, before.Value, e.Value)
	assert.Equal(t, before.Status, e.Status)
	assert.Greater(t, e.Seq, before.Seq, "restored entry outranks earlier requests")

	_, ok := st.Get(missing)
	assert.False(t, ok, "a key absent at Begin stays absent")
}

func TestMachine_RollbackFetchingFlag(t *testing.T) {
	page := store.ListKey("courses", "", 0, 10, "")
	fetching := func(st *store.Store) {
		st.Set(page, func(*store.Entry) store.Entry {
			return store.Entry{Value: []string{"a"}, Status: store.StatusSuccess, Fetching: true}
		})
	}

	t.Run("Settled request is not revived", func(t *testing.T) {
		st := store.New(nil)
		fetching(st)

		m := mutation.NewMachine(st, nil)
		require.NoError(t, m.Begin(page))
		require.NoError(t, m.Rollback())

		e, _ := st.Get(page)
		assert.False(t, e.Fetching)
		assert.Equal(t, []string{"a"}, e.Value)
	})

	t.Run("Live request keeps the flag", func(t *testing.T) {
		st := store.New(nil)
		fetching(st)
		f, started := st.Begin(page, nil)
		require.True(t, started)
		defer f.Finish(nil, nil)

		m := mutation.NewMachine(st, nil)
		require.NoError(t, m.Begin(page))
		require.NoError(t, m.Rollback())

		e, _ := st.Get(page)
		assert.True(t, e.Fetching)
	})
}

func TestMachine_Transitions(t *testing.T) {
	st := store.New(nil)
	key := store.RecordKey("course", "c1")

	t.Run("Apply requires a snapshot", func(t *testing.T) {
		m := mutation.NewMachine(st, nil)
		require.NoError(t, m.Begin())
		err := m.Apply(key, func(old store.Entry) (store.Entry, bool) { return old, true })
		assert.ErrorIs(t, err, mutation.ErrInvalidTransition)
	})

	t.Run("Apply before Begin", func(t *testing.T) {
		m := mutation.NewMachine(st, nil)
		err := m.Apply(key, func(old store.Entry) (store.Entry, bool) { return old, true })
		assert.ErrorIs(t, err, mutation.ErrInvalidTransition)
	})

	t.Run("Terminal phases are final", func(t *testing.T) {
		m := mutation.NewMachine(st, nil)
		require.NoError(t, m.Commit())
		assert.Equal(t, mutation.PhaseCommitted, m.Phase())
		assert.ErrorIs(t, m.Rollback(), mutation.ErrInvalidTransition)
		assert.ErrorIs(t, m.Begin(), mutation.ErrInvalidTransition)
	})

	t.Run("Apply on an absent key writes nothing", func(t *testing.T) {
		m := mutation.NewMachine(st, nil)
		require.NoError(t, m.Begin(key))
		require.NoError(t, m.Apply(key, func(old store.Entry) (store.Entry, bool) {
			old.Value = "x"
			return old, true
		}))
		_, ok := st.Get(key)
		assert.False(t, ok)
	})
}

func TestPropagate_TwoLevels(t *testing.T) {
	st := store.New(nil)

	mcqRecord := store.RecordKey("mcq", "m1")
	mcqsOfQ1 := store.ListKey("mcqs", "q1", 0, 10, "")
	mcqsOfQ2 := store.ListKey("mcqs", "q2", 0, 10, "")
	mcqsAll := store.ListKey("mcqs", "", 0, 10, "")
	quizRecord := store.RecordKey("quiz", "q1")
	quizList := store.ListKey("quizzes", "c1", 0, 10, "")
	courseRecord := store.RecordKey("course", "c1")

	for _, k := range []store.Key{mcqRecord, mcqsOfQ1, mcqsOfQ2, mcqsAll, quizRecord, quizList, courseRecord} {
		seed(st, k, "v")
	}

	mutation.Propagate(st, mutation.Target{
		Record:   "mcq",
		List:     "mcqs",
		Parent:   "quiz",
		ID:       "m1",
		ParentID: "q1",
	})

	stale := func(k store.Key) bool {
		e, _ := st.Get(k)
		return e.Stale
	}
	assert.True(t, stale(mcqRecord))
	assert.True(t, stale(mcqsOfQ1))
	assert.True(t, stale(mcqsAll))
	assert.True(t, stale(quizRecord))

	assert.False(t, stale(mcqsOfQ2), "lists of other parents are untouched")
	assert.False(t, stale(quizList), "propagation stops at the parent record")
	assert.False(t, stale(courseRecord), "the grandparent is never touched")
}

func TestPropagate_AlsoPatterns(t *testing.T) {
	st := store.New(nil)
	agg := store.AggregateKey("publications", "keywords")
	seed(st, agg, "v")

	mutation.Propagate(st, mutation.Target{
		Record: "publication",
		List:   "publications",
		Also:   []store.Pattern{{Tag: "publications", Kind: store.KindAggregate}},
	})

	e, _ := st.Get(agg)
	assert.True(t, e.Stale)
}

func TestListKeys(t *testing.T) {
	st := store.New(nil)
	seed(st, store.ListKey("quizzes", "c1", 0, 10, ""), "v")
	seed(st, store.ListKey("quizzes", "c2", 0, 10, ""), "v")
	seed(st, store.ListKey("quizzes", "", 0, 10, ""), "v")

	assert.Len(t, mutation.ListKeys(st, "quizzes", "c1"), 2)
	assert.Len(t, mutation.ListKeys(st, "quizzes", ""), 3)
}
