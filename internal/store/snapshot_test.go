package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/folio/internal/store"
)

type row struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestSnapshot_RoundTripAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	key := store.ListKey("courses", "", 0, 10, "")

	snap, err := store.OpenSnapshot(dir, "https://cms.example.edu/api", nil)
	require.NoError(t, err)
	require.NoError(t, snap.Save(key, []row{{ID: "c1", Title: "Algebra"}}))
	require.NoError(t, snap.Close())

	snap, err = store.OpenSnapshot(dir, "https://cms.example.edu/api/", nil)
	require.NoError(t, err)
	defer snap.Close()

	var got []row
	require.True(t, snap.Load(key, &got), "trailing slash resolves to the same database")
	assert.Equal(t, []row{{ID: "c1", Title: "Algebra"}}, got)
}

func TestSnapshot_DeleteTagAndClear(t *testing.T) {
	snap, err := store.OpenSnapshot(t.TempDir(), "", nil)
	require.NoError(t, err)
	defer snap.Close()

	courses := store.ListKey("courses", "", 0, 10, "")
	quizzes := store.ListKey("quizzes", "c1", 0, 10, "")
	require.NoError(t, snap.Save(courses, []row{{ID: "c1"}}))
	require.NoError(t, snap.Save(quizzes, []row{{ID: "q1"}}))

	snap.DeleteTag("courses")
	var got []row
	assert.False(t, snap.Load(courses, &got))
	assert.True(t, snap.Load(quizzes, &got))

	snap.Clear()
	assert.False(t, snap.Load(quizzes, &got))
}

func TestSnapshot_Attach(t *testing.T) {
	snap, err := store.OpenSnapshot("", "", nil)
	require.NoError(t, err)

	st := store.New(nil)
	detach := snap.Attach(st)

	list := store.ListKey("courses", "", 0, 10, "")
	record := store.RecordKey("course", "c1")

	st.Set(list, func(*store.Entry) store.Entry {
		return store.Entry{Value: []row{{ID: "c1"}}, Status: store.StatusSuccess}
	})
	st.Set(record, func(*store.Entry) store.Entry {
		return store.Entry{Value: row{ID: "c1"}, Status: store.StatusSuccess}
	})

	var rows []row
	assert.True(t, snap.Load(list, &rows))
	var r row
	assert.False(t, snap.Load(record, &r), "only list pages are persisted")

	t.Run("Errors are not persisted", func(t *testing.T) {
		other := store.ListKey("courses", "", 1, 10, "")
		st.Set(other, func(*store.Entry) store.Entry { return store.Entry{Status: store.StatusError} })
		assert.False(t, snap.Load(other, &rows))
	})

	st.Remove(list)
	assert.False(t, snap.Load(list, &rows))

	detach()
	st.Set(list, func(*store.Entry) store.Entry {
		return store.Entry{Value: []row{{ID: "c2"}}, Status: store.StatusSuccess}
	})
	assert.False(t, snap.Load(list, &rows))
}
