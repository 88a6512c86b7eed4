package replica

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karstio/pathsync/pkg/paths"
	"github.com/karstio/pathsync/pkg/update"
)

func fullImage(seq uint64) *update.PathsUpdate {
	u := update.New(seq, true)
	u.NewPathChange(update.AllPaths).
		AddPath([]string{"db"}).
		AddPath([]string{"db", "t1"})
	return u
}

func TestNew(t *testing.T) {
	r := New()

	assert.Equal(t, uint64(0), r.SeqNum())
	assert.False(t, r.Primed())
	assert.Empty(t, r.Objects())
	assert.Empty(t, r.Paths())
}

func TestApply(t *testing.T) {
	t.Run("full image primes the replica", func(t *testing.T) {
		r := New()

		require.NoError(t, r.Apply(fullImage(1)))

		assert.True(t, r.Primed())
		assert.Equal(t, uint64(1), r.SeqNum())
		assert.Equal(t, []string{update.AllPaths}, r.Objects())
		assert.Equal(t, []paths.CanonicalPath{
			{"db"},
			{"db", "t1"},
		}, r.PathsFor(update.AllPaths))
	})

	t.Run("contiguous delta extends the replica", func(t *testing.T) {
		r := New()
		require.NoError(t, r.Apply(fullImage(1)))

		delta := update.New(2, false)
		delta.NewPathChange("db.t1").
			AddPath([]string{"db", "t1"}).
			AddPath([]string{"db", "t1", "p=2024"})
		require.NoError(t, r.Apply(delta))

		assert.Equal(t, uint64(2), r.SeqNum())
		assert.Equal(t, []paths.CanonicalPath{
			{"db", "t1"},
			{"db", "t1", "p=2024"},
		}, r.PathsFor("db.t1"))
	})

	t.Run("delta before any full image is rejected", func(t *testing.T) {
		r := New()

		delta := update.New(1, false)
		delta.NewPathChange("db.t1").AddPath([]string{"db", "t1"})

		err := r.Apply(delta)
		var gap *SequenceGapError
		require.ErrorAs(t, err, &gap)
		assert.False(t, gap.Primed)
		assert.False(t, r.Primed())
	})

	t.Run("sequence gap is rejected and state unchanged", func(t *testing.T) {
		r := New()
		require.NoError(t, r.Apply(fullImage(1)))

		delta := update.New(3, false)
		delta.NewPathChange("db.t1").AddPath([]string{"db", "t1"})

		err := r.Apply(delta)
		var gap *SequenceGapError
		require.ErrorAs(t, err, &gap)
		assert.Equal(t, uint64(1), gap.Applied)
		assert.Equal(t, uint64(3), gap.Received)
		assert.True(t, gap.Primed)

		assert.Equal(t, uint64(1), r.SeqNum())
		assert.Empty(t, r.PathsFor("db.t1"))
	})

	t.Run("replayed delta is rejected", func(t *testing.T) {
		r := New()
		require.NoError(t, r.Apply(fullImage(5)))

		stale := update.New(5, false)
		err := r.Apply(stale)
		var gap *SequenceGapError
		require.ErrorAs(t, err, &gap)
	})

	t.Run("full image replaces all prior state", func(t *testing.T) {
		r := New()
		require.NoError(t, r.Apply(fullImage(1)))

		delta := update.New(2, false)
		delta.NewPathChange("db.t1").AddPath([]string{"db", "t1", "p=2024"})
		require.NoError(t, r.Apply(delta))

		// A fresh full image arrives far ahead of the applied sequence.
		img := update.New(10, true)
		img.NewPathChange(update.AllPaths).AddPath([]string{"other"})
		require.NoError(t, r.Apply(img))

		assert.Equal(t, uint64(10), r.SeqNum())
		assert.Equal(t, []string{update.AllPaths}, r.Objects())
		assert.Equal(t, []paths.CanonicalPath{{"other"}}, r.Paths())
	})

	t.Run("removal drops the path and empty objects disappear", func(t *testing.T) {
		r := New()
		require.NoError(t, r.Apply(fullImage(1)))

		add := update.New(2, false)
		add.NewPathChange("db.t1").AddPath([]string{"db", "t1"})
		require.NoError(t, r.Apply(add))

		remove := update.New(3, false)
		remove.NewPathChange("db.t1").RemovePath([]string{"db", "t1"})
		require.NoError(t, r.Apply(remove))

		assert.Empty(t, r.PathsFor("db.t1"))
		assert.Equal(t, []string{update.AllPaths}, r.Objects())
	})

	t.Run("changes within one update apply in insertion order", func(t *testing.T) {
		r := New()
		require.NoError(t, r.Apply(fullImage(1)))

		u := update.New(2, false)
		u.NewPathChange("db.t1").AddPath([]string{"db", "t1"})
		u.NewPathChange("db.t1").RemovePath([]string{"db", "t1"})
		require.NoError(t, r.Apply(u))

		assert.Empty(t, r.PathsFor("db.t1"))
	})
}

func TestContains(t *testing.T) {
	r := New()
	require.NoError(t, r.Apply(fullImage(1)))

	assert.True(t, r.Contains(paths.CanonicalPath{"db", "t1"}))
	assert.False(t, r.Contains(paths.CanonicalPath{"db", "t2"}))
}

func TestPaths(t *testing.T) {
	r := New()
	require.NoError(t, r.Apply(fullImage(1)))

	delta := update.New(2, false)
	delta.NewPathChange("db.t2").AddPath([]string{"db", "t2"})
	require.NoError(t, r.Apply(delta))

	assert.Equal(t, []paths.CanonicalPath{
		{"db"},
		{"db", "t1"},
		{"db", "t2"},
	}, r.Paths())
}
