package changelog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karstio/pathsync/pkg/update"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	log, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func delta(obj string, added ...[]string) *update.PathsUpdate {
	u := update.New(0, false)
	change := u.NewPathChange(obj)
	for _, p := range added {
		change.AddPath(p)
	}
	return u
}

func image(added ...[]string) *update.PathsUpdate {
	u := update.New(0, true)
	change := u.NewPathChange(update.AllPaths)
	for _, p := range added {
		change.AddPath(p)
	}
	return u
}

func TestAppend(t *testing.T) {
	t.Run("assigns contiguous sequence numbers", func(t *testing.T) {
		log := openTestLog(t)

		first := delta("db.a", []string{"db", "a"})
		seq, err := log.Append(first)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), seq)
		assert.Equal(t, uint64(1), first.SeqNum())

		second := delta("db.b", []string{"db", "b"})
		seq, err = log.Append(second)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), seq)

		assert.Equal(t, uint64(2), log.LastSeq())
	})

	t.Run("empty log has zero last seq", func(t *testing.T) {
		log := openTestLog(t)
		assert.Equal(t, uint64(0), log.LastSeq())
	})

	t.Run("failed append leaves the update unstamped", func(t *testing.T) {
		log, err := Open(t.TempDir())
		require.NoError(t, err)
		require.NoError(t, log.Close())

		u := delta("db.a", []string{"db", "a"})
		_, err = log.Append(u)
		require.Error(t, err)

		// The candidate number was never committed; the update must not
		// keep it.
		assert.Equal(t, uint64(0), u.SeqNum())
	})
}

func TestGet(t *testing.T) {
	t.Run("returns the stored update", func(t *testing.T) {
		log := openTestLog(t)

		appended := delta("db.a", []string{"db", "a"})
		seq, err := log.Append(appended)
		require.NoError(t, err)

		got, err := log.Get(seq)
		require.NoError(t, err)
		assert.True(t, appended.Equal(got))
	})

	t.Run("unknown seq is not found", func(t *testing.T) {
		log := openTestLog(t)

		_, err := log.Get(99)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAfter(t *testing.T) {
	log := openTestLog(t)

	for i := 0; i < 5; i++ {
		_, err := log.Append(delta("db.a", []string{"db", "a"}))
		require.NoError(t, err)
	}

	t.Run("returns strictly newer updates in order", func(t *testing.T) {
		updates, err := log.After(2, 0)
		require.NoError(t, err)
		require.Len(t, updates, 3)
		assert.Equal(t, uint64(3), updates[0].SeqNum())
		assert.Equal(t, uint64(4), updates[1].SeqNum())
		assert.Equal(t, uint64(5), updates[2].SeqNum())
	})

	t.Run("respects the limit", func(t *testing.T) {
		updates, err := log.After(0, 2)
		require.NoError(t, err)
		require.Len(t, updates, 2)
		assert.Equal(t, uint64(1), updates[0].SeqNum())
		assert.Equal(t, uint64(2), updates[1].SeqNum())
	})

	t.Run("caught-up consumer gets nothing", func(t *testing.T) {
		updates, err := log.After(5, 0)
		require.NoError(t, err)
		assert.Empty(t, updates)
	})
}

func TestLatestFullImage(t *testing.T) {
	t.Run("tracks the newest full image", func(t *testing.T) {
		log := openTestLog(t)

		_, err := log.Append(delta("db.a", []string{"db", "a"}))
		require.NoError(t, err)
		imgSeq, err := log.Append(image([]string{"db"}))
		require.NoError(t, err)
		_, err = log.Append(delta("db.b", []string{"db", "b"}))
		require.NoError(t, err)

		seq, err := log.LatestFullImageSeq()
		require.NoError(t, err)
		assert.Equal(t, imgSeq, seq)

		img, err := log.LatestFullImage()
		require.NoError(t, err)
		assert.True(t, img.HasFullImage())
		assert.Equal(t, imgSeq, img.SeqNum())
	})

	t.Run("no full image yet", func(t *testing.T) {
		log := openTestLog(t)

		_, err := log.Append(delta("db.a", []string{"db", "a"}))
		require.NoError(t, err)

		_, err = log.LatestFullImageSeq()
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTrim(t *testing.T) {
	t.Run("drops updates below the latest full image", func(t *testing.T) {
		log := openTestLog(t)

		_, err := log.Append(delta("db.a", []string{"db", "a"}))
		require.NoError(t, err)
		_, err = log.Append(delta("db.b", []string{"db", "b"}))
		require.NoError(t, err)
		imgSeq, err := log.Append(image([]string{"db"}))
		require.NoError(t, err)
		_, err = log.Append(delta("db.c", []string{"db", "c"}))
		require.NoError(t, err)

		removed, err := log.Trim()
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		_, err = log.Get(1)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = log.Get(2)
		require.ErrorIs(t, err, ErrNotFound)

		// The image and everything after it survive.
		_, err = log.Get(imgSeq)
		require.NoError(t, err)
		_, err = log.Get(4)
		require.NoError(t, err)
	})

	t.Run("nothing to trim without a full image", func(t *testing.T) {
		log := openTestLog(t)

		_, err := log.Append(delta("db.a", []string{"db", "a"}))
		require.NoError(t, err)

		removed, err := log.Trim()
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()

	log, err := Open(dir)
	require.NoError(t, err)
	_, err = log.Append(image([]string{"db"}))
	require.NoError(t, err)
	_, err = log.Append(delta("db.a", []string{"db", "a"}))
	require.NoError(t, err)
	require.NoError(t, log.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, uint64(2), reopened.LastSeq())

	// Sequence assignment continues where it left off.
	seq, err := reopened.Append(delta("db.b", []string{"db", "b"}))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)

	imgSeq, err := reopened.LatestFullImageSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), imgSeq)
}
