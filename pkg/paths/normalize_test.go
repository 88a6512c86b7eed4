package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("scheme-less absolute path", func(t *testing.T) {
		path, ok, err := Normalize("/a/b/c", "hdfs", nil)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, CanonicalPath{"a", "b", "c"}, path)
	})

	t.Run("full URI with authority", func(t *testing.T) {
		path, ok, err := Normalize("hdfs://namenode:8020/warehouse/db", "hdfs", nil)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, CanonicalPath{"warehouse", "db"}, path)
	})

	t.Run("URI without authority", func(t *testing.T) {
		path, ok, err := Normalize("hdfs:///warehouse/db", "hdfs", nil)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, CanonicalPath{"warehouse", "db"}, path)
	})

	t.Run("authority is stripped", func(t *testing.T) {
		withAuthority, ok, err := Normalize("hdfs://nn:8020/a/b", "hdfs", nil)
		require.NoError(t, err)
		require.True(t, ok)

		withoutAuthority, ok, err := Normalize("hdfs:///a/b", "hdfs", nil)
		require.NoError(t, err)
		require.True(t, ok)

		assert.True(t, withAuthority.Equal(withoutAuthority))
	})

	t.Run("consecutive separators collapse", func(t *testing.T) {
		path, ok, err := Normalize("hdfs://nn:8020/a//b", "hdfs", nil)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, CanonicalPath{"a", "b"}, path)
	})

	t.Run("trailing separator is ignored", func(t *testing.T) {
		path, ok, err := Normalize("/a/b/", "hdfs", nil)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, CanonicalPath{"a", "b"}, path)
	})

	t.Run("scheme match is case-insensitive", func(t *testing.T) {
		path, ok, err := Normalize("HDFS://nn:8020/a", "hdfs", nil)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, CanonicalPath{"a"}, path)
	})

	t.Run("other scheme is not applicable", func(t *testing.T) {
		path, ok, err := Normalize("s3://bucket/key", "hdfs", nil)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, path)
	})

	t.Run("non-matching default scheme is not applicable", func(t *testing.T) {
		path, ok, err := Normalize("/a/b", "file", nil)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, path)
	})

	t.Run("partition values with special characters", func(t *testing.T) {
		path, ok, err := Normalize("/warehouse/db/tbl/p=2024 01", "hdfs", nil)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, CanonicalPath{"warehouse", "db", "tbl", "p=2024 01"}, path)
	})

	t.Run("empty path is malformed", func(t *testing.T) {
		_, _, err := Normalize("", "hdfs", nil)
		var malformed *MalformedPathError
		require.ErrorAs(t, err, &malformed)
	})

	t.Run("blank path is malformed", func(t *testing.T) {
		_, _, err := Normalize("   ", "hdfs", nil)
		var malformed *MalformedPathError
		require.ErrorAs(t, err, &malformed)
	})

	t.Run("bare root is malformed", func(t *testing.T) {
		_, _, err := Normalize("/", "hdfs", nil)
		var malformed *MalformedPathError
		require.ErrorAs(t, err, &malformed)
	})

	t.Run("bare root URI is malformed", func(t *testing.T) {
		_, _, err := Normalize("hdfs://nn:8020/", "hdfs", nil)
		var malformed *MalformedPathError
		require.ErrorAs(t, err, &malformed)
	})

	t.Run("no scheme and no default is malformed", func(t *testing.T) {
		_, _, err := Normalize("/a/b", "", nil)
		var malformed *MalformedPathError
		require.ErrorAs(t, err, &malformed)
		assert.Contains(t, malformed.Error(), "[/a/b]")
	})

	t.Run("components are interned through the table", func(t *testing.T) {
		table := NewInterner()

		a, ok, err := Normalize("/warehouse/db/t1", "hdfs", table)
		require.NoError(t, err)
		require.True(t, ok)

		b, ok, err := Normalize("/warehouse/db/t2", "hdfs", table)
		require.NoError(t, err)
		require.True(t, ok)

		// Shared segments come back as the same backing string.
		assert.Equal(t, a[0], b[0])
		assert.Equal(t, 4, table.Len())
	})
}

func TestCanonicalPathEqual(t *testing.T) {
	t.Run("equal sequences", func(t *testing.T) {
		assert.True(t, CanonicalPath{"a", "b"}.Equal(CanonicalPath{"a", "b"}))
	})

	t.Run("different lengths", func(t *testing.T) {
		assert.False(t, CanonicalPath{"a"}.Equal(CanonicalPath{"a", "b"}))
	})

	t.Run("different components", func(t *testing.T) {
		assert.False(t, CanonicalPath{"a", "b"}.Equal(CanonicalPath{"a", "c"}))
	})

	t.Run("empty sequences", func(t *testing.T) {
		assert.True(t, CanonicalPath{}.Equal(nil))
	})
}

func TestCanonicalPathHash(t *testing.T) {
	t.Run("equal paths hash identically", func(t *testing.T) {
		a, ok, err := Normalize("hdfs://nn:8020/x/y", "hdfs", nil)
		require.NoError(t, err)
		require.True(t, ok)

		b, ok, err := Normalize("/x//y/", "hdfs", nil)
		require.NoError(t, err)
		require.True(t, ok)

		require.True(t, a.Equal(b))
		assert.Equal(t, a.Hash(), b.Hash())
	})

	t.Run("component boundaries are unambiguous", func(t *testing.T) {
		assert.NotEqual(t,
			CanonicalPath{"ab", "c"}.Hash(),
			CanonicalPath{"a", "bc"}.Hash())
	})
}

func TestCanonicalPathString(t *testing.T) {
	assert.Equal(t, "/a/b/c", CanonicalPath{"a", "b", "c"}.String())
}
