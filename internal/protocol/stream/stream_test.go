package stream

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRoundTrip(t *testing.T) {
	t.Run("payload survives", func(t *testing.T) {
		var buf bytes.Buffer
		payload := []byte("one encoded update")

		require.NoError(t, WriteMessage(&buf, payload))

		got, err := ReadMessage(&buf)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("empty payload", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteMessage(&buf, nil))

		got, err := ReadMessage(&buf)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("consecutive messages stay separate", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteMessage(&buf, []byte("first")))
		require.NoError(t, WriteMessage(&buf, []byte("second")))

		first, err := ReadMessage(&buf)
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), first)

		second, err := ReadMessage(&buf)
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), second)
	})
}

func TestMultiFragmentMessage(t *testing.T) {
	// Hand-build a two-fragment message; writers emit single fragments but
	// readers must reassemble.
	var buf bytes.Buffer

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 3)
	buf.Write(header[:])
	buf.WriteString("abc")

	binary.BigEndian.PutUint32(header[:], lastFragmentBit|3)
	buf.Write(header[:])
	buf.WriteString("def")

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), got)
}

func TestOversizeMessage(t *testing.T) {
	t.Run("writer refuses", func(t *testing.T) {
		err := WriteMessage(io.Discard, make([]byte, MaxMessageSize+1))
		require.Error(t, err)
	})

	t.Run("reader refuses corrupt length", func(t *testing.T) {
		var buf bytes.Buffer
		var header [4]byte
		binary.BigEndian.PutUint32(header[:], lastFragmentBit|(MaxMessageSize+1))
		buf.Write(header[:])

		_, err := ReadMessage(&buf)
		require.Error(t, err)
	})
}

func TestTruncatedMessage(t *testing.T) {
	var buf bytes.Buffer
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], lastFragmentBit|10)
	buf.Write(header[:])
	buf.WriteString("short")

	_, err := ReadMessage(&buf)
	require.Error(t, err)
}

func TestHelloRoundTrip(t *testing.T) {
	t.Run("resume position survives", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteHello(&buf, 42))

		got, err := ReadHello(&buf)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), got)
	})

	t.Run("fresh replica announces zero", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteHello(&buf, 0))

		got, err := ReadHello(&buf)
		require.NoError(t, err)
		assert.Zero(t, got)
	})

	t.Run("wrong payload size is rejected", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteMessage(&buf, []byte("not a hello")))

		_, err := ReadHello(&buf)
		require.Error(t, err)
	})
}
