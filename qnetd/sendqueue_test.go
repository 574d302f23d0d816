package qnetd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendQueueFlushCompletes(t *testing.T) {
	q := NewSendQueue(4, 1024)
	require.NoError(t, q.Enqueue([]byte("hello")))
	require.False(t, q.Empty())

	var buf bytes.Buffer
	res := q.Flush(&buf)
	require.Equal(t, WriteComplete, res)
	require.True(t, q.Empty())
	require.Equal(t, "hello", buf.String())
}

func TestSendQueueCapsByCount(t *testing.T) {
	q := NewSendQueue(1, 1024)
	require.NoError(t, q.Enqueue([]byte("a")))
	require.ErrorIs(t, q.Enqueue([]byte("b")), ErrSendQueueFull)
}

func TestSendQueueCapsByBytes(t *testing.T) {
	q := NewSendQueue(10, 4)
	require.ErrorIs(t, q.Enqueue([]byte("toolong")), ErrSendQueueFull)
}

type partialWriter struct {
	buf   bytes.Buffer
	limit int
}

func (w *partialWriter) Write(b []byte) (int, error) {
	if len(b) > w.limit {
		b = b[:w.limit]
	}
	return w.buf.Write(b)
}

func TestSendQueuePartialWritePreservesCursor(t *testing.T) {
	q := NewSendQueue(4, 1024)
	require.NoError(t, q.Enqueue([]byte("0123456789")))

	w := &partialWriter{limit: 3}
	res := q.Flush(w)
	require.Equal(t, WritePartial, res)
	require.False(t, q.Empty())

	w.limit = 100
	res = q.Flush(w)
	require.Equal(t, WriteComplete, res)
	require.True(t, q.Empty())
	require.Equal(t, "0123456789", w.buf.String())
}

func TestSendQueueOrdering(t *testing.T) {
	q := NewSendQueue(4, 1024)
	require.NoError(t, q.Enqueue([]byte("first")))
	require.NoError(t, q.Enqueue([]byte("second")))

	var buf bytes.Buffer
	require.Equal(t, WriteComplete, q.Flush(&buf))
	require.Equal(t, WriteComplete, q.Flush(&buf))
	require.Equal(t, "firstsecond", buf.String())
}
