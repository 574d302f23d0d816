package qnetd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	raw, err := EncodeFrame(MsgEchoRequest, &echoRequestPayload{Cookie: 42})
	require.NoError(t, err)

	c := NewCodec(1 << 16)
	buf := bytes.NewReader(raw)
	frame, res := c.Read(buf)
	require.Equal(t, ReadComplete, res)
	require.False(t, frame.Skipped)
	require.Equal(t, MsgEchoRequest, frame.Type)

	var out echoRequestPayload
	require.NoError(t, decodePayload(frame.Body, &out))
	require.Equal(t, uint64(42), out.Cookie)
}

func TestCodecPartialRead(t *testing.T) {
	raw, err := EncodeFrame(MsgEchoRequest, &echoRequestPayload{Cookie: 7})
	require.NoError(t, err)

	c := NewCodec(1 << 16)

	// Feed one byte at a time through a reader that only ever returns 1 byte,
	// exercising the partial-assembly cursor across many Read calls.
	src := &oneByteReader{data: raw}
	var last ReadResult
	var frame Frame
	for i := 0; i < len(raw)+1; i++ {
		frame, last = c.Read(src)
		if last == ReadComplete {
			break
		}
		require.Equal(t, ReadPartial, last)
	}
	require.Equal(t, ReadComplete, last)
	require.Equal(t, MsgEchoRequest, frame.Type)
}

type oneByteReader struct {
	data []byte
	pos  int
}

func (r *oneByteReader) Read(b []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, errEOFSentinel
	}
	b[0] = r.data[r.pos]
	r.pos++
	return 1, nil
}

var errEOFSentinel = bytesEOF{}

type bytesEOF struct{}

func (bytesEOF) Error() string { return "EOF" }

func TestCodecOversizeSkipsAndReportsError(t *testing.T) {
	// A cookie above 32 bits encodes wider than the small cookie of the
	// follow-up frame below, so only this first frame exceeds the cap.
	raw, err := EncodeFrame(MsgEchoRequest, &echoRequestPayload{Cookie: 1 << 40})
	require.NoError(t, err)

	c := NewCodec(uint32(len(raw) - headerLen - 1)) // one byte too small
	buf := bytes.NewReader(raw)
	frame, res := c.Read(buf)
	require.Equal(t, ReadOversize, res)
	require.True(t, frame.Skipped)
	require.Equal(t, ErrMessageTooLong, frame.SkipReason)

	// Codec must be clean afterwards: the next frame assembles normally.
	raw2, _ := EncodeFrame(MsgEchoRequest, &echoRequestPayload{Cookie: 2})
	frame2, res2 := c.Read(bytes.NewReader(raw2))
	require.Equal(t, ReadComplete, res2)
	require.False(t, frame2.Skipped)
	var out echoRequestPayload
	require.NoError(t, decodePayload(frame2.Body, &out))
	require.Equal(t, uint64(2), out.Cookie)
}

func TestCodecUnsupportedTypeSkips(t *testing.T) {
	raw, err := EncodeFrame(MessageType(200), &echoRequestPayload{Cookie: 1})
	require.NoError(t, err)

	c := NewCodec(1 << 16)
	frame, res := c.Read(bytes.NewReader(raw))
	require.Equal(t, ReadUnsupportedType, res)
	require.True(t, frame.Skipped)
	require.Equal(t, ErrUnsupportedType, frame.SkipReason)
}

func TestEncodeFrameHeaderFields(t *testing.T) {
	raw, err := EncodeFrame(MsgPreinit, &preinitPayload{TLSRequired: true})
	require.NoError(t, err)
	require.Equal(t, byte(MsgPreinit), raw[0])
	require.Equal(t, byte(0), raw[1])
}
