package qnetd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopDispatchesReadableSocket(t *testing.T) {
	server, client := mustSocketPair(t)
	defer server.Close()
	defer client.Close()

	loop := NewLoop()
	readFired := false
	entry := &FdEntry{
		Fd:       fdOf(t, server),
		Interest: EventRead,
		OnRead: func(e *FdEntry) CallbackResult {
			readFired = true
			return CBOk
		},
	}
	loop.AddFd(entry)

	_, err := client.Write([]byte("x"))
	require.NoError(t, err)

	code := loop.Exec(time.Now())
	require.Equal(t, 0, code)
	require.True(t, readFired)
}

func TestLoopPrePollStopAborts(t *testing.T) {
	loop := NewLoop()
	loop.AddPrePollHook(func() PrePollResult { return PrePollStop })
	code := loop.Exec(time.Now())
	require.Equal(t, -1, code)
}

func TestLoopCallbackErrAborts(t *testing.T) {
	server, client := mustSocketPair(t)
	defer server.Close()
	defer client.Close()

	loop := NewLoop()
	loop.AddFd(&FdEntry{
		Fd:       fdOf(t, server),
		Interest: EventRead,
		OnRead: func(e *FdEntry) CallbackResult {
			return CBErr
		},
	})
	_, _ = client.Write([]byte("x"))
	code := loop.Exec(time.Now())
	require.Equal(t, -1, code)
}

func TestLoopSkippedEntryNotDispatched(t *testing.T) {
	server, client := mustSocketPair(t)
	defer server.Close()
	defer client.Close()

	loop := NewLoop()
	// With the only entry skipped there is nothing to poll; a short timer
	// bounds the wait phase, which an empty timer heap leaves unbounded.
	_, err := loop.Timer.Add(1, func(*TimerHandle) bool { return false })
	require.NoError(t, err)
	called := false
	loop.AddFd(&FdEntry{
		Fd:       fdOf(t, server),
		Interest: EventRead,
		SetEvents: func(e *FdEntry) (EventMask, SetEventsResult) {
			return 0, SetEventsSkip
		},
		OnRead: func(e *FdEntry) CallbackResult {
			called = true
			return CBOk
		},
	})
	_, _ = client.Write([]byte("x"))
	code := loop.Exec(time.Now())
	require.Equal(t, 0, code)
	require.False(t, called)
}

// mustSocketPair returns two connected TCP sockets for use as fd-backed
// test fixtures, since unix.Poll needs real fds.
func mustSocketPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		acceptCh <- c
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server := <-acceptCh
	require.NotNil(t, server)
	return server, client
}

func fdOf(t *testing.T, c net.Conn) int {
	t.Helper()
	tcp, ok := c.(*net.TCPConn)
	require.True(t, ok)
	raw, err := tcp.SyscallConn()
	require.NoError(t, err)
	var fd int
	err = raw.Control(func(p uintptr) {
		fd = int(p)
	})
	require.NoError(t, err)
	return fd
}
