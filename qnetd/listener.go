package qnetd

import (
	"fmt"
	"net"
	"strconv"

	sockaddr "github.com/hashicorp/go-sockaddr"
)

// Listener owns the bound TCP socket and the non-blocking accept path
// (spec §4.8, C8). It participates in the readiness loop as one FdEntry
// whose OnRead accepts one pending connection per readable wakeup, closing
// it at once when the instance's MaxClients admission cap is reached.
type Listener struct {
	ln  *net.TCPListener
	fd  int
	cfg Settings
}

// resolveListenAddr turns the configured address family and bind address
// into a concrete net.TCPAddr, following the same "ask go-sockaddr for the
// matching family's address" pattern the agent uses to pick a bind address
// from a possibly-ambiguous interface spec.
func resolveListenAddr(s Settings) (*net.TCPAddr, error) {
	host := s.ListenAddr
	if host == "" {
		switch s.AddressFamily {
		case AddressV4:
			ip, err := sockaddr.GetPrivateIP()
			if err != nil || ip == "" {
				host = "0.0.0.0"
			} else {
				host = ip
			}
		case AddressV6:
			host = "::"
		default:
			host = "0.0.0.0"
		}
	}
	return net.ResolveTCPAddr("tcp", net.JoinHostPort(host, strconv.Itoa(s.ListenPort)))
}

// NewListener binds and starts listening. net.ListenTCP uses the system's
// default listen backlog; s.ListenBacklog is not applied. No accept
// deadline is set, so Accept below blocks when nothing is pending; the
// instance calls it only once per wakeup in which the readiness loop
// reports the fd readable.
func NewListener(s Settings) (*Listener, error) {
	addr, err := resolveListenAddr(s)
	if err != nil {
		return nil, newError(ErrKindBadArgument, "resolve listen address", err)
	}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, newError(ErrKindIOError, "listen", err)
	}
	fd, err := fdOfListener(ln)
	if err != nil {
		ln.Close()
		return nil, newError(ErrKindIOError, "extract listener fd", err)
	}
	return &Listener{ln: ln, fd: fd, cfg: s}, nil
}

// Fd returns the listening socket's file descriptor, for registration with
// the readiness loop.
func (l *Listener) Fd() int { return l.fd }

// Addr returns the "ip:port" string the listener is bound to.
func (l *Listener) Addr() string { return l.ln.Addr().String() }

// Accept accepts exactly one connection, blocking until one arrives. It
// returns (nil, 0, nil) only if AcceptTCP reports a timeout, which cannot
// happen while no deadline is set.
func (l *Listener) Accept() (net.Conn, int, error) {
	conn, err := l.ln.AcceptTCP()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	_ = conn.SetNoDelay(true)
	fd, err := fdOfConn(conn)
	if err != nil {
		conn.Close()
		return nil, 0, err
	}
	return conn, fd, nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}

func fdOfListener(ln *net.TCPListener) (int, error) {
	raw, err := ln.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	ctlErr := raw.Control(func(p uintptr) { fd = int(p) })
	if ctlErr != nil {
		return 0, ctlErr
	}
	return fd, nil
}

func fdOfConn(c *net.TCPConn) (int, error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	ctlErr := raw.Control(func(p uintptr) { fd = int(p) })
	if ctlErr != nil {
		return 0, ctlErr
	}
	return fd, nil
}

// peerAddr formats a net.Conn's remote address as qnetd logs it everywhere:
// a bare "ip:port" string, never a *net.TCPAddr value.
func peerAddr(c net.Conn) string {
	return fmt.Sprintf("%s", c.RemoteAddr().String())
}
