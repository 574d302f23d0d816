package qnetd

import (
	"github.com/hashicorp/errwrap"
	"github.com/pkg/errors"
)

// ErrorKind classifies a failure the way spec §7 enumerates them, so
// callers can apply the right policy (skip-and-reply, reply-and-disconnect,
// close-silently, or abort-the-process) without string matching.
type ErrorKind int

const (
	ErrKindBadArgument ErrorKind = iota
	ErrKindResourceExhausted
	ErrKindProtocolViolation
	ErrKindOversizeMessage
	ErrKindIOError
	ErrKindTLSError
	ErrKindDPDTimeout
	ErrKindAdmissionDenied
	ErrKindInternalInvariant
)

// Error wraps an underlying cause with the kind that determines how the
// instance reacts to it (spec §7's policy table).
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return errwrap.Wrapf(e.Op+": {{err}}", e.Err).Error()
}

func (e *Error) Unwrap() error { return e.Err }

// newError constructs an Error, attaching a stack trace via pkg/errors when
// the kind is internal_invariant — that is the one kind spec §7 says should
// abort the process, so it is the one worth a trace.
func newError(kind ErrorKind, op string, cause error) *Error {
	if kind == ErrKindInternalInvariant && cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Op: op, Err: cause}
}

// DisconnectReason records why a client session was torn down, surfaced in
// logs and in the control socket's verbose status.
type DisconnectReason string

const (
	DisconnectProtocolError DisconnectReason = "protocol_violation"
	DisconnectIOError       DisconnectReason = "io_error"
	DisconnectDPDTimeout    DisconnectReason = "dpd_timeout"
	DisconnectServerDown    DisconnectReason = "server_shutdown"
	DisconnectAlgorithm     DisconnectReason = "algorithm_request"
	DisconnectAdmission     DisconnectReason = "admission_denied"
	DisconnectTLSError      DisconnectReason = "tls_error"
)
