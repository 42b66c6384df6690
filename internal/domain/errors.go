package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomExists       = errors.New("room already exists")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrNotHost          = errors.New("only the host may do this")
	ErrNotPending       = errors.New("identity has no pending join request")
	ErrNotParticipant   = errors.New("identity is not a participant")
	ErrCannotEvictHost  = errors.New("host cannot be evicted")
	ErrEvicted          = errors.New("identity was removed from this room")
	ErrNotConnected     = errors.New("transport not connected")
	ErrClosed           = errors.New("closed")
	ErrUnknownMessage   = errors.New("unknown message type")
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnexpectedState  = errors.New("message not valid in current state")
	ErrConnectTimeout   = errors.New("peer connection timeout")
	ErrRateLimited      = errors.New("rate limited")
)

// ErrorKind is the failure class from the coordination error taxonomy.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindProtocol  ErrorKind = "protocol"
	KindAdmission ErrorKind = "admission"
	KindMedia     ErrorKind = "media"
	KindPeerLink  ErrorKind = "peer-link"
)

type Error struct {
	Kind     ErrorKind
	Op       string
	Identity Identity
	Err      error
}

func (e *Error) Error() string {
	if e.Identity != "" {
		return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Op, e.Identity, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func TransportError(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

func ProtocolError(op string, err error) *Error {
	return &Error{Kind: KindProtocol, Op: op, Err: err}
}

func AdmissionError(op string, id Identity, err error) *Error {
	return &Error{Kind: KindAdmission, Op: op, Identity: id, Err: err}
}

func MediaAcquisitionError(op string, err error) *Error {
	return &Error{Kind: KindMedia, Op: op, Err: err}
}

func PeerLinkFailure(op string, peer Identity, err error) *Error {
	return &Error{Kind: KindPeerLink, Op: op, Identity: peer, Err: err}
}

// KindOf returns the taxonomy kind of err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
