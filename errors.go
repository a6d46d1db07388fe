package libcable

import (
	"fmt"
	"net/url"

	"github.com/pkg/errors"
)

var (
	ErrAlreadyOpen      = errors.New("must close existing connection before opening")
	ErrConnectionClosed = errors.New("connection has been closed")
	ErrCannotConnect    = errors.New("connection cannot be established")
	ErrRateLimit        = errors.New("rate limit exceeded")
	ErrDecode           = errors.New("cannot decode payload")
	ErrQueueFull        = errors.New("operation queue is full")
	ErrQueueClosed      = errors.New("operation queue is closed")
	ErrOperationPanic   = errors.New("operation panicked")
	ErrInvalidURL       = errors.New("invalid cable url")
)

// ErrProtocolState reports an operation that is illegal in the connection's current state, e.g. opening a
// connection that is already open.
type ErrProtocolState struct {
	Op    string
	State ConnectionState
	err   error
}

func (e *ErrProtocolState) Error() string {
	return fmt.Sprintf("cannot %s while %s: %s", e.Op, e.State, e.err)
}

func (e *ErrProtocolState) Unwrap() error { return e.err }

// ErrTransportIO wraps a failure surfaced by a socket while sending or closing.
type ErrTransportIO struct {
	Op  string
	err error
}

func (e *ErrTransportIO) Error() string {
	return fmt.Sprintf("transport %s failed: %s", e.Op, e.err)
}

func (e *ErrTransportIO) Unwrap() error { return e.err }

func wrapTransportIO(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ErrTransportIO{Op: op, err: err}
}

// ErrHandshake is returned by transports when the websocket upgrade does not succeed.
type ErrHandshake struct {
	URL        url.URL
	StatusCode int
	err        error
}

func (e *ErrHandshake) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("handshake to %s failed with status %d: %s", e.URL.Redacted(), e.StatusCode, e.err)
	}
	return fmt.Sprintf("handshake to %s failed: %s", e.URL.Redacted(), e.err)
}

func (e *ErrHandshake) Unwrap() error { return e.err }

func wrapHandshake(err error, u url.URL, statusCode int) error {
	if err == nil {
		return nil
	}
	return &ErrHandshake{URL: u, StatusCode: statusCode, err: err}
}
