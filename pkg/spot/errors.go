package spot

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a missing or malformed command parameter or
	// a failed upload precondition. Nothing is sent when it is returned.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrProtocolClosed reports that the control server closed the live
	// connection cleanly. It is terminal for the connection manager.
	ErrProtocolClosed = errors.New("live connection closed by peer")
	// ErrNotAuthoring is returned by FlushProgram outside of authoring mode.
	ErrNotAuthoring = errors.New("no program is being authored")
	// ErrNotConnected is returned by keep-alive calls before Connect.
	ErrNotConnected = errors.New("live connection not started")
	// ErrClosed is returned after the robot or connection has been closed.
	ErrClosed = errors.New("robot client closed")
)

// TransportError wraps an HTTP or websocket failure: connection refused,
// non-2xx status, or a response that could not be decoded.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
