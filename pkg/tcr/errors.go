package tcr

import "errors"

var (
	// ErrConnectionPoolClosed is returned when a connection pool shutdown has been triggered.
	ErrConnectionPoolClosed = errors.New("connection pool closed")

	// ErrNoConnection is returned by Get when every slot is empty at call time.
	// It is a transient state, not a failure; callers decide whether to retry.
	ErrNoConnection = errors.New("no connection available")

	// ErrConnectionClosed is returned to replies of commands sent on a closed connection.
	ErrConnectionClosed = errors.New("connection is already closed")

	// ErrCommandQueueFull is returned when a connection has too many unsent commands.
	ErrCommandQueueFull = errors.New("connection command queue full")

	// ErrLoopClosed is returned when posting work to a stopped EventLoop.
	ErrLoopClosed = errors.New("event loop closed")

	// ErrInvalidEndpoint is returned by Dial when the endpoint can't be addressed.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrInvalidConfig wraps every configuration validation failure.
	// you can check for this error with errors.Is
	ErrInvalidConfig = errors.New("invalid config")
)
