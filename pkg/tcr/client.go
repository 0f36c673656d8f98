package tcr

import (
	"net"
	"strconv"
	"strings"
)

// Endpoint addresses the remote key-value service.
type Endpoint struct {
	Host string
	Port int
}

// IsUnix reports whether the endpoint is a local socket path.
func (e Endpoint) IsUnix() bool {
	return strings.HasPrefix(e.Host, "/")
}

// Network is the dial network for the endpoint.
func (e Endpoint) Network() string {
	if e.IsUnix() {
		return "unix"
	}

	return "tcp"
}

// Address is the dial address for the endpoint.
func (e Endpoint) Address() string {
	if e.IsUnix() {
		return e.Host
	}

	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return e.Network() + "://" + e.Address()
}

// ReplyFunc receives the result of a command sent through a Conn. It runs on the Loop.
type ReplyFunc func(reply interface{}, err error)

// Conn is a single asynchronous connection handle produced by a Client.
// Nothing happens on the wire until Attach is called; callbacks registered
// before that are delivered on the attached Loop.
type Conn interface {
	// SetConnectCallback registers fn for the outcome of the connect handshake.
	// A nil error means the connection is ready.
	SetConnectCallback(fn func(err error))

	// SetDisconnectCallback registers fn for the loss (err != nil) or requested
	// close (err == nil) of an established connection.
	SetDisconnectCallback(fn func(err error))

	// Send queues a command. Commands sent before the connection is
	// established run as part of the handshake. A nil reply makes the
	// command fire-and-forget.
	Send(reply ReplyFunc, args ...interface{})

	// Attach starts the connection, delivering every callback on loop.
	Attach(loop Loop)

	// Disconnect closes the connection.
	Disconnect()

	// Err returns the last error the client recorded on this handle.
	Err() error
}

// Client is the asynchronous connect capability the pool builds on.
type Client interface {
	// Dial creates a handle for endpoint. An error here is a synchronous
	// connect failure; asynchronous outcomes arrive through the Conn callbacks.
	Dial(endpoint Endpoint) (Conn, error)
}
