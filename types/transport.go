package types

import "context"

// Transport abstracts the persistent bidirectional connection to the camera
// service. Implementations carry whole protocol frames; framing below that
// level (WebSocket messages, etc.) is the implementation's concern.
type Transport interface {
	// Send transmits a single frame. The context controls cancellation and
	// write deadlines.
	Send(ctx context.Context, data []byte) error

	// Receive blocks until the next frame arrives, the context is cancelled,
	// or the transport fails.
	Receive(ctx context.Context) ([]byte, error)

	// Close terminates the connection. After Close the transport must not be
	// reused; callers dial a fresh one to reconnect.
	Close() error

	// IsClosed reports whether the transport has been closed, locally or by
	// the peer.
	IsClosed() bool
}

// TransportOptions contains configuration options for creating a Transport.
type TransportOptions struct {
	// Logger is used for logging transport-related events.
	Logger Logger
}
