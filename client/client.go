// Package client provides the camera service RPC client. It maintains a
// persistent WebSocket connection to the service, correlates requests with
// responses, routes push notifications to subscribers, and transparently
// reconnects with exponential backoff when the connection drops.
package client

import (
	"context"
	"time"

	"github.com/lensbridge/camlink/protocol"
	"github.com/lensbridge/camlink/types"
)

// Client is the interface for interacting with a camera service endpoint.
// All blocking methods honor context cancellation. A Client is safe for
// concurrent use by multiple goroutines.
type Client interface {
	// Connect establishes the connection to the service. It returns
	// ErrAlreadyConnected if a connection attempt is already in flight,
	// and is a no-op when already connected.
	Connect(ctx context.Context) error

	// Close disconnects from the service and fails any in-flight calls
	// with a connection error. The client may be connected again later.
	Close() error

	// State reports the current connection state.
	State() ConnectionState

	// IsConnected reports whether the connection is currently established.
	IsConnected() bool

	// Call performs a raw RPC round trip. The result is the untyped
	// decoded payload of the server response. Most users want the typed
	// methods below instead.
	Call(ctx context.Context, method string, params interface{}, opts ...CallOption) (interface{}, error)

	// OnNotification registers a handler for server push notifications of
	// the given method. The returned function removes the registration.
	OnNotification(method string, handler NotificationHandler) func()

	// OnConnectionState registers a handler invoked on every connection
	// state transition. The returned function removes the registration.
	OnConnectionState(handler ConnectionStateHandler) func()

	// OnAuthRequired registers a handler invoked when the server rejects
	// the stored credential. The returned function removes the registration.
	OnAuthRequired(handler AuthRequiredHandler) func()

	// SetCredential stores a bearer token for calls that require
	// authentication. The token is not validated locally.
	SetCredential(token string)

	// ClearCredential discards the stored bearer token.
	ClearCredential()

	// HasCredential reports whether a bearer token is currently stored.
	HasCredential() bool

	// Stats returns a snapshot of client traffic counters.
	Stats() Stats

	// Authenticate exchanges a token with the server and stores it as the
	// session credential on success.
	Authenticate(ctx context.Context, token string) (*protocol.AuthenticateResult, error)

	// Ping performs a liveness round trip.
	Ping(ctx context.Context) error

	// ListDevices returns the cameras known to the server.
	ListDevices(ctx context.Context) ([]protocol.Device, error)

	// GetDeviceStatus returns the live status of one camera.
	GetDeviceStatus(ctx context.Context, device string) (*protocol.DeviceStatus, error)

	// StartRecording begins recording on a camera.
	StartRecording(ctx context.Context, params protocol.StartRecordingParams) (*protocol.RecordingAck, error)

	// StopRecording stops an active recording on a camera.
	StopRecording(ctx context.Context, device string) (*protocol.RecordingAck, error)

	// TakeSnapshot captures a still image from a camera.
	TakeSnapshot(ctx context.Context, params protocol.SnapshotParams) (*protocol.SnapshotResult, error)

	// ListRecordings returns a page of stored recordings.
	ListRecordings(ctx context.Context, limit, offset int) (*protocol.FileList, error)

	// ListSnapshots returns a page of stored snapshots.
	ListSnapshots(ctx context.Context, limit, offset int) (*protocol.FileList, error)

	// GetFileInfo returns metadata for a stored file.
	GetFileInfo(ctx context.Context, filename string) (*protocol.FileInfo, error)

	// DeleteRecording removes a stored recording.
	DeleteRecording(ctx context.Context, filename string) error

	// DeleteSnapshot removes a stored snapshot.
	DeleteSnapshot(ctx context.Context, filename string) error

	// GetServerInfo returns server identity and version information.
	GetServerInfo(ctx context.Context) (*protocol.ServerInfo, error)

	// GetSystemStatus returns host health for the server machine.
	GetSystemStatus(ctx context.Context) (*protocol.SystemStatus, error)

	// GetStorageInfo returns storage capacity and usage.
	GetStorageInfo(ctx context.Context) (*protocol.StorageInfo, error)

	// GetMetrics returns server runtime metrics.
	GetMetrics(ctx context.Context) (*protocol.Metrics, error)

	// SubscribeEvents asks the server to push the named event topics.
	SubscribeEvents(ctx context.Context, topics []string) error

	// UnsubscribeEvents stops server pushes for the named event topics.
	UnsubscribeEvents(ctx context.Context, topics []string) error
}

// Stats is a point-in-time snapshot of client traffic counters.
type Stats struct {
	MessagesSent     int64
	MessagesReceived int64
	Notifications    int64
	Errors           int64
}

// Option configures a Client during construction.
type Option func(*clientImpl)

// WithLogger sets the logger used by the client and its subsystems.
func WithLogger(logger types.Logger) Option {
	return func(c *clientImpl) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRequestTimeout sets the default per-call timeout. Individual calls
// may override it with WithCallTimeout.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *clientImpl) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithConnectTimeout bounds how long a single dial attempt may take.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *clientImpl) {
		if timeout > 0 {
			c.connectTimeout = timeout
		}
	}
}

// WithBackoff sets the reconnect schedule used after connection loss.
func WithBackoff(strategy BackoffStrategy) Option {
	return func(c *clientImpl) {
		if strategy != nil {
			c.backoff = strategy
		}
	}
}

// WithAutoReconnect enables or disables automatic reconnection after an
// unexpected connection loss. Enabled by default.
func WithAutoReconnect(enabled bool) Option {
	return func(c *clientImpl) {
		c.autoReconnect = enabled
	}
}

// WithDialer replaces the transport dialer. Used by tests to substitute
// an in-memory transport for the WebSocket one.
func WithDialer(dialer Dialer) Option {
	return func(c *clientImpl) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// WithKeepAlive enables periodic ping round trips while connected.
// An interval of zero disables keepalive.
func WithKeepAlive(interval time.Duration) Option {
	return func(c *clientImpl) {
		c.keepAlive = interval
	}
}

// callOptions carries per-call overrides.
type callOptions struct {
	timeout     time.Duration
	requireAuth bool
}

// CallOption adjusts a single Call invocation.
type CallOption func(*callOptions)

// WithCallTimeout overrides the client's default timeout for one call.
func WithCallTimeout(timeout time.Duration) CallOption {
	return func(o *callOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// RequireAuth marks a call as requiring the stored bearer credential.
// The call fails with ErrAuthRequired before anything is sent when no
// credential is stored.
func RequireAuth() CallOption {
	return func(o *callOptions) {
		o.requireAuth = true
	}
}

// WithoutAuth clears the auth requirement on a call that defaults to
// requiring it.
func WithoutAuth() CallOption {
	return func(o *callOptions) {
		o.requireAuth = false
	}
}
