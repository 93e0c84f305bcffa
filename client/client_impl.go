package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lensbridge/camlink/logx"
	"github.com/lensbridge/camlink/protocol"
	"github.com/lensbridge/camlink/transport/websocket"
	"github.com/lensbridge/camlink/types"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

// clientImpl wires the connection manager, pending-call registry, auth
// state, and notification router into a single Client.
type clientImpl struct {
	endpoint   string
	instanceID string

	logger         types.Logger
	callTimeout    time.Duration
	connectTimeout time.Duration
	keepAlive      time.Duration
	autoReconnect  bool
	backoff        BackoffStrategy
	dialer         Dialer

	conn    *connManager
	pending *pendingRegistry
	router  *notificationRouter
	auth    *authState

	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	notifications    atomic.Int64
	errorCount       atomic.Int64

	keepAliveMu   sync.Mutex
	keepAliveStop chan struct{}
}

var _ Client = (*clientImpl)(nil)

// New creates a Client for the camera service at the given endpoint.
// The endpoint accepts ws://, wss://, http://, or https:// URLs. The
// client does not connect until Connect is called.
func New(endpoint string, opts ...Option) (Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint must not be empty")
	}

	c := &clientImpl{
		endpoint:       endpoint,
		instanceID:     uuid.New().String(),
		logger:         logx.NewNilLogger(),
		callTimeout:    defaultRequestTimeout,
		connectTimeout: defaultConnectTimeout,
		autoReconnect:  true,
		backoff:        NewExponentialBackoff(500*time.Millisecond, 30*time.Second, 0),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.dialer == nil {
		c.dialer = func(ctx context.Context, endpoint string) (types.Transport, error) {
			return websocket.Dial(ctx, endpoint, types.TransportOptions{Logger: c.logger})
		}
	}

	c.pending = newPendingRegistry(c.logger)
	c.router = newNotificationRouter(c.logger)
	c.auth = newAuthState(c.logger)
	c.conn = newConnManager(endpoint, c.dialer, c.backoff, c.autoReconnect, c.connectTimeout, c.logger)
	c.conn.onFrame = c.handleFrame
	c.conn.onDown = c.handleConnectionDown

	return c, nil
}

func (c *clientImpl) Connect(ctx context.Context) error {
	if err := c.conn.Connect(ctx); err != nil {
		c.errorCount.Add(1)
		return err
	}
	c.startKeepAlive()
	return nil
}

func (c *clientImpl) Close() error {
	c.stopKeepAlive()
	c.conn.Close()
	return nil
}

func (c *clientImpl) State() ConnectionState {
	return c.conn.State()
}

func (c *clientImpl) IsConnected() bool {
	return c.conn.State() == StateConnected
}

// Call performs one RPC round trip: it registers a pending call, writes
// the request frame, and waits for the correlated response, the call
// timeout, or context cancellation, whichever comes first.
func (c *clientImpl) Call(ctx context.Context, method string, params interface{}, opts ...CallOption) (interface{}, error) {
	options := callOptions{timeout: c.callTimeout}
	for _, opt := range opts {
		opt(&options)
	}

	if c.conn.State() != StateConnected {
		c.errorCount.Add(1)
		return nil, NewConnectionError(c.endpoint, "client is not connected", ErrNotConnected)
	}

	wireParams := params
	if options.requireAuth {
		asMap, err := paramsToMap(params)
		if err != nil {
			c.errorCount.Add(1)
			return nil, fmt.Errorf("encoding params for %s: %w", method, err)
		}
		decorated, ok := c.auth.Decorate(asMap)
		if !ok {
			c.errorCount.Add(1)
			return nil, &ClientError{
				Message: fmt.Sprintf("method %s requires authentication", method),
				Cause:   ErrAuthRequired,
			}
		}
		wireParams = decorated
	}

	pc := c.pending.register(method)
	req := protocol.NewRequest(pc.id, method, wireParams)
	data, err := protocol.EncodeRequest(req)
	if err != nil {
		c.pending.remove(pc.id)
		c.errorCount.Add(1)
		return nil, fmt.Errorf("encoding request for %s: %w", method, err)
	}

	if err := c.conn.Write(ctx, data); err != nil {
		c.pending.remove(pc.id)
		c.errorCount.Add(1)
		return nil, err
	}
	c.messagesSent.Add(1)

	timer := time.NewTimer(options.timeout)
	defer timer.Stop()

	select {
	case res := <-pc.done:
		if res.err != nil {
			c.errorCount.Add(1)
			return nil, res.err
		}
		if res.resp.Error != nil {
			c.errorCount.Add(1)
			if protocol.IsAuthErrorCode(res.resp.Error.Code) {
				c.auth.handleAuthFailure()
			}
			return nil, NewServerError(method, res.resp.Error)
		}
		return res.resp.Result, nil

	case <-timer.C:
		c.pending.remove(pc.id)
		c.errorCount.Add(1)
		return nil, NewTimeoutError(method, options.timeout)

	case <-ctx.Done():
		c.pending.remove(pc.id)
		c.errorCount.Add(1)
		return nil, ctx.Err()
	}
}

func (c *clientImpl) OnNotification(method string, handler NotificationHandler) func() {
	return c.router.Subscribe(method, handler)
}

func (c *clientImpl) OnConnectionState(handler ConnectionStateHandler) func() {
	return c.conn.OnStateChange(handler)
}

func (c *clientImpl) OnAuthRequired(handler AuthRequiredHandler) func() {
	return c.auth.OnAuthRequired(handler)
}

func (c *clientImpl) SetCredential(token string) {
	c.auth.SetCredential(token)
}

func (c *clientImpl) ClearCredential() {
	c.auth.ClearCredential()
}

func (c *clientImpl) HasCredential() bool {
	_, ok := c.auth.Credential()
	return ok
}

func (c *clientImpl) Stats() Stats {
	return Stats{
		MessagesSent:     c.messagesSent.Load(),
		MessagesReceived: c.messagesReceived.Load(),
		Notifications:    c.notifications.Load(),
		Errors:           c.errorCount.Load(),
	}
}

// handleFrame demultiplexes one inbound frame. Responses resolve their
// pending call by id, notifications go to the router, and frames that
// decode to neither are logged and dropped so one bad frame cannot take
// the connection down.
func (c *clientImpl) handleFrame(data []byte) {
	resp, notif, err := protocol.Decode(data)
	if err != nil {
		c.logger.Warn("dropping malformed frame: %v", err)
		return
	}
	c.messagesReceived.Add(1)

	if resp != nil {
		c.pending.resolve(resp.ID, resp)
		return
	}

	c.notifications.Add(1)
	c.router.Dispatch(notif)
}

func (c *clientImpl) handleConnectionDown(err error) {
	c.pending.failAll(err)
}

func (c *clientImpl) startKeepAlive() {
	if c.keepAlive <= 0 {
		return
	}
	c.keepAliveMu.Lock()
	defer c.keepAliveMu.Unlock()
	if c.keepAliveStop != nil {
		return
	}
	stop := make(chan struct{})
	c.keepAliveStop = stop
	go c.keepAliveLoop(stop)
}

func (c *clientImpl) stopKeepAlive() {
	c.keepAliveMu.Lock()
	defer c.keepAliveMu.Unlock()
	if c.keepAliveStop != nil {
		close(c.keepAliveStop)
		c.keepAliveStop = nil
	}
}

// keepAliveLoop sends periodic pings while the connection is up. Ping
// failures are only logged; the read loop notices dead connections and
// drives reconnection on its own.
func (c *clientImpl) keepAliveLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if c.conn.State() != StateConnected {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), c.keepAlive)
			if err := c.Ping(ctx); err != nil {
				c.logger.Debug("keepalive ping failed: %v", err)
			}
			cancel()
		}
	}
}

// paramsToMap converts arbitrary params into a map so the auth layer can
// merge the credential in. Structs round-trip through their json tags.
func paramsToMap(params interface{}) (map[string]interface{}, error) {
	if params == nil {
		return map[string]interface{}{}, nil
	}
	if m, ok := params.(map[string]interface{}); ok {
		return m, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("params must encode to a JSON object: %w", err)
	}
	return m, nil
}
