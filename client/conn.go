package client

import (
	"context"
	"sync"
	"time"

	"github.com/lensbridge/camlink/types"
)

// ConnectionState describes the lifecycle of the single connection owned by a
// client.
type ConnectionState int32

const (
	// StateDisconnected is the initial state, and the result of an explicit
	// disconnect.
	StateDisconnected ConnectionState = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateConnected means the transport is established and calls may be sent.
	StateConnected
	// StateReconnecting means a retry is scheduled after a failure.
	StateReconnecting
	// StateFailed means the retry budget is exhausted. A new explicit Connect
	// leaves this state.
	StateFailed
)

// String returns the state name for logs and connection indicators.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Dialer establishes a transport to the endpoint. Swapped out in tests.
type Dialer func(ctx context.Context, endpoint string) (types.Transport, error)

// ConnectionStateHandler observes state transitions.
type ConnectionStateHandler func(state ConnectionState)

// connManager owns the transport lifecycle: connect, detect failure, drive
// the reconnect/backoff loop, and tear down. All connection state lives here;
// nothing else in the client mutates it.
type connManager struct {
	endpoint       string
	dialer         Dialer
	backoff        BackoffStrategy
	autoReconnect  bool
	connectTimeout time.Duration
	logger         types.Logger

	// onFrame receives every inbound frame; onDown fires once per lost or
	// closed connection, before any reconnect attempt.
	onFrame func(data []byte)
	onDown  func(err error)

	mu             sync.Mutex
	state          ConnectionState
	transport      types.Transport
	gen            uint64 // bumped on every teardown to invalidate stale read loops
	attempts       int    // failed dials in the current outage
	reconnectTimer *time.Timer

	handlerMu     sync.Mutex
	handlerNextID int
	stateHandlers map[int]ConnectionStateHandler
	handlerOrder  []int
	notifyQueue   []ConnectionState
	notifying     bool
}

func newConnManager(endpoint string, dialer Dialer, backoff BackoffStrategy, autoReconnect bool, connectTimeout time.Duration, logger types.Logger) *connManager {
	return &connManager{
		endpoint:       endpoint,
		dialer:         dialer,
		backoff:        backoff,
		autoReconnect:  autoReconnect,
		connectTimeout: connectTimeout,
		logger:         logger,
		state:          StateDisconnected,
		stateHandlers:  make(map[int]ConnectionStateHandler),
	}
}

// State returns the current connection state.
func (m *connManager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnStateChange registers a transition observer and returns its unsubscribe
// function. Handlers run in registration order on every transition.
func (m *connManager) OnStateChange(handler ConnectionStateHandler) func() {
	m.handlerMu.Lock()
	m.handlerNextID++
	id := m.handlerNextID
	m.stateHandlers[id] = handler
	m.handlerOrder = append(m.handlerOrder, id)
	m.handlerMu.Unlock()

	return func() {
		m.handlerMu.Lock()
		defer m.handlerMu.Unlock()
		delete(m.stateHandlers, id)
		for i, hid := range m.handlerOrder {
			if hid == id {
				m.handlerOrder = append(m.handlerOrder[:i], m.handlerOrder[i+1:]...)
				break
			}
		}
	}
}

// setState transitions the state machine (caller holds mu) and queues the
// transition for observers. Delivery happens on a single drainer goroutine so
// handlers always see transitions in the order they occurred, and may call
// back into the manager without deadlocking.
func (m *connManager) setState(state ConnectionState) {
	if m.state == state {
		return
	}
	m.logger.Debug("connection state: %s -> %s", m.state, state)
	m.state = state

	m.handlerMu.Lock()
	m.notifyQueue = append(m.notifyQueue, state)
	if !m.notifying {
		m.notifying = true
		go m.drainNotifications()
	}
	m.handlerMu.Unlock()
}

func (m *connManager) drainNotifications() {
	for {
		m.handlerMu.Lock()
		if len(m.notifyQueue) == 0 {
			m.notifying = false
			m.handlerMu.Unlock()
			return
		}
		state := m.notifyQueue[0]
		m.notifyQueue = m.notifyQueue[1:]
		handlers := make([]ConnectionStateHandler, 0, len(m.handlerOrder))
		for _, id := range m.handlerOrder {
			if h, ok := m.stateHandlers[id]; ok {
				handlers = append(handlers, h)
			}
		}
		m.handlerMu.Unlock()

		for _, h := range handlers {
			m.invokeStateHandler(h, state)
		}
	}
}

func (m *connManager) invokeStateHandler(h ConnectionStateHandler, state ConnectionState) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("connection state handler panicked: %v", r)
		}
	}()
	h(state)
}

// Connect dials the endpoint. It is a no-op when already connected. A failed
// dial returns the error; when auto-reconnect is enabled the manager keeps
// retrying in the background regardless.
func (m *connManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		return nil
	case StateConnecting:
		m.mu.Unlock()
		return NewConnectionError(m.endpoint, "connect already in progress", ErrAlreadyConnected)
	case StateReconnecting:
		// Explicit connect preempts the scheduled retry.
		m.stopReconnectTimerLocked()
	case StateFailed:
		m.attempts = 0
	}
	m.setState(StateConnecting)
	m.mu.Unlock()

	transport, err := m.dialer(ctx, m.endpoint)

	m.mu.Lock()
	if m.state != StateConnecting {
		// Closed while dialing.
		m.mu.Unlock()
		if transport != nil {
			_ = transport.Close()
		}
		return NewConnectionError(m.endpoint, "connection closed during dial", ErrConnectionLost)
	}
	if err != nil {
		m.failAttemptLocked()
		m.mu.Unlock()
		return NewConnectionError(m.endpoint, "failed to connect", err)
	}
	m.establishLocked(transport)
	m.mu.Unlock()
	return nil
}

// establishLocked installs a freshly dialed transport (caller holds mu).
func (m *connManager) establishLocked(transport types.Transport) {
	m.transport = transport
	m.attempts = 0
	m.gen++
	m.setState(StateConnected)
	go m.readLoop(m.gen, transport)
	m.logger.Info("connected to %s", m.endpoint)
}

// failAttemptLocked records a failed dial and either schedules the next retry
// or gives up (caller holds mu).
func (m *connManager) failAttemptLocked() {
	m.attempts++
	if !m.autoReconnect {
		m.setState(StateFailed)
		return
	}
	if budget := m.backoff.MaxAttempts(); budget > 0 && m.attempts >= budget {
		m.logger.Warn("reconnect budget exhausted after %d attempts", m.attempts)
		m.setState(StateFailed)
		return
	}
	delay := m.backoff.NextDelay(m.attempts)
	m.logger.Info("reconnecting to %s in %v (attempt %d)", m.endpoint, delay, m.attempts)
	m.setState(StateReconnecting)
	m.reconnectTimer = time.AfterFunc(delay, m.tryReconnect)
}

// tryReconnect runs in the backoff timer goroutine.
func (m *connManager) tryReconnect() {
	m.mu.Lock()
	if m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.setState(StateConnecting)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.connectTimeout)
	transport, err := m.dialer(ctx, m.endpoint)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnecting {
		if transport != nil {
			_ = transport.Close()
		}
		return
	}
	if err != nil {
		m.logger.Warn("reconnect attempt %d failed: %v", m.attempts+1, err)
		m.failAttemptLocked()
		return
	}
	m.establishLocked(transport)
}

// readLoop pumps inbound frames for one connection generation. It exits when
// the transport fails or a teardown bumps the generation.
func (m *connManager) readLoop(gen uint64, transport types.Transport) {
	for {
		data, err := transport.Receive(context.Background())
		if err != nil {
			m.handleTransportDown(gen, err)
			return
		}
		if len(data) == 0 {
			continue
		}
		m.onFrame(data)
	}
}

// handleTransportDown reacts to a connection dropping out from under us.
func (m *connManager) handleTransportDown(gen uint64, err error) {
	m.mu.Lock()
	if m.gen != gen {
		// A teardown already superseded this connection.
		m.mu.Unlock()
		return
	}
	m.logger.Warn("connection to %s lost: %v", m.endpoint, err)
	m.teardownLocked()
	if m.autoReconnect {
		m.attempts = 0
		m.failAttemptLocked()
	} else {
		m.setState(StateDisconnected)
	}
	m.mu.Unlock()

	m.onDown(NewConnectionError(m.endpoint, "connection lost", ErrConnectionLost))
}

// teardownLocked closes the current transport and invalidates its read loop
// (caller holds mu).
func (m *connManager) teardownLocked() {
	m.gen++
	if m.transport != nil {
		_ = m.transport.Close()
		m.transport = nil
	}
}

func (m *connManager) stopReconnectTimerLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

// Close tears the connection down explicitly: cancels any reconnect timer,
// closes the transport, and settles in Disconnected. Always succeeds and is
// idempotent.
func (m *connManager) Close() {
	m.mu.Lock()
	if m.state == StateDisconnected && m.transport == nil {
		m.mu.Unlock()
		return
	}
	m.stopReconnectTimerLocked()
	m.teardownLocked()
	m.attempts = 0
	m.setState(StateDisconnected)
	m.mu.Unlock()

	m.onDown(NewConnectionError(m.endpoint, "connection closed", ErrConnectionLost))
	m.logger.Info("disconnected from %s", m.endpoint)
}

// Write sends a frame over the current transport. Fails fast when not
// connected; nothing is queued while offline.
func (m *connManager) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	transport := m.transport
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || transport == nil {
		return NewConnectionError(m.endpoint, "not connected", ErrNotConnected)
	}
	return transport.Send(ctx, data)
}
