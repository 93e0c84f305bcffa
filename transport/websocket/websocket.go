// Package websocket provides a types.Transport implementation using WebSockets.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/lensbridge/camlink/logx"
	"github.com/lensbridge/camlink/types"
)

// messageOrError holds either a received frame or an error from the reader goroutine.
type messageOrError struct {
	data []byte
	err  error
}

// Transport implements the types.Transport interface over a WebSocket
// connection. One instance wraps one net.Conn for its whole life; a reconnect
// dials a fresh Transport.
type Transport struct {
	conn       net.Conn
	state      ws.State
	reader     *wsutil.Reader
	control    wsutil.FrameHandlerFunc
	logger     types.Logger
	writeMutex sync.Mutex
	readMutex  sync.Mutex
	closed     bool
	closeMutex sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
}

var _ types.Transport = (*Transport)(nil)

// NewTransport wraps an established WebSocket connection. The state selects
// client- or server-side frame masking.
func NewTransport(conn net.Conn, state ws.State, opts types.TransportOptions) *Transport {
	logger := opts.Logger
	if logger == nil {
		logger = logx.NewNilLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	t := &Transport{
		conn:   conn,
		state:  state,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	t.control = wsutil.ControlFrameHandler(conn, state)
	t.reader = &wsutil.Reader{
		Source:         conn,
		State:          state,
		CheckUTF8:      false,
		OnIntermediate: t.control,
	}
	return t
}

// Send writes a frame to the connection as a text message.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.closeMutex.Lock()
	if t.closed {
		t.closeMutex.Unlock()
		return fmt.Errorf("transport is closed")
	}
	t.closeMutex.Unlock()

	if len(data) == 0 {
		return fmt.Errorf("cannot send empty frame")
	}

	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		deadline = time.Now().Add(30 * time.Second)
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		t.logger.Warn("websocket: failed to set write deadline: %v", err)
	}

	err := wsutil.WriteMessage(t.conn, t.state, ws.OpText, data)
	if resetErr := t.conn.SetWriteDeadline(time.Time{}); resetErr != nil {
		t.logger.Warn("websocket: failed to reset write deadline: %v", resetErr)
	}
	if err != nil {
		t.logger.Error("websocket: write failed: %v", err)
		_ = t.Close()
		return fmt.Errorf("failed to write websocket frame: %w", err)
	}
	return nil
}

// Receive reads the next data frame, transparently answering control frames.
func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	t.closeMutex.Lock()
	if t.closed {
		t.closeMutex.Unlock()
		return nil, fmt.Errorf("transport is closed")
	}
	t.closeMutex.Unlock()

	msgChan := make(chan messageOrError, 1)
	go func() {
		t.readMutex.Lock()
		defer t.readMutex.Unlock()
		data, err := t.readFrame()
		msgChan <- messageOrError{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.ctx.Done():
		return nil, fmt.Errorf("transport closed")
	case msg := <-msgChan:
		if msg.err != nil {
			t.closeMutex.Lock()
			alreadyClosed := t.closed
			t.closeMutex.Unlock()
			if !alreadyClosed {
				go t.Close()
			}
			return nil, mapReadError(msg.err)
		}
		return msg.data, nil
	}
}

// readFrame reads data frames, handling pings/pongs in between.
func (t *Transport) readFrame() ([]byte, error) {
	for {
		hdr, err := t.reader.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			if err := t.control(hdr, t.reader); err != nil {
				return nil, err
			}
			continue
		}
		if hdr.OpCode != ws.OpText && hdr.OpCode != ws.OpBinary {
			if err := t.reader.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		data, err := io.ReadAll(t.reader)
		if err != nil {
			return nil, err
		}
		return data, nil
	}
}

// mapReadError folds common websocket failures into readable errors.
func mapReadError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) ||
		strings.Contains(err.Error(), "use of closed network connection") {
		return fmt.Errorf("websocket connection closed: %w", err)
	}
	var closedErr wsutil.ClosedError
	if errors.As(err, &closedErr) {
		return fmt.Errorf("websocket closed by peer with code %d: %w", closedErr.Code, err)
	}
	return fmt.Errorf("websocket read error: %w", err)
}

// Close terminates the connection, sending a close frame best-effort.
func (t *Transport) Close() error {
	t.closeMutex.Lock()
	if t.closed {
		t.closeMutex.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.closeMutex.Unlock()

	t.cancel()

	if conn != nil {
		deadline := time.Now().Add(2 * time.Second)
		if err := conn.SetWriteDeadline(deadline); err != nil {
			t.logger.Warn("websocket: failed to set close deadline: %v", err)
		}
		closePayload := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		if err := wsutil.WriteMessage(conn, t.state, ws.OpClose, closePayload); err != nil {
			t.logger.Debug("websocket: failed to write close frame: %v", err)
		}
		if err := conn.Close(); err != nil {
			t.logger.Warn("websocket: error closing connection: %v", err)
		}
	}

	t.logger.Debug("websocket: transport closed")
	return nil
}

// IsClosed returns true if the transport connection is closed.
func (t *Transport) IsClosed() bool {
	t.closeMutex.Lock()
	defer t.closeMutex.Unlock()
	return t.closed
}

// RemoteAddr returns the remote network address.
func (t *Transport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}
