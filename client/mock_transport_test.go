package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/lensbridge/camlink/types"
)

// mockTransport implements types.Transport for testing. Frames written by
// the client land in sendChan; frames queued with SimulateSend come out of
// the client's Receive.
type mockTransport struct {
	mu          sync.Mutex
	closed      bool
	sendChan    chan []byte
	receiveChan chan []byte
	errorOnSend error
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		sendChan:    make(chan []byte, 16),
		receiveChan: make(chan []byte, 16),
	}
}

func (m *mockTransport) Send(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("transport is closed")
	}
	if m.errorOnSend != nil {
		return m.errorOnSend
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case m.sendChan <- data:
		return nil
	default:
		return fmt.Errorf("mock send buffer full")
	}
}

func (m *mockTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-m.receiveChan:
		if !ok {
			return nil, fmt.Errorf("transport is closed")
		}
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	close(m.receiveChan)
	return nil
}

func (m *mockTransport) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SimulateSend queues a frame for the client to receive.
func (m *mockTransport) SimulateSend(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("transport is closed")
	}
	select {
	case m.receiveChan <- data:
		return nil
	default:
		return fmt.Errorf("receive buffer full")
	}
}

// SimulateReceive pops the next frame the client wrote, without blocking.
func (m *mockTransport) SimulateReceive() ([]byte, error) {
	select {
	case data := <-m.sendChan:
		return data, nil
	default:
		return nil, fmt.Errorf("no data available")
	}
}

// WaitFrame blocks until the client writes a frame or the context expires.
func (m *mockTransport) WaitFrame(ctx context.Context) ([]byte, error) {
	select {
	case data := <-m.sendChan:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Drop simulates an unexpected connection loss.
func (m *mockTransport) Drop() {
	m.Close()
}

func (m *mockTransport) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorOnSend = err
}

var _ types.Transport = (*mockTransport)(nil)
