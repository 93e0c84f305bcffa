package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensbridge/camlink/protocol"
	"github.com/lensbridge/camlink/types"
)

// newTestClient connects a client over a mock transport.
func newTestClient(t *testing.T, opts ...Option) (*clientImpl, *mockTransport) {
	t.Helper()
	mt := newMockTransport()

	base := []Option{
		WithDialer(func(ctx context.Context, endpoint string) (types.Transport, error) {
			return mt, nil
		}),
		WithAutoReconnect(false),
		WithRequestTimeout(2 * time.Second),
	}
	c, err := New("ws://cams.local/ws", append(base, opts...)...)
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { c.Close() })

	return c.(*clientImpl), mt
}

// serveOnce answers the next request frame the client writes. The handler
// returns the reply frame, or nil to stay silent.
func serveOnce(t *testing.T, mt *mockTransport, handle func(req map[string]interface{}) []byte) {
	t.Helper()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		frame, err := mt.WaitFrame(ctx)
		if err != nil {
			return
		}
		var req map[string]interface{}
		if err := json.Unmarshal(frame, &req); err != nil {
			return
		}
		if reply := handle(req); reply != nil {
			_ = mt.SimulateSend(reply)
		}
	}()
}

func resultFrame(id float64, result string) []byte {
	return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":%s}`, int64(id), result))
}

func errorFrame(id float64, code protocol.ErrorCode, message string) []byte {
	return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"error":{"code":%d,"message":%q}}`, int64(id), code, message))
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestClientListDevicesRoundTrip(t *testing.T) {
	c, mt := newTestClient(t)

	serveOnce(t, mt, func(req map[string]interface{}) []byte {
		assert.Equal(t, "list-devices", req["method"])
		return resultFrame(req["id"].(float64),
			`{"devices":[{"device":"cam1","name":"Front Door","status":"online"}],"total":1}`)
	})

	devices, err := c.ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "cam1", devices[0].ID)
	assert.Equal(t, "online", devices[0].Status)
}

func TestClientNullResultResolvesCall(t *testing.T) {
	c, mt := newTestClient(t)

	serveOnce(t, mt, func(req map[string]interface{}) []byte {
		return resultFrame(req["id"].(float64), `null`)
	})

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, 0, c.pending.size())
}

func TestClientServerErrorMapped(t *testing.T) {
	c, mt := newTestClient(t)

	serveOnce(t, mt, func(req map[string]interface{}) []byte {
		return errorFrame(req["id"].(float64), protocol.CodeRecordingConflict, "already recording")
	})

	c.SetCredential("token")
	_, err := c.StartRecording(context.Background(), protocol.StartRecordingParams{Device: "cam1"})
	require.Error(t, err)
	assert.True(t, IsServerError(err))

	code, ok := ServerErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, protocol.CodeRecordingConflict, code)
	assert.Contains(t, err.Error(), "already recording")
}

func TestClientCallTimeout(t *testing.T) {
	c, mt := newTestClient(t)

	serveOnce(t, mt, func(req map[string]interface{}) []byte {
		return nil // never answer
	})

	start := time.Now()
	_, err := c.Call(context.Background(), protocol.MethodPing, nil, WithCallTimeout(50*time.Millisecond))
	require.Error(t, err)
	assert.True(t, IsTimeoutError(err))
	assert.Less(t, time.Since(start), time.Second)

	// The abandoned call must not linger in the registry.
	assert.Equal(t, 0, c.pending.size())
}

func TestClientConcurrentCallsIndependent(t *testing.T) {
	c, mt := newTestClient(t)

	// Answer only the second request; the first must time out alone.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		var ids []float64
		for len(ids) < 2 {
			frame, err := mt.WaitFrame(ctx)
			if err != nil {
				return
			}
			var req map[string]interface{}
			if err := json.Unmarshal(frame, &req); err != nil {
				continue
			}
			ids = append(ids, req["id"].(float64))
		}
		_ = mt.SimulateSend(resultFrame(ids[1], `{"status":"ok"}`))
	}()

	var wg sync.WaitGroup
	var firstErr, secondErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, firstErr = c.Call(context.Background(), "get-device-status",
			protocol.DeviceStatusParams{Device: "cam1"}, WithCallTimeout(100*time.Millisecond))
	}()
	time.Sleep(20 * time.Millisecond) // keep request order deterministic
	go func() {
		defer wg.Done()
		_, secondErr = c.Call(context.Background(), "get-device-status",
			protocol.DeviceStatusParams{Device: "cam2"}, WithCallTimeout(time.Second))
	}()
	wg.Wait()

	assert.True(t, IsTimeoutError(firstErr), "first call should time out, got %v", firstErr)
	assert.NoError(t, secondErr, "second call must be unaffected")
}

func TestClientContextCancellation(t *testing.T) {
	c, _ := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Call(ctx, protocol.MethodPing, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, c.pending.size())
}

func TestClientAuthGatingWritesNothing(t *testing.T) {
	c, mt := newTestClient(t)

	_, err := c.StartRecording(context.Background(), protocol.StartRecordingParams{Device: "cam1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthRequired)

	// Nothing may have reached the wire.
	_, frameErr := mt.SimulateReceive()
	assert.Error(t, frameErr, "no frame should have been written")
	assert.Equal(t, 0, c.pending.size())
}

func TestClientNotConnectedReportedBeforeAuth(t *testing.T) {
	c, err := New("ws://cams.local/ws",
		WithDialer(func(ctx context.Context, endpoint string) (types.Transport, error) {
			return newMockTransport(), nil
		}))
	require.NoError(t, err)

	// Never connected and no credential: the connection error wins.
	_, callErr := c.(*clientImpl).StartRecording(context.Background(),
		protocol.StartRecordingParams{Device: "cam1"})
	require.Error(t, callErr)
	assert.ErrorIs(t, callErr, ErrNotConnected)
	assert.NotErrorIs(t, callErr, ErrAuthRequired)
}

func TestClientAuthDecoratesParams(t *testing.T) {
	c, mt := newTestClient(t)
	c.SetCredential("secret-token")

	serveOnce(t, mt, func(req map[string]interface{}) []byte {
		params := req["params"].(map[string]interface{})
		assert.Equal(t, "secret-token", params["auth_token"])
		assert.Equal(t, "cam1", params["device"])
		return resultFrame(req["id"].(float64), `{"device":"cam1","status":"recording"}`)
	})

	ack, err := c.StartRecording(context.Background(), protocol.StartRecordingParams{Device: "cam1"})
	require.NoError(t, err)
	assert.Equal(t, "recording", ack.Status)
}

func TestClientAuthFailureClearsCredential(t *testing.T) {
	c, mt := newTestClient(t)
	c.SetCredential("expired-token")

	fired := make(chan struct{}, 1)
	c.OnAuthRequired(func() { fired <- struct{}{} })

	serveOnce(t, mt, func(req map[string]interface{}) []byte {
		return errorFrame(req["id"].(float64), protocol.CodeAuthenticationFailed, "token expired")
	})

	_, err := c.StartRecording(context.Background(), protocol.StartRecordingParams{Device: "cam1"})
	require.Error(t, err)
	assert.False(t, c.HasCredential(), "auth failure must clear the credential")

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("auth-required handler never fired")
	}

	// The next authenticated call fails fast without touching the wire.
	_, err = c.StartRecording(context.Background(), protocol.StartRecordingParams{Device: "cam1"})
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestClientPermissionErrorKeepsCredential(t *testing.T) {
	c, mt := newTestClient(t)
	c.SetCredential("viewer-token")

	serveOnce(t, mt, func(req map[string]interface{}) []byte {
		return errorFrame(req["id"].(float64), protocol.CodeInsufficientPermissions, "viewer role")
	})

	err := c.DeleteRecording(context.Background(), "clip.mp4")
	require.Error(t, err)
	code, ok := ServerErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, protocol.CodeInsufficientPermissions, code)
	assert.True(t, c.HasCredential(), "permission errors must not clear the credential")
}

func TestClientAuthenticateStoresCredential(t *testing.T) {
	c, mt := newTestClient(t)

	serveOnce(t, mt, func(req map[string]interface{}) []byte {
		assert.Equal(t, "authenticate", req["method"])
		params := req["params"].(map[string]interface{})
		assert.Equal(t, "login-token", params["auth_token"])
		return resultFrame(req["id"].(float64), `{"session_id":"s-1","role":"operator"}`)
	})

	result, err := c.Authenticate(context.Background(), "login-token")
	require.NoError(t, err)
	assert.Equal(t, "s-1", result.SessionID)
	assert.Equal(t, "operator", result.Role)
	assert.True(t, c.HasCredential())
}

func TestClientNotificationDispatch(t *testing.T) {
	c, mt := newTestClient(t)

	events := make(chan protocol.CameraStatusEvent, 1)
	c.OnNotification(protocol.EventCameraStatusChanged, func(n *protocol.Notification) error {
		var event protocol.CameraStatusEvent
		if err := protocol.DecodePayload(n.Params, &event); err != nil {
			return err
		}
		events <- event
		return nil
	})

	require.NoError(t, mt.SimulateSend(
		[]byte(`{"jsonrpc":"2.0","method":"camera-status-changed","params":{"device":"cam2","status":"offline"}}`)))

	select {
	case event := <-events:
		assert.Equal(t, "cam2", event.Device)
		assert.Equal(t, "offline", event.Status)
	case <-time.After(time.Second):
		t.Fatal("notification never dispatched")
	}
}

func TestClientMalformedFrameIgnored(t *testing.T) {
	c, mt := newTestClient(t)

	got := make(chan struct{}, 1)
	c.OnNotification(protocol.EventStorageStatusChanged, func(n *protocol.Notification) error {
		got <- struct{}{}
		return nil
	})

	// Garbage first, then a healthy frame on the same connection.
	require.NoError(t, mt.SimulateSend([]byte(`this is not json`)))
	require.NoError(t, mt.SimulateSend([]byte(`{"jsonrpc":"9.9","id":1,"result":{}}`)))
	require.NoError(t, mt.SimulateSend(
		[]byte(`{"jsonrpc":"2.0","method":"storage-status-changed","params":{"status":"warning"}}`)))

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("connection did not survive malformed frames")
	}
	assert.Equal(t, StateConnected, c.State())
}

func TestClientDisconnectFailsPendingCalls(t *testing.T) {
	c, mt := newTestClient(t)

	errs := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), protocol.MethodPing, nil)
		errs <- err
	}()

	// Wait for the request to hit the wire, then cut the connection.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := mt.WaitFrame(ctx)
	require.NoError(t, err)
	mt.Drop()

	select {
	case callErr := <-errs:
		require.Error(t, callErr)
		assert.True(t, IsConnectionError(callErr))
	case <-time.After(time.Second):
		t.Fatal("pending call hung across disconnect")
	}
}

func TestClientCallAfterCloseFailsFast(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Close())

	_, err := c.Call(context.Background(), protocol.MethodPing, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClientStatsCounters(t *testing.T) {
	c, mt := newTestClient(t)

	serveOnce(t, mt, func(req map[string]interface{}) []byte {
		return resultFrame(req["id"].(float64), `{}`)
	})
	require.NoError(t, c.Ping(context.Background()))

	require.NoError(t, mt.SimulateSend(
		[]byte(`{"jsonrpc":"2.0","method":"camera-status-changed","params":{"device":"cam1","status":"online"}}`)))
	require.Eventually(t, func() bool {
		return c.Stats().Notifications == 1
	}, time.Second, 5*time.Millisecond)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.MessagesSent)
	assert.Equal(t, int64(2), stats.MessagesReceived)
	assert.Equal(t, int64(1), stats.Notifications)
	assert.Equal(t, int64(0), stats.Errors)
}

func TestClientKeepAlivePings(t *testing.T) {
	c, mt := newTestClient(t, WithKeepAlive(30*time.Millisecond))

	// Answer every ping the keepalive loop emits.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for {
			frame, err := mt.WaitFrame(ctx)
			if err != nil {
				return
			}
			var req map[string]interface{}
			if json.Unmarshal(frame, &req) != nil {
				continue
			}
			if req["method"] == "ping" {
				_ = mt.SimulateSend(resultFrame(req["id"].(float64), `{}`))
			}
		}
	}()

	require.Eventually(t, func() bool {
		return c.Stats().MessagesSent >= 2
	}, 2*time.Second, 10*time.Millisecond, "keepalive should keep pinging")
}
