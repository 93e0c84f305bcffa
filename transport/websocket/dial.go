package websocket

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/ws"
	"github.com/lensbridge/camlink/logx"
	"github.com/lensbridge/camlink/types"
)

// DefaultDialer is a gobwas/ws Dialer with default options.
var DefaultDialer = ws.Dialer{}

// Dial establishes a WebSocket connection to the given URL and returns a
// Transport. http(s) schemes are rewritten to ws(s). The context controls the
// dial timeout.
func Dial(ctx context.Context, urlString string, opts types.TransportOptions) (types.Transport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logx.NewNilLogger()
	}

	wsURL, err := normalizeURL(urlString)
	if err != nil {
		return nil, err
	}

	logger.Debug("websocket: dialing %s", wsURL)
	conn, _, _, err := DefaultDialer.Dial(ctx, wsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial websocket %s: %w", wsURL, err)
	}
	logger.Info("websocket: connected to %s", wsURL)

	return NewTransport(conn, ws.StateClientSide, opts), nil
}

// normalizeURL validates the endpoint and converts http(s) schemes to ws(s).
func normalizeURL(urlString string) (string, error) {
	parsed, err := url.Parse(urlString)
	if err != nil {
		return "", fmt.Errorf("invalid websocket url %q: %w", urlString, err)
	}
	switch parsed.Scheme {
	case "ws", "wss":
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "":
		return "", fmt.Errorf("websocket url %q has no scheme", urlString)
	default:
		return "", fmt.Errorf("unsupported websocket scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("websocket url %q has no host", urlString)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return parsed.String(), nil
}
