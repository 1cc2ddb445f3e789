package driftcdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// versionInfo is the subset of the /json/version response the core
// needs: the browser's WebSocket debugger endpoint.
type versionInfo struct {
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// DiscoverWebSocketURL performs the HTTP GET against
// http://addr/json/version that the spec calls for and returns the
// resolved webSocketDebuggerUrl. addr is a host:port pair, e.g.
// "localhost:9222".
func DiscoverWebSocketURL(ctx context.Context, addr string) (string, error) {
	endpoint := fmt.Sprintf("http://%s/json/version", addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connecting to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	var v versionInfo
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return "", fmt.Errorf("decoding %s: %w", endpoint, err)
	}
	if v.WebSocketDebuggerURL == "" {
		return "", newErr(KindProtocol, "no webSocketDebuggerUrl in /json/version response")
	}
	return v.WebSocketDebuggerURL, nil
}
