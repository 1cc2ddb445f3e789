package driftcdp

import (
	"context"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
)

// Tab is a thin binding around one browser page's WebSocket debugger
// connection: it owns the Connection's lifecycle and the current
// download-behavior bookkeeping that DownloadExpectation needs, and
// exposes navigation plus constructors for the Expectation and
// FetchInterception scopes.
type Tab struct {
	conn *Connection

	downloadBehavior string
	downloadPath     string
}

// TabOption configures a Tab at Open time.
type TabOption func(*Tab)

// WithTabLogf forwards to the underlying Connection's WithLogf.
func WithTabLogf(f func(string, ...interface{})) TabOption {
	return func(t *Tab) { WithLogf(f)(t.conn) }
}

// Open discovers the browser's WebSocket debugger URL at addr (a
// host:port pair), dials it, and starts the tab's dispatch loop.
func Open(ctx context.Context, addr string, opts ...TabOption) (*Tab, error) {
	wsURL, err := DiscoverWebSocketURL(ctx, addr)
	if err != nil {
		return nil, err
	}
	return OpenURL(ctx, wsURL, opts...)
}

// OpenURL dials an already-known WebSocket debugger URL directly,
// skipping /json/version discovery.
func OpenURL(ctx context.Context, wsURL string, opts ...TabOption) (*Tab, error) {
	transport, err := DialTransport(ctx, wsURL)
	if err != nil {
		return nil, err
	}
	t := &Tab{
		conn:             NewConnection(ctx, transport),
		downloadBehavior: "default",
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Connection exposes the tab's underlying Connection for callers that
// need to send raw commands or register handlers directly.
func (t *Tab) Connection() *Connection { return t.conn }

// Close tears down the tab's connection. Any inflight command and any
// Expectation or FetchInterception scope waiting on this tab fail
// with ErrSessionClosed.
func (t *Tab) Close() error { return t.conn.Close() }

// Navigate enables the Page domain if needed and sends Page.navigate.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	if err := t.conn.EnableDomain(ctx, "Page"); err != nil {
		return err
	}
	return t.conn.Send(ctx, "Page.navigate", page.Navigate(url), nil)
}

// CurrentDownloadBehavior implements the downloadBehavior interface
// DownloadExpectation saves and restores.
func (t *Tab) CurrentDownloadBehavior() (behavior, path string) {
	return t.downloadBehavior, t.downloadPath
}

// SetDownloadBehavior implements the downloadBehavior interface.
func (t *Tab) SetDownloadBehavior(ctx context.Context, behavior, path string) error {
	p := page.SetDownloadBehavior(behavior)
	if path != "" {
		p = p.WithDownloadPath(path)
	}
	if err := t.conn.Send(ctx, "Page.setDownloadBehavior", p, nil); err != nil {
		return err
	}
	t.downloadBehavior = behavior
	t.downloadPath = path
	return nil
}

// ExpectRequest arms a RequestExpectation for the given URL pattern on
// this tab's connection, enabling Network if needed.
func (t *Tab) ExpectRequest(ctx context.Context, pattern URLPattern) (*RequestExpectation, error) {
	if err := t.conn.EnableDomain(ctx, "Network"); err != nil {
		return nil, err
	}
	return NewRequestExpectation(t.conn, pattern), nil
}

// ExpectResponse arms a ResponseExpectation for the given URL pattern.
func (t *Tab) ExpectResponse(ctx context.Context, pattern URLPattern) (*ResponseExpectation, error) {
	if err := t.conn.EnableDomain(ctx, "Network"); err != nil {
		return nil, err
	}
	return NewResponseExpectation(t.conn, pattern), nil
}

// ExpectDownload scopes a deny-and-observe download policy on this tab.
func (t *Tab) ExpectDownload(ctx context.Context) (*DownloadExpectation, error) {
	return NewDownloadExpectation(ctx, t.conn, t)
}

// InterceptFetch enables Fetch interception for the given URL glob
// (e.g. "*/x.json"), stage, and resourceType.
func (t *Tab) InterceptFetch(ctx context.Context, urlPattern string, stage RequestStage, resourceType network.ResourceType) (*FetchInterception, error) {
	return NewFetchInterception(ctx, t.conn, urlPattern, stage, resourceType)
}

// SendKeys dispatches each payload already compiled by CompileKeys via
// Input.dispatchKeyEvent in order, stopping at the first failed send.
func (t *Tab) SendKeys(ctx context.Context, payloads []KeyDispatch) error {
	for _, p := range payloads {
		if err := t.conn.Send(ctx, "Input.dispatchKeyEvent", p.params(), nil); err != nil {
			return err
		}
	}
	return nil
}
