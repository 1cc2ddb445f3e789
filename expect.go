package driftcdp

import (
	"context"
	"regexp"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
)

// URLPattern matches a request's URL the way a scoped Expectation
// selects which request it correlates to. A plain string must match
// the full URL (fullmatch semantics, not substring containment); a
// *regexp.Regexp is matched with MatchString anchored to the whole
// string via "^(?:...)$".
type URLPattern interface {
	matches(url string) bool
}

// URLEquals matches a URL only if it is exactly equal to Value.
type URLEquals string

func (p URLEquals) matches(url string) bool { return url == string(p) }

// URLRegexp matches a URL only if the whole string matches Pattern,
// never a substring.
type URLRegexp struct{ Pattern *regexp.Regexp }

func (p URLRegexp) matches(url string) bool {
	return p.Pattern.MatchString(url) && fullmatch(p.Pattern, url)
}

// fullmatch reports whether re matches the entirety of s, the way
// Python's re.fullmatch does (Go's Regexp.MatchString allows a
// partial match anywhere in the string). The pattern is re-compiled
// as "^(?:...)$" so that an alternation whose leftmost branch matches
// only a prefix (e.g. "a|ab" against "ab") still counts as a full match.
func fullmatch(re *regexp.Regexp, s string) bool {
	anchored, err := regexp.Compile(`^(?:` + re.String() + `)$`)
	if err != nil {
		return false
	}
	return anchored.MatchString(s)
}

// baseExpectation is the shared state machine behind RequestExpectation
// and ResponseExpectation: it watches one connection for the
// RequestWillBeSent/ResponseReceived/LoadingFinished triple for the
// first request whose URL matches pattern, and makes each stage
// available exactly once via a single-fire channel.
type baseExpectation struct {
	conn    *Connection
	pattern URLPattern

	requestID network.RequestID
	hasReqID  bool

	requestCh  chan *network.EventRequestWillBeSent
	responseCh chan *network.EventResponseReceived
	finishedCh chan *network.EventLoadingFinished

	reqHandle  *Handler
	respHandle *Handler
	finHandle  *Handler
}

func newBaseExpectation(conn *Connection, pattern URLPattern) *baseExpectation {
	return &baseExpectation{
		conn:       conn,
		pattern:    pattern,
		requestCh:  make(chan *network.EventRequestWillBeSent, 1),
		responseCh: make(chan *network.EventResponseReceived, 1),
		finishedCh: make(chan *network.EventLoadingFinished, 1),
	}
}

// setup registers this expectation's handlers. Each handler detaches
// itself (via RemoveHandlers) the moment it fires; handlers run on the
// dispatch loop, which is also what serves RemoveHandlers, so the
// detach is issued from its own goroutine rather than waited on. A
// slot can only ever be filled once - matching the single-fire
// semantics of the channels it feeds: a repeat matching event that
// arrives before the detach takes effect is dropped.
func (e *baseExpectation) setup() {
	reqTarget := EventClass(cdproto.EventNetworkRequestWillBeSent)
	h := e.conn.AddHandler(reqTarget, func(ev interface{}) {
		evt, ok := ev.(*network.EventRequestWillBeSent)
		if !ok || e.hasReqID || !e.pattern.matches(evt.Request.URL) {
			return
		}
		e.hasReqID = true
		e.requestID = evt.RequestID
		go e.conn.RemoveHandlers(reqTarget, e.reqHandle)
		e.requestCh <- evt
	})
	e.reqHandle = &h

	respTarget := EventClass(cdproto.EventNetworkResponseReceived)
	h2 := e.conn.AddHandler(respTarget, func(ev interface{}) {
		evt, ok := ev.(*network.EventResponseReceived)
		if !ok || !e.hasReqID || evt.RequestID != e.requestID {
			return
		}
		go e.conn.RemoveHandlers(respTarget, e.respHandle)
		select {
		case e.responseCh <- evt:
		default:
		}
	})
	e.respHandle = &h2

	finTarget := EventClass(cdproto.EventNetworkLoadingFinished)
	h3 := e.conn.AddHandler(finTarget, func(ev interface{}) {
		evt, ok := ev.(*network.EventLoadingFinished)
		if !ok || !e.hasReqID || evt.RequestID != e.requestID {
			return
		}
		go e.conn.RemoveHandlers(finTarget, e.finHandle)
		select {
		case e.finishedCh <- evt:
		default:
		}
	})
	e.finHandle = &h3
}

// teardown detaches any handler that never fired. Handlers that did
// fire already detached themselves in setup's closures.
func (e *baseExpectation) teardown() {
	e.conn.RemoveHandlers(EventClass(cdproto.EventNetworkRequestWillBeSent), e.reqHandle)
	e.conn.RemoveHandlers(EventClass(cdproto.EventNetworkResponseReceived), e.respHandle)
	e.conn.RemoveHandlers(EventClass(cdproto.EventNetworkLoadingFinished), e.finHandle)
}

// reset tears down and re-arms the expectation for reuse within the
// same scope, clearing any previously matched request.
func (e *baseExpectation) reset() {
	e.teardown()
	e.hasReqID = false
	e.requestID = ""
	e.requestCh = make(chan *network.EventRequestWillBeSent, 1)
	e.responseCh = make(chan *network.EventResponseReceived, 1)
	e.finishedCh = make(chan *network.EventLoadingFinished, 1)
	e.setup()
}

// RequestExpectation waits for the first matching request and exposes
// its RequestWillBeSent payload.
type RequestExpectation struct{ base *baseExpectation }

// NewRequestExpectation arms a RequestExpectation against conn; call
// Close when the scope using it ends.
func NewRequestExpectation(conn *Connection, pattern URLPattern) *RequestExpectation {
	e := &RequestExpectation{base: newBaseExpectation(conn, pattern)}
	e.base.setup()
	return e
}

// Request blocks until the matching request is seen, ctx is done, or
// the connection closes.
func (e *RequestExpectation) Request(ctx context.Context) (*network.EventRequestWillBeSent, error) {
	select {
	case evt := <-e.base.requestCh:
		e.base.requestCh <- evt // keep it available for repeated reads
		return evt, nil
	case <-e.base.conn.Done():
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, wrapErr(KindTimeout, "request expectation", ctx.Err())
	}
}

// Reset re-arms this expectation, discarding any match already made.
func (e *RequestExpectation) Reset() { e.base.reset() }

// Close detaches every handler this expectation registered.
func (e *RequestExpectation) Close() { e.base.teardown() }

// ResponseExpectation waits for the matching request's response.
type ResponseExpectation struct{ base *baseExpectation }

// NewResponseExpectation arms a ResponseExpectation against conn.
func NewResponseExpectation(conn *Connection, pattern URLPattern) *ResponseExpectation {
	e := &ResponseExpectation{base: newBaseExpectation(conn, pattern)}
	e.base.setup()
	return e
}

// Response blocks until the matching response is seen.
func (e *ResponseExpectation) Response(ctx context.Context) (*network.EventResponseReceived, error) {
	select {
	case evt := <-e.base.responseCh:
		e.base.responseCh <- evt
		return evt, nil
	case <-e.base.conn.Done():
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, wrapErr(KindTimeout, "response expectation", ctx.Err())
	}
}

// ResponseBody waits for the response and for the loading-finished
// signal that the body is safe to fetch, then retrieves it via
// Network.getResponseBody.
func (e *ResponseExpectation) ResponseBody(ctx context.Context) ([]byte, bool, error) {
	if _, err := e.Response(ctx); err != nil {
		return nil, false, err
	}
	select {
	case <-e.base.finishedCh:
	case <-e.base.conn.Done():
		return nil, false, ErrSessionClosed
	case <-ctx.Done():
		return nil, false, wrapErr(KindTimeout, "response expectation body", ctx.Err())
	}
	var res network.GetResponseBodyParams
	res.RequestID = e.base.requestID
	var reply struct {
		Body          string `json:"body"`
		Base64Encoded bool   `json:"base64Encoded"`
	}
	if err := e.base.conn.Send(ctx, "Network.getResponseBody", &res, &reply); err != nil {
		return nil, false, err
	}
	return []byte(reply.Body), reply.Base64Encoded, nil
}

// Reset re-arms this expectation.
func (e *ResponseExpectation) Reset() { e.base.reset() }

// Close detaches every handler this expectation registered.
func (e *ResponseExpectation) Close() { e.base.teardown() }

// downloadBehavior is implemented by a Tab so DownloadExpectation can
// save and restore its current Page.setDownloadBehavior state while
// depending only on these two methods rather than on *Tab itself.
type downloadBehavior interface {
	CurrentDownloadBehavior() (behavior, path string)
	SetDownloadBehavior(ctx context.Context, behavior, path string) error
}

// DownloadExpectation scopes a temporary "deny" download policy so
// the caller can observe DownloadWillBegin without the browser
// actually writing the file to disk, restoring the previous policy on
// Close.
type DownloadExpectation struct {
	conn          *Connection
	priorBehavior string
	priorPath     string
	handle        *Handler
	downloadCh    chan *page.EventDownloadWillBegin
}

// NewDownloadExpectation captures the tab's current download behavior
// and switches it to deny-with-events for the scope's lifetime.
func NewDownloadExpectation(ctx context.Context, conn *Connection, tab downloadBehavior) (*DownloadExpectation, error) {
	behavior, path := tab.CurrentDownloadBehavior()
	e := &DownloadExpectation{
		conn:          conn,
		priorBehavior: behavior,
		priorPath:     path,
		downloadCh:    make(chan *page.EventDownloadWillBegin, 8),
	}
	if err := tab.SetDownloadBehavior(ctx, "deny", ""); err != nil {
		return nil, err
	}
	target := EventClass(cdproto.EventPageDownloadWillBegin)
	h := conn.AddHandler(target, func(ev interface{}) {
		if dl, ok := ev.(*page.EventDownloadWillBegin); ok {
			select {
			case e.downloadCh <- dl:
			default:
			}
		}
	})
	e.handle = &h
	return e, nil
}

// Download blocks for the next denied download attempt.
func (e *DownloadExpectation) Download(ctx context.Context) (guid, url string, err error) {
	select {
	case dl := <-e.downloadCh:
		return dl.GUID, dl.URL, nil
	case <-e.conn.Done():
		return "", "", ErrSessionClosed
	case <-ctx.Done():
		return "", "", wrapErr(KindTimeout, "download expectation", ctx.Err())
	}
}

// Close removes the handler and restores the prior download behavior.
func (e *DownloadExpectation) Close(ctx context.Context, tab downloadBehavior) error {
	e.conn.RemoveHandlers(EventClass(cdproto.EventPageDownloadWillBegin), e.handle)
	return tab.SetDownloadBehavior(ctx, e.priorBehavior, e.priorPath)
}
