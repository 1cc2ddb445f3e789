package driftcdp

import (
	"context"
	"encoding/base64"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
)

func encodeBase64(body []byte) string {
	return base64.StdEncoding.EncodeToString(body)
}

// RequestStage selects whether Fetch.enable pauses requests before
// they are sent or after the response headers are available.
type RequestStage string

const (
	RequestStageRequest  RequestStage = "Request"
	RequestStageResponse RequestStage = "Response"
)

// FetchInterception pauses requests (or responses, depending on Stage)
// matching a URL glob so the caller can inspect and then allow, fail,
// or fulfill them. The glob is sent to the browser as-is via
// Fetch.enable's RequestPattern.URLPattern - the browser does the
// matching, the same glob syntax DevTools itself documents ('*' for
// zero-or-more characters, '?' for exactly one); nothing is re-checked
// client-side. Paused events are queued, up to 8 at a time, and
// Response returns them in arrival order; a paused event that arrives
// while 8 are already queued is dropped. The RequestPaused handler
// stays attached until Close or Reset.
type FetchInterception struct {
	conn         *Connection
	urlPattern   string
	stage        RequestStage
	resourceType network.ResourceType

	handle     *Handler
	responseCh chan *fetch.EventRequestPaused
}

// NewFetchInterception enables Fetch for urlPattern/stage/resourceType
// and starts capturing the RequestPaused events the browser pauses for
// it. resourceType may be the zero value to match any resource type.
// urlPattern is a glob, e.g. "*/x.json"; an empty pattern matches
// every URL.
func NewFetchInterception(ctx context.Context, conn *Connection, urlPattern string, stage RequestStage, resourceType network.ResourceType) (*FetchInterception, error) {
	if urlPattern == "" {
		urlPattern = "*"
	}
	fi := &FetchInterception{
		conn:         conn,
		urlPattern:   urlPattern,
		stage:        stage,
		resourceType: resourceType,
		responseCh:   make(chan *fetch.EventRequestPaused, 8),
	}
	if err := fi.setup(ctx); err != nil {
		return nil, err
	}
	return fi, nil
}

func (fi *FetchInterception) setup(ctx context.Context) error {
	rp := fetch.RequestPattern{
		URLPattern:   fi.urlPattern,
		RequestStage: fetch.RequestStage(fi.stage),
	}
	if fi.resourceType != "" {
		rp.ResourceType = fi.resourceType
	}
	params := fetch.Enable().WithPatterns([]*fetch.RequestPattern{&rp})
	if err := fi.conn.Send(ctx, "Fetch.enable", params, nil); err != nil {
		return err
	}
	// Fetch is now enabled for this connection; record it so a later
	// EnableDomain("Fetch") from unrelated code is a no-op instead of
	// clobbering these patterns with a bare enable.
	fi.conn.MarkDomainEnabled("Fetch")

	target := EventClass(cdproto.EventFetchRequestPaused)
	h := fi.conn.AddHandler(target, func(ev interface{}) {
		evt, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		select {
		case fi.responseCh <- evt:
		default:
		}
	})
	fi.handle = &h
	return nil
}

// Reset tears down and re-arms the interception with the same
// pattern, stage and resourceType, discarding any queued paused events.
func (fi *FetchInterception) Reset(ctx context.Context) error {
	fi.teardown(ctx)
	fi.responseCh = make(chan *fetch.EventRequestPaused, 8)
	return fi.setup(ctx)
}

func (fi *FetchInterception) teardown(ctx context.Context) {
	fi.conn.RemoveHandlers(EventClass(cdproto.EventFetchRequestPaused), fi.handle)
	_ = fi.conn.Send(ctx, "Fetch.disable", fetch.Disable(), nil)
}

// Close detaches the handler and disables Fetch.
func (fi *FetchInterception) Close(ctx context.Context) {
	fi.teardown(ctx)
}

// Response blocks for the next paused request matching this
// interception's pattern/stage/resourceType.
func (fi *FetchInterception) Response(ctx context.Context) (*fetch.EventRequestPaused, error) {
	select {
	case evt := <-fi.responseCh:
		return evt, nil
	case <-fi.conn.Done():
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, wrapErr(KindTimeout, "fetch interception", ctx.Err())
	}
}

// ContinueRequest resumes a paused request unmodified (or with the
// given overrides).
func (fi *FetchInterception) ContinueRequest(ctx context.Context, requestID fetch.RequestID, opts ...func(*fetch.ContinueRequestParams)) error {
	p := fetch.ContinueRequest(requestID)
	for _, o := range opts {
		o(p)
	}
	return fi.conn.Send(ctx, "Fetch.continueRequest", p, nil)
}

// FailRequest aborts a paused request with the given network error
// reason.
func (fi *FetchInterception) FailRequest(ctx context.Context, requestID fetch.RequestID, reason network.ErrorReason) error {
	p := fetch.FailRequest(requestID, reason)
	return fi.conn.Send(ctx, "Fetch.failRequest", p, nil)
}

// FulfillRequest completes a paused request with a synthetic response.
func (fi *FetchInterception) FulfillRequest(ctx context.Context, requestID fetch.RequestID, responseCode int64, body []byte, headers []*fetch.HeaderEntry) error {
	p := fetch.FulfillRequest(requestID, responseCode).
		WithResponseHeaders(headers).
		WithBody(encodeBase64(body))
	return fi.conn.Send(ctx, "Fetch.fulfillRequest", p, nil)
}

// ContinueResponse resumes a response-stage pause unmodified.
func (fi *FetchInterception) ContinueResponse(ctx context.Context, requestID fetch.RequestID, opts ...func(*fetch.ContinueResponseParams)) error {
	p := fetch.ContinueResponse(requestID)
	for _, o := range opts {
		o(p)
	}
	return fi.conn.Send(ctx, "Fetch.continueResponse", p, nil)
}

// ResponseBody fetches the body of a paused response-stage request.
func (fi *FetchInterception) ResponseBody(ctx context.Context, requestID fetch.RequestID) ([]byte, bool, error) {
	var reply struct {
		Body          string `json:"body"`
		Base64Encoded bool   `json:"base64Encoded"`
	}
	if err := fi.conn.Send(ctx, "Fetch.getResponseBody", fetch.GetResponseBody(requestID), &reply); err != nil {
		return nil, false, err
	}
	return []byte(reply.Body), reply.Base64Encoded, nil
}
