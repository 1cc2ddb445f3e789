package driftcdp

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/mailru/easyjson"
)

func TestRequestExpectationCorrelatesOnMatchingURL(t *testing.T) {
	ft := newFakeTransport()
	conn := NewConnection(context.Background(), ft)
	defer conn.Close()

	exp := NewRequestExpectation(conn, URLEquals("https://example.com/api"))
	defer exp.Close()

	// A non-matching request must not satisfy the expectation.
	ft.push(&cdproto.Message{
		Method: cdproto.EventNetworkRequestWillBeSent,
		Params: easyjson.RawMessage(`{"requestId":"1","request":{"url":"https://example.com/other"}}`),
	})
	ft.push(&cdproto.Message{
		Method: cdproto.EventNetworkRequestWillBeSent,
		Params: easyjson.RawMessage(`{"requestId":"2","request":{"url":"https://example.com/api"}}`),
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	evt, err := exp.Request(ctx)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if string(evt.RequestID) != "2" {
		t.Fatalf("matched requestId = %q, want \"2\"", evt.RequestID)
	}
}

func TestRequestExpectationFullmatchRejectsSubstring(t *testing.T) {
	ft := newFakeTransport()
	conn := NewConnection(context.Background(), ft)
	defer conn.Close()

	exp := NewRequestExpectation(conn, URLEquals("https://example.com/api"))
	defer exp.Close()

	ft.push(&cdproto.Message{
		Method: cdproto.EventNetworkRequestWillBeSent,
		Params: easyjson.RawMessage(`{"requestId":"1","request":{"url":"https://example.com/api/extra"}}`),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := exp.Request(ctx); err == nil {
		t.Fatal("expected a timeout: the URL is a superstring, not a full match")
	}
}

func TestResponseExpectationWaitsForMatchingResponse(t *testing.T) {
	ft := newFakeTransport()
	conn := NewConnection(context.Background(), ft)
	defer conn.Close()

	exp := NewResponseExpectation(conn, URLEquals("https://example.com/api"))
	defer exp.Close()

	ft.push(&cdproto.Message{
		Method: cdproto.EventNetworkRequestWillBeSent,
		Params: easyjson.RawMessage(`{"requestId":"1","request":{"url":"https://example.com/api"}}`),
	})
	ft.push(&cdproto.Message{
		Method: cdproto.EventNetworkResponseReceived,
		Params: easyjson.RawMessage(`{"requestId":"1","response":{"url":"https://example.com/api","status":200}}`),
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	evt, err := exp.Response(ctx)
	if err != nil {
		t.Fatalf("Response: %v", err)
	}
	if evt.Response.Status != 200 {
		t.Fatalf("status = %d, want 200", evt.Response.Status)
	}
}

func TestExpectationResetDiscardsPriorMatch(t *testing.T) {
	ft := newFakeTransport()
	conn := NewConnection(context.Background(), ft)
	defer conn.Close()

	exp := NewRequestExpectation(conn, URLEquals("https://example.com/api"))
	defer exp.Close()

	ft.push(&cdproto.Message{
		Method: cdproto.EventNetworkRequestWillBeSent,
		Params: easyjson.RawMessage(`{"requestId":"1","request":{"url":"https://example.com/api"}}`),
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := exp.Request(ctx); err != nil {
		t.Fatalf("first Request: %v", err)
	}

	exp.Reset()

	short, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if _, err := exp.Request(short); err == nil {
		t.Fatal("expected a timeout after Reset discarded the prior match")
	}

	ft.push(&cdproto.Message{
		Method: cdproto.EventNetworkRequestWillBeSent,
		Params: easyjson.RawMessage(`{"requestId":"2","request":{"url":"https://example.com/api"}}`),
	})
	ctx2, cancel3 := context.WithTimeout(context.Background(), time.Second)
	defer cancel3()
	evt, err := exp.Request(ctx2)
	if err != nil {
		t.Fatalf("Request after Reset: %v", err)
	}
	if string(evt.RequestID) != "2" {
		t.Fatalf("requestId after Reset = %q, want \"2\"", evt.RequestID)
	}
}
