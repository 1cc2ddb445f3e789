package driftcdp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/network"
	"github.com/mailru/easyjson"
)

func TestFetchInterceptionSendsGlobToBrowserAndContinues(t *testing.T) {
	ft := newFakeTransport()
	conn := NewConnection(context.Background(), ft)
	defer conn.Close()

	// NewFetchInterception waits for the Fetch.enable reply, so it runs
	// in its own goroutine while the test plays the browser.
	ctx := context.Background()
	type created struct {
		fi  *FetchInterception
		err error
	}
	createdCh := make(chan created, 1)
	go func() {
		fi, err := NewFetchInterception(ctx, conn, "*/blocked", RequestStageRequest, network.ResourceType(""))
		createdCh <- created{fi, err}
	}()

	// Fetch.enable must carry the caller's glob verbatim: filtering is
	// the browser's job, not this package's.
	enableMsg := waitForWrite(t, ft)
	if enableMsg.Method != "Fetch.enable" {
		t.Fatalf("first command = %s, want Fetch.enable", enableMsg.Method)
	}
	var params struct {
		Patterns []struct {
			URLPattern string `json:"urlPattern"`
		} `json:"patterns"`
	}
	if err := json.Unmarshal(enableMsg.Params, &params); err != nil {
		t.Fatalf("unmarshal Fetch.enable params: %v", err)
	}
	if len(params.Patterns) != 1 || params.Patterns[0].URLPattern != "*/blocked" {
		t.Fatalf("Fetch.enable patterns = %+v, want a single pattern \"*/blocked\"", params.Patterns)
	}
	ft.push(&cdproto.Message{ID: enableMsg.ID, Result: easyjson.RawMessage(`{}`)})
	c := <-createdCh
	if c.err != nil {
		t.Fatalf("NewFetchInterception: %v", c.err)
	}
	fi := c.fi
	defer func() {
		// Close sends Fetch.disable and waits for its reply.
		closed := make(chan struct{})
		go func() { fi.Close(ctx); close(closed) }()
		ft.push(&cdproto.Message{ID: waitForWrite(t, ft).ID, Result: easyjson.RawMessage(`{}`)})
		<-closed
	}()

	// Whatever the browser pauses is surfaced without a second,
	// client-side filter.
	ft.push(&cdproto.Message{
		Method: cdproto.EventFetchRequestPaused,
		Params: easyjson.RawMessage(`{"requestId":"interception-job-1","request":{"url":"https://example.com/blocked"},"networkId":""}`),
	})

	waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	evt, err := fi.Response(waitCtx)
	if err != nil {
		t.Fatalf("Response: %v", err)
	}
	if string(evt.RequestID) != "interception-job-1" {
		t.Fatalf("requestId = %q, want interception-job-1", evt.RequestID)
	}

	done := make(chan error, 1)
	go func() { done <- fi.ContinueRequest(context.Background(), evt.RequestID) }()
	continueMsg := waitForWrite(t, ft)
	if continueMsg.Method != "Fetch.continueRequest" {
		t.Fatalf("command = %s, want Fetch.continueRequest", continueMsg.Method)
	}
	ft.push(&cdproto.Message{ID: continueMsg.ID, Result: easyjson.RawMessage(`{}`)})
	if err := <-done; err != nil {
		t.Fatalf("ContinueRequest: %v", err)
	}
}
