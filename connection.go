package driftcdp

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto"
	"github.com/mailru/easyjson"
)

// unmarshalResult decodes a command's raw JSON result into v, using
// easyjson's generated fast path when v implements it and falling
// back to encoding/json for ad hoc result shapes (e.g. a handwritten
// struct for a reply cdproto doesn't model).
func unmarshalResult(data []byte, v interface{}) error {
	if u, ok := v.(easyjson.Unmarshaler); ok {
		return easyjson.Unmarshal(data, u)
	}
	return json.Unmarshal(data, v)
}

// HandlerFunc observes a single decoded event. Handlers for a given
// event run synchronously, in registration order, before the next
// event is dispatched; a handler that wants to do work without
// blocking dispatch should spawn its own goroutine and return.
type HandlerFunc func(event interface{})

// Domain names the namespace prefix of a CDP method, e.g. "Network".
type Domain string

// HandlerTarget is either a single event class (EventClass) or an
// entire Domain; AddHandler/RemoveHandlers expand it to the concrete
// set of cdproto.MethodType event classes it names.
type HandlerTarget interface {
	eventClasses() []cdproto.MethodType
}

// EventClass targets exactly one event type, e.g.
// EventClass(cdproto.EventNetworkRequestWillBeSent).
type EventClass cdproto.MethodType

func (e EventClass) eventClasses() []cdproto.MethodType { return []cdproto.MethodType{cdproto.MethodType(e)} }

func (d Domain) eventClasses() []cdproto.MethodType {
	return domainEventIndex[d]
}

// Handler is the opaque handle returned by AddHandler, used to remove
// exactly the handler it names via RemoveHandlers.
type Handler struct {
	id int64
}

type handlerEntry struct {
	id int64
	fn HandlerFunc
}

// sendRequest is how callers ask the connection's single dispatch loop
// to assign an id, register the inflight slot, and write a command.
type sendRequest struct {
	method string
	params easyjson.RawMessage
	result chan sendResult
}

type sendResult struct {
	msg *cdproto.Message
	err error
}

type addHandlerRequest struct {
	target HandlerTarget
	fn     HandlerFunc
	done   chan Handler
}

type removeHandlersRequest struct {
	target HandlerTarget
	handle *Handler
	done   chan error
}

// Connection owns a Transport and runs the single event-loop goroutine
// that gives the core its ordering guarantees: commands are correlated
// by id, events are dispatched in receive order, and handlers for a
// single event fire in registration order before the next event is
// processed. All mutation of the handler registry and the inflight
// map happens on that one goroutine.
type Connection struct {
	transport Transport

	logf, errf func(string, ...interface{})

	sendCh          chan sendRequest
	addHandlerCh    chan addHandlerRequest
	removeHandlerCh chan removeHandlersRequest

	closed  atomic.Bool
	closeCh chan struct{}

	// done is closed exactly once, when run() exits for any reason
	// (explicit Close, ctx cancellation, or a transport read error).
	// Callers that would otherwise block forever once the loop is gone
	// - Send, AddHandler, RemoveHandlers, and Expectation waits - select
	// on it alongside closeCh.
	done chan struct{}

	// enabledDomains is a hint, not a correctness invariant (spec §3),
	// so a plain mutex-guarded set is sufficient; it need not live on
	// the dispatch loop.
	domainsMu sync.Mutex
	enabled   map[string]bool
}

// ConnectionOption configures a Connection at construction time.
type ConnectionOption func(*Connection)

// WithLogf sets a func to receive general logging.
func WithLogf(f func(string, ...interface{})) ConnectionOption {
	return func(c *Connection) { c.logf = f }
}

// WithErrorf sets a func to receive error logging (handler panics,
// dropped replies, etc.).
func WithErrorf(f func(string, ...interface{})) ConnectionOption {
	return func(c *Connection) { c.errf = f }
}

// NewConnection wraps an already-dialed Transport and starts its
// dispatch loop. Close the returned Connection to tear down the loop
// and fail any inflight commands.
func NewConnection(ctx context.Context, t Transport, opts ...ConnectionOption) *Connection {
	c := &Connection{
		transport:       t,
		logf:            func(string, ...interface{}) {},
		errf:            func(string, ...interface{}) {},
		sendCh:          make(chan sendRequest),
		addHandlerCh:    make(chan addHandlerRequest),
		removeHandlerCh: make(chan removeHandlersRequest),
		closeCh:         make(chan struct{}),
		done:            make(chan struct{}),
		enabled:         make(map[string]bool),
	}
	for _, o := range opts {
		o(c)
	}
	go c.run(ctx)
	return c
}

// Close tears down the connection: the transport is closed, the
// dispatch loop exits, and every inflight command completes with
// ErrSessionClosed.
func (c *Connection) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.closeCh)
	}
	<-c.done
	return nil
}

// Done returns a channel that is closed once the dispatch loop has
// exited, whether from an explicit Close, ctx cancellation, or a
// transport read error. Expectations and other long-lived waiters
// select on it to fail with ErrSessionClosed instead of blocking
// forever once the connection is gone.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Send issues a command and waits for its reply. method is the full
// "<Domain>.<method>" wire name. params is marshaled as the command's
// params object; nil sends an empty object. res, if non-nil, receives
// the unmarshaled result: an easyjson.Unmarshaler (any generated
// cdproto params/result type) is decoded with its own fast path,
// anything else falls back to encoding/json.
func (c *Connection) Send(ctx context.Context, method string, params easyjson.Marshaler, res interface{}) error {
	if c.closed.Load() {
		return ErrSessionClosed
	}

	var buf easyjson.RawMessage
	if params != nil {
		var err error
		buf, err = easyjson.Marshal(params)
		if err != nil {
			return err
		}
	} else {
		buf = easyjson.RawMessage(`{}`)
	}

	req := sendRequest{method: method, params: buf, result: make(chan sendResult, 1)}
	select {
	case c.sendCh <- req:
	case <-c.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case r := <-req.result:
		if r.err != nil {
			return r.err
		}
		if r.msg.Error != nil {
			return protocolErr(r.msg.Error)
		}
		if res != nil {
			return unmarshalResult(r.msg.Result, res)
		}
		return nil
	case <-c.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddHandler registers fn for target (a single EventClass or an entire
// Domain). Returns a Handler usable with RemoveHandlers to detach
// exactly this registration. Registration order is preserved per
// event class; duplicate (target, fn) registrations are permitted.
func (c *Connection) AddHandler(target HandlerTarget, fn HandlerFunc) Handler {
	req := addHandlerRequest{target: target, fn: fn, done: make(chan Handler, 1)}
	select {
	case c.addHandlerCh <- req:
		return <-req.done
	case <-c.done:
		return Handler{}
	}
}

// RemoveHandlers has three forms, matching the spec:
//
//   - target == nil, handle == nil: clear every handler bucket.
//   - target != nil, handle == nil: clear the bucket(s) target names.
//   - target != nil, handle != nil: remove exactly that registration
//     from the bucket(s) target names.
//
// Passing a handle without a target is caller error (ErrArgument):
// there is no way to know which bucket(s) to search.
func (c *Connection) RemoveHandlers(target HandlerTarget, handle *Handler) error {
	if target == nil && handle != nil {
		return ErrArgument
	}
	req := removeHandlersRequest{target: target, handle: handle, done: make(chan error, 1)}
	select {
	case c.removeHandlerCh <- req:
		return <-req.done
	case <-c.done:
		return nil
	}
}

// EnableDomain sends "<Domain>.enable" unless it was already sent for
// this connection. Idempotent; enabledDomains is a hint so a failed
// send is not remembered as enabled.
func (c *Connection) EnableDomain(ctx context.Context, domain Domain) error {
	c.domainsMu.Lock()
	if c.enabled[string(domain)] {
		c.domainsMu.Unlock()
		return nil
	}
	c.domainsMu.Unlock()

	if err := c.Send(ctx, string(domain)+".enable", nil, nil); err != nil {
		return err
	}

	c.domainsMu.Lock()
	c.enabled[string(domain)] = true
	c.domainsMu.Unlock()
	return nil
}

// MarkDomainEnabled records domain as already enabled without sending
// the enable command, for callers (like fetch interception) that
// enable a domain with extra parameters and only want EnableDomain to
// no-op afterward.
func (c *Connection) MarkDomainEnabled(domain Domain) {
	c.domainsMu.Lock()
	c.enabled[string(domain)] = true
	c.domainsMu.Unlock()
}

// run is the single dispatch loop: it owns handlers, inflight, and the
// next-id counter, and is the only goroutine that mutates them.
func (c *Connection) run(ctx context.Context) {
	defer close(c.done)
	defer c.transport.Close()

	frames := make(chan *cdproto.Message, 1024)
	readErrCh := make(chan error, 1)
	go func() {
		for {
			msg, err := c.transport.ReadMessage()
			if err != nil {
				readErrCh <- err
				return
			}
			frames <- msg
		}
	}()

	var nextID int64
	inflight := make(map[int64]chan sendResult)
	handlers := make(map[cdproto.MethodType][]handlerEntry)
	var nextHandlerID int64

	failAllInflight := func() {
		for id, ch := range inflight {
			ch <- sendResult{err: ErrSessionClosed}
			delete(inflight, id)
		}
	}

	for {
		select {
		case <-c.closeCh:
			failAllInflight()
			return

		case <-ctx.Done():
			failAllInflight()
			return

		case err := <-readErrCh:
			c.errf("transport read failed, closing session: %v", err)
			failAllInflight()
			c.closed.Store(true)
			return

		case msg := <-frames:
			c.dispatch(msg, inflight, handlers)

		case req := <-c.sendCh:
			nextID++
			id := nextID
			msg := &cdproto.Message{
				ID:     id,
				Method: cdproto.MethodType(req.method),
				Params: req.params,
			}
			inflight[id] = req.result
			if err := c.transport.WriteMessage(msg); err != nil {
				delete(inflight, id)
				req.result <- sendResult{err: err}
			}

		case req := <-c.addHandlerCh:
			nextHandlerID++
			entry := handlerEntry{id: nextHandlerID, fn: req.fn}
			for _, ec := range req.target.eventClasses() {
				handlers[ec] = append(handlers[ec], entry)
			}
			req.done <- Handler{id: nextHandlerID}

		case req := <-c.removeHandlerCh:
			switch {
			case req.target == nil:
				handlers = make(map[cdproto.MethodType][]handlerEntry)
			case req.handle == nil:
				for _, ec := range req.target.eventClasses() {
					delete(handlers, ec)
				}
			default:
				for _, ec := range req.target.eventClasses() {
					bucket := handlers[ec]
					filtered := bucket[:0]
					for _, e := range bucket {
						if e.id != req.handle.id {
							filtered = append(filtered, e)
						}
					}
					handlers[ec] = filtered
				}
			}
			req.done <- nil
		}
	}
}

// dispatch decodes one frame and either completes the matching
// inflight command or fans the decoded event out to its handlers, in
// registration order, before returning (so the next frame is only
// picked up after every handler for this one has run synchronously;
// a handler that suspends asynchronously does so in its own goroutine
// and does not block dispatch of the next frame).
func (c *Connection) dispatch(msg *cdproto.Message, inflight map[int64]chan sendResult, handlers map[cdproto.MethodType][]handlerEntry) {
	if msg.ID != 0 {
		ch, ok := inflight[msg.ID]
		if !ok {
			c.errf("reply for unknown id %d", msg.ID)
			return
		}
		delete(inflight, msg.ID)
		ch <- sendResult{msg: msg}
		return
	}

	if msg.Method == "" {
		c.errf("ignoring malformed message (missing id and method): %#v", msg)
		return
	}

	ev, err := cdproto.UnmarshalMessage(msg)
	if err != nil {
		c.errf("could not unmarshal event %s: %v", msg.Method, err)
		return
	}

	for _, entry := range handlers[msg.Method] {
		c.invokeHandler(entry.fn, ev)
	}
}

// invokeHandler runs fn, recovering any panic the way a raising
// handler is caught and logged without disturbing dispatch (spec §7).
func (c *Connection) invokeHandler(fn HandlerFunc, ev interface{}) {
	defer func() {
		if r := recover(); r != nil {
			c.errf("handler panicked: %v", r)
		}
	}()
	fn(ev)
}
