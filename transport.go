package driftcdp

import (
	"bytes"
	"context"
	"io"

	"github.com/chromedp/cdproto"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

var (
	// DefaultReadBufferSize is the default maximum WebSocket read buffer size.
	DefaultReadBufferSize = 25 * 1024 * 1024

	// DefaultWriteBufferSize is the default maximum WebSocket write buffer size.
	DefaultWriteBufferSize = 10 * 1024 * 1024
)

// Transport is the minimal contract the Connection needs from the wire:
// read the next frame, write a frame, and close. It exists mainly so
// Connection can be driven by a fake in tests without a real socket.
type Transport interface {
	ReadMessage() (*cdproto.Message, error)
	WriteMessage(*cdproto.Message) error
	io.Closer
}

// wsTransport is a Transport backed by a single WebSocket connection to
// the browser's CDP endpoint. Disconnect is terminal: there is no
// reconnect logic here, by design (see Connection's session-closed
// semantics).
type wsTransport struct {
	conn *websocket.Conn

	// buf is reused across ReadMessage calls to avoid an allocation per
	// frame.
	buf bytes.Buffer

	lexer  jlexer.Lexer
	writer jwriter.Writer

	debugf func(string, ...interface{})
}

// DialTransport dials the given CDP WebSocket debugger URL.
func DialTransport(ctx context.Context, urlstr string, opts ...TransportOption) (Transport, error) {
	d := &websocket.Dialer{
		ReadBufferSize:  DefaultReadBufferSize,
		WriteBufferSize: DefaultWriteBufferSize,
	}
	conn, _, err := d.DialContext(ctx, urlstr, nil)
	if err != nil {
		return nil, err
	}
	t := &wsTransport{conn: conn}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// TransportOption configures a Transport built by DialTransport.
type TransportOption func(*wsTransport)

// WithTransportDebugf sets a func that receives a line for every frame
// read from or written to the wire, prefixed "<-" or "->".
func WithTransportDebugf(f func(string, ...interface{})) TransportOption {
	return func(t *wsTransport) { t.debugf = f }
}

// ReadMessage blocks for the next text frame and decodes it.
func (t *wsTransport) ReadMessage() (*cdproto.Message, error) {
	typ, r, err := t.conn.NextReader()
	if err != nil {
		return nil, err
	}
	if typ != websocket.TextMessage {
		return nil, newErr(KindProtocol, "received non-text websocket frame")
	}

	t.buf.Reset()
	if _, err := t.buf.ReadFrom(r); err != nil {
		return nil, err
	}
	buf := t.buf.Bytes()
	if t.debugf != nil {
		t.debugf("<- %s", buf)
	}

	msg := new(cdproto.Message)
	t.lexer = jlexer.Lexer{Data: buf}
	msg.UnmarshalEasyJSON(&t.lexer)
	if err := t.lexer.Error(); err != nil {
		return nil, err
	}
	// buf is owned by t.buf and reused on the next call; the message's
	// raw Result/Params slices must be copied out before we return. This
	// matters even more once a reader goroutine queues messages ahead of
	// dispatch: Params can otherwise be overwritten by the next read
	// before anything has decoded it.
	msg.Result = append([]byte(nil), msg.Result...)
	msg.Params = append([]byte(nil), msg.Params...)
	return msg, nil
}

// WriteMessage encodes and sends a single command frame.
func (t *wsTransport) WriteMessage(msg *cdproto.Message) error {
	w, err := t.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	defer w.Close()

	t.writer = jwriter.Writer{}
	msg.MarshalEasyJSON(&t.writer)
	if err := t.writer.Error; err != nil {
		return err
	}
	if t.debugf != nil {
		buf, _ := t.writer.BuildBytes()
		t.debugf("-> %s", buf)
		_, err = w.Write(buf)
		return err
	}
	_, err = t.writer.DumpTo(w)
	return err
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
