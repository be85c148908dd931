// Package ws adapts github.com/coder/websocket to the widget's channel interface.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-widget/internal/proto"
	"github.com/vovakirdan/wirechat-widget/internal/widget"
)

// DefaultReadLimit caps a single inbound frame.
const DefaultReadLimit = 1 << 20

// Dialer opens websocket channels to the chat backend.
type Dialer struct {
	HTTPHeader http.Header
	ReadLimit  int64
}

// NewDialer returns a dialer with the default read limit.
func NewDialer() *Dialer {
	return &Dialer{ReadLimit: DefaultReadLimit}
}

// Dial implements widget.Dialer. ctx bounds the handshake only.
func (d *Dialer) Dial(ctx context.Context, endpoint string) (widget.Conn, error) {
	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{HTTPHeader: d.HTTPHeader})
	if err != nil {
		return nil, newDialError(endpoint, err)
	}
	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}
	return &Conn{conn: conn}, nil
}

// Conn is one websocket channel carrying JSON frames.
type Conn struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// Read blocks until the next frame arrives.
func (c *Conn) Read(ctx context.Context) (proto.Frame, error) {
	var f proto.Frame
	if err := wsjson.Read(ctx, c.conn, &f); err != nil {
		return proto.Frame{}, err
	}
	return f, nil
}

// Write sends one frame.
func (c *Conn) Write(ctx context.Context, f proto.Frame) error {
	return wsjson.Write(ctx, c.conn, f)
}

// Close performs the closing handshake once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close(websocket.StatusNormalClosure, "closing")
	})
	return c.closeErr
}

// dialError keeps the cause for errors.Is while hiding the token, which the
// underlying HTTP error would otherwise print as part of the URL.
type dialError struct {
	msg string
	err error
}

func newDialError(endpoint string, err error) error {
	msg := err.Error()
	if u, perr := url.Parse(endpoint); perr == nil {
		if token := u.Query().Get("token"); token != "" {
			msg = strings.ReplaceAll(msg, url.QueryEscape(token), "redacted")
			msg = strings.ReplaceAll(msg, token, "redacted")
		}
	}
	return &dialError{msg: fmt.Sprintf("dial chat backend: %s", msg), err: err}
}

func (e *dialError) Error() string { return e.msg }

func (e *dialError) Unwrap() error { return e.err }
