package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
)

// Conn is one established duplex connection carrying text frames.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens a Conn to url.
type Dialer func(ctx context.Context, url string) (Conn, error)

// WebSocketDialer returns a Dialer backed by coder/websocket. A nil client
// uses http.DefaultClient; readLimit <= 0 keeps the library default.
func WebSocketDialer(client *http.Client, header http.Header, readLimit int64) Dialer {
	return func(ctx context.Context, url string) (Conn, error) {
		c, _, err := websocket.Dial(ctx, WebSocketURL(url), &websocket.DialOptions{
			HTTPClient: client,
			HTTPHeader: header,
		})
		if err != nil {
			return nil, fmt.Errorf("transport: dial websocket: %w", err)
		}

		if readLimit > 0 {
			c.SetReadLimit(readLimit)
		}

		return &wsConn{c: c}, nil
	}
}

// WebSocketURL converts an http(s) URL to its ws(s) form. Other URLs are
// returned unchanged.
func WebSocketURL(u string) string {
	if rest, ok := strings.CutPrefix(u, "https://"); ok {
		return "wss://" + rest
	}
	if rest, ok := strings.CutPrefix(u, "http://"); ok {
		return "ws://" + rest
	}

	return u
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
