// Package stream maintains the single long-lived push-event connection
// for a session. All consumers multiplex over it through a named-event
// subscription registry; none of them touch the transport directly.
package stream

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// EventResync is dispatched locally on every successful (re)connection.
// Events delivered while disconnected are not queued, so consumers use
// this signal to close the gap with a full snapshot fetch.
const EventResync = "resync"

// eventAuthenticate is the frame sent to the server whenever a session
// token is available: on every (re)connect, and again the moment a
// token first appears.
const eventAuthenticate = "authenticate"

// Handler processes the raw payload of one named event. Handlers for
// the same event run sequentially in registration order.
type Handler func(data json.RawMessage)

// frame is the wire format for both directions: an event name plus an
// event-specific JSON payload.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn is the minimal transport surface the client needs; the default
// implementation wraps a websocket. Tests substitute fakes.
type Conn interface {
	ReadMessage(ctx context.Context) ([]byte, error)
	WriteMessage(ctx context.Context, data []byte) error
	Close() error
}

// DialFunc establishes one transport connection.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// wsConn adapts a nhooyr websocket connection to Conn.
type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) ReadMessage(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w *wsConn) WriteMessage(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}

// DialWebsocket is the production DialFunc.
func DialWebsocket(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(1 << 20)
	return &wsConn{c: c}, nil
}

// subscription is one registered handler for one event name.
type subscription struct {
	token   string
	event   string
	handler Handler
}

// Client owns the session's push-event connection. It reconnects
// forever with capped exponential backoff and re-authenticates on
// every successful connect.
type Client struct {
	url         string
	dial        DialFunc
	backoffBase time.Duration
	backoffCap  time.Duration

	mu    sync.Mutex
	token string
	conn  Conn
	subs  map[string][]subscription

	startOnce sync.Once
}

// Options configures a stream client.
type Options struct {
	// URL is the websocket endpoint.
	URL string

	// Token is the session token, if already available.
	Token string

	// BackoffBase and BackoffCap bound the reconnect delay. Zero
	// values fall back to 500ms and 30s.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// Dial overrides the transport; nil uses DialWebsocket.
	Dial DialFunc
}

// NewClient creates a stream client. Connect must be called to start
// the connection loop.
func NewClient(opts Options) *Client {
	dial := opts.Dial
	if dial == nil {
		dial = DialWebsocket
	}
	base := opts.BackoffBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	cap := opts.BackoffCap
	if cap <= 0 {
		cap = 30 * time.Second
	}
	return &Client{
		url:         opts.URL,
		dial:        dial,
		backoffBase: base,
		backoffCap:  cap,
		token:       opts.Token,
		subs:        make(map[string][]subscription),
	}
}

// Subscribe registers a handler for a named event and returns an
// opaque token for Unsubscribe.
func (c *Client) Subscribe(event string, h Handler) string {
	token := uuid.New().String()

	c.mu.Lock()
	c.subs[event] = append(c.subs[event], subscription{
		token:   token,
		event:   event,
		handler: h,
	})
	c.mu.Unlock()

	return token
}

// Unsubscribe removes a previously registered handler. Unknown or
// already-removed tokens are ignored.
func (c *Client) Unsubscribe(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for event, subs := range c.subs {
		for i, s := range subs {
			if s.token == token {
				c.subs[event] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// SetToken stores the session token and, when a connection is live,
// authenticates immediately instead of waiting for the next reconnect.
func (c *Client) SetToken(ctx context.Context, token string) {
	c.mu.Lock()
	c.token = token
	conn := c.conn
	c.mu.Unlock()

	if conn != nil && token != "" {
		if err := c.sendAuthenticate(ctx, conn, token); err != nil {
			log.Printf("stream: authenticate after token update failed: %v", err)
		}
	}
}

// Connect starts the connection loop in a background goroutine. It is
// safe to call more than once; only the first call has an effect. The
// loop runs until ctx is canceled.
func (c *Client) Connect(ctx context.Context) {
	c.startOnce.Do(func() {
		go c.run(ctx)
	})
}

// run dials, reads until failure, and redials forever. Missed events
// are never replayed; every successful connect dispatches EventResync
// so consumers can reconcile instead.
func (c *Client) run(ctx context.Context) {
	delay := c.backoffBase

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx, c.url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("stream: dial %s failed: %v", c.url, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = nextDelay(delay, c.backoffCap)
			continue
		}

		delay = c.backoffBase

		c.mu.Lock()
		c.conn = conn
		token := c.token
		c.mu.Unlock()

		if token != "" {
			if err := c.sendAuthenticate(ctx, conn, token); err != nil {
				log.Printf("stream: authenticate failed: %v", err)
			}
		}

		c.dispatch(EventResync, nil)

		c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}
}

// readLoop consumes frames until the connection fails. Malformed
// frames are dropped without disturbing the handler chain.
func (c *Client) readLoop(ctx context.Context, conn Conn) {
	for {
		data, err := conn.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("stream: connection lost: %v", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Printf("stream: dropping malformed frame: %v", err)
			continue
		}
		if strings.TrimSpace(f.Event) == "" {
			log.Printf("stream: dropping frame without event name")
			continue
		}

		c.dispatch(f.Event, f.Data)
	}
}

// dispatch runs every handler registered for event, in registration
// order, outside the registry lock.
func (c *Client) dispatch(event string, data json.RawMessage) {
	c.mu.Lock()
	subs := make([]subscription, len(c.subs[event]))
	copy(subs, c.subs[event])
	c.mu.Unlock()

	for _, s := range subs {
		s.handler(data)
	}
}

// sendAuthenticate emits the authenticate frame carrying the token.
func (c *Client) sendAuthenticate(ctx context.Context, conn Conn, token string) error {
	payload, err := json.Marshal(struct {
		Token string `json:"token"`
	}{Token: token})
	if err != nil {
		return err
	}
	data, err := json.Marshal(frame{Event: eventAuthenticate, Data: payload})
	if err != nil {
		return err
	}
	return conn.WriteMessage(ctx, data)
}

// nextDelay doubles the reconnect delay up to the cap.
func nextDelay(current, cap time.Duration) time.Duration {
	next := current * 2
	if next > cap {
		return cap
	}
	return next
}
