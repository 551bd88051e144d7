package voice

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultConnectTimeout = 15 * time.Second
	writeWait             = 5 * time.Second
)

// ClientConfig configures the WebSocket provider client.
type ClientConfig struct {
	URL            string
	APIKey         string
	ConnectTimeout time.Duration
	Dialer         *websocket.Dialer
}

// Client is a Provider speaking the JSON frame protocol over a WebSocket.
// One Client serves one call.
type Client struct {
	cfg    ClientConfig
	logger *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	started bool
	stopped bool
	ended   bool
	reading bool
	subs    map[uint64]func(Event)
	nextSub uint64

	writeMu sync.Mutex
	done    chan struct{}
}

// NewClient creates a provider client. No connection is made until Start.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[uint64]func(Event)),
		done:   make(chan struct{}),
	}
}

// Subscribe registers fn for every event. Callbacks run on the read goroutine.
func (c *Client) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Start dials the provider and sends the start frame.
func (c *Client) Start(ctx context.Context, req StartRequest) error {
	frame, err := newStartFrame(req)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	dialCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}

	headers := make(http.Header)
	if c.cfg.APIKey != "" {
		headers.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	conn, resp, err := c.cfg.Dialer.DialContext(dialCtx, c.cfg.URL, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("voice: dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("voice: dial: %w", err)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrNotConnected
	}
	c.conn = conn
	c.mu.Unlock()

	if err := c.writeJSON(conn, frame); err != nil {
		_ = conn.Close()
		return fmt.Errorf("voice: send start: %w", err)
	}

	c.mu.Lock()
	c.reading = true
	c.mu.Unlock()
	go c.readLoop(conn)
	c.logger.Debug("voice call started", zap.Bool("workflow", frame.WorkflowID != ""))
	return nil
}

// Stop asks the provider to end the call and closes the connection.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	conn := c.conn
	reading := c.reading
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := c.writeJSON(conn, controlFrame{Type: "stop"}); err != nil {
		c.logger.Debug("voice stop frame", zap.Error(err))
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.writeMu.Unlock()
	err := conn.Close()
	if reading {
		<-c.done
	}
	return err
}

func (c *Client) writeJSON(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer close(c.done)
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stopped, ended := c.stopped, c.ended
			c.mu.Unlock()
			switch {
			case stopped:
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				if !ended {
					c.emit(Event{Type: EventCallEnd})
				}
			default:
				c.emit(Event{Type: EventError, Err: fmt.Errorf("voice: read: %w", err)})
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		ev, ok, err := decodeFrame(data)
		if err != nil {
			c.logger.Warn("voice: bad frame", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if ev.Type == EventCallEnd {
			c.mu.Lock()
			c.ended = true
			c.mu.Unlock()
		}
		c.emit(ev)
	}
}

func (c *Client) emit(ev Event) {
	c.mu.Lock()
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}
