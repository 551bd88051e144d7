package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/intervue/backend/internal/call"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// Inbound commands.
const (
	CmdStart      = "start"
	CmdDisconnect = "disconnect"
	CmdSnapshot   = "snapshot"
)

// Outbound events.
const (
	EventCallStatus = "call_status"
	EventTranscript = "transcript"
	EventCallEnded  = "call_ended"
	EventCallError  = "call_error"
	EventNavigate   = "navigate"
	EventSnapshot   = "call_snapshot"
	EventError      = "error"
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one browser connection driving a single call.
type Client struct {
	ID     string
	UserID uuid.UUID

	hub     *Hub
	conn    *websocket.Conn
	send    chan WSMessage
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	logger  *zap.Logger

	ctrl    *call.Controller
	onStart func() error // runs on the read goroutine before the controller starts
	started bool
}

func newClient(userID uuid.UUID, hub *Hub, limiter *rate.Limiter, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		ID:      id,
		UserID:  userID,
		hub:     hub,
		send:    make(chan WSMessage, 256),
		done:    make(chan struct{}),
		limiter: limiter,
		logger:  logger.With(zap.String("client_id", id)),
	}
}

// Navigate tells the browser where to go once the call is over.
func (c *Client) Navigate(t call.Target) {
	c.Send(EventNavigate, map[string]string{"view": string(t.View), "path": t.Path()})
}

// Send queues an event for this connection only. It never blocks; events
// for a closed or saturated connection are dropped.
func (c *Client) Send(event string, payload any) {
	if msg, ok := envelope(event, payload); ok {
		c.enqueue(msg)
	}
}

func (c *Client) enqueue(msg WSMessage) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("send buffer full, dropping event", zap.String("event", msg.Event))
	}
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) readPump() {
	defer func() {
		c.close()
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		if c.limiter != nil && !c.limiter.Allow() {
			c.Send(EventError, map[string]string{"message": "too many commands"})
			continue
		}
		c.handle(msg.Event)
	}
}

func (c *Client) handle(cmd string) {
	switch cmd {
	case CmdStart:
		if c.started {
			c.Send(EventError, map[string]string{"message": call.ErrAlreadyStarted.Error()})
			return
		}
		c.started = true
		if c.onStart != nil {
			if err := c.onStart(); err != nil {
				c.logger.Warn("call start hook failed", zap.Error(err))
			}
		}
		if err := c.ctrl.Start(); err != nil {
			c.Send(EventError, map[string]string{"message": err.Error()})
		}
	case CmdDisconnect:
		c.ctrl.Disconnect()
	case CmdSnapshot:
		if snap, ok := c.ctrl.Snapshot(); ok {
			c.Send(EventSnapshot, snap)
		}
	default:
		c.Send(EventError, map[string]string{"message": "unknown command"})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) write(msg WSMessage) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteJSON(msg); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			c.logger.Debug("websocket write failed", zap.Error(err))
		}
		return err
	}
	return nil
}
