package realtime

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pixchat/pkg/logger"
	"pixchat/pkg/models"
)

var errNotParticipant = errors.New("not a participant of this thread")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second

	// maxFrameSize caps inbound frames; control frames are tiny.
	maxFrameSize = 4096

	// sendBuffer is the per-connection outbound queue. A reader that falls
	// this far behind gets frames dropped rather than stalling the hub.
	sendBuffer = 64
)

// conn is one websocket connection belonging to one authenticated user.
type conn struct {
	hub    *Hub
	ws     *websocket.Conn
	userID string
	send   chan []byte
	joined map[string]struct{}
}

func newConn(h *Hub, ws *websocket.Conn, userID string) *conn {
	return &conn{
		hub:    h,
		ws:     ws,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
		joined: make(map[string]struct{}),
	}
}

// clientFrame is a client-to-server control frame.
type clientFrame struct {
	Type     string `json:"type"` // join_thread | leave_thread | typing
	ThreadID string `json:"thread_id"`
	IsTyping bool   `json:"is_typing"`
	Ref      string `json:"ref,omitempty"`
}

// ackFrame answers a join or leave request.
type ackFrame struct {
	Type  string `json:"type"` // ack
	Ref   string `json:"ref,omitempty"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// trySend queues a frame without blocking; a full buffer drops the frame.
func (c *conn) trySend(frame []byte) {
	select {
	case c.send <- frame:
	default:
		framesDropped.Inc()
	}
}

func (c *conn) readPump() {
	defer c.ws.Close()
	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("ws_read_error", zap.String("user", c.userID), zap.Error(err))
			}
			return
		}
		var f clientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			c.ack(f.Ref, false, "malformed frame")
			continue
		}
		c.handleFrame(f)
	}
}

func (c *conn) handleFrame(f clientFrame) {
	switch f.Type {
	case "join_thread":
		if err := c.hub.joinThread(c, f.ThreadID); err != nil {
			c.ack(f.Ref, false, err.Error())
			return
		}
		c.ack(f.Ref, true, "")
	case "leave_thread":
		c.hub.leaveThread(c, f.ThreadID)
		c.ack(f.Ref, true, "")
	case "typing":
		// typing is relayed only inside channels the sender has joined
		if _, ok := c.joined[f.ThreadID]; !ok {
			return
		}
		c.hub.Publish(models.TypingEvent(f.ThreadID, c.userID, f.IsTyping))
	default:
		c.ack(f.Ref, false, "unknown frame type")
	}
}

func (c *conn) ack(ref string, ok bool, msg string) {
	frame, err := json.Marshal(ackFrame{Type: "ack", Ref: ref, OK: ok, Error: msg})
	if err != nil {
		return
	}
	c.trySend(frame)
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
