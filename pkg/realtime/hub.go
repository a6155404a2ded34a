// Package realtime is the websocket gateway for live chat delivery. Every
// connection gets a personal channel keyed by user id; thread channels are
// joined explicitly and gated on participation.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pixchat/pkg/logger"
	"pixchat/pkg/models"
)

// ThreadGuard answers whether a user may join a thread channel.
type ThreadGuard interface {
	IsParticipant(threadID, userID string) (bool, error)
}

// Hub tracks connections and routes chat events to them. It implements the
// chat service's event publisher.
type Hub struct {
	guard    ThreadGuard
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	users   map[string]map[*conn]struct{}
	threads map[string]map[*conn]struct{}
}

// NewHub builds a Hub. allowedOrigins gates the websocket handshake; an
// empty list or a "*" entry accepts any origin.
func NewHub(guard ThreadGuard, allowedOrigins []string) *Hub {
	h := &Hub{
		guard:   guard,
		users:   make(map[string]map[*conn]struct{}),
		threads: make(map[string]map[*conn]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser client
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleWS upgrades the request and runs the connection until it closes.
// userID must already be authenticated by the caller.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request, userID string) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws_upgrade_failed", zap.String("user", userID), zap.Error(err))
		return
	}
	c := newConn(h, ws, userID)
	h.register(c)
	connsOpen.Inc()
	logger.Info("ws_connected", zap.String("user", userID))

	go c.writePump()
	c.readPump()

	h.unregister(c)
	connsOpen.Dec()
	logger.Info("ws_disconnected", zap.String("user", userID))
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.users[c.userID]
	if !ok {
		set = make(map[*conn]struct{})
		h.users[c.userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.users[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, c.userID)
		}
	}
	for tid := range c.joined {
		if set, ok := h.threads[tid]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.threads, tid)
			}
		}
	}
}

// joinThread subscribes c to a thread channel after the participant check.
func (h *Hub) joinThread(c *conn, threadID string) error {
	ok, err := h.guard.IsParticipant(threadID, c.userID)
	if err != nil {
		return err
	}
	if !ok {
		return errNotParticipant
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, found := h.threads[threadID]
	if !found {
		set = make(map[*conn]struct{})
		h.threads[threadID] = set
	}
	set[c] = struct{}{}
	c.joined[threadID] = struct{}{}
	return nil
}

func (h *Hub) leaveThread(c *conn, threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.threads[threadID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.threads, threadID)
		}
	}
	delete(c.joined, threadID)
}

// Publish routes a chat event to the relevant channels. New messages go to
// the thread channel and both participants' personal channels; read receipts
// and typing go to the thread channel only.
func (h *Hub) Publish(ev models.Event) {
	frame, err := json.Marshal(eventFrame(ev))
	if err != nil {
		logger.Error("event_marshal_failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make(map[*conn]struct{})
	switch ev.Kind {
	case models.EventNewMessage:
		for c := range h.threads[ev.ThreadID] {
			targets[c] = struct{}{}
		}
		if ev.Message != nil {
			for c := range h.users[ev.Message.Receiver] {
				targets[c] = struct{}{}
			}
			for c := range h.users[ev.Message.Sender] {
				targets[c] = struct{}{}
			}
		}
	case models.EventMessagesRead:
		for c := range h.threads[ev.ThreadID] {
			targets[c] = struct{}{}
		}
	case models.EventTyping:
		for c := range h.threads[ev.ThreadID] {
			if c.userID == ev.UserID {
				continue
			}
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()

	for c := range targets {
		c.trySend(frame)
	}
	eventsPublished.WithLabelValues(string(ev.Kind)).Inc()
}

// wireEvent is the server-to-client event frame.
type wireEvent struct {
	Type     string          `json:"type"`
	ThreadID string          `json:"thread_id"`
	Message  *models.Message `json:"message,omitempty"`
	ReaderID string          `json:"reader_id,omitempty"`
	ReadTS   int64           `json:"read_ts,omitempty"`
	UserID   string          `json:"user_id,omitempty"`
	IsTyping bool            `json:"is_typing,omitempty"`
}

func eventFrame(ev models.Event) wireEvent {
	return wireEvent{
		Type:     string(ev.Kind),
		ThreadID: ev.ThreadID,
		Message:  ev.Message,
		ReaderID: ev.ReaderID,
		ReadTS:   ev.ReadTS,
		UserID:   ev.UserID,
		IsTyping: ev.IsTyping,
	}
}
