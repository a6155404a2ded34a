package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pixchat/pkg/models"
)

type fakeGuard struct {
	members map[string][]string
}

func (g *fakeGuard) IsParticipant(threadID, userID string) (bool, error) {
	for _, u := range g.members[threadID] {
		if u == userID {
			return true, nil
		}
	}
	return false, nil
}

type testServer struct {
	hub *Hub
	srv *httptest.Server
}

func newTestServer(t *testing.T, guard ThreadGuard) *testServer {
	t.Helper()
	hub := NewHub(guard, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWS(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(srv.Close)
	return &testServer{hub: hub, srv: srv}
}

func (ts *testServer) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/?user=" + user
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", user, err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal frame %q: %v", data, err)
	}
	return out
}

func sendFrame(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func waitForConns(t *testing.T, hub *Hub, user string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.users[user])
		hub.mu.RUnlock()
		if n >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("connections for %s never registered", user)
}

func TestJoinThreadGuarded(t *testing.T) {
	ts := newTestServer(t, &fakeGuard{members: map[string][]string{"th_1": {"alice", "bob"}}})

	alice := ts.dial(t, "alice")
	sendFrame(t, alice, map[string]any{"type": "join_thread", "thread_id": "th_1", "ref": "r1"})
	ack := readFrame(t, alice)
	if ack["type"] != "ack" || ack["ref"] != "r1" || ack["ok"] != true {
		t.Fatalf("join ack = %+v", ack)
	}

	carol := ts.dial(t, "carol")
	sendFrame(t, carol, map[string]any{"type": "join_thread", "thread_id": "th_1", "ref": "r2"})
	ack = readFrame(t, carol)
	if ack["ok"] != false {
		t.Fatalf("outsider join should be denied: %+v", ack)
	}
}

func TestNewMessageReachesPersonalChannels(t *testing.T) {
	ts := newTestServer(t, &fakeGuard{members: map[string][]string{"th_1": {"alice", "bob"}}})

	// two devices for bob, none joined to the thread channel
	bobPhone := ts.dial(t, "bob")
	bobLaptop := ts.dial(t, "bob")
	waitForConns(t, ts.hub, "bob", 2)

	msg := &models.Message{ID: "msg_1", Thread: "th_1", Sender: "alice", Receiver: "bob", Body: "hi", CreatedTS: 1}
	ts.hub.Publish(models.NewMessageEvent("th_1", msg))

	for _, ws := range []*websocket.Conn{bobPhone, bobLaptop} {
		frame := readFrame(t, ws)
		if frame["type"] != string(models.EventNewMessage) {
			t.Fatalf("frame type = %v", frame["type"])
		}
		m, _ := frame["message"].(map[string]any)
		if m == nil || m["id"] != "msg_1" {
			t.Fatalf("message payload = %+v", frame)
		}
	}
}

func TestReadReceiptGoesToThreadChannel(t *testing.T) {
	ts := newTestServer(t, &fakeGuard{members: map[string][]string{"th_1": {"alice", "bob"}}})

	alice := ts.dial(t, "alice")
	sendFrame(t, alice, map[string]any{"type": "join_thread", "thread_id": "th_1", "ref": "r1"})
	if ack := readFrame(t, alice); ack["ok"] != true {
		t.Fatalf("join failed: %+v", ack)
	}

	// bob connected but not joined; read receipts stay inside the channel
	bob := ts.dial(t, "bob")
	waitForConns(t, ts.hub, "bob", 1)

	ts.hub.Publish(models.MessagesReadEvent("th_1", "bob", 42))

	frame := readFrame(t, alice)
	if frame["type"] != string(models.EventMessagesRead) || frame["reader_id"] != "bob" {
		t.Fatalf("read frame = %+v", frame)
	}

	_ = bob.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := bob.ReadMessage(); err == nil {
		t.Fatal("bob should not receive the receipt outside the channel")
	}
}

func TestTypingRelaySkipsSender(t *testing.T) {
	ts := newTestServer(t, &fakeGuard{members: map[string][]string{"th_1": {"alice", "bob"}}})

	alice := ts.dial(t, "alice")
	bob := ts.dial(t, "bob")
	for _, c := range []*websocket.Conn{alice, bob} {
		sendFrame(t, c, map[string]any{"type": "join_thread", "thread_id": "th_1", "ref": "j"})
		if ack := readFrame(t, c); ack["ok"] != true {
			t.Fatalf("join failed: %+v", ack)
		}
	}

	sendFrame(t, alice, map[string]any{"type": "typing", "thread_id": "th_1", "is_typing": true})

	frame := readFrame(t, bob)
	if frame["type"] != string(models.EventTyping) || frame["user_id"] != "alice" || frame["is_typing"] != true {
		t.Fatalf("typing frame = %+v", frame)
	}

	_ = alice.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := alice.ReadMessage(); err == nil {
		t.Fatal("typing must not echo to the sender")
	}
}

func TestUnknownFrameGetsErrorAck(t *testing.T) {
	ts := newTestServer(t, &fakeGuard{members: map[string][]string{}})

	alice := ts.dial(t, "alice")
	sendFrame(t, alice, map[string]any{"type": "bogus", "ref": "r9"})
	ack := readFrame(t, alice)
	if ack["ok"] != false || ack["ref"] != "r9" {
		t.Fatalf("unknown frame ack = %+v", ack)
	}
}
