package store

import (
	"sync"
	"testing"

	"pixchat/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func appendMsg(t *testing.T, s *Store, thread, sender, receiver, body string, ts int64) *models.Message {
	t.Helper()
	m := &models.Message{
		ID:        "msg_" + body,
		Thread:    thread,
		Sender:    sender,
		Receiver:  receiver,
		Body:      body,
		CreatedTS: ts,
	}
	if err := s.AppendMessage(m); err != nil {
		t.Fatalf("append %s: %v", body, err)
	}
	return m
}

func TestGetOrCreateThreadSymmetry(t *testing.T) {
	s := openTestStore(t)

	th1, created, err := s.GetOrCreateThread("post1", "alice", "bob")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created {
		t.Fatal("first call should create")
	}

	th2, created, err := s.GetOrCreateThread("post1", "bob", "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if created {
		t.Fatal("swapped order should resolve, not create")
	}
	if th1.ID != th2.ID {
		t.Fatalf("thread ids differ: %s vs %s", th1.ID, th2.ID)
	}

	// a different post anchors a different thread
	th3, created, err := s.GetOrCreateThread("post2", "alice", "bob")
	if err != nil {
		t.Fatalf("create on post2: %v", err)
	}
	if !created || th3.ID == th1.ID {
		t.Fatal("distinct post should create a distinct thread")
	}
}

// Ids carrying the key separator could make distinct (post, userA, userB)
// triples collide on one pair key: ("p:a","x","y") and ("p","a:x","y") both
// flatten to pair:p:a:x:y. Such ids must be refused at the store boundary.
func TestGetOrCreateThreadRejectsSeparator(t *testing.T) {
	s := openTestStore(t)

	if _, _, err := s.GetOrCreateThread("p:a", "x", "y"); err != ErrInvalidID {
		t.Fatalf("post id with separator: got %v, want ErrInvalidID", err)
	}
	if _, _, err := s.GetOrCreateThread("p", "a:x", "y"); err != ErrInvalidID {
		t.Fatalf("user id with separator: got %v, want ErrInvalidID", err)
	}
	if _, _, err := s.GetOrCreateThread("p", "x", "y:z"); err != ErrInvalidID {
		t.Fatalf("second user id with separator: got %v, want ErrInvalidID", err)
	}

	th, created, err := s.GetOrCreateThread("p", "x", "y")
	if err != nil || !created || th == nil {
		t.Fatalf("clean triple should create: th=%v created=%v err=%v", th, created, err)
	}
	if ok, err := s.IsParticipant(th.ID, "a:x"); err != nil || ok {
		t.Fatalf("separator-bearing caller must not be a participant: ok=%v err=%v", ok, err)
	}
}

func TestGetOrCreateThreadConcurrent(t *testing.T) {
	s := openTestStore(t)

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			th, _, err := s.GetOrCreateThread("post1", a, b)
			if err != nil {
				t.Errorf("concurrent create: %v", err)
				return
			}
			ids[i] = th.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("got multiple thread ids: %s vs %s", ids[0], ids[i])
		}
	}
}

func TestThreadNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetThread("th_missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.IsParticipant("th_missing", "alice"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendRejectsEmptyMessage(t *testing.T) {
	s := openTestStore(t)
	err := s.AppendMessage(&models.Message{ID: "m1", Thread: "th_x"})
	if err != ErrEmptyMessage {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestListMessagesPagination(t *testing.T) {
	s := openTestStore(t)
	th, _, err := s.GetOrCreateThread("post1", "alice", "bob")
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}

	// ten messages at ts 1..10
	for i := int64(1); i <= 10; i++ {
		appendMsg(t, s, th.ID, "alice", "bob", string(rune('a'+i-1)), i)
	}

	page1, err := s.ListMessagesBefore(th.ID, 3, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page1) != 3 {
		t.Fatalf("page1 len = %d", len(page1))
	}
	if page1[0].CreatedTS != 10 || page1[2].CreatedTS != 8 {
		t.Fatalf("page1 order wrong: %d..%d", page1[0].CreatedTS, page1[2].CreatedTS)
	}

	// cursor is exclusive: before=8 yields 7,6,5
	page2, err := s.ListMessagesBefore(th.ID, 3, page1[2].CreatedTS)
	if err != nil {
		t.Fatalf("list page2: %v", err)
	}
	if len(page2) != 3 || page2[0].CreatedTS != 7 || page2[2].CreatedTS != 5 {
		t.Fatalf("page2 wrong: %+v", page2)
	}

	// drain to the beginning
	rest, err := s.ListMessagesBefore(th.ID, 100, page2[2].CreatedTS)
	if err != nil {
		t.Fatalf("list rest: %v", err)
	}
	if len(rest) != 4 || rest[0].CreatedTS != 4 || rest[3].CreatedTS != 1 {
		t.Fatalf("rest wrong: %+v", rest)
	}
}

func TestSameTimestampOrdering(t *testing.T) {
	s := openTestStore(t)
	th, _, _ := s.GetOrCreateThread("post1", "alice", "bob")

	appendMsg(t, s, th.ID, "alice", "bob", "first", 100)
	appendMsg(t, s, th.ID, "alice", "bob", "second", 100)

	msgs, err := s.ListMessagesBefore(th.ID, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d", len(msgs))
	}
	// newest first; same ts resolves by append order via seq
	if msgs[0].Body != "second" || msgs[1].Body != "first" {
		t.Fatalf("tie order wrong: %s, %s", msgs[0].Body, msgs[1].Body)
	}
}

func TestLastMessageAndUnread(t *testing.T) {
	s := openTestStore(t)
	th, _, _ := s.GetOrCreateThread("post1", "alice", "bob")

	if last, err := s.LastMessage(th.ID); err != nil || last != nil {
		t.Fatalf("empty thread last = %v, %v", last, err)
	}

	appendMsg(t, s, th.ID, "alice", "bob", "one", 1)
	appendMsg(t, s, th.ID, "alice", "bob", "two", 2)
	appendMsg(t, s, th.ID, "bob", "alice", "three", 3)

	last, err := s.LastMessage(th.ID)
	if err != nil || last == nil || last.Body != "three" {
		t.Fatalf("last = %+v, %v", last, err)
	}

	n, err := s.CountUnread(th.ID, "bob")
	if err != nil || n != 2 {
		t.Fatalf("bob unread = %d, %v", n, err)
	}
	n, err = s.CountUnread(th.ID, "alice")
	if err != nil || n != 1 {
		t.Fatalf("alice unread = %d, %v", n, err)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	s := openTestStore(t)
	th, _, _ := s.GetOrCreateThread("post1", "alice", "bob")

	appendMsg(t, s, th.ID, "alice", "bob", "one", 1)
	appendMsg(t, s, th.ID, "alice", "bob", "two", 2)
	appendMsg(t, s, th.ID, "bob", "alice", "three", 3)

	n, err := s.MarkRead(th.ID, "bob", 99)
	if err != nil || n != 2 {
		t.Fatalf("first mark = %d, %v", n, err)
	}

	n, err = s.MarkRead(th.ID, "bob", 100)
	if err != nil || n != 0 {
		t.Fatalf("second mark = %d, %v", n, err)
	}

	// read state persisted with the stamp
	msgs, _ := s.ListMessagesBefore(th.ID, 10, 0)
	for _, m := range msgs {
		if m.Receiver == "bob" {
			if !m.IsRead || m.ReadTS != 99 {
				t.Fatalf("message %s not marked: read=%v ts=%d", m.Body, m.IsRead, m.ReadTS)
			}
		} else if m.IsRead {
			t.Fatalf("message %s for alice should stay unread", m.Body)
		}
	}

	if n, _ := s.CountUnread(th.ID, "bob"); n != 0 {
		t.Fatalf("unread after mark = %d", n)
	}
}

func TestTouchThread(t *testing.T) {
	s := openTestStore(t)
	th, _, _ := s.GetOrCreateThread("post1", "alice", "bob")

	if err := s.TouchThread(th.ID, th.UpdatedTS+1000); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, _ := s.GetThread(th.ID)
	if got.UpdatedTS != th.UpdatedTS+1000 {
		t.Fatalf("updated_ts = %d, want %d", got.UpdatedTS, th.UpdatedTS+1000)
	}

	// stale touch is ignored
	if err := s.TouchThread(th.ID, th.UpdatedTS); err != nil {
		t.Fatalf("stale touch: %v", err)
	}
	got, _ = s.GetThread(th.ID)
	if got.UpdatedTS != th.UpdatedTS+1000 {
		t.Fatalf("stale touch moved updated_ts to %d", got.UpdatedTS)
	}
}

func TestListThreadsForUser(t *testing.T) {
	s := openTestStore(t)

	th1, _, _ := s.GetOrCreateThread("post1", "alice", "bob")
	th2, _, _ := s.GetOrCreateThread("post2", "alice", "carol")
	th3, _, _ := s.GetOrCreateThread("post3", "alice", "dave")

	// bump th1 to be the most recent
	_ = s.TouchThread(th1.ID, th3.UpdatedTS+1000)

	threads, total, err := s.ListThreadsForUser("alice", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(threads) != 3 {
		t.Fatalf("total=%d len=%d", total, len(threads))
	}
	if threads[0].ID != th1.ID {
		t.Fatalf("most recent first, got %s", threads[0].ID)
	}

	// offset + limit slice the ordered list; total is unaffected
	page, total, err := s.ListThreadsForUser("alice", 1, 1)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if total != 3 || len(page) != 1 {
		t.Fatalf("paged total=%d len=%d", total, len(page))
	}

	// bob sees only his own thread
	threads, total, _ = s.ListThreadsForUser("bob", 10, 0)
	if total != 1 || threads[0].ID != th1.ID {
		t.Fatalf("bob threads = %d", total)
	}

	// offset past the end yields an empty page
	empty, total, _ := s.ListThreadsForUser("alice", 10, 5)
	if total != 3 || len(empty) != 0 {
		t.Fatalf("past-end page: total=%d len=%d", total, len(empty))
	}

	_ = th2
}
