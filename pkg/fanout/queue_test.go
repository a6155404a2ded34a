package fanout

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pixchat/pkg/models"
)

func TestQueueDeliversJobs(t *testing.T) {
	q := NewQueue(8)

	var mu sync.Mutex
	var got [][]byte
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.RunWorker(stop, func(j *Job) error {
			mu.Lock()
			got = append(got, append([]byte(nil), j.Payload...))
			mu.Unlock()
			return nil
		})
	}()

	for i := 0; i < 3; i++ {
		if err := q.TryEnqueue(&Job{MessageID: "m", Payload: []byte("payload")}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("delivered %d of 3", n)
		case <-time.After(10 * time.Millisecond):
		}
	}
	close(stop)
	<-done

	for _, p := range got {
		if !bytes.Equal(p, []byte("payload")) {
			t.Fatalf("payload corrupted: %q", p)
		}
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(2)

	// no worker running; third enqueue must drop
	_ = q.TryEnqueue(&Job{MessageID: "a"})
	_ = q.TryEnqueue(&Job{MessageID: "b"})
	err := q.TryEnqueue(&Job{MessageID: "c"})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Dropped() != 1 {
		t.Fatalf("dropped = %d", q.Dropped())
	}
	q.CloseAndDrain()
}

func TestEnqueueHonorsContext(t *testing.T) {
	q := NewQueue(1)
	_ = q.TryEnqueue(&Job{MessageID: "a"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, &Job{MessageID: "b"})
	if err == nil {
		t.Fatal("blocking enqueue on a full queue should fail when ctx expires")
	}
	q.CloseAndDrain()
}

type recordingDeliverer struct {
	mu    sync.Mutex
	seen  []string
	errOn string
}

func (d *recordingDeliverer) Deliver(ctx context.Context, receiverID string, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, receiverID)
	if receiverID == d.errOn {
		return errors.New("delivery refused")
	}
	return nil
}

func TestSinkNotifiesAndAbsorbsFailures(t *testing.T) {
	del := &recordingDeliverer{errOn: "bob"}
	sink := NewSink(NewQueue(8), del, 0)
	sink.Start(1)
	defer sink.Stop()

	msg := &models.Message{ID: "msg_1", Thread: "th_1", Sender: "alice", Receiver: "bob", Body: "hi", CreatedTS: 1}
	if err := sink.NotifyNewMessage(context.Background(), msg); err != nil {
		t.Fatalf("notify: %v", err)
	}
	msg2 := &models.Message{ID: "msg_2", Thread: "th_1", Sender: "bob", Receiver: "alice", Body: "yo", CreatedTS: 2}
	if err := sink.NotifyNewMessage(context.Background(), msg2); err != nil {
		t.Fatalf("notify 2: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		del.mu.Lock()
		n := len(del.seen)
		del.mu.Unlock()
		if n == 2 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("delivered %d of 2", n)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Stop must let already-queued notifications reach the deliverer instead of
// discarding them with the queue.
func TestSinkStopDrainsQueue(t *testing.T) {
	del := &recordingDeliverer{}
	sink := NewSink(NewQueue(16), del, time.Millisecond)
	sink.Start(1)

	const n = 5
	for i := 0; i < n; i++ {
		msg := &models.Message{ID: "msg", Thread: "th_1", Sender: "alice", Receiver: "bob", Body: "hi", CreatedTS: int64(i + 1)}
		if err := sink.NotifyNewMessage(context.Background(), msg); err != nil {
			t.Fatalf("notify %d: %v", i, err)
		}
	}
	sink.Stop()

	del.mu.Lock()
	defer del.mu.Unlock()
	if len(del.seen) != n {
		t.Fatalf("delivered %d of %d before shutdown", len(del.seen), n)
	}
}
