package fanout

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"pixchat/pkg/logger"
	"pixchat/pkg/models"
)

const (
	defaultDrainPoll = 50 * time.Millisecond
	drainTimeout     = 5 * time.Second
)

// Deliverer performs the actual remote delivery of a notification payload.
type Deliverer interface {
	Deliver(ctx context.Context, receiverID string, payload []byte) error
}

// Sink queues new-message notifications and delivers them asynchronously
// through a worker pool. It satisfies the chat service's notification
// contract: enqueue never blocks the sender, and failures are absorbed.
type Sink struct {
	queue     *Queue
	del       Deliverer
	stop      chan struct{}
	wg        sync.WaitGroup
	started   bool
	drainPoll time.Duration
}

// notification is the wire body posted to the notification peer.
type notification struct {
	Kind      string `json:"kind"`
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
	SenderID  string `json:"sender_id"`
	Preview   string `json:"preview,omitempty"`
	CreatedTS int64  `json:"created_ts"`
}

// NewSink builds a Sink over the given queue and deliverer. drainPoll is how
// often Stop re-checks the queue while letting queued jobs finish; zero picks
// a default.
func NewSink(q *Queue, del Deliverer, drainPoll time.Duration) *Sink {
	if drainPoll <= 0 {
		drainPoll = defaultDrainPoll
	}
	return &Sink{queue: q, del: del, stop: make(chan struct{}), drainPoll: drainPoll}
}

// Start launches n delivery workers.
func (s *Sink) Start(n int) {
	if s.started || s.del == nil {
		return
	}
	if n <= 0 {
		n = 2
	}
	s.started = true
	for i := 0; i < n; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.queue.RunWorker(s.stop, s.deliver)
		}()
	}
	logger.Info("fanout_workers_started", zap.Int("workers", n), zap.Int("queue_capacity", s.queue.Cap()))
}

// Stop lets queued jobs drain, then signals the workers and waits for them
// to exit. Draining is bounded; jobs still queued past the deadline are
// discarded by CloseAndDrain.
func (s *Sink) Stop() {
	if !s.started {
		return
	}
	deadline := time.Now().Add(drainTimeout)
	for s.queue.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(s.drainPoll)
	}
	close(s.stop)
	s.wg.Wait()
	s.queue.CloseAndDrain()
	s.started = false
}

// NotifyNewMessage serializes the message into a notification job and
// enqueues it. A full queue drops the notification; the message itself is
// already persisted, so this only costs a push.
func (s *Sink) NotifyNewMessage(ctx context.Context, msg *models.Message) error {
	preview := msg.Body
	if len(preview) > 120 {
		preview = preview[:120]
	}
	payload, err := json.Marshal(notification{
		Kind:      "chat_message",
		MessageID: msg.ID,
		ThreadID:  msg.Thread,
		SenderID:  msg.Sender,
		Preview:   preview,
		CreatedTS: msg.CreatedTS,
	})
	if err != nil {
		return err
	}
	err = s.queue.TryEnqueue(&Job{
		Thread:    msg.Thread,
		MessageID: msg.ID,
		Receiver:  msg.Receiver,
		Payload:   payload,
		TS:        msg.CreatedTS,
	})
	if err == ErrQueueFull {
		logger.Warn("notification_dropped_queue_full", zap.String("message", msg.ID))
		return nil
	}
	return err
}

func (s *Sink) deliver(job *Job) error {
	err := s.del.Deliver(context.Background(), job.Receiver, job.Payload)
	if err != nil {
		logger.Warn("notification_delivery_failed",
			zap.String("message", job.MessageID),
			zap.String("receiver", job.Receiver),
			zap.Error(err))
	}
	return err
}
