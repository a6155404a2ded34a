// Package fanout provides the bounded in-memory queue that decouples message
// persistence from best-effort side effects (push notifications). Producers
// never block on delivery; a full queue drops the job.
package fanout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// Job is a lightweight in-memory delivery job. Payload may be backed by a
// pooled ByteBuffer; consumers must call Item.Done() when finished.
type Job struct {
	Thread    string
	MessageID string
	Receiver  string
	// Payload holds the serialized notification body.
	Payload []byte
	// TS is the message creation timestamp (nanoseconds).
	TS int64
	// EnqSeq is a monotonic enqueue sequence assigned when the job is
	// accepted into the queue.
	EnqSeq uint64
}

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
var ErrQueueFull = errors.New("fanout queue full")

// Item wraps a Job and owns a pooled ByteBuffer if one was used. Consumers
// MUST call Done() exactly once after processing the item to return pooled
// resources.
type Item struct {
	Job *Job

	buf  *bytebufferpool.ByteBuffer
	once sync.Once
}

// Done releases internal pooled resources (buffer + job) back to the pool.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.buf != nil {
			// avoid retaining huge buffers in the pool
			if cap(it.buf.B) > maxPooledBuffer {
				it.buf = nil
			} else {
				bytebufferpool.Put(it.buf)
				it.buf = nil
			}
		}
		if it.Job != nil {
			it.Job.Payload = nil
			jobPool.Put(it.Job)
			it.Job = nil
		}
		itemPool.Put(it)
	})
}

// Queue is a bounded in-memory queue feeding the delivery workers. It is
// safe for concurrent producers.
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
	seq      uint64
}

var jobPool = sync.Pool{New: func() any { return &Job{} }}
var itemPool = sync.Pool{New: func() any { return &Item{} }}

// maxPooledBuffer controls the largest buffer size that will be returned to
// the pool. Buffers larger than this are dropped so GC can reclaim them.
var maxPooledBuffer = 256 * 1024 // 256 KiB

// NewQueue creates a new bounded Queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// SetMaxPooledBuffer overrides the pooled buffer cap; zero keeps the default.
func SetMaxPooledBuffer(n int) {
	if n > 0 {
		maxPooledBuffer = n
	}
}

// Out returns a read-only channel that consumers can range over to receive
// queued items. Do not close it from callers.
func (q *Queue) Out() <-chan *Item { return q.ch }

// TryEnqueue attempts to enqueue a Job, copying its payload into a pooled
// buffer. If the queue is full ErrQueueFull is returned and the job is
// dropped.
func (q *Queue) TryEnqueue(job *Job) error {
	newJob := jobPool.Get().(*Job)
	*newJob = *job
	newJob.EnqSeq = atomic.AddUint64(&q.seq, 1)

	var bb *bytebufferpool.ByteBuffer
	if len(job.Payload) > 0 {
		bb = bytebufferpool.Get()
		bb.B = append(bb.B[:0], job.Payload...)
		newJob.Payload = bb.B[:len(job.Payload)]
	}

	it := itemPool.Get().(*Item)
	*it = Item{Job: newJob, buf: bb}

	select {
	case q.ch <- it:
		return nil
	default:
		if bb != nil {
			bytebufferpool.Put(bb)
		}
		jobPool.Put(newJob)
		atomic.AddUint64(&q.dropped, 1)
		jobsDropped.Inc()
		return ErrQueueFull
	}
}

// Enqueue blocks until space is available or the context is done.
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	newJob := jobPool.Get().(*Job)
	*newJob = *job
	newJob.EnqSeq = atomic.AddUint64(&q.seq, 1)

	var bb *bytebufferpool.ByteBuffer
	if len(job.Payload) > 0 {
		bb = bytebufferpool.Get()
		bb.B = append(bb.B[:0], job.Payload...)
		newJob.Payload = bb.B[:len(job.Payload)]
	}
	it := itemPool.Get().(*Item)
	*it = Item{Job: newJob, buf: bb}

	select {
	case q.ch <- it:
		return nil
	case <-ctx.Done():
		if bb != nil {
			bytebufferpool.Put(bb)
		}
		jobPool.Put(newJob)
		atomic.AddUint64(&q.dropped, 1)
		jobsDropped.Inc()
		return ctx.Err()
	}
}

// CloseAndDrain closes the queue channel and drains remaining items,
// ensuring their resources are released.
func (q *Queue) CloseAndDrain() {
	close(q.ch)
	for it := range q.ch {
		it.Done()
	}
}

// RunWorker runs a worker loop that invokes handler for each dequeued Job.
// Item.Done() is called even if handler returns an error. The worker exits
// when stop is closed or when the queue is closed.
func (q *Queue) RunWorker(stop <-chan struct{}, handler func(*Job) error) {
	for {
		select {
		case it, ok := <-q.ch:
			if !ok {
				return
			}
			func(it *Item) {
				defer it.Done()
				if err := handler(it.Job); err != nil {
					jobsFailed.Inc()
				} else {
					jobsDelivered.Inc()
				}
			}(it)
		case <-stop:
			return
		}
	}
}

// Len returns the current number of items in the queue.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity of the queue.
func (q *Queue) Cap() int { return q.capacity }

// Dropped returns the number of jobs dropped due to a full queue or context
// cancellation during enqueue.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }
