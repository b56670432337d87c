package memsubstrate

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/memochater/core/internal/observability"
)

// PendingQueue is the in-process FIFO of memories awaiting promotion to
// long-term storage.
type PendingQueue struct {
	mu        sync.Mutex
	queue     []PendingMemory
	publisher *Publisher
}

// NewPendingQueue returns an empty queue. publisher may be nil; when set, Add
// fires a fire-and-forget notification for external consumers.
func NewPendingQueue(publisher *Publisher) *PendingQueue {
	return &PendingQueue{publisher: publisher}
}

// Add appends memory to the back of the queue.
func (q *PendingQueue) Add(ctx context.Context, memory PendingMemory) {
	q.mu.Lock()
	q.queue = append(q.queue, memory)
	q.mu.Unlock()
	if q.publisher != nil {
		q.publisher.Notify(ctx, memory)
	}
}

// TakeBatch pops up to count memories from the front of the queue.
func (q *PendingQueue) TakeBatch(count int) []PendingMemory {
	q.mu.Lock()
	defer q.mu.Unlock()
	if count > len(q.queue) {
		count = len(q.queue)
	}
	batch := append([]PendingMemory(nil), q.queue[:count]...)
	q.queue = q.queue[count:]
	return batch
}

// Peek returns up to count memories from the front without removing them.
func (q *PendingQueue) Peek(count int) []PendingMemory {
	q.mu.Lock()
	defer q.mu.Unlock()
	if count > len(q.queue) {
		count = len(q.queue)
	}
	return append([]PendingMemory(nil), q.queue[:count]...)
}

// Len reports the queue's current size.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// IsEmpty reports whether the queue has no entries.
func (q *PendingQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Publisher fires a best-effort Kafka notification whenever a memory is
// queued, so external dashboards and the orchestrator's own consumers can
// observe pending-memory pressure without polling the substrate directly.
// Modeled on internal/tools/kafka's Writer-backed producer.
type Publisher struct {
	writer Writer
	topic  string
}

// Writer is the subset of *kafka.Writer used by Publisher, narrowed for
// testability.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewPublisher wraps a Kafka writer bound to topic.
func NewPublisher(writer Writer, topic string) *Publisher {
	return &Publisher{writer: writer, topic: topic}
}

// Notify publishes a JSON-encoded notification for memory without blocking
// the caller on delivery failures; errors are logged, never returned.
func (p *Publisher) Notify(ctx context.Context, memory PendingMemory) {
	log := observability.LoggerWithTrace(ctx)
	raw, err := json.Marshal(memory)
	if err != nil {
		log.Warn().Err(err).Msg("pending_memory_notify_marshal_failed")
		return
	}
	msg := kafka.Message{Topic: p.topic, Key: []byte(memory.SourceSession), Value: raw}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Warn().Err(err).Msg("pending_memory_notify_publish_failed")
	}
}
