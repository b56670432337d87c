package memsubstrate

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestPendingQueueAddTakeBatch(t *testing.T) {
	q := NewPendingQueue(nil)
	ctx := context.Background()

	q.Add(ctx, PendingMemory{Content: "one", CreatedAt: time.Now()})
	q.Add(ctx, PendingMemory{Content: "two", CreatedAt: time.Now()})
	q.Add(ctx, PendingMemory{Content: "three", CreatedAt: time.Now()})

	if q.Len() != 3 {
		t.Fatalf("expected length 3, got %d", q.Len())
	}

	batch := q.TakeBatch(2)
	if len(batch) != 2 || batch[0].Content != "one" || batch[1].Content != "two" {
		t.Fatalf("expected FIFO batch [one two], got %#v", batch)
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", q.Len())
	}
}

func TestPendingQueueTakeBatchMoreThanAvailable(t *testing.T) {
	q := NewPendingQueue(nil)
	q.Add(context.Background(), PendingMemory{Content: "only"})

	batch := q.TakeBatch(5)
	if len(batch) != 1 {
		t.Fatalf("expected 1 item when requesting more than available, got %d", len(batch))
	}
	if !q.IsEmpty() {
		t.Fatalf("expected queue empty after draining")
	}
}

func TestPendingQueuePeekDoesNotRemove(t *testing.T) {
	q := NewPendingQueue(nil)
	q.Add(context.Background(), PendingMemory{Content: "a"})
	q.Add(context.Background(), PendingMemory{Content: "b"})

	peeked := q.Peek(1)
	if len(peeked) != 1 || peeked[0].Content != "a" {
		t.Fatalf("expected peek to return [a], got %#v", peeked)
	}
	if q.Len() != 2 {
		t.Fatalf("expected peek to leave queue untouched, got length %d", q.Len())
	}
}

type stubKafkaWriter struct {
	messages []kafka.Message
}

func (w *stubKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func TestPendingQueueAddNotifiesPublisher(t *testing.T) {
	writer := &stubKafkaWriter{}
	publisher := NewPublisher(writer, "memo.pending")
	q := NewPendingQueue(publisher)

	q.Add(context.Background(), PendingMemory{Content: "hello", SourceSession: "s1", CreatedAt: time.Now()})

	if len(writer.messages) != 1 {
		t.Fatalf("expected 1 published notification, got %d", len(writer.messages))
	}
	if writer.messages[0].Topic != "memo.pending" {
		t.Fatalf("expected topic memo.pending, got %q", writer.messages[0].Topic)
	}
	if string(writer.messages[0].Key) != "s1" {
		t.Fatalf("expected key s1, got %q", writer.messages[0].Key)
	}
}
