package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/noteflow/noteflow/internal/ports"
)

func TestMatchRoutingKey(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"note.created", "note.created", true},
		{"note.created", "note.updated", false},
		{"note.*", "note.created", true},
		{"note.*", "note.deleted", true},
		{"note.*", "note.created.v2", false},
		{"*.created", "note.created", true},
		{"*.created", "user.created", true},
		{"#", "note.created", true},
		{"#", "anything.at.all", true},
		{"note.#", "note.created", true},
		{"note.#", "note.created.v2", true},
		{"note.#", "user.created", false},
		{"note.*.v2", "note.created.v2", true},
		{"note.*.v2", "note.created", false},
	}

	for _, tt := range tests {
		if got := matchRoutingKey(tt.pattern, tt.key); got != tt.want {
			t.Errorf("matchRoutingKey(%q, %q) = %v, want %v", tt.pattern, tt.key, got, tt.want)
		}
	}
}

func newTestBroker(t *testing.T, queue, pattern string) *MemoryBroker {
	t.Helper()
	b := NewMemoryBroker()
	if err := b.DeclareTopic("notes.events"); err != nil {
		t.Fatalf("DeclareTopic: %v", err)
	}
	if err := b.DeclareQueue(queue); err != nil {
		t.Fatalf("DeclareQueue: %v", err)
	}
	if err := b.BindQueue(queue, "notes.events", pattern); err != nil {
		t.Fatalf("BindQueue: %v", err)
	}
	return b
}

func waitForDepth(t *testing.T, b *MemoryBroker, queue string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.Depth(queue) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Queue %s depth never reached %d (got %d)", queue, want, b.Depth(queue))
}

func TestMemoryBroker_DeliveryOrder(t *testing.T) {
	b := newTestBroker(t, "q", "note.*")
	defer b.Close()

	ctx := context.Background()
	b.Publish(ctx, "notes.events", "note.created", []byte("first"), true)
	b.Publish(ctx, "notes.events", "note.updated", []byte("second"), true)
	b.Publish(ctx, "notes.events", "note.deleted", []byte("third"), true)

	var mu sync.Mutex
	var got []string
	sub, err := b.Consume("q", func(ctx context.Context, d ports.Delivery) ports.Verdict {
		mu.Lock()
		got = append(got, string(d.Body))
		mu.Unlock()
		return ports.Ack
	})
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	defer sub.Close()

	waitForDepth(t, b, "q", 0)

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d messages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected message %d to be %q, got %q", i, want[i], got[i])
		}
	}
}

func TestMemoryBroker_UnroutableDropped(t *testing.T) {
	b := newTestBroker(t, "q", "note.created")
	defer b.Close()

	b.Publish(context.Background(), "notes.events", "user.created", []byte("x"), true)

	if depth := b.Depth("q"); depth != 0 {
		t.Errorf("Expected unroutable message to be dropped, queue depth %d", depth)
	}
}

func TestMemoryBroker_RequeueRedelivers(t *testing.T) {
	b := newTestBroker(t, "q", "note.*")
	defer b.Close()

	b.Publish(context.Background(), "notes.events", "note.created", []byte("payload"), true)

	var mu sync.Mutex
	attempts := 0
	sub, err := b.Consume("q", func(ctx context.Context, d ports.Delivery) ports.Verdict {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 3 {
			return ports.Requeue
		}
		return ports.Ack
	})
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	defer sub.Close()

	waitForDepth(t, b, "q", 0)

	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Errorf("Expected 3 delivery attempts, got %d", attempts)
	}
}

func TestMemoryBroker_PanicRequeues(t *testing.T) {
	b := newTestBroker(t, "q", "note.*")
	defer b.Close()

	b.Publish(context.Background(), "notes.events", "note.created", []byte("payload"), true)

	var mu sync.Mutex
	attempts := 0
	sub, err := b.Consume("q", func(ctx context.Context, d ports.Delivery) ports.Verdict {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			panic("handler blew up")
		}
		return ports.Ack
	})
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	defer sub.Close()

	waitForDepth(t, b, "q", 0)

	mu.Lock()
	defer mu.Unlock()
	if attempts != 2 {
		t.Errorf("Expected redelivery after panic, got %d attempts", attempts)
	}
}

func TestMemoryBroker_FanOut(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()
	b.DeclareTopic("notes.events")
	b.DeclareQueue("q1")
	b.DeclareQueue("q2")
	b.BindQueue("q1", "notes.events", "note.*")
	b.BindQueue("q2", "notes.events", "note.created")

	b.Publish(context.Background(), "notes.events", "note.created", []byte("x"), true)

	if depth := b.Depth("q1"); depth != 1 {
		t.Errorf("Expected q1 depth 1, got %d", depth)
	}
	if depth := b.Depth("q2"); depth != 1 {
		t.Errorf("Expected q2 depth 1, got %d", depth)
	}
}

func TestMemoryBroker_PublishUndeclaredTopic(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	err := b.Publish(context.Background(), "missing", "note.created", []byte("x"), true)
	if err == nil {
		t.Error("Expected error publishing to undeclared topic")
	}
}
