package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type captureApplier struct {
	mu     sync.Mutex
	events []string
	data   [][]byte
}

func (c *captureApplier) ApplyRemote(event string, data []byte) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.data = append(c.data, data)
	c.mu.Unlock()
}

func (c *captureApplier) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	copy(out, c.events)
	return out
}

func TestSubscribeAppliesPeerEvents(t *testing.T) {
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer m.Close()
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer rc.Close()

	applier := &captureApplier{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Subscribe(ctx, log.New(), rc, "events", "instance-b", applier)
		close(done)
	}()
	// wait for subscription to start
	time.Sleep(50 * time.Millisecond)

	pub := NewPublisher(rc, "events", "instance-a", log.New())
	pub.Publish("task:created", []byte(`{"id":"1","title":"T"}`))

	deadline := time.Now().Add(2 * time.Second)
	for len(applier.snapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("peer event was not applied")
		}
		time.Sleep(10 * time.Millisecond)
	}
	got := applier.snapshot()
	if got[0] != "task:created" {
		t.Fatalf("expected task:created, got %s", got[0])
	}
	applier.mu.Lock()
	data := string(applier.data[0])
	applier.mu.Unlock()
	if data != `{"id":"1","title":"T"}` {
		t.Fatalf("unexpected payload %s", data)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Subscribe did not exit")
	}
}

func TestSubscribeSkipsOwnEvents(t *testing.T) {
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer m.Close()
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer rc.Close()

	applier := &captureApplier{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Subscribe(ctx, log.New(), rc, "events", "instance-a", applier)
	time.Sleep(50 * time.Millisecond)

	// Same instance id as the subscriber: its own publications must not come
	// back as remote applies.
	own := NewPublisher(rc, "events", "instance-a", log.New())
	own.Publish("task:deleted", []byte(`"1"`))
	peer := NewPublisher(rc, "events", "instance-b", log.New())
	peer.Publish("task:deleted", []byte(`"2"`))

	deadline := time.Now().Add(2 * time.Second)
	for len(applier.snapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("peer event was not applied")
		}
		time.Sleep(10 * time.Millisecond)
	}
	got := applier.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected exactly the peer event, got %v", got)
	}
	applier.mu.Lock()
	data := string(applier.data[0])
	applier.mu.Unlock()
	if data != `"2"` {
		t.Fatalf("expected the peer's payload, got %s", data)
	}
}
