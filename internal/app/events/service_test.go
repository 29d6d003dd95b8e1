package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// localBus delivers published messages straight to the subscriber,
// standing in for NATS.
type localBus struct {
	handler func(subject string, data []byte)
}

func (b *localBus) Publish(_ context.Context, subject string, data []byte) error {
	if b.handler != nil {
		b.handler(subject, data)
	}
	return nil
}

func (b *localBus) Subscribe(_ string, handler func(subject string, data []byte)) (func(), error) {
	b.handler = handler
	return func() { b.handler = nil }, nil
}

func (b *localBus) Close() {}

func TestEventFanout(t *testing.T) {
	bus := &localBus{}
	svc := NewService(zerolog.Nop(), bus)
	if err := svc.Start(); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	defer svc.Stop()

	client := svc.RegisterClient(nil, 7)

	payload := []byte(`{"character_id":1,"account_id":7}`)
	if err := bus.Publish(context.Background(), "game.character.created", payload); err != nil {
		t.Fatalf("Publish err: %v", err)
	}

	select {
	case msg := <-client.Send:
		var got struct {
			Subject string          `json:"subject"`
			Event   json.RawMessage `json:"event"`
		}
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("unmarshal fanout message: %v", err)
		}
		if got.Subject != "game.character.created" {
			t.Fatalf("unexpected subject %q", got.Subject)
		}
		if string(got.Event) != string(payload) {
			t.Fatalf("unexpected event payload %s", got.Event)
		}
	case <-time.After(time.Second):
		t.Fatal("expected fanout message")
	}

	svc.UnregisterClient(client)
	if _, ok := <-client.Send; ok {
		t.Fatal("expected send channel closed after unregister")
	}
}

func TestStopUnsubscribes(t *testing.T) {
	bus := &localBus{}
	svc := NewService(zerolog.Nop(), bus)
	if err := svc.Start(); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	svc.Stop()
	if bus.handler != nil {
		t.Fatal("expected unsubscribe on Stop")
	}
}
