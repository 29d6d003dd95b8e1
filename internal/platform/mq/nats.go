package mq

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Bus carries game events (account.registered, character.created, ...)
// between the services and the websocket event feed.
type Bus interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(subject string, handler func(subject string, data []byte)) (unsubscribe func(), err error)
	Close()
}

type natsBus struct {
	conn *nats.Conn
}

func NewBus(url string) (Bus, error) {
	conn, err := nats.Connect(url, nats.Name("rpg-server"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &natsBus{conn: conn}, nil
}

func (b *natsBus) Publish(_ context.Context, subject string, data []byte) error {
	return b.conn.Publish(subject, data)
}

func (b *natsBus) Subscribe(subject string, handler func(subject string, data []byte)) (func(), error) {
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

func (b *natsBus) Close() {
	if b.conn != nil {
		b.conn.Drain()
		b.conn.Close()
	}
}

type noopBus struct{}

func NewNoopBus() Bus {
	return noopBus{}
}

func (noopBus) Publish(context.Context, string, []byte) error { return nil }
func (noopBus) Subscribe(string, func(string, []byte)) (func(), error) {
	return func() {}, nil
}
func (noopBus) Close() {}
