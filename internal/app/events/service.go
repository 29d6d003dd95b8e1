package events

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rpg-server/internal/platform/mq"
)

// Subjects the feed relays. Publishers use concrete leaves of this tree.
const subjectPattern = "game.>"

type Client struct {
	Conn      *websocket.Conn
	AccountID int64
	Send      chan []byte
}

// Service bridges bus events to connected websocket clients. Slow clients
// drop messages rather than block the fan-out.
type Service struct {
	logger zerolog.Logger
	bus    mq.Bus

	mu      sync.Mutex
	clients map[*Client]struct{}
	unsub   func()
	started bool
}

func NewService(logger zerolog.Logger, bus mq.Bus) *Service {
	return &Service{
		logger:  logger,
		bus:     bus,
		clients: make(map[*Client]struct{}),
	}
}

func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	unsub, err := s.bus.Subscribe(subjectPattern, s.fanout)
	if err != nil {
		return err
	}
	s.unsub = unsub
	s.started = true
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	unsub := s.unsub
	s.unsub = nil
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = map[*Client]struct{}{}
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	for _, c := range clients {
		close(c.Send)
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	}
}

func (s *Service) RegisterClient(conn *websocket.Conn, accountID int64) *Client {
	c := &Client{Conn: conn, AccountID: accountID, Send: make(chan []byte, 64)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	return c
}

func (s *Service) UnregisterClient(c *Client) {
	s.mu.Lock()
	_, exists := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if !exists {
		return
	}
	close(c.Send)
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

func (s *Service) fanout(subject string, data []byte) {
	msg, err := json.Marshal(map[string]any{
		"subject": subject,
		"event":   json.RawMessage(data),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("subject", subject).Msg("marshal event failed")
		return
	}

	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		select {
		case c.Send <- msg:
		default:
		}
	}
}
