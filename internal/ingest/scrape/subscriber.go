package scrape

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log"
	"sync"

	"github.com/nats-io/nats.go"
)

// SnapshotHandler processes one decoded scrape Snapshot.
type SnapshotHandler func(Snapshot)

// Subscriber wraps a NATS connection subscribed to one scrape
// subject, mirroring the teacher's probe.Subscriber shape: connect
// once in the constructor, Subscribe/Unsubscribe toggled at runtime
// (here, by turn_off_scrape), Close tears both down.
type Subscriber struct {
	nc      *nats.Conn
	subject string

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewSubscriber connects to natsURL and prepares (without yet
// subscribing) to receive snapshots on subject.
func NewSubscriber(natsURL, subject string) (*Subscriber, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("scrape: connect to nats: %w", err)
	}
	return &Subscriber{nc: nc, subject: subject}, nil
}

// Subscribe starts delivering decoded snapshots to handler. It is a
// no-op if already subscribed.
func (s *Subscriber) Subscribe(handler SnapshotHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return nil
	}

	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		var snap Snapshot
		if err := gob.NewDecoder(bytes.NewReader(msg.Data)).Decode(&snap); err != nil {
			log.Printf("scrape: dropping undecodable snapshot: %v", err)
			return
		}
		handler(snap)
	})
	if err != nil {
		return fmt.Errorf("scrape: subscribe: %w", err)
	}
	s.sub = sub
	return nil
}

// Unsubscribe stops delivery without closing the connection, so a
// later turn_off_scrape flip back to false can Subscribe again. It is
// a no-op if not currently subscribed.
func (s *Subscriber) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return nil
	}
	if err := s.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("scrape: unsubscribe: %w", err)
	}
	s.sub = nil
	return nil
}

// Subscribed reports whether the subscription is currently active.
func (s *Subscriber) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}

// Close unsubscribes (if needed) and closes the NATS connection.
func (s *Subscriber) Close() {
	s.Unsubscribe()
	s.nc.Close()
}
