// Package memory keeps refresh events in-process when no Pub/Sub topic is
// configured.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// DefaultCapacity bounds the retained event history.
const DefaultCapacity = 256

// PublishedMessage is one retained event. Data holds the JSON encoding the
// Pub/Sub publisher would have sent.
type PublishedMessage struct {
	ID      string
	Topic   string
	Payload any
	Data    []byte
}

// Publisher retains the most recent events, oldest first.
type Publisher struct {
	capacity int

	mu       sync.RWMutex
	seq      int
	messages []PublishedMessage
}

// New returns a Publisher keeping at most capacity events. Non-positive
// values use DefaultCapacity.
func New(capacity int) *Publisher {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Publisher{capacity: capacity}
}

// Publish encodes payload and retains it under topic.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("publish canceled: %w", err)
	}
	if topic == "" {
		return "", fmt.Errorf("topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("memory-%d", p.seq)
	p.messages = append(p.messages, PublishedMessage{ID: id, Topic: topic, Payload: payload, Data: data})
	if over := len(p.messages) - p.capacity; over > 0 {
		p.messages = append([]PublishedMessage(nil), p.messages[over:]...)
	}
	return id, nil
}

// Messages returns a copy of the retained events.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]PublishedMessage(nil), p.messages...)
}

// Topic returns the retained events published to topic.
func (p *Publisher) Topic(topic string) []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []PublishedMessage
	for _, m := range p.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}
