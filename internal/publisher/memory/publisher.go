// Package memory provides an in-memory publisher for local development and
// tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
)

// Message is one published payload, already JSON-encoded.
type Message struct {
	ID    string
	Topic string
	Data  []byte
}

// Publisher implements jobs.Publisher on an in-memory slice.
type Publisher struct {
	mu       sync.Mutex
	messages []Message
	nextID   int
}

// New builds an empty Publisher.
func New() *Publisher {
	return &Publisher{nextID: 1}
}

// Publish encodes payload as JSON and records it under topic.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	id := strconv.Itoa(p.nextID)
	p.nextID++
	p.messages = append(p.messages, Message{ID: id, Topic: topic, Data: data})
	return id, nil
}

// Messages returns a copy of everything published so far.
func (p *Publisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}
