package testutil

import (
	"context"
	"sync"

	"github.com/tradingbrain/licensing/internal/interfaces"
	"github.com/tradingbrain/licensing/internal/types"
)

// PublishedEvent is a single recorded event
type PublishedEvent struct {
	EventType types.WebhookEventType
	Payload   interface{}
}

// InMemoryEventPublisher records published events for assertions
type InMemoryEventPublisher struct {
	mu      sync.Mutex
	events  []PublishedEvent
	enabled bool
	err     error
}

var _ interfaces.EventPublisher = (*InMemoryEventPublisher)(nil)

func NewInMemoryEventPublisher() *InMemoryEventPublisher {
	return &InMemoryEventPublisher{enabled: true}
}

// SetError makes subsequent sends fail with err
func (p *InMemoryEventPublisher) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// SetEnabled toggles whether the publisher reports itself as enabled
func (p *InMemoryEventPublisher) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = enabled
}

func (p *InMemoryEventPublisher) IsEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

func (p *InMemoryEventPublisher) SendMessage(ctx context.Context, eventType types.WebhookEventType, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, PublishedEvent{EventType: eventType, Payload: payload})
	return nil
}

// Events returns a copy of the recorded events
func (p *InMemoryEventPublisher) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// Clear removes all recorded events
func (p *InMemoryEventPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
	p.err = nil
	p.enabled = true
}
