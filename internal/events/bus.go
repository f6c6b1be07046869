// Package events provides a typed publish/subscribe bus passed by
// reference to the components that need it, in place of a module-level
// broadcaster singleton.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/pilltick/backend/pkg/model"
)

// DoseLogged is published whenever a dose log is written, regardless of
// which path produced it.
type DoseLogged struct {
	MedicationID  string
	ScheduledTime time.Time
	Status        model.DoseStatus
}

// MedicationChanged is published after a medication is created, edited or
// deleted.
type MedicationChanged struct {
	MedicationID string
	Deleted      bool
}

// Bus is a synchronous fan-out channel for one event type. Publish invokes
// every subscriber inline, so effects that must complete before the caller
// continues (like retry cancellation) do.
type Bus[T any] struct {
	mu          sync.RWMutex
	subscribers []func(ctx context.Context, event T)
}

// NewBus creates an empty Bus
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers a handler for every future Publish
func (b *Bus[T]) Subscribe(handler func(ctx context.Context, event T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, handler)
}

// Publish delivers event to every subscriber in registration order
func (b *Bus[T]) Publish(ctx context.Context, event T) {
	b.mu.RLock()
	subscribers := make([]func(ctx context.Context, event T), len(b.subscribers))
	copy(subscribers, b.subscribers)
	b.mu.RUnlock()

	for _, handler := range subscribers {
		handler(ctx, event)
	}
}
