package tablekit

import (
	"context"
	"sync"
	"time"
)

// Event is one lifecycle notification. Mutating operations publish a
// "before" event (whose handlers can veto by returning an error) and an
// "after" event once the change is committed.
type Event struct {
	// Topic is "<table>.<operation>.<phase>", e.g. "task.recordCreate.after".
	Topic     string
	Table     string
	Operation string
	Phase     string // "before" or "after"
	RecordID  int64
	Record    map[string]any
	Principal *Principal
	Timestamp time.Time
}

// subscription pairs a topic pattern with its handler.
type subscription struct {
	pattern string
	handler EventHandler
}

// MemoryBus is an in-process EventBus. Handlers run synchronously in
// subscription order on the publishing goroutine; the first handler error
// stops delivery and is returned to the publisher.
type MemoryBus struct {
	mu      sync.RWMutex
	matcher *TopicMatcher
	subs    []subscription
}

// NewMemoryBus creates an empty in-process event bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{matcher: NewTopicMatcher()}
}

// Subscribe registers a handler for every event whose topic matches the
// pattern. Patterns use dot-separated segments with "*" (one segment) and
// "**" (any trailing segments) wildcards.
func (b *MemoryBus) Subscribe(pattern string, handler EventHandler) error {
	if handler == nil {
		return NewError(ErrInvalidDeclaration, "event handler cannot be nil")
	}
	if err := b.matcher.Validate(pattern); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{pattern: pattern, handler: handler})
	return nil
}

// Publish delivers the event to every matching handler, stopping at the
// first error.
func (b *MemoryBus) Publish(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if !b.matcher.Match(s.pattern, event.Topic) {
			continue
		}
		if err := s.handler(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// eventTopic builds the canonical topic for a lifecycle event.
func eventTopic(table, operation, phase string) string {
	return table + "." + operation + "." + phase
}
