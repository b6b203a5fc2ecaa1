// Package runtime wires persistence and event propagation together.
// It orchestrates the gateway without containing conversation logic
// or domain rules.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"market-chat/contract"
	"market-chat/domain/event"

	"github.com/google/uuid"
)

type subscription struct {
	filter contract.SubscriptionFilter
	sink   contract.EventSink
}

// Broker delivers stream events to registered sinks.
//
// It provides best-effort fan-out with no guarantees regarding
// delivery order, durability, or retries. Broker is not a message
// queue; a sink error is logged and the event is gone.
//
// Broker is safe for concurrent use by multiple goroutines.
type Broker struct {
	mu   sync.RWMutex
	log  *slog.Logger
	subs map[uuid.UUID]subscription
}

func NewBroker(log *slog.Logger) *Broker {
	return &Broker{log: log, subs: make(map[uuid.UUID]subscription)}
}

// Subscribe registers a sink under a fresh handle. The filter decides
// which events reach it; insert-only filters drop updates and deletes.
func (b *Broker) Subscribe(filter contract.SubscriptionFilter, sink contract.EventSink) uuid.UUID {
	handle := uuid.New()
	b.mu.Lock()
	b.subs[handle] = subscription{filter: filter, sink: sink}
	b.mu.Unlock()
	return handle
}

// Unsubscribe removes a handle. Unknown handles are a no-op so
// teardown paths can be called twice safely.
func (b *Broker) Unsubscribe(handle uuid.UUID) {
	b.mu.Lock()
	delete(b.subs, handle)
	b.mu.Unlock()
}

// Publish fans the event out to every matching sink. participants are
// the user ids owning the event's conversation, used to match
// user-scoped filters. Sinks are invoked on the caller's goroutine;
// a failing sink only gets a log line.
func (b *Broker) Publish(ctx context.Context, evt event.StreamEvent, participants []string) {
	b.mu.RLock()
	matched := make([]subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if matches(sub.filter, evt, participants) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		if err := sub.sink.Consume(ctx, evt); err != nil {
			b.log.Warn(fmt.Sprintf("Sink rejected event for conversation %s", evt.ConversationID()), "error", err)
		}
	}
}

func matches(filter contract.SubscriptionFilter, evt event.StreamEvent, participants []string) bool {
	if filter.InsertOnly {
		if _, ok := evt.(event.MessageInserted); !ok {
			return false
		}
	}
	if filter.ConversationID != "" {
		return filter.ConversationID == evt.ConversationID()
	}
	for _, uid := range participants {
		if uid == filter.UserID {
			return true
		}
	}
	return false
}
