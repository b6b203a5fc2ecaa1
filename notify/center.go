// Package notify turns background message traffic into user-visible
// signals. Alerts are ephemeral: nothing here is persisted, and a
// lost alert is acceptable.
package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"market-chat/domain"
)

// Alert is an in-app signal with a jump target.
type Alert struct {
	Message        domain.Message
	ConversationID string
}

// Center produces in-app alerts, fire-and-forget. The same insert can
// arrive through both a conversation-scoped and a user-scoped
// subscription, so Center remembers recently alerted message ids for a
// bounded window and drops repeats. No durable notification log exists
// in this design; the window is the only guard.
type Center struct {
	mu     sync.Mutex
	log    *slog.Logger
	window time.Duration
	seen   map[int64]time.Time
	emit   func(Alert)
	now    func() time.Time
}

func NewCenter(log *slog.Logger, window time.Duration, emit func(Alert)) *Center {
	return &Center{
		log:    log,
		window: window,
		seen:   make(map[int64]time.Time),
		emit:   emit,
		now:    time.Now,
	}
}

// Notify raises one alert for the message. Repeats inside the dedup
// window are dropped silently.
func (c *Center) Notify(message domain.Message) {
	c.mu.Lock()
	now := c.now()
	for id, at := range c.seen {
		if now.Sub(at) > c.window {
			delete(c.seen, id)
		}
	}
	if _, dup := c.seen[message.ID]; dup {
		c.mu.Unlock()
		return
	}
	c.seen[message.ID] = now
	c.mu.Unlock()

	c.log.Debug(fmt.Sprintf("Alerting message %d in conversation %s", message.ID, message.ConversationID))
	if c.emit != nil {
		c.emit(Alert{Message: message, ConversationID: message.ConversationID})
	}
}
