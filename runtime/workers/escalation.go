package workers

import (
	"context"
	"log/slog"
	"time"

	"market-chat/contract"
)

// EscalationWorker scans the user's conversations on an interval and
// escalates messages still unread past the staleness threshold to the
// out-of-band dispatcher. Exactly one attempt per message: the id is
// remembered even when the dispatch fails, because the channel is
// best effort and a later read receipt supersedes it anyway. The
// attempted set is in-memory only; there is no durable notification
// log in this design.
type EscalationWorker struct {
	log        *slog.Logger
	gateway    contract.Gateway
	dispatcher contract.Dispatcher
	userID     string
	staleAfter time.Duration
	interval   time.Duration
	attempted  map[int64]struct{}
	now        func() time.Time
}

func NewEscalationWorker(log *slog.Logger, gateway contract.Gateway, dispatcher contract.Dispatcher,
	userID string, staleAfter, interval time.Duration) *EscalationWorker {
	return &EscalationWorker{
		log:        log,
		gateway:    gateway,
		dispatcher: dispatcher,
		userID:     userID,
		staleAfter: staleAfter,
		interval:   interval,
		attempted:  make(map[int64]struct{}),
		now:        time.Now,
	}
}

func (w *EscalationWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep performs one staleness pass. Exported so tests and the sign-in
// path can trigger it without waiting for the ticker.
func (w *EscalationWorker) Sweep(ctx context.Context) {
	conversations, err := w.gateway.ListConversations(ctx, w.userID)
	if err != nil {
		w.log.Warn("Staleness sweep could not list conversations", "error", err)
		return
	}

	cutoff := w.now().Add(-w.staleAfter)
	for _, conversation := range conversations {
		messages, err := w.gateway.UnreadMessages(ctx, conversation.ID, w.userID)
		if err != nil {
			w.log.Warn("Staleness sweep could not list messages", "conversation", conversation.ID, "error", err)
			continue
		}
		for _, message := range messages {
			if message.CreatedAt.After(cutoff) {
				continue
			}
			if _, done := w.attempted[message.ID]; done {
				continue
			}
			w.attempted[message.ID] = struct{}{}
			if err := w.dispatcher.SendStaleUnreadAlert(ctx, message, w.userID); err != nil {
				w.log.Warn("Stale unread alert failed", "message", message.ID, "error", err)
			}
		}
	}
}
