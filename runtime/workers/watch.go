package workers

import (
	"context"
	"log/slog"
	"time"
)

// ConversationWatcher opens the session's background subscriptions.
// The call is idempotent per conversation, so re-entry only picks up
// conversations created since the last pass.
type ConversationWatcher interface {
	OpenBackgroundWatch(ctx context.Context) error
}

// WatchWorker keeps the background watch alive. It opens the watch on
// start and re-enters it on an interval; any failure is returned so
// the supervisor restarts the worker with backoff, which is the
// reconnect path after a dropped stream.
type WatchWorker struct {
	log      *slog.Logger
	watcher  ConversationWatcher
	interval time.Duration
}

func NewWatchWorker(log *slog.Logger, watcher ConversationWatcher, interval time.Duration) *WatchWorker {
	return &WatchWorker{log: log, watcher: watcher, interval: interval}
}

func (w *WatchWorker) Run(ctx context.Context) error {
	if err := w.watcher.OpenBackgroundWatch(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.watcher.OpenBackgroundWatch(ctx); err != nil {
				return err
			}
		}
	}
}
