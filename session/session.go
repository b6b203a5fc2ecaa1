package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"market-chat/contract"
	"market-chat/domain"
	"market-chat/domain/event"
	"market-chat/errors"
	"market-chat/notify"

	"github.com/google/uuid"
)

// Session owns the messaging state of one signed-in user. All shared
// state (timeline, unread counter, watch map) lives behind one mutex;
// broker deliveries and caller operations serialize through it.
// Network calls happen outside the lock so a slow store never freezes
// the view.
//
// Lifecycle: built at sign-in, Close at sign-out. One active session
// per user is assumed; cross-tab reconciliation is out of scope.
type Session struct {
	mu       sync.Mutex
	log      *slog.Logger
	gateway  contract.Gateway
	uploader contract.Uploader
	center   *notify.Center
	userID   string

	timeline       timeline
	active         *domain.Conversation
	activeSub      uuid.UUID
	backgroundSubs map[string]uuid.UUID
	unread         int
	lastTempID     int64
	closed         bool

	now func() time.Time
}

func New(log *slog.Logger, gateway contract.Gateway, uploader contract.Uploader,
	center *notify.Center, userID string) *Session {
	return &Session{
		log:            log,
		gateway:        gateway,
		uploader:       uploader,
		center:         center,
		userID:         userID,
		backgroundSubs: make(map[string]uuid.UUID),
		now:            time.Now,
	}
}

func (s *Session) UserID() string { return s.userID }

// ActiveConversation returns the open thread, or false when none is.
func (s *Session) ActiveConversation() (domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return domain.Conversation{}, false
	}
	return *s.active, true
}

// OrderedMessages returns a copy of the active timeline, ascending by
// creation time. Pending entries are included.
func (s *Session) OrderedMessages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.snapshot()
}

// UnreadCount is the number of inbound messages with no read receipt
// across all of the user's conversations. Never negative.
func (s *Session) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// SelectConversation opens a conversation: tears down the previous
// active subscription first, registers for insert/update/delete
// events, loads history, and marks everything inbound as read.
// Opening a conversation implies reading it.
func (s *Session) SelectConversation(ctx context.Context, conversationID string) error {
	conversation, err := s.gateway.GetConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrSubscription, err)
	}
	if !conversation.HasParticipant(s.userID) {
		return fmt.Errorf("%w: %s", errors.ErrConversationNotFound, conversationID)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrSubscription
	}
	previous := s.activeSub
	s.active = &conversation
	s.activeSub = uuid.Nil
	s.timeline.reset()
	s.mu.Unlock()

	// Tear down before opening: two active subscriptions feeding one
	// timeline would corrupt ordering and dedup.
	if previous != uuid.Nil {
		s.gateway.Unsubscribe(previous)
	}

	sub := s.gateway.Subscribe(contract.SubscriptionFilter{ConversationID: conversationID}, &activeSink{
		session:        s,
		conversationID: conversationID,
	})

	s.mu.Lock()
	if s.active == nil || s.active.ID != conversationID {
		// A concurrent switch or Close won; give the handle back.
		s.mu.Unlock()
		s.gateway.Unsubscribe(sub)
		return nil
	}
	s.activeSub = sub
	s.mu.Unlock()

	history, err := s.gateway.ListMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("%w: history load: %v", errors.ErrSubscription, err)
	}

	s.mu.Lock()
	if s.active != nil && s.active.ID == conversationID {
		// Events may have landed during the load; merge dedups them.
		s.timeline.merge(history...)
	}
	s.mu.Unlock()

	s.MarkActiveConversationRead(ctx)
	return nil
}

// CloseActive unregisters the active subscription and drops the
// timeline. Called on navigation away and from Close.
func (s *Session) CloseActive() {
	s.mu.Lock()
	handle := s.activeSub
	s.active = nil
	s.activeSub = uuid.Nil
	s.timeline.reset()
	s.mu.Unlock()

	if handle != uuid.Nil {
		s.gateway.Unsubscribe(handle)
	}
}

// OpenBackgroundWatch enumerates the user's conversations, opens one
// insert-only subscription per conversation, seeds the unread counter
// from server truth, and alerts for every existing unread inbound
// message outside the open conversation. Subscriptions are keyed by
// conversation id, so re-entrant calls never stack duplicates, and the
// worker re-entering the watch never alerts for what is on screen.
func (s *Session) OpenBackgroundWatch(ctx context.Context) error {
	conversations, err := s.gateway.ListConversations(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrSubscription, err)
	}

	totalUnread := 0
	var backlog []domain.Message
	for _, conversation := range conversations {
		s.mu.Lock()
		_, watched := s.backgroundSubs[conversation.ID]
		closed := s.closed
		isActive := s.active != nil && s.active.ID == conversation.ID
		s.mu.Unlock()
		if closed {
			return errors.ErrSubscription
		}
		if !watched {
			sub := s.gateway.Subscribe(contract.SubscriptionFilter{
				ConversationID: conversation.ID,
				InsertOnly:     true,
			}, &backgroundSink{session: s})
			s.mu.Lock()
			if _, raced := s.backgroundSubs[conversation.ID]; raced {
				s.mu.Unlock()
				s.gateway.Unsubscribe(sub)
			} else {
				s.backgroundSubs[conversation.ID] = sub
				s.mu.Unlock()
			}
		}

		// The open conversation is on screen; its messages never count
		// as unread here and never alert.
		if isActive {
			continue
		}

		messages, err := s.gateway.UnreadMessages(ctx, conversation.ID, s.userID)
		if err != nil {
			s.log.Warn("Unread sweep failed for conversation", "conversation", conversation.ID, "error", err)
			continue
		}
		totalUnread += len(messages)
		backlog = append(backlog, messages...)
	}

	s.mu.Lock()
	s.unread = totalUnread
	s.mu.Unlock()

	// Alerts are fire-and-forget; the center dedups repeats when the
	// watch is re-entered.
	for _, message := range backlog {
		s.center.Notify(message)
	}
	return nil
}

// MarkActiveConversationRead issues the bulk receipt update for the
// open conversation and reconciles the local counter. Receipt errors
// are logged and swallowed; they never block the message flow.
func (s *Session) MarkActiveConversationRead(ctx context.Context) {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return
	}
	conversationID := s.active.ID
	s.mu.Unlock()

	marked, err := s.gateway.MarkRead(ctx, conversationID, s.userID)
	if err != nil {
		s.log.Warn("Read receipt update failed", "conversation", conversationID, "error", err)
	}

	s.mu.Lock()
	if s.active != nil && s.active.ID == conversationID {
		// The store may have echoed its updates into the timeline
		// already, in which case local stamping finds nothing; take
		// whichever count is larger and clamp at zero.
		local := s.timeline.markInboundRead(s.userID, s.now())
		if local > marked {
			marked = local
		}
		s.unread -= marked
		if s.unread < 0 {
			s.unread = 0
		}
	}
	s.mu.Unlock()
}

// Close tears down every subscription. The session is unusable after.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	handles := make([]uuid.UUID, 0, len(s.backgroundSubs)+1)
	if s.activeSub != uuid.Nil {
		handles = append(handles, s.activeSub)
	}
	for _, handle := range s.backgroundSubs {
		handles = append(handles, handle)
	}
	s.active = nil
	s.activeSub = uuid.Nil
	s.backgroundSubs = make(map[string]uuid.UUID)
	s.timeline.reset()
	s.mu.Unlock()

	for _, handle := range handles {
		s.gateway.Unsubscribe(handle)
	}
}

// Stats exposes counters for the telemetry worker.
func (s *Session) Stats() (unread, timelineLen, watches int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread, s.timeline.len(), len(s.backgroundSubs)
}

// nextTempID hands out session-scoped negative ids for optimistic
// placeholders. Monotonic, so no two placeholders collide, and
// sign-disjoint from store-assigned ids.
func (s *Session) nextTempID() int64 {
	s.lastTempID--
	return s.lastTempID
}

// activeSink feeds conversation-scoped events into the timeline. The
// conversation id is pinned at subscribe time; events delivered after
// a switch are dropped by the guard instead of corrupting the new
// timeline.
type activeSink struct {
	session        *Session
	conversationID string
}

func (a *activeSink) Consume(_ context.Context, e event.StreamEvent) error {
	s := a.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.ID != a.conversationID {
		return nil
	}

	switch evt := e.(type) {
	case event.MessageInserted:
		// Merge dedups the echo of our own optimistic send.
		s.timeline.merge(evt.Message)
	case event.MessageUpdated:
		s.timeline.merge(evt.Message)
	case event.MessageDeleted:
		s.timeline.remove(evt.MessageID)
	}
	return nil
}

// backgroundSink watches a conversation the user is not looking at.
// Inbound inserts bump the unread counter and raise an in-app alert.
type backgroundSink struct {
	session *Session
}

func (b *backgroundSink) Consume(_ context.Context, e event.StreamEvent) error {
	inserted, ok := e.(event.MessageInserted)
	if !ok {
		return nil
	}
	s := b.session
	message := inserted.Message
	if !message.InboundFor(s.userID) {
		return nil
	}

	s.mu.Lock()
	if s.active != nil && s.active.ID == message.ConversationID {
		// The active sink owns this conversation right now.
		s.mu.Unlock()
		return nil
	}
	s.unread++
	s.mu.Unlock()

	s.center.Notify(message)
	return nil
}
