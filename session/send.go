package session

import (
	"context"
	"fmt"

	"market-chat/attachments"
	"market-chat/domain"
	"market-chat/errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

type sendRequest struct {
	ConversationID string `validate:"required"`
	SenderID       string `validate:"required"`
}

// Send runs the optimistic pipeline: a pending placeholder appears in
// the timeline immediately, then validation, upload and persistence
// happen outside the lock. Any failure discards the placeholder and
// surfaces a typed error; the echo of a success dedups against the
// confirmed record.
//
// Empty input (no body, no attachment) or no open conversation is a
// silent no-op; the caller is responsible for preventing empty sends.
func (s *Session) Send(ctx context.Context, body string, file *domain.Attachment) error {
	s.mu.Lock()
	if s.closed || s.active == nil {
		s.mu.Unlock()
		return nil
	}
	if body == "" && file == nil {
		s.mu.Unlock()
		return nil
	}
	conversationID := s.active.ID

	if err := validate.Struct(sendRequest{ConversationID: conversationID, SenderID: s.userID}); err != nil {
		s.mu.Unlock()
		s.log.Debug("Send request rejected", "error", err)
		return nil
	}

	pending := domain.Message{
		ID:             s.nextTempID(),
		ConversationID: conversationID,
		SenderID:       s.userID,
		Body:           body,
		CreatedAt:      s.now(),
		Pending:        true,
	}
	if file != nil {
		// Local preview only; the durable URL replaces it on confirm.
		pending.AttachmentURL = "preview://" + uuid.New().String()
	}
	s.timeline.merge(pending)
	s.mu.Unlock()

	attachmentURL := ""
	if file != nil {
		if err := attachments.Validate(*file); err != nil {
			s.discard(conversationID, pending.ID)
			return err
		}
		url, err := s.uploader.Upload(ctx, s.userID, conversationID, *file)
		if err != nil {
			s.discard(conversationID, pending.ID)
			return fmt.Errorf("%w: %v", errors.ErrUpload, err)
		}
		attachmentURL = url
	}

	confirmed, err := s.gateway.InsertMessage(ctx, conversationID, s.userID, body, attachmentURL)
	if err != nil {
		s.discard(conversationID, pending.ID)
		return fmt.Errorf("%w: %v", errors.ErrPersist, err)
	}

	s.mu.Lock()
	if s.active != nil && s.active.ID == conversationID {
		// Matched by temporary id, not arrival order: two racing sends
		// each reconcile their own placeholder.
		s.timeline.replace(pending.ID, confirmed)
	}
	s.mu.Unlock()
	return nil
}

// DeleteMessage removes the entry optimistically, then issues the
// store deletion scoped to (conversation, sender = self, id). On
// failure the entry is restored by re-fetching it, not by undoing,
// since its server state may have moved concurrently.
func (s *Session) DeleteMessage(ctx context.Context, messageID int64) error {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return errors.ErrNoActiveConversation
	}
	conversationID := s.active.ID

	var target *domain.Message
	for _, message := range s.timeline.snapshot() {
		if message.ID == messageID {
			m := message
			target = &m
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return errors.ErrMessageNotFound
	}
	if target.SenderID != s.userID {
		s.mu.Unlock()
		return fmt.Errorf("%w: not the sender of message %d", errors.ErrDelete, messageID)
	}
	s.timeline.remove(messageID)
	wasPending := target.Pending
	s.mu.Unlock()

	if wasPending {
		// Never persisted; nothing to delete server side.
		return nil
	}

	if err := s.gateway.DeleteMessage(ctx, conversationID, s.userID, messageID); err != nil {
		s.restore(ctx, conversationID, messageID)
		return fmt.Errorf("%w: %v", errors.ErrDelete, err)
	}
	return nil
}

// discard drops a pending placeholder after a failed send.
func (s *Session) discard(conversationID string, tempID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.ID == conversationID {
		s.timeline.remove(tempID)
	}
}

// restore re-fetches a message whose deletion failed and merges it
// back; the sort puts it at its original position.
func (s *Session) restore(ctx context.Context, conversationID string, messageID int64) {
	fetched, err := s.gateway.GetMessage(ctx, conversationID, messageID)
	if err != nil {
		s.log.Warn("Could not restore message after failed deletion", "message", messageID, "error", err)
		return
	}
	s.mu.Lock()
	if s.active != nil && s.active.ID == conversationID {
		s.timeline.merge(fetched)
	}
	s.mu.Unlock()
}
