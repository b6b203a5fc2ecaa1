package notify

import (
	"context"
	"fmt"
	"log/slog"

	"market-chat/domain"

	"github.com/resend/resend-go/v2"
)

// AddressBook resolves a user id to an email address. Account data is
// owned by the identity system, not by this subsystem.
type AddressBook interface {
	EmailFor(ctx context.Context, userID string) (string, error)
}

// StaticAddressBook is a fixed userID -> email mapping for local
// setups without an identity system.
type StaticAddressBook map[string]string

func (b StaticAddressBook) EmailFor(_ context.Context, userID string) (string, error) {
	address, ok := b[userID]
	if !ok || address == "" {
		return "", fmt.Errorf("no email on file for user %s", userID)
	}
	return address, nil
}

// EmailDispatcher escalates stale unread messages to email via the
// Resend API. Best effort: the caller logs failures and never retries.
type EmailDispatcher struct {
	client    *resend.Client
	addresses AddressBook
	log       *slog.Logger
	from      string
}

func NewEmailDispatcher(log *slog.Logger, apiKey, from string, addresses AddressBook) *EmailDispatcher {
	return &EmailDispatcher{
		client:    resend.NewClient(apiKey),
		addresses: addresses,
		log:       log,
		from:      from,
	}
}

func (d *EmailDispatcher) SendStaleUnreadAlert(ctx context.Context, message domain.Message, recipientID string) error {
	to, err := d.addresses.EmailFor(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("resolve recipient %s: %w", recipientID, err)
	}

	params := &resend.SendEmailRequest{
		From:    d.from,
		To:      []string{to},
		Subject: "You have an unread message",
		Html: fmt.Sprintf("<p>A message from %s is waiting for you since %s.</p>",
			message.SenderID, message.CreatedAt.Format("15:04 MST")),
	}
	sent, err := d.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}
	d.log.Info("Stale unread alert sent", "message_id", sent.Id, "recipient", recipientID)
	return nil
}

// NoopDispatcher logs instead of delivering. Used in development and
// whenever no API key is configured.
type NoopDispatcher struct {
	Log *slog.Logger
}

func (d NoopDispatcher) SendStaleUnreadAlert(_ context.Context, message domain.Message, recipientID string) error {
	d.Log.Info("Noop stale alert", "message", message.ID, "recipient", recipientID)
	return nil
}
