package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"market-chat/attachments"
	"market-chat/contract"
	"market-chat/notify"
	"market-chat/repositories"
	"market-chat/runtime"
	"market-chat/runtime/workers"
	"market-chat/session"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the lifecycle, and
// centralizes error reporting, so defers (database cleanup) execute
// before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Store gateway
	messageRepository, err := repositories.NewMessageRepository(db, log, config.LimitMessages)
	if err != nil {
		return err
	}
	defer func() { _ = messageRepository.Close() }()
	conversationRepository := repositories.NewConversationRepository(db)
	broker := runtime.NewBroker(log)
	gateway := runtime.NewGateway(log, messageRepository, conversationRepository, broker)

	// 4. Collaborators
	uploader := attachments.NewDiskStore(config.AttachmentDir)
	var dispatcher contract.Dispatcher = notify.NoopDispatcher{Log: log}
	if config.ResendAPIKey != "" {
		addresses := notify.StaticAddressBook{config.UserID: config.NotifyEmail}
		dispatcher = notify.NewEmailDispatcher(log, config.ResendAPIKey, config.NotifyFrom, addresses)
	}

	// 5. Session (one per signed-in user, torn down at sign-out)
	center := notify.NewCenter(log, config.AlertDedupWindow, func(alert notify.Alert) {
		log.Info("New message alert",
			"conversation", alert.ConversationID,
			"from", alert.Message.SenderID)
	})
	userSession := session.New(log, gateway, uploader, center, config.UserID)
	defer userSession.Close()

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. Supervised background workers. The watch worker opens the
	// background subscriptions and the supervisor's backoff doubles as
	// the reconnect strategy when they drop.
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewWatchWorker(log, userSession, config.WatchInterval),
		workers.NewEscalationWorker(log, gateway, dispatcher, config.UserID,
			config.StaleAfter, config.EscalationInterval),
		workers.NewTelemetryWorker(log, config.TelemetryInterval, userSession),
	)

	log.Info("Messaging engine started", "user", config.UserID)
	sup.Run(ctx)

	log.Info("Program stopped cleanly")
	return nil
}
