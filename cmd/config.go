package main

import "time"

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	AttachmentDir  string `env:"ATTACHMENT_DIR,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`
	UserID         string `env:"USER_ID,required=true"`
	LimitMessages  *int   `env:"LIMIT_MESSAGES"`

	RestartInterval    time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	WatchInterval      time.Duration `env:"WATCH_INTERVAL,default=1m"`
	StaleAfter         time.Duration `env:"STALE_AFTER,default=2h"`
	EscalationInterval time.Duration `env:"ESCALATION_INTERVAL,default=5m"`
	TelemetryInterval  time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`
	AlertDedupWindow   time.Duration `env:"ALERT_DEDUP_WINDOW,default=1m"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	NotifyFrom   string `env:"NOTIFY_FROM,default=alerts@market-chat.local"`
	NotifyEmail  string `env:"NOTIFY_EMAIL"`
}
