package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// StatsProvider exposes session counters for periodic reporting.
type StatsProvider interface {
	Stats() (unread, timelineLen, watches int)
}

// TelemetryWorker logs session and process health on an interval.
type TelemetryWorker struct {
	log      *slog.Logger
	interval time.Duration
	stats    StatsProvider
}

func NewTelemetryWorker(log *slog.Logger, interval time.Duration, stats StatsProvider) *TelemetryWorker {
	return &TelemetryWorker{log: log, interval: interval, stats: stats}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			unread, timelineLen, watches := w.stats.Stats()

			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)

			rss := uint64(0)
			cpu := float64(0)
			if memInfo, err := proc.MemoryInfo(); err == nil {
				rss = memInfo.RSS
			}
			if percent, err := proc.CPUPercent(); err == nil {
				cpu = percent
			}

			w.log.Info("Session telemetry",
				"unread", unread,
				"timeline", timelineLen,
				"watches", watches,
				"alloc_mb", mem.Alloc>>20,
				"rss_mb", rss>>20,
				"cpu_percent", cpu,
			)
		}
	}
}
