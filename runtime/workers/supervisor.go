package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"market-chat/contract"
	"market-chat/errors"
)

const (
	defaultRestartInterval = 200 * time.Millisecond
	maxRestartInterval     = 30 * time.Second
)

// Supervisor owns a context and a cancel function, runs each worker
// in a goroutine, recovers panics, and restarts crashed workers with
// exponential backoff: the delay doubles after every consecutive
// failure up to a cap and resets once a run survives past the current
// delay. A dropped stream worker therefore reconnects instead of
// staying down.
type Supervisor struct {
	Cancel   context.CancelFunc
	wg       *sync.WaitGroup
	log      *slog.Logger
	interval time.Duration
	workers  []contract.Worker
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	if restartInterval <= 0 {
		restartInterval = defaultRestartInterval
	}
	return &Supervisor{wg: &sync.WaitGroup{}, log: log, interval: restartInterval}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Run creates a local cancellation trigger tied to the parent ctx and
// blocks until every supervised goroutine has finished.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	defer s.Cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

// Start runs a worker under supervision. If its Run method panics,
// the supervisor recovers, waits out the backoff, and restarts it.
// A failure in one worker never stops the supervisor itself.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		delay := s.interval
		for {
			if ctx.Err() != nil {
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			started := time.Now()
			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = errors.ErrWorkerPanic
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				// Terminated properly, never restart.
				s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", workerName)
				return
			}

			if time.Since(started) > delay {
				// Survived past the previous backoff; start over.
				delay = s.interval
			}

			s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err, "backoff", delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			if delay < maxRestartInterval {
				delay *= 2
				if delay > maxRestartInterval {
					delay = maxRestartInterval
				}
			}
		}
	}()
}

// Stop cancels all supervised goroutines.
func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}
