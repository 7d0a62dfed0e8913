package service

import (
	"context"
	"time"

	"github.com/medflow/medpredict-backend/pkg/logger"
)

// Reloader is satisfied by *PredictionService.
type Reloader interface {
	Reload(ctx context.Context) (ReloadStatus, error)
}

// ReloadScheduler reloads the prediction snapshot periodically.
type ReloadScheduler struct {
	reloader Reloader
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewReloadScheduler creates a new reload scheduler. An interval of zero
// disables periodic reloads.
func NewReloadScheduler(reloader Reloader, interval time.Duration, log *logger.Logger) *ReloadScheduler {
	return &ReloadScheduler{
		reloader: reloader,
		interval: interval,
		logger:   log.WithComponent("reload-scheduler"),
	}
}

// Start starts the scheduler in a background goroutine. The initial load is
// the caller's job; the first tick fires one interval after Start.
func (s *ReloadScheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info().Msg("periodic reload disabled")
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Msg("reload scheduler started")

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("reload scheduler stopped")
				return
			case <-ticker.C:
				s.runReload(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine and waits for a running reload to finish
func (s *ReloadScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *ReloadScheduler) runReload(ctx context.Context) {
	status, err := s.reloader.Reload(ctx)
	if err != nil {
		// Reload already logged the failure
		s.logger.Debug().Uint64("active_version", status.Version).Msg("scheduled reload failed")
		return
	}
	s.logger.Debug().Uint64("version", status.Version).Msg("scheduled reload completed")
}
