package tokensweeper

import (
	"context"
	"time"

	"github.com/nkiryanov/todo/internal/logger"
)

const defaultInterval = 10 * time.Minute

type tokenRepo interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Sweeper periodically removes expired ledger tokens
// Expiry is checked on every token use anyway, sweeping only keeps the table small
type Sweeper struct {
	interval time.Duration
	repo     tokenRepo
	logger   logger.Logger

	now func() time.Time
}

func New(interval time.Duration, repo tokenRepo, l logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Sweeper{
		interval: interval,
		repo:     repo,
		logger:   l,
		now:      time.Now,
	}
}

// Sweep runs until ctx is done, returned channel is closed after that
func (s *Sweeper) Sweep(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting token sweeper", "interval", s.interval)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Token sweeper stopped by context")
				return

			case <-ticker.C:
				s.sweepOnce(ctx)
			}
		}
	}()

	return idleStopped
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	deleted, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.Error("Failed to delete expired tokens", "error", err)
		return
	}

	if deleted > 0 {
		s.logger.Info("Expired tokens deleted", "count", deleted)
	}
}
