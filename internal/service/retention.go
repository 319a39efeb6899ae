package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"chatcore/internal/domain"
)

const tombstoneRetentionDays = 7

// RetentionSweeper periodically hard-deletes messages that were
// soft-deleted more than tombstoneRetentionDays ago. It is never started unless
// ENABLE_RETENTION_SWEEP is set.
type RetentionSweeper struct {
	store    domain.Store
	interval time.Duration
	log      *logrus.Entry
}

func NewRetentionSweeper(store domain.Store, interval time.Duration, log *logrus.Entry) *RetentionSweeper {
	return &RetentionSweeper{store: store, interval: interval, log: log}
}

// Run blocks, sweeping on every tick until ctx is cancelled.
func (s *RetentionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *RetentionSweeper) sweepOnce(ctx context.Context) {
	n, err := s.store.HardDeleteTombstonesOlderThan(ctx, tombstoneRetentionDays)
	if err != nil {
		s.log.WithError(err).Warn("retention sweep failed")
		return
	}
	if n > 0 {
		s.log.WithField("count", n).Info("retention sweep hard-deleted tombstoned messages")
	}
}
