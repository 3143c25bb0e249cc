package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/dispensing-api/pkg/logger"
	"github.com/jwalitptl/dispensing-api/pkg/repository"
)

// OutboxRetentionWorker deletes relayed events once they age past the retention window.
type OutboxRetentionWorker struct {
	repo          repository.OutboxRepository
	retentionDays int
	interval      time.Duration
	logger        *logger.Logger
	now           func() time.Time
}

func NewOutboxRetentionWorker(repo repository.OutboxRepository, retentionDays int, interval time.Duration, logger *logger.Logger) *OutboxRetentionWorker {
	return &OutboxRetentionWorker{
		repo:          repo,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger,
		now:           time.Now,
	}
}

func (w *OutboxRetentionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *OutboxRetentionWorker) cleanup(ctx context.Context) {
	cutoff := w.now().AddDate(0, 0, -w.retentionDays)
	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		w.logger.Error(err, "Failed to clean up outbox events")
		return
	}
	if rows > 0 {
		w.logger.Info("Cleaned up outbox events", "count", rows, "cutoff", cutoff)
	}
}
