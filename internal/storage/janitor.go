package storage

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/producthub/producthub/internal/metrics"
)

// Janitor periodically removes expired pending submissions
type Janitor struct {
	store    *PendingStore
	interval time.Duration
	logger   logrus.FieldLogger
}

// NewJanitor creates a janitor for store running every interval
func NewJanitor(store *PendingStore, interval time.Duration, logger logrus.FieldLogger) *Janitor {
	return &Janitor{
		store:    store,
		interval: interval,
		logger:   logger.WithField("component", "janitor"),
	}
}

// Run prunes until ctx is cancelled. A non-positive interval disables it.
func (j *Janitor) Run(ctx context.Context) {
	if j.interval <= 0 {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.pruneOnce(ctx)
		}
	}
}

func (j *Janitor) pruneOnce(ctx context.Context) {
	n, err := j.store.PruneExpired(ctx)
	if err != nil {
		j.logger.WithError(err).Warn("failed to prune pending submissions")
		return
	}
	if n > 0 {
		metrics.PendingPruned.Add(float64(n))
		j.logger.WithField("count", n).Info("pruned expired pending submissions")
	}
}
