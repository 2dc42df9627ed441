package history

import (
	"context"
	"time"
)

// Logger is the logging interface used by the retention loop.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// RunRetention prunes entries older than retention every interval until ctx
// is cancelled. It prunes once immediately. A non-positive retention or
// interval returns at once.
func RunRetention(ctx context.Context, repo Repository, retention, interval time.Duration, logger Logger) {
	if retention <= 0 || interval <= 0 {
		return
	}

	prune := func() {
		n, err := repo.Prune(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("pruning property history failed", "error", err)
			}
			return
		}
		if n > 0 {
			logger.Info("pruned property history", "deleted", n, "retention", retention.String())
		}
	}

	prune()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
