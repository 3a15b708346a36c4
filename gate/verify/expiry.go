package verify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/gatekeeper/core/logger"
)

// ExpireStale declines and forgets challenges older than the configured TTL.
// Entries whose decline fails stay pending and are retried on the next call.
func (e *Engine) ExpireStale(ctx context.Context) (int, error) {
	ttl := e.cfg.PendingTTL
	if ttl <= 0 {
		return 0, nil
	}
	cutoff := e.now().Add(-ttl)

	var (
		expired int
		errs    []error
	)
	for _, userID := range e.store.IssuedBefore(cutoff) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		unlock := e.store.Lock(userID)
		st, ok := e.store.Get(userID)
		// Resolved or superseded since the scan.
		if !ok || !st.IssuedAt.Before(cutoff) {
			unlock()
			continue
		}
		if err := e.gw.Decline(ctx, st.ChatID, st.UserID); err != nil {
			unlock()
			errs = append(errs, gatewayErr("decline", err))
			continue
		}
		e.store.Remove(userID)
		unlock()

		expired++
		e.record(ctx, st, OutcomeExpired)
		logger.Info(ctx, component, "pending.expired",
			slog.Int64("chat_id", st.ChatID),
			slog.Int64("user_id", st.UserID),
			slog.Duration("age", e.now().Sub(st.IssuedAt)),
		)
	}
	return expired, errors.Join(errs...)
}

// RunExpiry calls ExpireStale every interval until ctx is done.
// It returns immediately when no TTL is configured.
func (e *Engine) RunExpiry(ctx context.Context) error {
	if e.cfg.PendingTTL <= 0 || e.cfg.SweepInterval <= 0 {
		return nil
	}
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			start := time.Now()
			n, err := e.ExpireStale(ctx)
			if err != nil && ctx.Err() == nil {
				logger.Warn(ctx, component, "pending.sweep",
					slog.String("status", "fail"),
					slog.Int("count", n),
					slog.String("err", err.Error()),
					slog.Duration("duration", logger.Took(start)),
				)
				continue
			}
			if n > 0 {
				logger.Info(ctx, component, "pending.sweep",
					slog.String("status", "ok"),
					slog.Int("count", n),
					slog.Int("pending_count", e.store.Len()),
					slog.Duration("duration", logger.Took(start)),
				)
			}
		}
	}
}
