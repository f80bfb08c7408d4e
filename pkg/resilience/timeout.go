package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Attempt bounds one call to an external dependency, such as a single Kafka
// publish of an index event. fn gets a context that expires after limit. If
// fn is still running then, Attempt returns without waiting for it and the
// error matches both apperrors.ErrTimeout and context.DeadlineExceeded.
// A limit of zero or less leaves fn unbounded.
func Attempt(ctx context.Context, op string, limit time.Duration, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- fn(attemptCtx)
	}()

	select {
	case err := <-result:
		// fn may notice its expired context before we do.
		if err == nil || attemptCtx.Err() == nil {
			return err
		}
	case <-attemptCtx.Done():
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	slog.Warn("attempt timed out", "op", op, "limit", limit)
	return fmt.Errorf("%s after %v: %w: %w", op, limit, apperrors.ErrTimeout, context.DeadlineExceeded)
}
