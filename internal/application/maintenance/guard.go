package maintenance

import (
	"context"
	"fmt"
	"time"

	"membergate/internal/domain/opsflag"
	"membergate/internal/shared/errors"
	"membergate/internal/shared/goroutine"
	"membergate/internal/shared/logger"
)

// Operation is a guarded bulk operation. It returns the number of affected
// items; partial per-item failures are reported inside the operation and do
// not fail the run as a whole.
type Operation func(ctx context.Context) (int, error)

// Guard wraps bulk operations in a persisted at-most-once flag. A completed
// flag blocks re-execution permanently; an in_progress flag left behind by a
// crashed run does not block a retry, since every guarded operation is
// written to be idempotent per item.
type Guard struct {
	flags  opsflag.Repository
	logger logger.Interface
}

// NewGuard creates a new operation guard.
func NewGuard(flags opsflag.Repository, log logger.Interface) *Guard {
	return &Guard{flags: flags, logger: log}
}

// RunOnce executes op under the named flag. Returns ErrAlreadyCompleted
// without running when the flag is already completed. A total failure of op
// leaves the flag in_progress so the operation can be retried.
func (g *Guard) RunOnce(ctx context.Context, name string, op Operation) (int, error) {
	existing, err := g.flags.GetFlag(ctx, name)
	if err != nil && !errors.IsNotFoundError(err) {
		return 0, fmt.Errorf("failed to read operation flag %s: %w", name, err)
	}

	if existing != nil && existing.IsCompleted() {
		g.logger.Infow("operation already completed, skipping",
			"operation", name,
			"completed_at", existing.CompletedAt(),
			"affected", existing.AffectedCount())
		return 0, opsflag.ErrAlreadyCompleted
	}

	flag := existing
	if flag == nil {
		flag, err = opsflag.NewOperationFlag(name)
		if err != nil {
			return 0, err
		}
		if err := g.flags.SetFlag(ctx, flag); err != nil {
			return 0, fmt.Errorf("failed to mark operation in progress: %w", err)
		}
	} else {
		g.logger.Warnw("resuming operation left in progress", "operation", name)
	}

	g.logger.Infow("running guarded operation", "operation", name)
	affected, err := op(ctx)
	if err != nil {
		// Flag stays in_progress so the operation can be retried.
		g.logger.Errorw("guarded operation failed",
			"operation", name,
			"error", err)
		return affected, err
	}

	if err := flag.Complete(affected); err != nil {
		return affected, err
	}
	if err := g.flags.SetFlag(ctx, flag); err != nil {
		return affected, fmt.Errorf("failed to mark operation completed: %w", err)
	}

	g.logger.Infow("guarded operation completed",
		"operation", name,
		"affected", affected)
	return affected, nil
}

// ScheduleAt arranges for op to run once at the given instant, or immediately
// when the instant is already past. The returned cancel func stops a pending
// timer; it does not interrupt a run already started.
func (g *Guard) ScheduleAt(at time.Time, name string, op Operation) (cancel func()) {
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	g.logger.Infow("operation scheduled",
		"operation", name,
		"at", at,
		"delay", delay)

	timer := time.AfterFunc(delay, func() {
		goroutine.SafeGo(g.logger, "guarded-"+name, func() {
			ctx, cancelCtx := context.WithTimeout(context.Background(), time.Hour)
			defer cancelCtx()
			if _, err := g.RunOnce(ctx, name, op); err != nil && err != opsflag.ErrAlreadyCompleted {
				g.logger.Errorw("scheduled operation failed",
					"operation", name,
					"error", err)
			}
		})
	})
	return func() { timer.Stop() }
}
