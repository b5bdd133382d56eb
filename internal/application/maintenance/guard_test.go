package maintenance

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membergate/internal/domain/opsflag"
	"membergate/internal/shared/errors"
	"membergate/internal/shared/logger"
)

type fakeFlagRepo struct {
	flags  map[string]*opsflag.OperationFlag
	setErr error
}

func newFakeFlagRepo() *fakeFlagRepo {
	return &fakeFlagRepo{flags: make(map[string]*opsflag.OperationFlag)}
}

func (f *fakeFlagRepo) GetFlag(ctx context.Context, name string) (*opsflag.OperationFlag, error) {
	flag, ok := f.flags[name]
	if !ok {
		return nil, errors.NewNotFoundError("flag not found")
	}
	return flag, nil
}

func (f *fakeFlagRepo) SetFlag(ctx context.Context, flag *opsflag.OperationFlag) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.flags[flag.Name()] = flag
	return nil
}

func TestRunOnceExecutesAndCompletes(t *testing.T) {
	flags := newFakeFlagRepo()
	guard := NewGuard(flags, logger.NewLogger())

	runs := 0
	affected, err := guard.RunOnce(context.Background(), "op", func(ctx context.Context) (int, error) {
		runs++
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, affected)
	assert.Equal(t, 1, runs)

	flag := flags.flags["op"]
	require.NotNil(t, flag)
	assert.True(t, flag.IsCompleted())
	assert.Equal(t, 7, flag.AffectedCount())
}

func TestRunOnceBlocksSecondExecution(t *testing.T) {
	flags := newFakeFlagRepo()
	guard := NewGuard(flags, logger.NewLogger())

	runs := 0
	op := func(ctx context.Context) (int, error) {
		runs++
		return 1, nil
	}

	_, err := guard.RunOnce(context.Background(), "op", op)
	require.NoError(t, err)

	_, err = guard.RunOnce(context.Background(), "op", op)
	assert.ErrorIs(t, err, opsflag.ErrAlreadyCompleted)
	assert.Equal(t, 1, runs)
}

func TestRunOnceLeavesInProgressOnTotalFailure(t *testing.T) {
	flags := newFakeFlagRepo()
	guard := NewGuard(flags, logger.NewLogger())

	boom := stderrors.New("provider unavailable")
	_, err := guard.RunOnce(context.Background(), "op", func(ctx context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)

	flag := flags.flags["op"]
	require.NotNil(t, flag)
	assert.Equal(t, opsflag.StateInProgress, flag.State())

	// The failed run can be retried.
	affected, err := guard.RunOnce(context.Background(), "op", func(ctx context.Context) (int, error) {
		return 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, affected)
	assert.True(t, flags.flags["op"].IsCompleted())
}

func TestScheduleAtRunsAfterDelay(t *testing.T) {
	flags := newFakeFlagRepo()
	guard := NewGuard(flags, logger.NewLogger())

	done := make(chan struct{})
	guard.ScheduleAt(time.Now().Add(10*time.Millisecond), "op", func(ctx context.Context) (int, error) {
		close(done)
		return 1, nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled operation never ran")
	}
}

func TestScheduleAtPastDeadlineRunsImmediately(t *testing.T) {
	flags := newFakeFlagRepo()
	guard := NewGuard(flags, logger.NewLogger())

	done := make(chan struct{})
	guard.ScheduleAt(time.Now().Add(-time.Hour), "op", func(ctx context.Context) (int, error) {
		close(done)
		return 1, nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled operation never ran")
	}
}

func TestScheduleAtCancelStopsPendingRun(t *testing.T) {
	flags := newFakeFlagRepo()
	guard := NewGuard(flags, logger.NewLogger())

	ran := make(chan struct{}, 1)
	cancel := guard.ScheduleAt(time.Now().Add(50*time.Millisecond), "op", func(ctx context.Context) (int, error) {
		ran <- struct{}{}
		return 1, nil
	})
	cancel()

	select {
	case <-ran:
		t.Fatal("canceled operation still ran")
	case <-time.After(150 * time.Millisecond):
	}
}
