package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupath/coursesync/internal/events"
	"github.com/edupath/coursesync/internal/storage/sqlite"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	store, err := sqlite.New(context.Background(), ":memory:", events.NewBus())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return New("site-1", store, slog.New(slog.DiscardHandler))
}

func TestExecutor_Run(t *testing.T) {
	e := newTestExecutor(t)

	result, err := e.Run(context.Background(), "glossary", UnitID(5, 7),
		func(ctx context.Context) (*Result, error) {
			return &Result{Updated: true, Warnings: []string{"one warning"}}, nil
		})

	require.NoError(t, err)
	assert.True(t, result.Updated)
	assert.Equal(t, []string{"one warning"}, result.Warnings)
}

func TestExecutor_ConcurrentCallersShareOneRun(t *testing.T) {
	e := newTestExecutor(t)

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	fn := func(ctx context.Context) (*Result, error) {
		calls.Add(1)
		close(started)
		<-release
		return &Result{Updated: true}, nil
	}

	const callers = 5
	results := make([]*Result, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = e.Run(context.Background(), "assign", "9#7", fn)
	}()

	<-started
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Run(context.Background(), "assign", "9#7", fn)
		}(i)
	}

	// Give the joiners time to attach to the in-flight run
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "the sync body must run exactly once")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		// All callers receive the identical result object
		assert.Same(t, results[0], results[i])
	}
}

func TestExecutor_DifferentUnitsRunIndependently(t *testing.T) {
	e := newTestExecutor(t)

	var calls atomic.Int32
	fn := func(ctx context.Context) (*Result, error) {
		calls.Add(1)
		return &Result{}, nil
	}

	_, err := e.Run(context.Background(), "assign", "9#7", fn)
	require.NoError(t, err)
	_, err = e.Run(context.Background(), "assign", "9#8", fn)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestExecutor_LockBlocksSync(t *testing.T) {
	e := newTestExecutor(t)

	require.NoError(t, e.Lock("glossary", "5#7"))

	_, err := e.Run(context.Background(), "glossary", "5#7",
		func(ctx context.Context) (*Result, error) {
			t.Fatal("sync body must not run while the unit is locked")
			return nil, nil
		})
	require.Error(t, err)
	assert.True(t, IsBlocked(err))

	var blocked *SyncBlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, "glossary", blocked.Component)
	assert.Equal(t, "5#7", blocked.UnitID)

	// A locked unit also rejects a second lock
	assert.True(t, IsBlocked(e.Lock("glossary", "5#7")))

	// Other units are unaffected
	_, err = e.Run(context.Background(), "glossary", "5#8",
		func(ctx context.Context) (*Result, error) { return &Result{}, nil })
	assert.NoError(t, err)

	e.Unlock("glossary", "5#7")
	_, err = e.Run(context.Background(), "glossary", "5#7",
		func(ctx context.Context) (*Result, error) { return &Result{}, nil })
	assert.NoError(t, err)
}

func TestExecutor_RunIfNeededSkipsRecentlySynced(t *testing.T) {
	e := newTestExecutor(t)

	var calls atomic.Int32
	fn := func(ctx context.Context) (*Result, error) {
		calls.Add(1)
		return &Result{Updated: true}, nil
	}

	// First run executes and stamps the unit
	result, err := e.RunIfNeeded(context.Background(), "assign", "9#7", 5*time.Minute, fn)
	require.NoError(t, err)
	assert.True(t, result.Updated)

	// Second run inside the interval is skipped
	result, err = e.RunIfNeeded(context.Background(), "assign", "9#7", 5*time.Minute, fn)
	require.NoError(t, err)
	assert.False(t, result.Updated)
	assert.Equal(t, int32(1), calls.Load())

	// Interval 0 forces the run (manual sync)
	_, err = e.RunIfNeeded(context.Background(), "assign", "9#7", 0, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestExecutor_FailedRunDoesNotStamp(t *testing.T) {
	e := newTestExecutor(t)

	boom := errors.New("remote unreachable")
	_, err := e.Run(context.Background(), "assign", "9#7",
		func(ctx context.Context) (*Result, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	// The failed run left no stamp, so the gated retry still runs
	var calls atomic.Int32
	_, err = e.RunIfNeeded(context.Background(), "assign", "9#7", time.Hour,
		func(ctx context.Context) (*Result, error) {
			calls.Add(1)
			return &Result{}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
