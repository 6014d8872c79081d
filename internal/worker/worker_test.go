package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() WorkerConfig {
	return WorkerConfig{QueueSize: 4, MaxTries: 3, JobTimeout: time.Second, RetryDelay: time.Millisecond}
}

func TestWorker_RunsRegisteredHandler(t *testing.T) {
	w := NewWorker(testConfig())
	t.Cleanup(w.Stop)

	var calls atomic.Int32
	w.RegisterHandler(JobTypeWarmQueries, func(ctx context.Context, job *Job) error {
		assert.NotEmpty(t, job.ID)
		calls.Add(1)
		return nil
	})

	w.Start(1)
	require.True(t, w.Enqueue(JobTypeWarmQueries))

	require.Eventually(t, func() bool { return w.Stats()["processed"].(int64) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWorker_CoalescesPendingJobs(t *testing.T) {
	w := NewWorker(testConfig())
	t.Cleanup(w.Stop)

	w.RegisterHandler(JobTypeWarmQueries, func(ctx context.Context, job *Job) error { return nil })

	assert.True(t, w.Enqueue(JobTypeWarmQueries))
	assert.False(t, w.Enqueue(JobTypeWarmQueries))
	assert.Equal(t, 1, w.Stats()["queued"])

	w.Start(1)
	require.Eventually(t, func() bool { return w.Stats()["processed"].(int64) == 1 }, time.Second, 5*time.Millisecond)

	// Once picked up, the type can be queued again.
	assert.True(t, w.Enqueue(JobTypeWarmQueries))
	require.Eventually(t, func() bool { return w.Stats()["processed"].(int64) == 2 }, time.Second, 5*time.Millisecond)
}

func TestWorker_RetriesThenFails(t *testing.T) {
	w := NewWorker(testConfig())
	t.Cleanup(w.Stop)

	var attempts atomic.Int32
	w.RegisterHandler(JobTypeWarmQueries, func(ctx context.Context, job *Job) error {
		attempts.Add(1)
		return errors.New("database unavailable")
	})

	w.Start(1)
	require.True(t, w.Enqueue(JobTypeWarmQueries))

	require.Eventually(t, func() bool { return w.Stats()["failed"].(int64) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, int64(2), w.Stats()["retried"])
	assert.Equal(t, int64(0), w.Stats()["processed"])
}

func TestWorker_RetrySucceeds(t *testing.T) {
	w := NewWorker(testConfig())
	t.Cleanup(w.Stop)

	var attempts atomic.Int32
	w.RegisterHandler(JobTypeWarmQueries, func(ctx context.Context, job *Job) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	w.Start(1)
	w.Enqueue(JobTypeWarmQueries)

	require.Eventually(t, func() bool { return w.Stats()["processed"].(int64) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), w.Stats()["failed"])
}

func TestWorker_UnknownJobTypeFails(t *testing.T) {
	w := NewWorker(testConfig())
	t.Cleanup(w.Stop)

	w.Start(1)
	w.Enqueue(JobType("unknown"))

	require.Eventually(t, func() bool { return w.Stats()["failed"].(int64) == 1 }, time.Second, 5*time.Millisecond)
}

func TestWorker_ScheduleEnqueuesRepeatedly(t *testing.T) {
	w := NewWorker(testConfig())
	t.Cleanup(w.Stop)

	w.RegisterHandler(JobTypeWarmQueries, func(ctx context.Context, job *Job) error { return nil })
	w.Start(1)
	w.Schedule(JobTypeWarmQueries, 5*time.Millisecond)

	require.Eventually(t, func() bool { return w.Stats()["processed"].(int64) >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestWorker_StopIsIdempotentAndRejectsNewJobs(t *testing.T) {
	w := NewWorker(WorkerConfig{})
	w.Start(2)

	w.Stop()
	w.Stop()

	assert.False(t, w.Enqueue(JobTypeWarmQueries))
}

func TestWorker_HandlerSeesCancellationOnStop(t *testing.T) {
	w := NewWorker(testConfig())

	started := make(chan struct{})
	w.RegisterHandler(JobTypeWarmQueries, func(ctx context.Context, job *Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	w.Start(1)
	w.Enqueue(JobTypeWarmQueries)
	<-started

	w.Stop()
	assert.Equal(t, int64(1), w.Stats()["failed"])
}
