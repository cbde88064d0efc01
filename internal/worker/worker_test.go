package worker

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/cuongbtq/fetch-archiver/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForTerminal polls the registry until the job leaves processing
func waitForTerminal(t *testing.T, env *testEnv, jobID string, deadline time.Duration) domain.Job {
	t.Helper()

	var job domain.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = env.registry.Get(jobID)
		return err == nil && job.Status.IsTerminal()
	}, deadline, 10*time.Millisecond, "job %s did not finish in time", jobID)
	return job
}

func newTestWorker(env *testEnv, concurrency, queueSize int) *Worker {
	return NewWorker(&Config{
		Logger:      slog.New(slog.DiscardHandler),
		Runner:      env.runner,
		WorkerID:    "test",
		Concurrency: concurrency,
		QueueSize:   queueSize,
	})
}

func TestWorker_ProcessesJobsConcurrently(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{files: map[string]string{"a.jpg": "data"}})
	w := newTestWorker(env, 4, 16)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	ids := make([]string, 8)
	for i := range ids {
		ids[i] = fmt.Sprintf("job-%d", i)
		env.submit(t, ids[i], "alice", domain.JobTypeImages)
		require.NoError(t, w.Enqueue(context.Background(), ids[i]))
	}

	for _, id := range ids {
		job := waitForTerminal(t, env, id, 5*time.Second)
		assert.Equal(t, domain.JobStatusCompleted, job.Status)
	}

	assert.Eventually(t, func() bool {
		return w.Stats()["completed_jobs"] == int64(len(ids))
	}, time.Second, 10*time.Millisecond)
}

func TestWorker_QueueFullFailsJobImmediately(t *testing.T) {
	f := &fakeFetcher{block: make(chan struct{})}
	env := newTestEnv(t, f)
	w := newTestWorker(env, 1, 1)
	require.NoError(t, w.Start(context.Background()))

	env.submit(t, "running", "alice", domain.JobTypeImages)
	require.NoError(t, w.Enqueue(context.Background(), "running"))
	require.Eventually(t, func() bool { return w.Stats()["active_jobs"] == 1 }, time.Second, 5*time.Millisecond)

	env.submit(t, "queued", "alice", domain.JobTypeImages)
	require.NoError(t, w.Enqueue(context.Background(), "queued"))

	env.submit(t, "overflow", "alice", domain.JobTypeImages)
	err := w.Enqueue(context.Background(), "overflow")
	assert.ErrorIs(t, err, domain.ErrQueueFull)

	job := env.get(t, "overflow")
	assert.Equal(t, domain.JobStatusError, job.Status)
	assert.Contains(t, job.ErrorDetail, "job queue is full")

	close(f.block)
	assert.Equal(t, domain.JobStatusError, waitForTerminal(t, env, "running", 5*time.Second).Status)
	assert.Equal(t, domain.JobStatusError, waitForTerminal(t, env, "queued", 5*time.Second).Status)
	require.NoError(t, w.Stop(context.Background()))
}

func TestWorker_StopFailsQueuedJobs(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{})
	w := newTestWorker(env, 1, 4)

	// never started: everything queued is drained on Stop
	for _, id := range []string{"a", "b"} {
		env.submit(t, id, "alice", domain.JobTypeImages)
		require.NoError(t, w.Enqueue(context.Background(), id))
	}

	require.NoError(t, w.Stop(context.Background()))

	for _, id := range []string{"a", "b"} {
		job := env.get(t, id)
		assert.Equal(t, domain.JobStatusError, job.Status)
		assert.Equal(t, "service is shutting down", job.ErrorDetail)
	}

	env.submit(t, "late", "alice", domain.JobTypeImages)
	assert.ErrorIs(t, w.Enqueue(context.Background(), "late"), ErrWorkerStopped)
	assert.Equal(t, domain.JobStatusError, env.get(t, "late").Status)
}

func TestWorker_StopTimeoutCancelsRunningJobs(t *testing.T) {
	f := &fakeFetcher{block: make(chan struct{})}
	env := newTestEnv(t, f)
	w := newTestWorker(env, 1, 1)
	require.NoError(t, w.Start(context.Background()))

	env.submit(t, "stuck", "alice", domain.JobTypeImages)
	require.NoError(t, w.Enqueue(context.Background(), "stuck"))
	require.Eventually(t, func() bool { return w.Stats()["active_jobs"] == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Stop(ctx), context.DeadlineExceeded)

	job := env.get(t, "stuck")
	assert.Equal(t, domain.JobStatusError, job.Status)
	assert.Equal(t, context.Canceled.Error(), job.ErrorDetail)
}

func TestWorker_StartTwice(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{})
	w := newTestWorker(env, 1, 1)
	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))
	require.NoError(t, w.Stop(context.Background()))
}

func TestWorker_SlowRejectDoesNotBlockStop(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{})
	env.publisher.block = make(chan struct{})
	defer close(env.publisher.block)

	// never started and no buffer, so the enqueue is rejected
	w := newTestWorker(env, 1, 0)
	env.submit(t, "overflow", "alice", domain.JobTypeImages)

	rejected := make(chan error, 1)
	go func() { rejected <- w.Enqueue(context.Background(), "overflow") }()

	// the rejection is now stuck publishing its event
	require.Eventually(t, func() bool {
		job, err := env.registry.Get("overflow")
		return err == nil && job.Status == domain.JobStatusError
	}, time.Second, 5*time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- w.Stop(context.Background()) }()

	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop waited for a rejected job's event")
	}

	select {
	case err := <-rejected:
		t.Fatalf("Enqueue returned before its event was published: %v", err)
	default:
	}
}
