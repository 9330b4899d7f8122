package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockingRun(started, release chan struct{}) RunFunc {
	return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-release:
			return json.RawMessage(`"done"`), nil
		case <-ctx.Done():
			return nil, errors.New("job cancelled")
		}
	}
}

func TestQueue_Enqueue_RunsInFIFOOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	run := func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		mu.Lock()
		var id string
		_ = json.Unmarshal(input, &id)
		order = append(order, id)
		mu.Unlock()
		return json.RawMessage(`"ok"`), nil
	}

	q := NewQueue(1, "", run)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)
	defer q.Shutdown()

	a, _ := json.Marshal("a")
	b, _ := json.Marshal("b")
	c, _ := json.Marshal("c")
	q.Enqueue(a)
	q.Enqueue(b)
	q.Enqueue(c)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestQueue_MaxConcurrent_BoundsSimultaneousJobs(t *testing.T) {
	started := make(chan struct{}, 10)
	release := make(chan struct{})
	q := NewQueue(2, "", blockingRun(started, release))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)
	defer q.Shutdown()

	for i := 0; i < 5; i++ {
		q.Enqueue(json.RawMessage(`{}`))
	}

	require.Eventually(t, func() bool { return len(started) >= 2 }, 2*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	running := 0
	for _, j := range q.Status() {
		if j.Status == StatusRunning {
			running++
		}
	}
	assert.Equal(t, 2, running)

	close(release)
}

func TestQueue_Cancel_Queued_TransitionsSynchronously(t *testing.T) {
	started := make(chan struct{})
	blocker := func(c context.Context, in json.RawMessage) (json.RawMessage, error) {
		select {
		case <-started:
		default:
			close(started)
		}
		<-c.Done()
		return nil, errors.New("cancelled")
	}
	q := NewQueue(1, "", blocker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go q.Run(ctx)
	defer q.Shutdown()

	firstID := q.Enqueue(json.RawMessage(`{}`))
	<-started

	secondID := q.Enqueue(json.RawMessage(`{}`))
	ok := q.Cancel(secondID)
	require.True(t, ok)

	job, found := q.Get(secondID)
	require.True(t, found)
	assert.Equal(t, StatusCancelled, job.Status)
	assert.NotNil(t, job.FinishedAt)

	firstJob, _ := q.Get(firstID)
	assert.Equal(t, StatusRunning, firstJob.Status)
}

func TestQueue_Cancel_Running_SetsCooperativeCancelAndResultIsCancelled(t *testing.T) {
	q := NewQueue(1, "", func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, errors.New("job was cancelled")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)
	defer q.Shutdown()

	id := q.Enqueue(json.RawMessage(`{}`))
	require.Eventually(t, func() bool {
		j, _ := q.Get(id)
		return j.Status == StatusRunning
	}, 2*time.Second, 5*time.Millisecond)

	ok := q.Cancel(id)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		j, _ := q.Get(id)
		return j.Status == StatusCancelled
	}, 2*time.Second, 5*time.Millisecond)
}

func TestQueue_Cancel_UnknownID_ReturnsFalse(t *testing.T) {
	q := NewQueue(1, "", func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return nil, nil
	})
	assert.False(t, q.Cancel("nope"))
}

func TestQueue_ClearCompleted_RemovesOnlyTerminalJobs(t *testing.T) {
	q := NewQueue(1, "", func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"ok"`), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)
	defer q.Shutdown()

	done := q.Enqueue(json.RawMessage(`{}`))
	require.Eventually(t, func() bool {
		j, _ := q.Get(done)
		return j.Status == StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	removed := q.ClearCompleted()
	assert.Equal(t, 1, removed)
	assert.Empty(t, q.Status())
}

func TestQueue_Persist_WritesAtomicallyAndLoadRestoresState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.json")

	q := NewQueue(1, path, func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"ok"`), nil
	})
	id := q.Enqueue(json.RawMessage(`{"x":1}`))

	job, _ := q.Get(id)
	assert.Equal(t, StatusQueued, job.Status)

	loaded, err := Load(path, 1, func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return nil, nil
	})
	require.NoError(t, err)
	restored, ok := loaded.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusQueued, restored.Status)
}

func TestQueue_Load_RequeuesRunningJobsAsQueuedWithClearedStartTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.json")

	now := time.Now()
	persisted := []*Job{
		{ID: "job-1", Status: StatusRunning, EnqueuedAt: now, StartedAt: &now},
		{ID: "job-2", Status: StatusCompleted, EnqueuedAt: now, StartedAt: &now},
	}
	data, err := json.MarshalIndent(persisted, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	q, err := Load(path, 1, func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return nil, nil
	})
	require.NoError(t, err)

	restartedJob, ok := q.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, StatusQueued, restartedJob.Status)
	assert.Nil(t, restartedJob.StartedAt)

	untouchedJob, ok := q.Get("job-2")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, untouchedJob.Status)
}

func TestQueue_Load_MissingFile_ReturnsEmptyQueue(t *testing.T) {
	q, err := Load(filepath.Join(t.TempDir(), "missing.json"), 1, func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Empty(t, q.Status())
}
