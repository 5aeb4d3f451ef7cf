package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabd/internal/crontab"
	"tabd/internal/executor"
	"tabd/internal/logger"
)

// fakeExecutor records launched jobs and optionally fails.
type fakeExecutor struct {
	mu       sync.Mutex
	launched []string
	fail     bool
	block    chan struct{} // when set, Launch waits until closed
}

func (f *fakeExecutor) Launch(ctx context.Context, job crontab.JobDefinition) (*executor.Handle, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, &executor.DispatchError{Job: job.Label(), Err: assert.AnError}
	}
	f.launched = append(f.launched, job.Command)
	return &executor.Handle{ID: "h", Job: job.Label(), Ref: "pid:1"}, nil
}

func (f *fakeExecutor) Close() error { return nil }

func (f *fakeExecutor) launchedCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.launched...)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func testJob(command string) crontab.JobDefinition {
	return crontab.JobDefinition{
		Identity: "u",
		Command:  command,
		Env:      map[string]string{},
		File:     "crontab",
		Line:     1,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not reached in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNewTask_CarriesJobLabel(t *testing.T) {
	job := testJob("/bin/one")

	first := newTask(job)
	second := newTask(job)

	assert.Contains(t, first.ID, "dispatch_crontab:1_")
	assert.NotEqual(t, first.ID, second.ID, "task ids must be distinct per submission")
	assert.Equal(t, job.Command, first.Job.Command)
}

func TestPool_DispatchesSubmittedJobs(t *testing.T) {
	exec := &fakeExecutor{}
	pool := NewPool(2, 8, exec, nil, testLogger(t))
	pool.Start()

	pool.Submit(testJob("/bin/one"))
	pool.Submit(testJob("/bin/two"))

	waitFor(t, func() bool { return len(exec.launchedCommands()) == 2 })
	pool.Stop()

	stats := pool.Stats()
	assert.Equal(t, uint64(2), stats.Submitted)
	assert.Equal(t, uint64(2), stats.Launched)
	assert.Equal(t, uint64(0), stats.Failed)
	assert.ElementsMatch(t, []string{"/bin/one", "/bin/two"}, exec.launchedCommands())
}

func TestPool_CountsFailedLaunches(t *testing.T) {
	exec := &fakeExecutor{fail: true}
	pool := NewPool(1, 4, exec, nil, testLogger(t))
	pool.Start()

	pool.Submit(testJob("/bin/doomed"))

	waitFor(t, func() bool { return pool.Stats().Failed == 1 })
	pool.Stop()

	stats := pool.Stats()
	assert.Equal(t, uint64(1), stats.Submitted)
	assert.Equal(t, uint64(0), stats.Launched)
}

func TestPool_DropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	exec := &fakeExecutor{block: block}
	pool := NewPool(1, 1, exec, nil, testLogger(t))
	pool.Start()

	// First submit occupies the single worker, second fills the queue,
	// third must be dropped rather than blocking.
	pool.Submit(testJob("/bin/a"))
	waitFor(t, func() bool { return pool.QueueSize() == 0 })
	pool.Submit(testJob("/bin/b"))
	pool.Submit(testJob("/bin/c"))

	stats := pool.Stats()
	assert.Equal(t, uint64(3), stats.Submitted)
	assert.Equal(t, uint64(1), stats.Dropped)

	close(block)
	pool.Stop()
}
