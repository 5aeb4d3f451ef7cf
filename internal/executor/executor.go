// Package executor launches due jobs as external processes or containers.
// The scheduler hands a job over and moves on; nothing here reports back to
// it. Executors only observe completion to log the outcome.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tabd/internal/crontab"
)

// Executor launches a job's command under its identity and environment.
// Launch must not wait for the command to finish.
type Executor interface {
	Launch(ctx context.Context, job crontab.JobDefinition) (*Handle, error)
	Close() error
}

// Handle is the opaque receipt for one dispatched execution.
type Handle struct {
	ID        string    // unique execution id
	Job       string    // job label (manifest name or file:line)
	Identity  string    // user the command runs as
	Command   string    // the launched command line
	Ref       string    // executor-specific reference: "pid:N" or a container id
	StartedAt time.Time
}

func newHandle(job crontab.JobDefinition, ref string) *Handle {
	return &Handle{
		ID:        uuid.NewString(),
		Job:       job.Label(),
		Identity:  job.Identity,
		Command:   job.Command,
		Ref:       ref,
		StartedAt: time.Now(),
	}
}

// DispatchError means the executor failed to launch a job. The job is
// considered missed for that tick; the scheduler never retries it.
type DispatchError struct {
	Job string
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Job, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
