package crontab

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// JobDefinition is one scheduled entry: a five-field recurrence, the user to
// run as, the literal command line, and the environment handed to the
// executor. Definitions are immutable once loaded; a reload builds a fresh
// table rather than mutating jobs in place.
type JobDefinition struct {
	Name     string            // manifest job name; empty for table lines
	Schedule string            // raw recurrence, e.g. "23 2 * * 0"
	Identity string            // execution user
	Command  string            // literal command line
	Env      map[string]string // environment applied at dispatch

	File string // source file for diagnostics
	Line int    // 1-based table line; 0 for manifest jobs

	sched cron.Schedule
}

// Label identifies the job in logs: the manifest name when present,
// otherwise file:line.
func (j *JobDefinition) Label() string {
	if j.Name != "" {
		return j.Name
	}
	return fmt.Sprintf("%s:%d", j.File, j.Line)
}

// Matches reports whether the recurrence fires at the given wall-clock
// instant, at minute resolution. The standard day-field convention is
// preserved exactly: minute, hour and month must match, and when both
// day-of-month and day-of-week are restricted the job fires if EITHER
// matches; if one of them is a wildcard only the other is consulted.
func (j *JobDefinition) Matches(at time.Time) bool {
	minute := at.Truncate(time.Minute)
	return j.sched.Next(minute.Add(-time.Second)).Equal(minute)
}

// Next returns the first activation strictly after the given instant.
func (j *JobDefinition) Next(after time.Time) time.Time {
	return j.sched.Next(after)
}

// Table is an immutable, ordered set of job definitions together with the
// table-level environment in effect at the end of the file.
type Table struct {
	Jobs    []JobDefinition
	Environ map[string]string
}

// Due returns every job whose recurrence matches the given instant. It is
// read-only and idempotent: calling it twice with the same instant yields
// the same result.
func (t *Table) Due(at time.Time) []JobDefinition {
	var due []JobDefinition
	for i := range t.Jobs {
		if t.Jobs[i].Matches(at) {
			due = append(due, t.Jobs[i])
		}
	}
	return due
}
