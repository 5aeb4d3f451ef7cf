// Package scheduler drives the minute tick. It holds the current job table
// behind an atomic pointer, wakes at every minute boundary, enumerates the
// jobs due at that minute and hands them to the dispatch pool without
// waiting for completion. The table is replaced wholesale on reload; a
// reload that fails at runtime keeps the previous table in service.
package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"tabd/internal/config"
	"tabd/internal/crontab"
	"tabd/internal/logger"
	"tabd/internal/metrics"
)

// Submitter accepts jobs for asynchronous launch. Submit must not block.
type Submitter interface {
	Submit(job crontab.JobDefinition)
}

// Scheduler owns the job table and the tick loop.
type Scheduler struct {
	tablePath string
	jobsDir   string
	loc       *time.Location

	pool    Submitter
	metrics *metrics.Metrics
	log     *logger.Logger

	table atomic.Pointer[crontab.Table]

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a scheduler from the crontab section of the configuration.
// Call Load before Run to bring the initial table into service.
func New(cfg *config.Config, pool Submitter, m *metrics.Metrics, log *logger.Logger) *Scheduler {
	return &Scheduler{
		tablePath: cfg.Crontab.Path,
		jobsDir:   cfg.Crontab.JobsDir,
		loc:       cfg.Location(),
		pool:      pool,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// Load reads the job table from disk and installs it. Parse errors are
// logged per line and the affected entries skipped; an unreadable source is
// returned as an error and nothing is installed. Load is meant for startup,
// where an unreadable table is fatal.
func (s *Scheduler) Load() error {
	table, err := s.read()
	if err != nil {
		return err
	}
	s.install(table)
	return nil
}

// Reload replaces the table from disk. Unlike Load, an unreadable source is
// logged and the previous table stays in service. Safe to call from any
// goroutine; ticks observe either the old table or the new one, never a mix.
func (s *Scheduler) Reload() {
	table, err := s.read()
	if err != nil {
		s.log.Error("table reload failed, keeping previous table", err,
			logger.Field{Key: "path", Value: s.tablePath})
		return
	}
	s.install(table)
}

// Table returns the table currently in service. Nil before the first Load.
func (s *Scheduler) Table() *crontab.Table {
	return s.table.Load()
}

func (s *Scheduler) install(table *crontab.Table) {
	s.table.Store(table)
	if s.metrics != nil {
		s.metrics.RecordReload(len(table.Jobs))
	}
	s.log.Info("job table installed",
		logger.Field{Key: "jobs", Value: len(table.Jobs)},
		logger.Field{Key: "path", Value: s.tablePath})
}

// read loads the table file and, when configured, the manifest directory,
// and merges them into a single table.
func (s *Scheduler) read() (*crontab.Table, error) {
	table := &crontab.Table{Environ: map[string]string{}}

	if s.tablePath != "" {
		t, parseErrs, err := crontab.LoadFile(s.tablePath)
		if err != nil {
			return nil, err
		}
		s.reportParseErrors(parseErrs)
		table = t
	}

	if s.jobsDir != "" {
		jobs, parseErrs, err := crontab.LoadManifestDir(s.jobsDir)
		if err != nil {
			return nil, err
		}
		s.reportParseErrors(parseErrs)
		table.Jobs = append(table.Jobs, jobs...)
	}

	return table, nil
}

func (s *Scheduler) reportParseErrors(errs []crontab.ParseError) {
	for i := range errs {
		s.log.Warn("skipping malformed entry",
			logger.Field{Key: "file", Value: errs[i].File},
			logger.Field{Key: "line", Value: errs[i].Line},
			logger.Field{Key: "error", Value: errs[i].Err.Error()})
	}
	if s.metrics != nil && len(errs) > 0 {
		s.metrics.AddParseErrors(len(errs))
	}
}

// Run executes the tick loop until the context is cancelled. Each iteration
// sleeps to the next minute boundary in the configured location, then
// submits every due job. File changes under the table path or the manifest
// directory trigger a reload.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.table.Load() == nil {
		return fmt.Errorf("scheduler: Run called before Load")
	}

	watcher, err := s.watch()
	if err != nil {
		// The daemon still works without the watcher; SIGHUP reloads remain.
		s.log.Warn("file watch unavailable, reload on SIGHUP only",
			logger.Field{Key: "error", Value: err.Error()})
	} else {
		defer watcher.Close()
	}

	var events chan fsnotify.Event
	var watchErrs chan error
	if watcher != nil {
		events = watcher.Events
		watchErrs = watcher.Errors
	}

	s.log.Info("scheduler started",
		logger.Field{Key: "timezone", Value: s.loc.String()})

	timer := time.NewTimer(s.untilNextMinute())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil

		case <-timer.C:
			s.tick(s.now().In(s.loc))
			timer.Reset(s.untilNextMinute())

		case ev := <-events:
			if s.relevant(ev) {
				s.log.Info("table change detected",
					logger.Field{Key: "path", Value: ev.Name},
					logger.Field{Key: "op", Value: ev.Op.String()})
				s.Reload()
			}

		case werr := <-watchErrs:
			s.log.Warn("file watch error",
				logger.Field{Key: "error", Value: werr.Error()})
		}
	}
}

// tick submits every job due at the given instant. The instant is truncated
// to the minute, so a late wakeup within the same minute still activates the
// right set of jobs.
func (s *Scheduler) tick(at time.Time) {
	table := s.table.Load()
	due := table.Due(at)
	for i := range due {
		s.pool.Submit(due[i])
	}
	if len(due) > 0 {
		s.log.Debug("minute tick",
			logger.Field{Key: "at", Value: at.Truncate(time.Minute).Format(time.RFC3339)},
			logger.Field{Key: "due", Value: len(due)})
	}
}

func (s *Scheduler) untilNextMinute() time.Duration {
	now := s.now().In(s.loc)
	next := now.Truncate(time.Minute).Add(time.Minute)
	return next.Sub(now)
}

// watch sets up fsnotify on the directories containing the table sources.
// Watching the parent directory rather than the file itself survives the
// rename dance editors and atomic writers perform.
func (s *Scheduler) watch() (*fsnotify.Watcher, error) {
	if s.tablePath == "" && s.jobsDir == "" {
		return nil, fmt.Errorf("nothing to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if s.tablePath != "" {
		if err := watcher.Add(filepath.Dir(s.tablePath)); err != nil {
			watcher.Close()
			return nil, err
		}
	}
	if s.jobsDir != "" && s.jobsDir != filepath.Dir(s.tablePath) {
		if err := watcher.Add(s.jobsDir); err != nil {
			watcher.Close()
			return nil, err
		}
	}
	return watcher, nil
}

// relevant reports whether a watch event concerns the table file or a
// manifest. Directory watches see sibling files too, so filter by name.
func (s *Scheduler) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	if s.tablePath != "" && ev.Name == s.tablePath {
		return true
	}
	if s.jobsDir != "" && filepath.Dir(ev.Name) == filepath.Clean(s.jobsDir) {
		ext := filepath.Ext(ev.Name)
		return ext == ".yaml" || ext == ".yml"
	}
	return false
}
