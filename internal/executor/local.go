package executor

import (
	"context"
	"fmt"
	"os/exec"
	"os/user"
	"sort"
	"strconv"
	"syscall"

	"tabd/internal/constants"
	"tabd/internal/crontab"
	"tabd/internal/logger"
)

// Local spawns jobs as host processes via SHELL -c. When the daemon runs as
// root, jobs are started under their table identity; otherwise the identity
// must match the daemon's own user.
type Local struct {
	log *logger.Logger
}

func NewLocal(log *logger.Logger) *Local {
	return &Local{log: log}
}

func (l *Local) Launch(ctx context.Context, job crontab.JobDefinition) (*Handle, error) {
	shell := jobShell(job)
	cmd := exec.Command(shell, "-c", job.Command)
	cmd.Env = envSlice(job)

	cred, err := credentialFor(job.Identity)
	if err != nil {
		return nil, &DispatchError{Job: job.Label(), Err: err}
	}
	if cred != nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{Credential: cred}
	}

	if err := cmd.Start(); err != nil {
		return nil, &DispatchError{Job: job.Label(), Err: err}
	}

	handle := newHandle(job, fmt.Sprintf("pid:%d", cmd.Process.Pid))

	// Reap in the background so the process table stays clean. The exit
	// status is logged only; the scheduler has already moved on.
	go func() {
		if err := cmd.Wait(); err != nil {
			l.log.Warn("job exited with error",
				logger.Field{Key: "job", Value: handle.Job},
				logger.Field{Key: "ref", Value: handle.Ref},
				logger.Field{Key: "error", Value: err.Error()})
		} else {
			l.log.Debug("job exited",
				logger.Field{Key: "job", Value: handle.Job},
				logger.Field{Key: "ref", Value: handle.Ref})
		}
	}()

	return handle, nil
}

func (l *Local) Close() error { return nil }

// credentialFor resolves the identity to run as. Returns nil when the job
// should run as the daemon's own user.
func credentialFor(identity string) (*syscall.Credential, error) {
	current, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("resolve current user: %w", err)
	}
	if identity == current.Username {
		return nil, nil
	}
	if current.Uid != "0" {
		return nil, fmt.Errorf("cannot run as %q without root", identity)
	}

	u, err := user.Lookup(identity)
	if err != nil {
		return nil, fmt.Errorf("unknown user %q: %w", identity, err)
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid uid for %q: %w", identity, err)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid gid for %q: %w", identity, err)
	}
	return &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)}, nil
}

func jobShell(job crontab.JobDefinition) string {
	if shell := job.Env[constants.ShellVar]; shell != "" {
		return shell
	}
	return constants.DefaultShell
}

// envSlice flattens the job environment into NAME=value form, sorted for
// stable logs and tests.
func envSlice(job crontab.JobDefinition) []string {
	out := make([]string, 0, len(job.Env))
	for k, v := range job.Env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
