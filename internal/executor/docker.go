package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/moby/moby/api/types/container"
	dockerclient "github.com/moby/moby/client"

	"tabd/internal/crontab"
	"tabd/internal/logger"
	"tabd/internal/retry"
)

// DockerConfig describes how job containers are created.
type DockerConfig struct {
	Image       string
	MemoryLimit string  // e.g. "256m"
	CPULimit    float64 // fraction of a CPU
	PidsLimit   int64
	SecurityOpt []string
}

// Docker runs each dispatched job in its own container: the job's command
// line under its shell, as the job's identity, with the job's environment.
// Containers are auto-removed; the executor does not track their exit.
type Docker struct {
	client *dockerclient.Client
	cfg    DockerConfig
	log    *logger.Logger
}

// NewDocker connects to the Docker daemon, retrying with backoff so a
// daemon that is still coming up at boot does not fail the scheduler.
func NewDocker(ctx context.Context, cfg DockerConfig, log *logger.Logger) (*Docker, error) {
	if cfg.Image == "" {
		return nil, fmt.Errorf("docker executor requires an image")
	}

	cli, err := dockerclient.New(dockerclient.WithAPIVersionNegotiation(), dockerclient.FromEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Docker daemon: %w", err)
	}

	err = retry.Do(ctx, func() error {
		_, pingErr := cli.Ping(ctx, dockerclient.PingOptions{NegotiateAPIVersion: true})
		return pingErr
	}, retry.Config{})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("Docker daemon not available: %w", err)
	}

	return &Docker{client: cli, cfg: cfg, log: log}, nil
}

func (d *Docker) Launch(ctx context.Context, job crontab.JobDefinition) (*Handle, error) {
	memoryLimit := parseMemory(d.cfg.MemoryLimit)
	if memoryLimit == 0 {
		memoryLimit = 256 * 1024 * 1024
	}
	cpuLimit := d.cfg.CPULimit
	if cpuLimit == 0 {
		cpuLimit = 1.0
	}
	pidsLimit := d.cfg.PidsLimit
	if pidsLimit == 0 {
		pidsLimit = 256
	}
	securityOpt := d.cfg.SecurityOpt
	if len(securityOpt) == 0 {
		securityOpt = []string{"no-new-privileges"}
	}

	result, err := d.client.ContainerCreate(ctx, dockerclient.ContainerCreateOptions{
		Image: d.cfg.Image,
		Config: &container.Config{
			Image: d.cfg.Image,
			User:  job.Identity,
			Env:   envSlice(job),
			Cmd:   []string{jobShell(job), "-c", job.Command},
		},
		HostConfig: &container.HostConfig{
			AutoRemove: true,
			Resources: container.Resources{
				Memory:    memoryLimit,
				NanoCPUs:  int64(cpuLimit * 1e9),
				PidsLimit: &pidsLimit,
			},
			SecurityOpt: securityOpt,
		},
	})
	if err != nil {
		return nil, &DispatchError{Job: job.Label(), Err: fmt.Errorf("create container: %w", err)}
	}

	if _, err := d.client.ContainerStart(ctx, result.ID, dockerclient.ContainerStartOptions{}); err != nil {
		return nil, &DispatchError{Job: job.Label(), Err: fmt.Errorf("start container %s: %w", result.ID, err)}
	}

	d.log.Debug("container started",
		logger.Field{Key: "job", Value: job.Label()},
		logger.Field{Key: "container_id", Value: result.ID})

	return newHandle(job, result.ID), nil
}

func (d *Docker) Close() error {
	return d.client.Close()
}

// parseMemory converts "256m"-style limits to bytes. Returns 0 on anything
// it cannot parse, letting the caller fall back to the default.
func parseMemory(s string) int64 {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0
	}

	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "g"):
		mult = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "g")
	case strings.HasSuffix(s, "m"):
		mult = 1024 * 1024
		s = strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "k"):
		mult = 1024
		s = strings.TrimSuffix(s, "k")
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n * mult
}
