package crontab

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest files are a structured alternative to table lines: a YAML
// document listing named jobs. They share the recurrence grammar and
// validation of the classic table.
//
//	jobs:
//	  - name: crawl-all
//	    schedule: "23 2 * * 0"
//	    user: dokku
//	    command: dokku --rm enter ftc-scrapers sh ./crawl_all.sh
//	    env:
//	      PATH: /usr/local/bin:/usr/bin:/bin

type manifestFile struct {
	Jobs []manifestJob `yaml:"jobs"`
}

type manifestJob struct {
	Name     string            `yaml:"name"`
	Schedule string            `yaml:"schedule"`
	User     string            `yaml:"user"`
	Command  string            `yaml:"command"`
	Env      map[string]string `yaml:"env"`
}

// LoadManifestDir parses every *.yaml / *.yml file in dir. Jobs inherit the
// default environment, overlaid with their own env mapping. Per-file and
// per-job problems are reported as ParseErrors; an unreadable directory is
// a ConfigError.
func LoadManifestDir(dir string) ([]JobDefinition, []ParseError, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, &ConfigError{Path: dir, Err: err}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var jobs []JobDefinition
	var perrs []ParseError
	for _, name := range names {
		path := filepath.Join(dir, name)
		fileJobs, filePerrs := loadManifestFile(path)
		jobs = append(jobs, fileJobs...)
		perrs = append(perrs, filePerrs...)
	}
	return jobs, perrs, nil
}

func loadManifestFile(path string) ([]JobDefinition, []ParseError) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []ParseError{{File: path, Err: err}}
	}

	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, []ParseError{{File: path, Err: err}}
	}

	var jobs []JobDefinition
	var perrs []ParseError
	for i, mj := range mf.Jobs {
		job, err := mj.toJob()
		if err != nil {
			perrs = append(perrs, ParseError{
				File: path,
				Text: mj.Name,
				Err:  fmt.Errorf("job %d (%s): %w", i, mj.Name, err),
			})
			continue
		}
		job.File = path
		jobs = append(jobs, job)
	}
	return jobs, perrs
}

func (mj manifestJob) toJob() (JobDefinition, error) {
	if mj.Name == "" {
		return JobDefinition{}, fmt.Errorf("missing name")
	}
	if mj.User == "" {
		return JobDefinition{}, fmt.Errorf("missing user")
	}
	if strings.TrimSpace(mj.Command) == "" {
		return JobDefinition{}, fmt.Errorf("missing command")
	}

	sched, err := fieldParser.Parse(mj.Schedule)
	if err != nil {
		return JobDefinition{}, fmt.Errorf("invalid recurrence %q: %w", mj.Schedule, err)
	}

	env := defaultEnviron()
	for k, v := range mj.Env {
		env[k] = v
	}

	return JobDefinition{
		Name:     mj.Name,
		Schedule: mj.Schedule,
		Identity: mj.User,
		Command:  strings.TrimSpace(mj.Command),
		Env:      env,
		sched:    sched,
	}, nil
}
