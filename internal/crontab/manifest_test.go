package crontab

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadManifestDir(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "scrapers.yaml", `jobs:
  - name: crawl-all
    schedule: "23 2 * * 0"
    user: dokku
    command: dokku --rm enter ftc-scrapers sh ./crawl_all.sh
    env:
      PATH: /usr/local/bin:/usr/bin:/bin
  - name: refresh-index
    schedule: "0 5 * * *"
    user: dokku
    command: dokku --rm enter ftc-scrapers sh ./refresh.sh
`)

	jobs, perrs, err := LoadManifestDir(dir)
	require.NoError(t, err)
	assert.Empty(t, perrs)
	require.Len(t, jobs, 2)

	crawl := jobs[0]
	assert.Equal(t, "crawl-all", crawl.Name)
	assert.Equal(t, "crawl-all", crawl.Label())
	assert.Equal(t, "dokku", crawl.Identity)
	assert.Equal(t, "/usr/local/bin:/usr/bin:/bin", crawl.Env["PATH"])
	// Defaults still present where the manifest did not override.
	assert.Equal(t, "/bin/sh", crawl.Env["SHELL"])

	// Manifest jobs share the recurrence semantics of table lines.
	sunday := time.Date(2023, 1, 8, 2, 23, 0, 0, time.UTC)
	assert.True(t, crawl.Matches(sunday))
	assert.False(t, crawl.Matches(sunday.Add(24*time.Hour)))
}

func TestLoadManifestDir_BadJobSkipped(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "jobs.yaml", `jobs:
  - name: bad
    schedule: "0 25 * * *"
    user: u
    command: cmd
  - name: good
    schedule: "0 1 * * *"
    user: u
    command: cmd
`)

	jobs, perrs, err := LoadManifestDir(dir)
	require.NoError(t, err)
	require.Len(t, perrs, 1)
	assert.Contains(t, perrs[0].Error(), "bad")
	require.Len(t, jobs, 1)
	assert.Equal(t, "good", jobs[0].Name)
}

func TestLoadManifestDir_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "README.txt", "not yaml")
	writeManifest(t, dir, "jobs.yml", `jobs:
  - name: only
    schedule: "* * * * *"
    user: u
    command: cmd
`)

	jobs, perrs, err := LoadManifestDir(dir)
	require.NoError(t, err)
	assert.Empty(t, perrs)
	assert.Len(t, jobs, 1)
}

func TestLoadManifestDir_MissingDirIsConfigError(t *testing.T) {
	_, _, err := LoadManifestDir(filepath.Join(t.TempDir(), "absent"))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
