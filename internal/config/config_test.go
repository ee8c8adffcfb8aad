package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
post_url: https://reports.example.com/api/v1/reports
hostname: web01
enabled_checks: [raid, disk_usage]
log_level: debug
raid:
  manager: megacli
  probe_timeout: 20
nfs:
  stale_timeout: 5
  concurrency: 2
smart:
  exec: /opt/smartmontools/sbin/smartctl
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://reports.example.com/api/v1/reports", cfg.PostURL)
	assert.Equal(t, "web01", cfg.Hostname)
	assert.Equal(t, []string{"raid", "disk_usage"}, cfg.EnabledChecks)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "megacli", cfg.RAID.Manager)
	assert.Equal(t, 20, cfg.RAID.ProbeTimeout)
	assert.Equal(t, 5, cfg.NFS.StaleTimeout)
	assert.Equal(t, 2, cfg.NFS.Concurrency)
	assert.Equal(t, "/opt/smartmontools/sbin/smartctl", cfg.Smart.Exec)
}

func TestLoadDefaults(t *testing.T) {
	// Point the search at an empty directory so no file is found.
	t.Setenv("HOME", t.TempDir())
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Empty(t, cfg.PostURL)
	assert.Equal(t, []string{"raid", "stale_nfs", "disk_usage", "smartctl"}, cfg.EnabledChecks)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10, cfg.NFS.StaleTimeout)
	assert.Equal(t, 30, cfg.Smart.Timeout)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "post_url: [unterminated\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "post_url: https://from-file.example.com\nraid:\n  manager: storcli\n")

	t.Setenv("CCBR_POST_URL", "https://from-env.example.com")
	t.Setenv("CCBR_RAID_MANAGER", "mdraid")
	t.Setenv("CCBR_NFS_STALE_TIMEOUT", "42")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://from-env.example.com", cfg.PostURL)
	assert.Equal(t, "mdraid", cfg.RAID.Manager)
	assert.Equal(t, 42, cfg.NFS.StaleTimeout)
}

func TestReportHostname(t *testing.T) {
	cfg := &Config{Hostname: "db03.internal.example.com"}
	assert.Equal(t, "db03.internal.example.com", cfg.ReportHostname())

	cfg = &Config{}
	osHostname, err := os.Hostname()
	require.NoError(t, err)
	short := cfg.ReportHostname()
	assert.NotEmpty(t, short)
	assert.Contains(t, osHostname, short)
	assert.NotContains(t, short, ".")
}

func TestCheckEnabled(t *testing.T) {
	cfg := &Config{EnabledChecks: []string{"raid", "smartctl"}}
	assert.True(t, cfg.CheckEnabled("raid"))
	assert.False(t, cfg.CheckEnabled("disk_usage"))
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 15*time.Second, Seconds(15, time.Minute))
	assert.Equal(t, time.Minute, Seconds(0, time.Minute))
	assert.Equal(t, time.Minute, Seconds(-1, time.Minute))
}
