package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
database:
  path: /tmp/consolidation-test.db
ledger:
  source: file
  file_path: /tmp/ledger.json
  organizations:
    - id: teelixir
      name: Teelixir
      exclude_terms: [shopify, amazon]
    - id: elevate
      name: Elevate Wholesale
      aliases: [elevate, kikai distribution]
reconcile:
  source_org: teelixir
  target_org: elevate
  auto_approve_threshold: 90
  period: "2024-03"
logger:
  format: json
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(writeConfig(t, sampleYAML), nil)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/consolidation-test.db", cfg.Database.Path)
	assert.Equal(t, LedgerSourceFile, cfg.Ledger.Source)
	require.Len(t, cfg.Ledger.Organizations, 2)
	assert.Equal(t, []string{"elevate", "kikai distribution"}, cfg.Ledger.Organizations[1].Aliases)
	assert.Equal(t, 90, cfg.Reconcile.AutoApproveThreshold)
	assert.Equal(t, 80, cfg.Reconcile.MatchThreshold)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	p, err := cfg.Reconcile.ResolvePeriod(time.Now())
	require.NoError(t, err)
	assert.Equal(t, "2024-03", p.Label())

	profiles := cfg.Profiles()
	assert.Equal(t, "Elevate Wholesale", profiles["elevate"].Name)
	assert.Equal(t, []string{"shopify", "amazon"}, profiles["teelixir"].ExcludeTerms)

	cc := cfg.ToContainerConfig()
	assert.Equal(t, 90, cc.Review.AutoApproveThreshold)
	assert.Equal(t, "/tmp/ledger.json", cc.Ledger.FilePath)
	assert.Len(t, cc.Profiles, 2)
	require.NoError(t, cc.Validate())
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	chdir(t, t.TempDir())

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("source-org", "", "")
	flags.Int("auto-approve-threshold", 95, "")
	flags.Bool("dry-run", false, "")
	require.NoError(t, flags.Parse([]string{"--source-org", "kikai", "--auto-approve-threshold", "99", "--dry-run"}))

	cfg, err := Load(writeConfig(t, sampleYAML), flags)
	require.NoError(t, err)
	assert.Equal(t, "kikai", cfg.Reconcile.SourceOrg)
	assert.Equal(t, 99, cfg.Reconcile.AutoApproveThreshold)
	assert.True(t, cfg.Reconcile.DryRun)

	profiles := cfg.Profiles()
	assert.Equal(t, "kikai", profiles["kikai"].Name)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TARGET_ORG", "elevate-nz")
	t.Setenv("RECONCILE_MATCH_THRESHOLD", "70")

	cfg, err := Load(writeConfig(t, sampleYAML), nil)
	require.NoError(t, err)
	assert.Equal(t, "elevate-nz", cfg.Reconcile.TargetOrg)
	assert.Equal(t, 70, cfg.Reconcile.MatchThreshold)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CONSOLIDATION_DB_PATH=/tmp/from-dotenv.db\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("CONSOLIDATION_DB_PATH") })

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-dotenv.db", cfg.Database.Path)
	assert.Equal(t, LedgerSourceSQLite, cfg.Ledger.Source)
}

func TestLoad_Invalid(t *testing.T) {
	chdir(t, t.TempDir())

	tests := []struct {
		name string
		yaml string
	}{
		{"threshold out of range", "reconcile:\n  auto_approve_threshold: 150\n"},
		{"unknown ledger source", "ledger:\n  source: api\n"},
		{"file source without path", "ledger:\n  source: file\n"},
		{"bad org id", "ledger:\n  organizations:\n    - id: 'has space'\n"},
		{"duplicate org", "ledger:\n  organizations:\n    - id: a\n    - id: a\n"},
		{"bad log format", "logger:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml), nil)
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestReconcileConfig_ValidatePair(t *testing.T) {
	assert.NoError(t, (&ReconcileConfig{SourceOrg: "a", TargetOrg: "b"}).ValidatePair())
	assert.Error(t, (&ReconcileConfig{SourceOrg: "a", TargetOrg: "a"}).ValidatePair())
	assert.Error(t, (&ReconcileConfig{SourceOrg: "", TargetOrg: "b"}).ValidatePair())
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir for Go < 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
