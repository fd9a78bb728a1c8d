package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Run("loads default values when file does not exist", func(t *testing.T) {
		cfg, err := Load(filepath.Join(tmpDir, "missing.yaml"))

		require.NoError(t, err)
		assert.Equal(t, "scp", cfg.SCP.Program)
		assert.Equal(t, 10*time.Second, cfg.SCP.Timeout)
		assert.Equal(t, "ansi", cfg.SCP.TerminalType)
		assert.True(t, cfg.SCP.Quiet)
		assert.True(t, cfg.SCP.CheckLocalHost)
		assert.False(t, cfg.SCP.ForcePassword)
		assert.Empty(t, cfg.Store.DSN)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "text", cfg.Log.Format)
		assert.Equal(t, 10, cfg.Log.MaxSizeMB)
	})

	t.Run("loads values from YAML file", func(t *testing.T) {
		yamlContent := `
scp:
  program: /usr/local/bin/scp
  timeout: 30s
  terminal_type: vt100
  quiet: false
  force_password: true
  options:
    StrictHostKeyChecking: "no"
    UserKnownHostsFile: /dev/null
audit:
  transcript_dir: /var/log/pscp
log:
  level: debug
  format: json
`
		require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

		cfg, err := Load(configPath)

		require.NoError(t, err)
		assert.Equal(t, "/usr/local/bin/scp", cfg.SCP.Program)
		assert.Equal(t, 30*time.Second, cfg.SCP.Timeout)
		assert.Equal(t, "vt100", cfg.SCP.TerminalType)
		assert.False(t, cfg.SCP.Quiet)
		assert.True(t, cfg.SCP.ForcePassword)
		// viper lower-cases map keys; ssh option names are case-insensitive.
		assert.Equal(t, "no", cfg.SCP.Options["stricthostkeychecking"])
		assert.Equal(t, "/dev/null", cfg.SCP.Options["userknownhostsfile"])
		assert.Equal(t, "/var/log/pscp", cfg.Audit.TranscriptDir)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "json", cfg.Log.Format)
	})

	t.Run("environment variables override file values", func(t *testing.T) {
		yamlContent := `
scp:
  timeout: 30s
`
		require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

		t.Setenv("PSCP_SCP_TIMEOUT", "45s")
		t.Setenv("PSCP_SCP_QUIET", "false")
		t.Setenv("LOG_LEVEL", "warn")
		t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/pscp")

		cfg, err := Load(configPath)

		require.NoError(t, err)
		assert.Equal(t, 45*time.Second, cfg.SCP.Timeout)
		assert.False(t, cfg.SCP.Quiet)
		assert.Equal(t, "warn", cfg.Log.Level)
		assert.Equal(t, "postgres://u:p@db:5432/pscp", cfg.Store.DSN)
	})

	t.Run("returns error on invalid YAML", func(t *testing.T) {
		require.NoError(t, os.WriteFile(configPath, []byte("scp: program: [invalid yaml"), 0o644))

		_, err := Load(configPath)
		assert.Error(t, err)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		require.NoError(t, os.WriteFile(configPath, []byte("log:\n  format: xml\n"), 0o644))

		_, err := Load(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log.format")
	})
}

func TestValidate(t *testing.T) {
	valid := Config{
		SCP: SCP{Program: "scp", Timeout: time.Second, TerminalType: "ansi"},
		Log: Log{Format: "text"},
	}
	assert.NoError(t, valid.Validate())

	c := valid
	c.SCP.Program = ""
	assert.Error(t, c.Validate())

	c = valid
	c.SCP.Timeout = -time.Second
	assert.Error(t, c.Validate())

	c = valid
	c.SCP.TerminalType = ""
	assert.Error(t, c.Validate())
}
