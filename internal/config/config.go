package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all settings loaded from file and environment variables.
// Struct tags are used by the Viper mapstructure decoder.
type Config struct {
	SCP   SCP   `mapstructure:"scp"`
	Audit Audit `mapstructure:"audit"`
	Store Store `mapstructure:"store"`
	Log   Log   `mapstructure:"log"`
}

// SCP shapes every transfer the CLI starts. Flags override these.
type SCP struct {
	Program        string            `mapstructure:"program"`
	Timeout        time.Duration     `mapstructure:"timeout"`
	TerminalType   string            `mapstructure:"terminal_type"`
	Quiet          bool              `mapstructure:"quiet"`
	CheckLocalHost bool              `mapstructure:"check_localhost"`
	ForcePassword  bool              `mapstructure:"force_password"`
	Options        map[string]string `mapstructure:"options"` // ssh -o key=value
}

type Audit struct {
	// TranscriptDir enables .cast transcripts when non-empty.
	TranscriptDir string `mapstructure:"transcript_dir"`
}

type Store struct {
	// DSN enables transfer history in PostgreSQL when non-empty.
	DSN string `mapstructure:"dsn"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "text" or "json"
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Load reads configuration from configPath and lets PSCP_* environment
// variables override any value. An empty configPath looks for pscp.yaml in
// $HOME/.config/pscp and the working directory. A missing file is not an
// error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("pscp")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/pscp")
		}
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	v.SetEnvPrefix("PSCP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.BindEnv("store.dsn", "PSCP_STORE_DSN", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("config: bind env: %w", err)
	}
	if err := v.BindEnv("log.level", "PSCP_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("config: bind env: %w", err)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no transfer could run with.
func (c *Config) Validate() error {
	if c.SCP.Program == "" {
		return errors.New("config: scp.program is empty")
	}
	if c.SCP.Timeout < 0 {
		return fmt.Errorf("config: scp.timeout %s is negative", c.SCP.Timeout)
	}
	if c.SCP.TerminalType == "" {
		return errors.New("config: scp.terminal_type is empty")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format %q must be text or json", c.Log.Format)
	}
	return nil
}

// isNotFound returns true when err indicates the config file does not exist.
func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	var pathErr *os.PathError
	return errors.As(err, &pathErr) && os.IsNotExist(pathErr)
}

// setDefaults defines baseline values for all configuration parameters.
func setDefaults(v *viper.Viper) {
	v.SetDefault("scp.program", "scp")
	v.SetDefault("scp.timeout", 10*time.Second)
	v.SetDefault("scp.terminal_type", "ansi")
	v.SetDefault("scp.quiet", true)
	v.SetDefault("scp.check_localhost", true)
	v.SetDefault("scp.force_password", false)
	v.SetDefault("scp.options", map[string]string{})
	v.SetDefault("audit.transcript_dir", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
}
