// Package logging configures logrus for the pscp binary.
package logging

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tenfyzhong/pscp/internal/config"
)

// New returns a logger configured from cfg. When cfg.File is set, output
// goes to that file with size-based rotation instead of stderr.
// The returned closer releases the log file; it is a no-op otherwise.
func New(cfg config.Log) (*log.Logger, io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: %w", err)
	}

	l := log.New()
	l.SetLevel(level)

	switch cfg.Format {
	case "json":
		l.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return nil, nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	if cfg.File == "" {
		l.SetOutput(os.Stderr)
		return l, nopCloser{}, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
	}
	l.SetOutput(rotator)
	return l, rotator, nil
}

// Install makes l the logger behind the package-level logrus functions used
// by internal packages that have no logger of their own.
func Install(l *log.Logger) {
	std := log.StandardLogger()
	std.SetLevel(l.GetLevel())
	std.SetFormatter(l.Formatter)
	std.SetOutput(l.Out)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
