package main

import (
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tenfyzhong/pscp"
	"github.com/tenfyzhong/pscp/internal/config"
	"github.com/tenfyzhong/pscp/internal/logging"
	"github.com/tenfyzhong/pscp/internal/store"
)

func newTransferCmd(dir pscp.Direction, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 2 {
				return usagef("expected source and destination, got %d argument(s)", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(cmd, dir, args[0], args[1])
		},
	}
}

func runTransfer(cmd *cobra.Command, dir pscp.Direction, src, dst string) error {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return usageError{err}
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return usageError{err}
	}
	defer closer.Close()
	logging.Install(logger)

	host, _ := flags.GetString("host")
	user, _ := flags.GetString("user")
	if host == "" || user == "" {
		return usagef("--host and --user are required")
	}

	password, err := readPassword(cmd, user, host)
	if err != nil {
		return err
	}

	req := pscp.NewRequest(dir, src, dst, host, user, password)
	req.Port, _ = flags.GetInt("port")
	req.IdentityFile, _ = flags.GetString("identity")
	req.TerminalType = cfg.SCP.TerminalType
	req.Timeout = cfg.SCP.Timeout
	req.Quiet = cfg.SCP.Quiet
	req.CheckLocalHost = cfg.SCP.CheckLocalHost

	client := &pscp.Client{
		Program:       cfg.SCP.Program,
		Options:       cfg.SCP.Options,
		ForcePassword: cfg.SCP.ForcePassword,
		TranscriptDir: cfg.Audit.TranscriptDir,
		Logger:        logger,
	}
	if progress, _ := flags.GetBool("progress"); progress {
		client.Mirror = cmd.OutOrStdout()
	}

	if cfg.Store.DSN != "" {
		hist, err := store.New(cmd.Context(), cfg.Store.DSN)
		if err != nil {
			logger.Warnf("[BOOT] Transfer history disabled: %v", err)
		} else {
			defer hist.Close()
			client.Store = hist
		}
	}

	logger.WithFields(log.Fields{"src": src, "dst": dst}).Debugf("[BOOT] %s", req)
	return client.Transfer(cmd.Context(), req)
}

// applyFlags overrides config values with flags the user set explicitly.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("program") {
		cfg.SCP.Program, _ = flags.GetString("program")
	}
	if flags.Changed("timeout") {
		cfg.SCP.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("terminal") {
		cfg.SCP.TerminalType, _ = flags.GetString("terminal")
	}
	if flags.Changed("quiet") {
		cfg.SCP.Quiet, _ = flags.GetBool("quiet")
	}
	if flags.Changed("no-check-localhost") {
		skip, _ := flags.GetBool("no-check-localhost")
		cfg.SCP.CheckLocalHost = !skip
	}
	if flags.Changed("force-password") {
		cfg.SCP.ForcePassword, _ = flags.GetBool("force-password")
	}
	if flags.Changed("transcript") {
		cfg.Audit.TranscriptDir, _ = flags.GetString("transcript")
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}

	opts, _ := flags.GetStringArray("option")
	if len(opts) > 0 && cfg.SCP.Options == nil {
		cfg.SCP.Options = make(map[string]string, len(opts))
	}
	for _, o := range opts {
		k, v, ok := strings.Cut(o, "=")
		if !ok || k == "" {
			return usagef("option %q is not key=value", o)
		}
		cfg.SCP.Options[k] = v
	}

	if err := cfg.Validate(); err != nil {
		return usageError{err}
	}
	return nil
}
