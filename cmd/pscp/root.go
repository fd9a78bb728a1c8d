package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tenfyzhong/pscp"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// usageError marks bad flags or arguments.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...interface{}) error {
	return usageError{fmt.Errorf(format, args...)}
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "pscp",
		Short: "Copy files with scp, answering its login prompts",
		Long: `pscp runs scp on a pseudo-terminal and answers its prompts: unknown host
keys are accepted, the password or key passphrase is sent once and a
terminal type is supplied when asked. A repeated password prompt fails the
transfer instead of looping.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usagef("unknown command %q", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cmd.Help(); err != nil {
				return err
			}
			return usagef("a subcommand is required: to or from")
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default $HOME/.config/pscp/pscp.yaml)")
	pf.BoolP("verbose", "v", false, "log the dialogue at debug level")
	pf.StringP("host", "H", "", "remote host")
	pf.StringP("user", "u", "", "remote user")
	pf.IntP("port", "P", 0, "remote port")
	pf.StringP("identity", "i", "", "private key file")
	pf.String("password-env", "", "read the password from this environment variable")
	pf.StringArrayP("option", "o", nil, "ssh option key=value (repeatable)")
	pf.Bool("quiet", true, "pass -q to scp")
	pf.Bool("no-check-localhost", false, "skip host key checks for localhost")
	pf.Bool("force-password", false, "disable public key authentication")
	pf.Duration("timeout", 0, "wait for each prompt at most this long (default from config, 10s)")
	pf.String("terminal", "", "answer to a terminal type prompt (default from config, ansi)")
	pf.String("transcript", "", "write an asciinema transcript per transfer into this directory")
	pf.String("program", "", "scp binary (default from config, scp)")
	pf.Bool("progress", false, "show scp output while it runs")

	root.AddCommand(
		newTransferCmd(pscp.ToServerDirection, "to <local-src> <remote-dst>", "Copy a local file to the server"),
		newTransferCmd(pscp.FromServerDirection, "from <remote-src> <local-dst>", "Copy a file from the server"),
	)
	return root
}

// run executes the CLI and maps the result to an exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd(stdin, stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "pscp: %v\n", trimPrefix(err))
	return exitCode(err)
}

func exitCode(err error) int {
	var ue usageError
	if errors.As(err, &ue) || errors.Is(err, pscp.ErrInvalidRequest) {
		return exitUsage
	}
	return exitFailed
}

// trimPrefix keeps "pscp: pscp: ..." from appearing on stderr.
func trimPrefix(err error) string {
	msg := err.Error()
	const p = "pscp: "
	if len(msg) > len(p) && msg[:len(p)] == p {
		return msg[len(p):]
	}
	return msg
}
