package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassword takes the password from --password-env, from the terminal
// with echo off, or as one line from a piped stdin, in that order.
func readPassword(cmd *cobra.Command, user, host string) (string, error) {
	if name, _ := cmd.Flags().GetString("password-env"); name != "" {
		pw, ok := os.LookupEnv(name)
		if !ok {
			return "", usagef("environment variable %s is not set", name)
		}
		return pw, nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s@%s's password: ", user, host)
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
