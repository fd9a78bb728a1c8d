// Package command builds the scp argument vector for a transfer.
package command

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ErrInvalid is returned by Build for a spec that cannot produce a command.
var ErrInvalid = errors.New("command: invalid spec")

// DefaultProgram is used when Spec.Program is empty.
const DefaultProgram = "scp"

// Direction selects which side of the copy is remote.
type Direction int

const (
	// ToServer copies a local Source to Destination on the server.
	ToServer Direction = iota
	// FromServer copies Source on the server to a local Destination.
	FromServer
)

func (d Direction) String() string {
	switch d {
	case ToServer:
		return "to"
	case FromServer:
		return "from"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Spec is everything that shapes the command line.
type Spec struct {
	Program      string
	Server       string
	Username     string
	Source       string
	Destination  string
	Direction    Direction
	Port         int
	IdentityFile string
	// Options become -o key=value flags, in key order.
	Options        map[string]string
	ForcePassword  bool
	Quiet          bool
	CheckLocalHost bool
	// Logger receives [COMMAND] warnings. Nil means the standard logger.
	Logger *log.Entry
}

// Build returns argv for spec. The identity file is passed only when it
// exists as a regular file; otherwise it is skipped with a warning.
func Build(spec Spec) ([]string, error) {
	if err := validate(spec); err != nil {
		return nil, err
	}

	program := spec.Program
	if program == "" {
		program = DefaultProgram
	}
	argv := []string{program}

	keys := make([]string, 0, len(spec.Options))
	for k := range spec.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		argv = append(argv, "-o", k+"="+spec.Options[k])
	}

	if spec.Quiet {
		argv = append(argv, "-q")
	}
	if !spec.CheckLocalHost {
		argv = append(argv, "-o", "NoHostAuthenticationForLocalhost=yes")
	}
	if spec.ForcePassword {
		argv = append(argv, "-o", "RSAAuthentication=no", "-o", "PubkeyAuthentication=no")
	}
	if spec.Port != 0 {
		argv = append(argv, "-P", strconv.Itoa(spec.Port))
	}
	if spec.IdentityFile != "" {
		if usableIdentity(spec.IdentityFile) {
			argv = append(argv, "-i", spec.IdentityFile)
		} else {
			spec.logger().Warnf("[COMMAND] Identity file %s is not a regular file, skipping -i", spec.IdentityFile)
		}
	}

	remote := func(path string) string {
		return spec.Username + "@" + hostPart(spec.Server) + ":" + path
	}
	switch spec.Direction {
	case ToServer:
		argv = append(argv, spec.Source, remote(spec.Destination))
	case FromServer:
		argv = append(argv, remote(spec.Source), spec.Destination)
	}

	return argv, nil
}

func (s Spec) logger() *log.Entry {
	if s.Logger != nil {
		return s.Logger
	}
	return log.NewEntry(log.StandardLogger())
}

func validate(spec Spec) error {
	var missing []string
	for name, v := range map[string]string{
		"server":      spec.Server,
		"username":    spec.Username,
		"source":      spec.Source,
		"destination": spec.Destination,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}
	if spec.Direction != ToServer && spec.Direction != FromServer {
		return fmt.Errorf("%w: unknown direction %d", ErrInvalid, int(spec.Direction))
	}
	if spec.Port < 0 || spec.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, spec.Port)
	}
	for k := range spec.Options {
		if k == "" || strings.ContainsAny(k, "= \t\n") {
			return fmt.Errorf("%w: bad option name %q", ErrInvalid, k)
		}
	}
	return nil
}

func usableIdentity(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// hostPart brackets bare IPv6 addresses so the ':' separator stays
// unambiguous.
func hostPart(host string) string {
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		return "[" + host + "]"
	}
	return host
}

// String renders argv as a single shell-quoted line for logs.
func String(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		parts[i] = quote(a)
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("@%_-+=:,./[]", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
