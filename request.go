package pscp

import (
	"fmt"
	"time"

	"github.com/tenfyzhong/pscp/internal/command"
)

const (
	DefaultTerminalType = "ansi"
	DefaultTimeout      = 10 * time.Second
)

// Direction selects which side of the copy is remote.
type Direction = command.Direction

const (
	ToServerDirection   = command.ToServer
	FromServerDirection = command.FromServer
)

// Request describes one transfer. Build it with NewRequest to get the
// usual defaults (quiet, localhost host-key checking on).
type Request struct {
	Direction   Direction
	Source      string
	Destination string
	Server      string
	Username    string
	Password    string
	// Port 0 leaves the port to scp.
	Port         int
	IdentityFile string
	// TerminalType answers a "terminal type" prompt. Empty means "ansi".
	TerminalType string
	// Timeout bounds the wait for each prompt. Zero means 10s.
	Timeout        time.Duration
	Quiet          bool
	CheckLocalHost bool
}

// NewRequest returns a Request with Quiet and CheckLocalHost set.
func NewRequest(dir Direction, src, dst, server, username, password string) Request {
	return Request{
		Direction:      dir,
		Source:         src,
		Destination:    dst,
		Server:         server,
		Username:       username,
		Password:       password,
		TerminalType:   DefaultTerminalType,
		Timeout:        DefaultTimeout,
		Quiet:          true,
		CheckLocalHost: true,
	}
}

func (r Request) withDefaults() Request {
	if r.TerminalType == "" {
		r.TerminalType = DefaultTerminalType
	}
	if r.Timeout == 0 {
		r.Timeout = DefaultTimeout
	}
	return r
}

// Validate checks r before anything is spawned.
func (r Request) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
	}
	switch {
	case r.Source == "":
		return invalid("source is required")
	case r.Destination == "":
		return invalid("destination is required")
	case r.Server == "":
		return invalid("server is required")
	case r.Username == "":
		return invalid("username is required")
	case r.Direction != ToServerDirection && r.Direction != FromServerDirection:
		return invalid("unknown direction %d", int(r.Direction))
	case r.Port < 0 || r.Port > 65535:
		return invalid("port %d out of range", r.Port)
	case r.Timeout < 0:
		return invalid("timeout %s is negative", r.Timeout)
	}
	return nil
}

// String omits the password.
func (r Request) String() string {
	return fmt.Sprintf("Request{%s %s@%s, src=%s, dst=%s, port=%d}",
		r.Direction, r.Username, r.Server, r.Source, r.Destination, r.Port)
}

func (r Request) GoString() string { return "pscp." + r.String() }
