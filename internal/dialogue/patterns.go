package dialogue

import (
	"fmt"
	"regexp"

	"github.com/tenfyzhong/pscp/internal/expect"
)

// Action is what a matched prompt asks the dialogue to do.
type Action int

const (
	ActionHostKey Action = iota
	ActionPassword
	ActionPermissionDenied
	ActionTerminalType
	ActionTimeout
	ActionConnectionClosed
	ActionNoSuchFile
	ActionEOF
)

var actionNames = map[Action]string{
	ActionHostKey:          "host-key",
	ActionPassword:         "password",
	ActionPermissionDenied: "permission-denied",
	ActionTerminalType:     "terminal-type",
	ActionTimeout:          "timeout",
	ActionConnectionClosed: "connection-closed",
	ActionNoSuchFile:       "no-such-file",
	ActionEOF:              "eof",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Pattern ties a regexp or a sentinel to an Action. Ordinal is the
// pattern's position in its table and breaks ties between matches that
// start at the same offset.
type Pattern struct {
	Ordinal  int
	Regexp   *regexp.Regexp
	Sentinel expect.Sentinel
	Action   Action
}

func (p Pattern) expectPattern() expect.Pattern {
	if p.Regexp != nil {
		return expect.Regexp(p.Regexp)
	}
	return expect.Pattern{Sentinel: p.Sentinel}
}

func (p Pattern) String() string {
	return fmt.Sprintf("#%d %s -> %s", p.Ordinal, p.expectPattern(), p.Action)
}

var (
	reHostKey          = regexp.MustCompile(`(?i)are you sure you want to continue connecting`)
	rePassword         = regexp.MustCompile(`(?i)(?:password)|(?:passphrase for key)`)
	rePermissionDenied = regexp.MustCompile(`(?i)permission denied`)
	reTerminalType     = regexp.MustCompile(`(?i)terminal type`)
	reConnectionClosed = regexp.MustCompile(`(?i)connection closed by remote host`)
	reNoSuchFile       = regexp.MustCompile(`(?i)no such file or directory`)
)

// DefaultPatterns returns the scp login table in priority order. Each call
// returns a fresh slice.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Ordinal: 0, Regexp: reHostKey, Action: ActionHostKey},
		{Ordinal: 1, Regexp: rePassword, Action: ActionPassword},
		{Ordinal: 2, Regexp: rePermissionDenied, Action: ActionPermissionDenied},
		{Ordinal: 3, Regexp: reTerminalType, Action: ActionTerminalType},
		{Ordinal: 4, Sentinel: expect.SentinelTimeout, Action: ActionTimeout},
		{Ordinal: 5, Regexp: reConnectionClosed, Action: ActionConnectionClosed},
		{Ordinal: 6, Regexp: reNoSuchFile, Action: ActionNoSuchFile},
		{Ordinal: 7, Sentinel: expect.SentinelEOF, Action: ActionEOF},
	}
}
