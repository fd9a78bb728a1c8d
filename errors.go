package pscp

import (
	"fmt"

	"github.com/tenfyzhong/pscp/internal/dialogue"
)

// Kind classifies a failed transfer.
type Kind int

const (
	KindLaunchError Kind = iota + 1
	KindHostKeyProtocolViolation
	KindAuthRejected
	KindPermissionDenied
	KindTimeout
	KindConnectionClosed
	KindNoSuchFile
	KindInvalidRequest
)

var kindNames = map[Kind]string{
	KindLaunchError:              "LaunchError",
	KindHostKeyProtocolViolation: "HostKeyProtocolViolation",
	KindAuthRejected:             "AuthRejected",
	KindPermissionDenied:         "PermissionDenied",
	KindTimeout:                  "Timeout",
	KindConnectionClosed:         "ConnectionClosed",
	KindNoSuchFile:               "NoSuchFile",
	KindInvalidRequest:           "InvalidRequest",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by Transfer for every failure. Text carries the output
// that triggered it, for diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Text    string
	// SessionID identifies the transcript and history row, when any.
	SessionID string
	Err       error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "pscp: " + e.Kind.String()
	}
	return fmt.Sprintf("pscp: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind, so
// errors.Is(err, ErrAuthRejected) works for any auth failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrLaunch                   = &Error{Kind: KindLaunchError}
	ErrHostKeyProtocolViolation = &Error{Kind: KindHostKeyProtocolViolation}
	ErrAuthRejected             = &Error{Kind: KindAuthRejected}
	ErrPermissionDenied         = &Error{Kind: KindPermissionDenied}
	ErrTimeout                  = &Error{Kind: KindTimeout}
	ErrConnectionClosed         = &Error{Kind: KindConnectionClosed}
	ErrNoSuchFile               = &Error{Kind: KindNoSuchFile}
	ErrInvalidRequest           = &Error{Kind: KindInvalidRequest}
)

var outcomeKinds = map[dialogue.FailureKind]Kind{
	dialogue.KindLaunchError:              KindLaunchError,
	dialogue.KindHostKeyProtocolViolation: KindHostKeyProtocolViolation,
	dialogue.KindAuthRejected:             KindAuthRejected,
	dialogue.KindPermissionDenied:         KindPermissionDenied,
	dialogue.KindTimeout:                  KindTimeout,
	dialogue.KindConnectionClosed:         KindConnectionClosed,
	dialogue.KindNoSuchFile:               KindNoSuchFile,
}

// fromOutcome converts a dialogue outcome; success maps to nil.
func fromOutcome(out dialogue.Outcome, sessionID string) error {
	if out.Success() {
		return nil
	}
	kind, ok := outcomeKinds[out.Kind]
	if !ok {
		kind = KindHostKeyProtocolViolation
	}
	return &Error{Kind: kind, Message: out.Message, Text: out.Text, SessionID: sessionID}
}
