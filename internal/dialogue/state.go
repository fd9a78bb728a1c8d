package dialogue

import "fmt"

// FailureKind classifies how a dialogue ended. KindNone is success.
type FailureKind int

const (
	KindNone FailureKind = iota
	KindLaunchError
	KindHostKeyProtocolViolation
	KindAuthRejected
	KindPermissionDenied
	KindTimeout
	KindConnectionClosed
	KindNoSuchFile
)

var kindNames = map[FailureKind]string{
	KindNone:                     "Success",
	KindLaunchError:              "LaunchError",
	KindHostKeyProtocolViolation: "HostKeyProtocolViolation",
	KindAuthRejected:             "AuthRejected",
	KindPermissionDenied:         "PermissionDenied",
	KindTimeout:                  "Timeout",
	KindConnectionClosed:         "ConnectionClosed",
	KindNoSuchFile:               "NoSuchFile",
}

func (k FailureKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("FailureKind(%d)", int(k))
}

// Outcome is the terminal result of one dialogue. Text holds the output
// that triggered it.
type Outcome struct {
	Kind    FailureKind
	Message string
	Text    string
}

// Success reports whether the dialogue completed without a failure.
func (o Outcome) Success() bool { return o.Kind == KindNone }

func (o Outcome) String() string {
	if o.Success() {
		return "Success"
	}
	return fmt.Sprintf("%s: %s", o.Kind, o.Message)
}

// TriggerState records which prompts have already been answered in one
// session. Create one per session with NewTriggerState.
type TriggerState struct {
	fired map[Action]bool
}

// NewTriggerState returns a state with no prompt answered.
func NewTriggerState() *TriggerState {
	return &TriggerState{fired: make(map[Action]bool)}
}

// Fired reports whether a has been answered before.
func (s *TriggerState) Fired(a Action) bool {
	return s.fired[a]
}

func (s *TriggerState) mark(a Action) {
	s.fired[a] = true
}

// Credentials are the answers the dialogue may send. The password never
// appears in formatted output.
type Credentials struct {
	Password     string
	TerminalType string
}

func (c Credentials) String() string {
	pw := ""
	if c.Password != "" {
		pw = "***"
	}
	return fmt.Sprintf("Credentials{Password:%q, TerminalType:%q}", pw, c.TerminalType)
}

func (c Credentials) GoString() string {
	return "dialogue." + c.String()
}
