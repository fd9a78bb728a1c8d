package dialogue

// Decision is the response to one matched pattern. Reply is sent only when
// Outcome is nil; Secret replies are masked in transcripts and logs.
type Decision struct {
	Reply   string
	Secret  bool
	Outcome *Outcome
}

// Decide maps a matched action and the session's trigger history to the
// next step. It only mutates state and never touches the process.
func Decide(action Action, state *TriggerState, creds Credentials) Decision {
	switch action {
	case ActionHostKey:
		if state.Fired(ActionHostKey) {
			return fail(KindHostKeyProtocolViolation, "host key confirmation requested twice")
		}
		state.mark(ActionHostKey)
		return Decision{Reply: "yes"}

	case ActionPassword:
		if state.Fired(ActionPassword) {
			return fail(KindAuthRejected, "password refused")
		}
		state.mark(ActionPassword)
		return Decision{Reply: creds.Password, Secret: true}

	case ActionPermissionDenied:
		return fail(KindPermissionDenied, "permission denied")

	case ActionTerminalType:
		if state.Fired(ActionTerminalType) {
			return fail(KindHostKeyProtocolViolation, "terminal type requested twice")
		}
		state.mark(ActionTerminalType)
		return Decision{Reply: creds.TerminalType}

	case ActionTimeout:
		return fail(KindTimeout, "timeout")

	case ActionConnectionClosed:
		return fail(KindConnectionClosed, "connection closed")

	case ActionNoSuchFile:
		return fail(KindNoSuchFile, "No such file or directory")

	case ActionEOF:
		return Decision{Outcome: &Outcome{Kind: KindNone}}
	}
	return fail(KindHostKeyProtocolViolation, "unexpected dialogue action "+action.String())
}

func fail(kind FailureKind, msg string) Decision {
	return Decision{Outcome: &Outcome{Kind: kind, Message: msg}}
}
