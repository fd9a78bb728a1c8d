package dialogue

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tenfyzhong/pscp/internal/expect"
	"github.com/tenfyzhong/pscp/internal/models"
)

// Machine drives a login dialogue to its outcome. The zero value is not
// usable; create one with NewMachine.
type Machine struct {
	patterns []Pattern
	logger   *log.Entry
}

// NewMachine returns a Machine using patterns, or DefaultPatterns when
// patterns is empty.
func NewMachine(logger *log.Entry, patterns ...Pattern) *Machine {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	return &Machine{patterns: patterns, logger: logger}
}

// Run is NewMachine(nil).Run.
func Run(ctx context.Context, proc models.Controllable, m *expect.Matcher, creds Credentials, timeout time.Duration) Outcome {
	return NewMachine(nil).Run(ctx, proc, m, creds, timeout)
}

// Run answers prompts read through m until a terminal outcome is reached.
// Every Expect call waits at most timeout. proc is terminated before Run
// returns, whatever the outcome.
//
// Cancelling ctx terminates proc at once and yields KindTimeout.
func (mc *Machine) Run(ctx context.Context, proc models.Controllable, m *expect.Matcher, creds Credentials, timeout time.Duration) Outcome {
	out := mc.loop(ctx, proc, m, creds, timeout)

	if err := proc.Terminate(); err != nil {
		mc.logger.Warnf("[DIALOGUE] Terminate: %v", err)
	}
	if out.Success() {
		mc.logger.Info("[DIALOGUE] Completed")
	} else {
		mc.logger.Warnf("[DIALOGUE] Failed: %s", out)
	}
	return out
}

func (mc *Machine) loop(ctx context.Context, proc models.Controllable, m *expect.Matcher, creds Credentials, timeout time.Duration) Outcome {
	// A blocked read only returns once the child goes away, so cancellation
	// terminates it from here.
	stop := context.AfterFunc(ctx, func() {
		if err := proc.Terminate(); err != nil {
			mc.logger.Debugf("[DIALOGUE] Terminate on cancel: %v", err)
		}
	})
	defer stop()

	patterns := make([]expect.Pattern, len(mc.patterns))
	for i, p := range mc.patterns {
		patterns[i] = p.expectPattern()
	}

	state := NewTriggerState()
	for {
		if err := ctx.Err(); err != nil {
			return cancelled(err, m.Buffer())
		}

		deadline := time.Now().Add(timeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}

		res := m.Expect(patterns, deadline)
		if err := ctx.Err(); err != nil {
			return cancelled(err, res.Before+res.Text)
		}

		text := res.Before + res.Text
		if res.Kind == expect.StreamEnded && res.Err != nil {
			return Outcome{
				Kind:    KindConnectionClosed,
				Message: fmt.Sprintf("read from child: %v", res.Err),
				Text:    text,
			}
		}
		if res.Index < 0 {
			return unarmed(res, text)
		}

		pat := mc.patterns[res.Index]
		mc.logger.Debugf("[DIALOGUE] Matched %s", pat)

		d := Decide(pat.Action, state, creds)
		if d.Outcome != nil {
			out := *d.Outcome
			out.Text = text
			return out
		}

		var err error
		if d.Secret {
			err = proc.WriteSecretLine(d.Reply)
			mc.logger.Debugf("[DIALOGUE] Sent *** masked *** for %s", pat.Action)
		} else {
			err = proc.WriteLine(d.Reply)
			mc.logger.Debugf("[DIALOGUE] Sent %q for %s", d.Reply, pat.Action)
		}
		if err != nil {
			return Outcome{
				Kind:    KindConnectionClosed,
				Message: fmt.Sprintf("reply to %s: %v", pat.Action, err),
				Text:    text,
			}
		}
	}
}

func cancelled(err error, text string) Outcome {
	return Outcome{Kind: KindTimeout, Message: "cancelled: " + err.Error(), Text: text}
}

// unarmed handles a timeout or stream end when the table has no sentinel
// for it.
func unarmed(res expect.Result, text string) Outcome {
	if res.Kind == expect.TimedOut {
		return Outcome{Kind: KindTimeout, Message: "timeout", Text: text}
	}
	return Outcome{Kind: KindConnectionClosed, Message: "stream ended before any expected prompt", Text: text}
}
