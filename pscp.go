// Package pscp drives an interactive scp through its login dialogue.
//
// scp is started on a pseudo-terminal so it behaves exactly as it would for
// a person: it asks to confirm unknown host keys, asks for the password or
// key passphrase and sometimes for a terminal type. pscp answers each
// prompt once. A prompt that comes back means the answer was wrong, and the
// transfer fails with a typed *Error instead of looping.
//
//	err := pscp.ToServer(ctx, "report.pdf", "/srv/in/", "files.example.com", "alice", pw)
//	if errors.Is(err, pscp.ErrAuthRejected) {
//		// wrong password
//	}
//
// A successful return means scp exited after a recognised dialogue with no
// failure reported. The copied bytes themselves are not verified.
package pscp

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/tenfyzhong/pscp/internal/audit"
	"github.com/tenfyzhong/pscp/internal/command"
	"github.com/tenfyzhong/pscp/internal/dialogue"
	"github.com/tenfyzhong/pscp/internal/emulation"
	"github.com/tenfyzhong/pscp/internal/expect"
	"github.com/tenfyzhong/pscp/internal/models"
	"github.com/tenfyzhong/pscp/internal/process"
	"github.com/tenfyzhong/pscp/internal/store"
)

const (
	// searchWindow bounds the matcher buffer while scp prints progress.
	searchWindow = 64 * 1024

	termRows = 24
	termCols = 80
)

// Client holds settings shared by every transfer it runs. The zero value
// runs "scp" with no extra options. A Client is safe for concurrent use;
// each Transfer gets its own process, buffer and trigger state.
type Client struct {
	// Program is the scp binary. Empty means "scp" from PATH.
	Program string
	// Options become ssh -o key=value flags.
	Options map[string]string
	// ForcePassword disables public key authentication.
	ForcePassword bool
	// TranscriptDir enables asciinema transcripts, one <session>.cast per
	// transfer. Passwords are masked.
	TranscriptDir string
	// Store records every transfer when set.
	Store store.TransferStore
	// Mirror receives scp's output as it arrives.
	Mirror io.Writer
	// Logger defaults to the logrus standard logger.
	Logger *log.Logger
	// Dir is scp's working directory; relative local paths resolve
	// against it. Empty means the current directory.
	Dir string
	// Env holds extra KEY=VALUE pairs for scp's environment.
	Env []string
}

var defaultClient = &Client{}

// Transfer runs req with a zero Client.
func Transfer(ctx context.Context, req Request) error {
	return defaultClient.Transfer(ctx, req)
}

// ToServer copies the local src to dst on server.
func ToServer(ctx context.Context, src, dst, server, username, password string) error {
	return defaultClient.Transfer(ctx, NewRequest(ToServerDirection, src, dst, server, username, password))
}

// FromServer copies src on server to the local dst.
func FromServer(ctx context.Context, src, dst, server, username, password string) error {
	return defaultClient.Transfer(ctx, NewRequest(FromServerDirection, src, dst, server, username, password))
}

// ToServer is Transfer for a local-to-remote copy with NewRequest defaults.
func (c *Client) ToServer(ctx context.Context, src, dst, server, username, password string) error {
	return c.Transfer(ctx, NewRequest(ToServerDirection, src, dst, server, username, password))
}

// FromServer is Transfer for a remote-to-local copy with NewRequest defaults.
func (c *Client) FromServer(ctx context.Context, src, dst, server, username, password string) error {
	return c.Transfer(ctx, NewRequest(FromServerDirection, src, dst, server, username, password))
}

// Transfer runs scp for req and answers its prompts until it exits or
// fails. It returns nil on success and an *Error otherwise.
func (c *Client) Transfer(ctx context.Context, req Request) error {
	req = req.withDefaults()
	if err := req.Validate(); err != nil {
		return err
	}

	id := uuid.NewString()
	logger := c.logger().WithFields(log.Fields{
		"session":   id,
		"direction": req.Direction.String(),
		"server":    req.Server,
	})

	argv, err := command.Build(command.Spec{
		Program:        c.Program,
		Server:         req.Server,
		Username:       req.Username,
		Source:         req.Source,
		Destination:    req.Destination,
		Direction:      req.Direction,
		Port:           req.Port,
		IdentityFile:   req.IdentityFile,
		Options:        c.Options,
		ForcePassword:  c.ForcePassword,
		Quiet:          req.Quiet,
		CheckLocalHost: req.CheckLocalHost,
		Logger:         logger,
	})
	if err != nil {
		return &Error{Kind: KindInvalidRequest, Message: err.Error(), Err: err}
	}
	started := time.Now()

	logger.Infof("[SESSION] Starting: %s", command.String(argv))
	command.LogIdentity(logger, req.IdentityFile)

	rec := store.Transfer{
		ID:          id,
		Direction:   req.Direction.String(),
		User:        req.Username,
		Server:      req.Server,
		Port:        req.Port,
		Source:      req.Source,
		Destination: req.Destination,
		Command:     command.String(argv),
		StartedAt:   started.UTC(),
	}
	c.recordStart(ctx, logger, rec)

	observers, err := c.observers(id, req.TerminalType)
	if err != nil {
		logger.Warnf("[SESSION] Observers: %v", err)
	}
	for _, obs := range observers {
		if t, ok := obs.(*audit.Transcript); ok {
			c.recordTranscript(ctx, logger, id, t.Path())
		}
	}

	opts := []process.Option{
		process.WithWindowSize(termRows, termCols),
		process.WithLogger(logger),
		process.WithDir(c.Dir),
		process.WithEnv(c.Env...),
	}
	for _, obs := range observers {
		opts = append(opts, process.WithObserver(obs))
	}

	proc, err := process.Spawn(ctx, argv, opts...)
	if err != nil {
		for _, obs := range observers {
			if cerr := obs.Close(); cerr != nil {
				logger.Warnf("[SESSION] Observer close: %v", cerr)
			}
		}
		out := dialogue.Outcome{Kind: dialogue.KindLaunchError, Message: err.Error()}
		c.recordEnd(logger, id, out)
		return &Error{Kind: KindLaunchError, Message: err.Error(), SessionID: id, Err: err}
	}

	matcher := expect.New(proc,
		expect.WithDecoder(emulation.ForTerm(req.TerminalType)),
		expect.WithSearchWindow(searchWindow),
		expect.WithLogger(logger),
	)
	creds := dialogue.Credentials{Password: req.Password, TerminalType: req.TerminalType}

	out := dialogue.NewMachine(logger).Run(ctx, proc, matcher, creds, req.Timeout)

	logger.WithField("elapsed", time.Since(started).Round(time.Millisecond).String()).
		Infof("[SESSION] Finished: %s", out)
	c.recordEnd(logger, id, out)
	return fromOutcome(out, id)
}

func (c *Client) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.StandardLogger()
}

// observers builds the transcript and mirror for one session. A transcript
// failure is returned alongside whatever observers could be built.
func (c *Client) observers(id, term string) ([]models.Observer, error) {
	var (
		out []models.Observer
		err error
	)
	if c.TranscriptDir != "" {
		t, terr := audit.NewTranscript(c.TranscriptDir, id, term, termCols, termRows)
		if terr != nil {
			err = terr
		} else {
			out = append(out, t)
		}
	}
	if c.Mirror != nil {
		m := audit.NewMirror(audit.MirrorConfig{MaxWriters: 1})
		if _, aerr := m.Attach(c.Mirror); aerr != nil {
			err = errors.Join(err, aerr)
		} else {
			out = append(out, m)
		}
	}
	return out, err
}

// Store failures are logged and never change a transfer's result.

func (c *Client) recordStart(ctx context.Context, logger *log.Entry, rec store.Transfer) {
	if c.Store == nil {
		return
	}
	if err := c.Store.StartTransfer(ctx, rec); err != nil {
		logger.Warnf("[SESSION] History: %v", err)
	}
}

func (c *Client) recordTranscript(ctx context.Context, logger *log.Entry, id, path string) {
	if c.Store == nil {
		return
	}
	if err := c.Store.SetTranscriptPath(ctx, id, path); err != nil {
		logger.Warnf("[SESSION] History: %v", err)
	}
}

func (c *Client) recordEnd(logger *log.Entry, id string, out dialogue.Outcome) {
	if c.Store == nil {
		return
	}
	// The session context may already be cancelled; the history row should
	// still be completed.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Store.CompleteTransfer(ctx, id, time.Now().UTC(), out.Kind.String(), out.Message); err != nil {
		logger.Warnf("[SESSION] History: %v", err)
	}
}
