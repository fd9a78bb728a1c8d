package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	log "github.com/sirupsen/logrus"

	"github.com/tenfyzhong/pscp/internal/models"
)

var (
	// ErrLaunch is returned by Spawn when the child cannot be started.
	ErrLaunch = errors.New("process: launch failed")

	// ErrTimeout is returned by ReadAvailable when the deadline passes first.
	// It reports Timeout() == true like net and os deadline errors.
	ErrTimeout error = timeoutError{}
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "process: read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// readSize is the largest amount of data read from the pty in one call.
const readSize = 4096

// readQueue is how many chunks the reader goroutine may run ahead of the
// session before it blocks.
const readQueue = 64

// PTYProcess is a child process attached to a pseudo-terminal. The child's
// stdin, stdout and stderr all share the pty, so prompts written to stderr
// arrive interleaved with everything else.
//
// Lifecycle:
//
//	Spawn()         → starts the child and the reader goroutine
//	ReadAvailable() → next chunk of output, ErrTimeout or io.EOF
//	WriteLine()     → answer a prompt
//	Terminate()     → kill, reap, close the pty (idempotent)
//
// A PTYProcess is driven by one session goroutine; only Terminate may be
// called from elsewhere.
type PTYProcess struct {
	cmd *exec.Cmd
	pty *os.File

	reads   chan readEvent
	stop    chan struct{}
	exited  chan struct{}
	waitErr error

	// pending is the sticky read error (io.EOF once the child is gone).
	pending error

	observers []models.Observer
	logger    *log.Entry

	once sync.Once
}

type readEvent struct {
	buf []byte
	err error
}

type options struct {
	env       []string
	dir       string
	rows      uint16
	cols      uint16
	observers []models.Observer
	logger    *log.Entry
}

// Option configures Spawn.
type Option func(*options)

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(env ...string) Option {
	return func(o *options) { o.env = append(o.env, env...) }
}

// WithDir sets the working directory of the child.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithWindowSize sets the initial terminal size reported to the child.
func WithWindowSize(rows, cols uint16) Option {
	return func(o *options) { o.rows, o.cols = rows, cols }
}

// WithObserver registers an observer that sees every byte read and written.
// Observers are closed by Terminate.
func WithObserver(obs models.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithLogger sets the entry used for [PROC] logs.
func WithLogger(l *log.Entry) Option {
	return func(o *options) { o.logger = l }
}

// Spawn starts argv[0] with the remaining elements as arguments on a new
// pseudo-terminal. A missing binary or a failed exec is reported as an
// error wrapping ErrLaunch.
func Spawn(ctx context.Context, argv []string, opts ...Option) (*PTYProcess, error) {
	o := options{rows: 24, cols: 80}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewEntry(log.StandardLogger())
	}

	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("%w: empty command", ErrLaunch)
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLaunch, argv[0], err)
	}

	cmd := exec.CommandContext(ctx, path, argv[1:]...)
	cmd.Env = append(os.Environ(), o.env...)
	cmd.Dir = o.dir

	f, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: o.rows, Cols: o.cols})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLaunch, strings.Join(argv, " "), err)
	}

	p := &PTYProcess{
		cmd:       cmd,
		pty:       f,
		reads:     make(chan readEvent, readQueue),
		stop:      make(chan struct{}),
		exited:    make(chan struct{}),
		observers: o.observers,
		logger:    o.logger,
	}

	go p.readLoop()
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()

	p.logger.Debugf("[PROC] Started pid=%d: %s", cmd.Process.Pid, argv[0])
	return p, nil
}

// readLoop is the only reader of the pty. It stops after the first error or
// when Terminate closes stop.
func (p *PTYProcess) readLoop() {
	defer close(p.reads)
	for {
		buf := make([]byte, readSize)
		n, err := p.pty.Read(buf)

		// Linux reports a closed pty slave as EIO rather than EOF.
		var pathErr *os.PathError
		if errors.As(err, &pathErr) && errors.Is(pathErr.Err, syscall.EIO) {
			err = io.EOF
		}
		if err != nil && errors.Is(err, os.ErrClosed) {
			err = io.EOF
		}

		select {
		case p.reads <- readEvent{buf: buf[:n], err: err}:
		case <-p.stop:
			return
		}
		if err != nil {
			return
		}
	}
}

// ReadAvailable blocks until the child produces output, the deadline
// elapses (ErrTimeout) or the child closes its side of the pty (io.EOF).
// Output that arrived before the end of the stream is always returned
// before io.EOF.
func (p *PTYProcess) ReadAvailable(deadline time.Time) ([]byte, error) {
	if p.pending != nil {
		return nil, p.pending
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case ev, ok := <-p.reads:
		if !ok {
			p.pending = io.EOF
			return nil, io.EOF
		}
		return p.accept(ev)
	case <-timer.C:
		// A chunk may have landed at the same instant; prefer it.
		select {
		case ev, ok := <-p.reads:
			if !ok {
				p.pending = io.EOF
				return nil, io.EOF
			}
			return p.accept(ev)
		default:
		}
		return nil, ErrTimeout
	}
}

func (p *PTYProcess) accept(ev readEvent) ([]byte, error) {
	if len(ev.buf) > 0 {
		for _, obs := range p.observers {
			obs.Output(ev.buf)
		}
	}
	if ev.err != nil {
		p.pending = ev.err
		if len(ev.buf) > 0 {
			return ev.buf, nil
		}
		return nil, ev.err
	}
	return ev.buf, nil
}

// WriteLine sends s followed by a newline to the child.
func (p *PTYProcess) WriteLine(s string) error {
	return p.write(s+"\n", false)
}

// WriteSecretLine is WriteLine for passwords; observers receive it masked.
func (p *PTYProcess) WriteSecretLine(s string) error {
	return p.write(s+"\n", true)
}

func (p *PTYProcess) write(s string, secret bool) error {
	if _, err := io.WriteString(p.pty, s); err != nil {
		return fmt.Errorf("process: write to pty: %w", err)
	}
	for _, obs := range p.observers {
		obs.Input([]byte(s), secret)
	}
	return nil
}

// Terminate kills the child if it is still running, waits for it to be
// reaped and closes the pty. Calling it again, or after the child exited on
// its own, is a no-op.
func (p *PTYProcess) Terminate() error {
	var err error
	p.once.Do(func() {
		close(p.stop)

		p.kill()
		<-p.exited

		if cerr := p.pty.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
			err = fmt.Errorf("process: close pty: %w", cerr)
		}

		for _, obs := range p.observers {
			if cerr := obs.Close(); cerr != nil {
				p.logger.Warnf("[PROC] Observer close: %v", cerr)
			}
		}
		p.logger.Debugf("[PROC] Terminated pid=%d exit=%d wait=%v", p.cmd.Process.Pid, p.ExitCode(), p.waitErr)
	})
	return err
}

// kill signals the whole process group. The child is a session leader
// (pty.Start sets Setsid), so helpers it forked die with it and release the
// pty slave.
func (p *PTYProcess) kill() {
	select {
	case <-p.exited:
		return
	default:
	}
	pid := p.cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		p.logger.Debugf("[PROC] Kill group pid=%d: %v", pid, err)
		if kerr := p.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			p.logger.Debugf("[PROC] Kill pid=%d: %v", pid, kerr)
		}
	}
}

// Pid returns the process id of the child.
func (p *PTYProcess) Pid() int {
	return p.cmd.Process.Pid
}

// ExitCode returns the child's exit status, or -1 while it is still running
// or when it was killed by a signal.
func (p *PTYProcess) ExitCode() int {
	select {
	case <-p.exited:
	default:
		return -1
	}
	if p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

// Exited is closed once the child has been reaped.
func (p *PTYProcess) Exited() <-chan struct{} {
	return p.exited
}
