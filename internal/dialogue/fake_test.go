package dialogue

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/tenfyzhong/pscp/internal/process"
)

// fakeProcess is an in-memory child. It emits initial chunks, then after
// the i-th reply emits after[i]. Once everything is delivered it reports
// io.EOF (or readErr, when set) when eof is set and otherwise blocks until
// the deadline.
type fakeProcess struct {
	mu       sync.Mutex
	queue    []string
	after    [][]string
	eof      bool
	readErr  error
	writeErr error

	writes     []string
	secret     []bool
	terminated int

	done     chan struct{}
	doneOnce sync.Once
}

func newFake(initial []string, after [][]string, eof bool) *fakeProcess {
	return &fakeProcess{
		queue: initial,
		after: after,
		eof:   eof,
		done:  make(chan struct{}),
	}
}

func (f *fakeProcess) ReadAvailable(deadline time.Time) ([]byte, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		c := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return []byte(c), nil
	}
	ended := f.terminated > 0 || (f.eof && len(f.after) == 0)
	readErr := f.readErr
	f.mu.Unlock()

	if ended {
		if readErr != nil {
			return nil, readErr
		}
		return nil, io.EOF
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil, process.ErrTimeout
	case <-f.done:
		return nil, io.EOF
	}
}

func (f *fakeProcess) WriteLine(s string) error       { return f.write(s, false) }
func (f *fakeProcess) WriteSecretLine(s string) error { return f.write(s, true) }

func (f *fakeProcess) write(s string, secret bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, s)
	f.secret = append(f.secret, secret)
	if len(f.after) > 0 {
		f.queue = append(f.queue, f.after[0]...)
		f.after = f.after[1:]
	}
	return nil
}

func (f *fakeProcess) Terminate() error {
	f.mu.Lock()
	f.terminated++
	f.mu.Unlock()
	f.doneOnce.Do(func() { close(f.done) })
	return nil
}

func (f *fakeProcess) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *fakeProcess) Terminated() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated
}

var errBrokenPipe = errors.New("write /dev/ptmx: input/output error")
