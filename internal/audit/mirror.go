package audit

import (
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/tenfyzhong/pscp/internal/models"
)

const (
	// DefaultMaxWriters applies when MirrorConfig.MaxWriters is zero.
	DefaultMaxWriters = 4

	// writerQueue is the per-writer frame buffer. Frames are dropped when it
	// is full so the session is never slowed down.
	writerQueue = 256

	// backlogSize is how much recent output a late writer receives first.
	backlogSize = 4 * 1024
)

var _ models.Observer = (*Mirror)(nil)

// MirrorConfig limits a Mirror.
type MirrorConfig struct {
	MaxWriters int
}

// Mirror copies the child's output to attached writers as it arrives, for
// example to show scp's progress on the user's terminal. Replies are not
// mirrored. Each writer is fed by its own goroutine.
type Mirror struct {
	mu      sync.Mutex
	writers map[uint64]*mirrorWriter
	nextID  uint64
	max     int
	closed  bool
	wg      sync.WaitGroup

	backlog []byte
}

type mirrorWriter struct {
	id   uint64
	ch   chan []byte
	once sync.Once
}

func (w *mirrorWriter) stop() {
	w.once.Do(func() { close(w.ch) })
}

// NewMirror returns a Mirror with no writers attached.
func NewMirror(cfg MirrorConfig) *Mirror {
	max := cfg.MaxWriters
	if max <= 0 {
		max = DefaultMaxWriters
	}
	return &Mirror{writers: make(map[uint64]*mirrorWriter), max: max}
}

// Attach starts copying output to w. w first receives up to 4 KB of output
// seen before it was attached. The returned func detaches w.
func (m *Mirror) Attach(w io.Writer) (detach func(), err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("audit: mirror closed")
	}
	if len(m.writers) >= m.max {
		m.mu.Unlock()
		return nil, fmt.Errorf("audit: mirror writer limit reached (%d)", m.max)
	}

	mw := &mirrorWriter{id: m.nextID, ch: make(chan []byte, writerQueue)}
	m.nextID++
	if len(m.backlog) > 0 {
		mw.ch <- append([]byte(nil), m.backlog...)
	}
	m.writers[mw.id] = mw
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		failed := false
		for frame := range mw.ch {
			if failed {
				continue
			}
			if _, err := w.Write(frame); err != nil {
				log.Debugf("[MIRROR] writer %d: %v", mw.id, err)
				failed = true
			}
		}
	}()

	detach = func() {
		m.mu.Lock()
		delete(m.writers, mw.id)
		m.mu.Unlock()
		mw.stop()
	}
	return detach, nil
}

// Output implements models.Observer. It never blocks.
func (m *Mirror) Output(data []byte) {
	if len(data) == 0 {
		return
	}
	frame := append([]byte(nil), data...)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.backlog = append(m.backlog, frame...)
	if over := len(m.backlog) - backlogSize; over > 0 {
		m.backlog = append(m.backlog[:0:0], m.backlog[over:]...)
	}
	for _, w := range m.writers {
		select {
		case w.ch <- frame:
		default:
			log.Debugf("[MIRROR] writer %d too slow, frame dropped", w.id)
		}
	}
}

// Input implements models.Observer; replies are not mirrored.
func (m *Mirror) Input([]byte, bool) {}

// attached returns the number of attached writers.
func (m *Mirror) attached() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writers)
}

// Close detaches every writer after its queued frames are written.
func (m *Mirror) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for id, w := range m.writers {
		delete(m.writers, id)
		w.stop()
	}
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}
