// Package audit records and mirrors what crosses a session's terminal.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tenfyzhong/pscp/internal/models"
)

// MaskedInput replaces secret input in transcripts.
const MaskedInput = "*** masked ***\n"

var _ models.Observer = (*Transcript)(nil)

// castHeader is the asciinema v2 header line.
type castHeader struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// castEvent is [elapsed seconds, "o"|"i", data].
type castEvent [3]interface{}

// Transcript writes a session to <dir>/<id>.cast in asciinema v2 format.
// Output from the child becomes "o" events and replies become "i" events;
// secret replies are written as MaskedInput.
type Transcript struct {
	mu      sync.Mutex
	f       *os.File
	enc     *json.Encoder
	started time.Time
	closed  bool
	// err is the first write failure; Close reports it.
	err error
}

// NewTranscript creates dir if needed and opens a new cast file for
// sessionID. term is recorded as the TERM of the session.
func NewTranscript(dir, sessionID, term string, width, height int) (*Transcript, error) {
	if dir == "" {
		return nil, fmt.Errorf("audit: transcript dir is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("audit: create transcript dir: %w", err)
	}

	path := filepath.Join(dir, sessionID+".cast")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: create cast file %s: %w", path, err)
	}

	t := &Transcript{f: f, enc: json.NewEncoder(f), started: time.Now()}
	h := castHeader{
		Version:   2,
		Width:     width,
		Height:    height,
		Timestamp: t.started.Unix(),
		Title:     sessionID,
		Env:       map[string]string{"TERM": term},
	}
	if err := t.enc.Encode(h); err != nil {
		f.Close()
		return nil, fmt.Errorf("audit: write cast header: %w", err)
	}
	return t, nil
}

// Output records data read from the child.
func (t *Transcript) Output(data []byte) {
	t.record("o", string(data))
}

// Input records a reply sent to the child.
func (t *Transcript) Input(data []byte, masked bool) {
	if masked {
		t.record("i", MaskedInput)
		return
	}
	t.record("i", string(data))
}

func (t *Transcript) record(kind, data string) {
	if data == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.err != nil {
		return
	}
	elapsed := time.Since(t.started).Seconds()
	if err := t.enc.Encode(castEvent{elapsed, kind, data}); err != nil {
		t.err = fmt.Errorf("audit: write event: %w", err)
		log.Warnf("[AUDIT] %v", t.err)
	}
}

// Close closes the cast file. It returns the first write error, if any.
// Calling it again is a no-op.
func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.f.Close(); err != nil && t.err == nil {
		t.err = fmt.Errorf("audit: close cast file: %w", err)
	}
	return t.err
}

// Path returns the cast file path.
func (t *Transcript) Path() string {
	return t.f.Name()
}
