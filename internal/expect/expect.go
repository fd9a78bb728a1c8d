// Package expect scans the output of an interactive child for a set of
// concurrently armed patterns.
//
// Every call to Matcher.Expect tests the whole unconsumed buffer against all
// patterns, so output left over from an earlier match is seen immediately.
// The match with the earliest start offset wins; ties go to the pattern that
// comes first in the list. Only text up to the end of the match is consumed.
package expect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tenfyzhong/pscp/internal/emulation"
)

// Source is anything that yields output chunks until a deadline.
// internal/process.PTYProcess satisfies it.
type Source interface {
	ReadAvailable(deadline time.Time) ([]byte, error)
}

// Sentinel marks a Pattern that matches a condition instead of text.
type Sentinel int

const (
	// SentinelNone marks an ordinary regexp pattern.
	SentinelNone Sentinel = iota
	// SentinelTimeout matches when the deadline passes with no text match.
	SentinelTimeout
	// SentinelEOF matches when the stream ends with no text match.
	SentinelEOF
)

func (s Sentinel) String() string {
	switch s {
	case SentinelNone:
		return "none"
	case SentinelTimeout:
		return "TIMEOUT"
	case SentinelEOF:
		return "EOF"
	}
	return fmt.Sprintf("Sentinel(%d)", int(s))
}

// Pattern is a regexp or a sentinel. Exactly one of the fields is set.
type Pattern struct {
	Regexp   *regexp.Regexp
	Sentinel Sentinel
}

// Regexp returns a text pattern.
func Regexp(re *regexp.Regexp) Pattern { return Pattern{Regexp: re} }

// Timeout returns the timeout sentinel.
func Timeout() Pattern { return Pattern{Sentinel: SentinelTimeout} }

// EOF returns the end-of-stream sentinel.
func EOF() Pattern { return Pattern{Sentinel: SentinelEOF} }

func (p Pattern) String() string {
	if p.Regexp != nil {
		return p.Regexp.String()
	}
	return p.Sentinel.String()
}

// Kind is the shape of a Result.
type Kind int

const (
	Matched Kind = iota
	TimedOut
	StreamEnded
)

func (k Kind) String() string {
	switch k {
	case Matched:
		return "matched"
	case TimedOut:
		return "timed out"
	case StreamEnded:
		return "stream ended"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Result describes how an Expect call finished.
//
// For Matched, Index is the position of the winning pattern, Text is the
// matched text and Before is the unconsumed text preceding it. For TimedOut
// and StreamEnded, Index points at the matching sentinel in the pattern list
// or is -1 when the list has none, and Before holds the buffered text.
type Result struct {
	Kind   Kind
	Index  int
	Text   string
	Before string
	// Err is set when the stream ended on something other than a clean EOF.
	Err error
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithDecoder passes every chunk through d before it is buffered.
func WithDecoder(d emulation.Decoder) Option {
	return func(m *Matcher) { m.decoder = d }
}

// WithSearchWindow caps the buffer at the last n bytes. Older output that no
// pattern matched is dropped. n <= 0 means unlimited.
func WithSearchWindow(n int) Option {
	return func(m *Matcher) { m.window = n }
}

// WithLogger sets the entry used for [EXPECT] logs.
func WithLogger(l *log.Entry) Option {
	return func(m *Matcher) { m.logger = l }
}

// Matcher accumulates output from a Source. It is not safe for concurrent
// use; one session goroutine owns it.
type Matcher struct {
	src     Source
	decoder emulation.Decoder
	window  int
	logger  *log.Entry

	buffer []byte
	// ended is the sticky end-of-stream error, io.EOF for a clean end.
	ended error
}

// New returns a Matcher reading from src.
func New(src Source, opts ...Option) *Matcher {
	m := &Matcher{src: src}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.NewEntry(log.StandardLogger())
	}
	return m
}

// Buffer returns the unconsumed output.
func (m *Matcher) Buffer() string {
	return string(m.buffer)
}

// Expect waits until one of patterns matches the buffered output, the
// deadline passes or the stream ends.
func (m *Matcher) Expect(patterns []Pattern, deadline time.Time) Result {
	for {
		if r, ok := m.match(patterns); ok {
			m.logger.Debugf("[EXPECT] Matched #%d %q", r.Index, r.Text)
			return r
		}

		if m.ended != nil {
			r := Result{
				Kind:   StreamEnded,
				Index:  sentinelIndex(patterns, SentinelEOF),
				Before: string(m.buffer),
			}
			if !errors.Is(m.ended, io.EOF) {
				r.Err = m.ended
			}
			m.buffer = nil
			m.logger.Debugf("[EXPECT] Stream ended: %v", m.ended)
			return r
		}

		chunk, err := m.src.ReadAvailable(deadline)
		m.append(chunk)

		if err != nil {
			if isTimeout(err) {
				if r, ok := m.match(patterns); ok {
					m.logger.Debugf("[EXPECT] Matched #%d %q", r.Index, r.Text)
					return r
				}
				m.logger.Debugf("[EXPECT] Timed out with %d bytes buffered", len(m.buffer))
				return Result{
					Kind:   TimedOut,
					Index:  sentinelIndex(patterns, SentinelTimeout),
					Before: string(m.buffer),
				}
			}
			m.ended = err
		}
	}
}

// match finds the earliest-starting match among the regexp patterns and
// consumes the buffer through its end.
func (m *Matcher) match(patterns []Pattern) (Result, bool) {
	best, start, end := -1, 0, 0
	for i, p := range patterns {
		if p.Regexp == nil {
			continue
		}
		loc := p.Regexp.FindIndex(m.buffer)
		if loc == nil {
			continue
		}
		if best == -1 || loc[0] < start {
			best, start, end = i, loc[0], loc[1]
		}
	}
	if best == -1 {
		return Result{}, false
	}

	r := Result{
		Kind:   Matched,
		Index:  best,
		Text:   string(m.buffer[start:end]),
		Before: string(m.buffer[:start]),
	}
	m.buffer = append(m.buffer[:0:0], m.buffer[end:]...)
	return r, true
}

func (m *Matcher) append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	if m.decoder != nil {
		chunk = m.decoder.Decode(chunk)
	}
	m.logger.Tracef("[EXPECT] Recv %q", chunk)

	// A "\r" at the end of the previous chunk may pair with a leading "\n".
	from := len(m.buffer)
	if from > 0 {
		from--
	}
	m.buffer = append(m.buffer, chunk...)
	m.buffer = append(m.buffer[:from], bytes.ReplaceAll(m.buffer[from:], []byte("\r\n"), []byte("\n"))...)

	if m.window > 0 && len(m.buffer) > m.window {
		m.buffer = append(m.buffer[:0:0], m.buffer[len(m.buffer)-m.window:]...)
	}
}

func sentinelIndex(patterns []Pattern, s Sentinel) int {
	for i, p := range patterns {
		if p.Regexp == nil && p.Sentinel == s {
			return i
		}
	}
	return -1
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
