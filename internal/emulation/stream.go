package emulation

import vte "github.com/danielgatis/go-vte"

// Stream decodes terminal output incrementally. The parser keeps its state
// between calls, so an escape sequence split across two pty reads is still
// recognised instead of leaking half of it into the prompt text.
//
// Stream is NOT safe for concurrent use; use one instance per session.
type Stream struct {
	parser *vte.Parser
	c      *tokenCollector
}

// NewStream creates a Stream ready for use.
func NewStream() *Stream {
	c := &tokenCollector{}
	return &Stream{parser: vte.NewParser(c), c: c}
}

// Decode feeds chunk to the parser and returns the text it completed.
// Bytes belonging to an unfinished escape sequence are held back until the
// sequence ends.
func (s *Stream) Decode(chunk []byte) []byte {
	s.c.reset()
	for _, b := range chunk {
		s.parser.Advance(b)
	}
	return Render(make([]byte, 0, len(chunk)), s.c.tokens)
}

// Name returns a human-readable identifier used in logs.
func (s *Stream) Name() string { return "vte" }

// Passthrough returns chunks unchanged. Used for TERM=dumb, where the child
// is told not to emit escape sequences at all.
type Passthrough struct{}

// Decode returns chunk as is.
func (Passthrough) Decode(chunk []byte) []byte { return chunk }

// Name returns a human-readable identifier used in logs.
func (Passthrough) Name() string { return "raw" }
