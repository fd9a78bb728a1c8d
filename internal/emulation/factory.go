package emulation

import "strings"

// Decoder turns raw pty output into matchable text.
type Decoder interface {
	Decode(chunk []byte) []byte
	Name() string
}

// ForTerm returns a fresh Decoder for the terminal type answered to the
// child. Matching is case-insensitive. Every type that can emit escape
// sequences gets a VTE stream; "dumb" gets a passthrough.
// This function never returns nil.
func ForTerm(term string) Decoder {
	switch strings.ToLower(strings.TrimSpace(term)) {
	case "dumb":
		return Passthrough{}
	default:
		return NewStream()
	}
}
