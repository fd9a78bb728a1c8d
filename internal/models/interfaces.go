package models

import "time"

// Controllable is the part of a spawned child the dialogue needs.
// internal/process.PTYProcess implements it; tests use in-memory fakes.
type Controllable interface {
	// ReadAvailable blocks until data arrives, the deadline passes or the
	// child closes its output.
	ReadAvailable(deadline time.Time) ([]byte, error)
	// WriteLine sends s followed by a newline.
	WriteLine(s string) error
	// WriteSecretLine is WriteLine for passwords; observers see it masked.
	WriteSecretLine(s string) error
	// Terminate kills the child and releases the terminal. Idempotent.
	Terminate() error
}

// Observer receives a copy of everything crossing the pty.
// Implementations must not block; they run on the session goroutine.
type Observer interface {
	Output(data []byte)
	Input(data []byte, masked bool)
	Close() error
}
