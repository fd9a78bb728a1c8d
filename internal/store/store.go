// Package store keeps a history of transfers.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a transfer id is unknown.
var ErrNotFound = errors.New("store: transfer not found")

// Transfer is one scp invocation. Credentials are never stored.
type Transfer struct {
	ID             string
	Direction      string
	User           string
	Server         string
	Port           int
	Source         string
	Destination    string
	Command        string
	TranscriptPath string
	StartedAt      time.Time
	EndedAt        *time.Time
	DurationSec    *float64
	// Outcome is empty while the transfer runs, then "Success" or a failure
	// kind such as "AuthRejected".
	Outcome string
	Message string
}

// TransferStore persists transfer history.
// Implementations must be safe for concurrent use.
type TransferStore interface {
	StartTransfer(ctx context.Context, t Transfer) error
	CompleteTransfer(ctx context.Context, id string, endedAt time.Time, outcome, message string) error
	SetTranscriptPath(ctx context.Context, id string, path string) error
	GetTransfer(ctx context.Context, id string) (Transfer, error)
	Close() error
}
