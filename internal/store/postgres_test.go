package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tenfyzhong/pscp/internal/store"
)

// =============================================================================
// Helpers
// =============================================================================

// startPostgres spins up a throwaway Postgres container and returns its DSN.
// The container is terminated when the test ends.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("pscp_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) }) //nolint:errcheck

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func newStore(t *testing.T) *store.PostgresStore {
	t.Helper()
	dsn := startPostgres(t)
	s, err := store.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}

func testTransfer(id string) store.Transfer {
	return store.Transfer{
		ID:          id,
		Direction:   "to",
		User:        "alice",
		Server:      "files.example.com",
		Port:        2222,
		Source:      "/tmp/report.pdf",
		Destination: "/srv/incoming/report.pdf",
		Command:     "scp -q -P 2222 /tmp/report.pdf alice@files.example.com:/srv/incoming/report.pdf",
		StartedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

// =============================================================================
// New / migrate
// =============================================================================

func TestNew_MigrateIsIdempotent(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	s1, err := store.New(ctx, dsn)
	require.NoError(t, err)
	defer s1.Close() //nolint:errcheck

	s2, err := store.New(ctx, dsn)
	require.NoError(t, err)
	defer s2.Close() //nolint:errcheck
}

func TestNew_InvalidDSN_ReturnsError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := store.New(ctx, "postgres://invalid:5432/nodb")
	assert.Error(t, err)
}

// =============================================================================
// StartTransfer / GetTransfer
// =============================================================================

func TestStartTransfer_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	tr := testTransfer("start-roundtrip")

	require.NoError(t, s.StartTransfer(ctx, tr))

	got, err := s.GetTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.User, got.User)
	assert.Equal(t, tr.Server, got.Server)
	assert.Equal(t, 2222, got.Port)
	assert.Equal(t, tr.Command, got.Command)
	assert.True(t, tr.StartedAt.Equal(got.StartedAt))
	assert.Nil(t, got.EndedAt, "still running")
	assert.Empty(t, got.Outcome)
}

func TestStartTransfer_DuplicateID_ReturnsError(t *testing.T) {
	s := newStore(t)
	tr := testTransfer("dup-id")

	require.NoError(t, s.StartTransfer(context.Background(), tr))
	assert.Error(t, s.StartTransfer(context.Background(), tr))
}

func TestGetTransfer_Unknown(t *testing.T) {
	s := newStore(t)
	_, err := s.GetTransfer(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// =============================================================================
// CompleteTransfer
// =============================================================================

func TestCompleteTransfer_SetsOutcomeAndDuration(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	tr := testTransfer("complete-test")
	require.NoError(t, s.StartTransfer(ctx, tr))

	endedAt := tr.StartedAt.Add(90 * time.Second)
	require.NoError(t, s.CompleteTransfer(ctx, tr.ID, endedAt, "AuthRejected", "password refused"))

	got, err := s.GetTransfer(ctx, tr.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	require.NotNil(t, got.DurationSec)
	assert.InDelta(t, 90.0, *got.DurationSec, 0.001)
	assert.Equal(t, "AuthRejected", got.Outcome)
	assert.Equal(t, "password refused", got.Message)
}

func TestCompleteTransfer_NonExistentID(t *testing.T) {
	s := newStore(t)
	err := s.CompleteTransfer(context.Background(), "does-not-exist", time.Now().UTC(), "Success", "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// =============================================================================
// SetTranscriptPath
// =============================================================================

func TestSetTranscriptPath_UpdatesPath(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	tr := testTransfer("transcript-path-test")
	require.NoError(t, s.StartTransfer(ctx, tr))

	require.NoError(t, s.SetTranscriptPath(ctx, tr.ID, "/var/log/pscp/transcript-path-test.cast"))

	got, err := s.GetTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "/var/log/pscp/transcript-path-test.cast", got.TranscriptPath)
}

func TestSetTranscriptPath_NonExistentID(t *testing.T) {
	s := newStore(t)
	err := s.SetTranscriptPath(context.Background(), "ghost", "/x.cast")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// =============================================================================
// Close
// =============================================================================

func TestClose_IsIdempotent(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Close())
}
