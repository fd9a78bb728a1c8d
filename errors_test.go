package pscp

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenfyzhong/pscp/internal/dialogue"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := error(&Error{Kind: KindAuthRejected, Message: "password refused"})

	assert.ErrorIs(t, err, ErrAuthRejected)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, "pscp: AuthRejected: password refused", err.Error())

	wrapped := fmt.Errorf("upload failed: %w", err)
	assert.ErrorIs(t, wrapped, ErrAuthRejected)

	var pe *Error
	require.ErrorAs(t, wrapped, &pe)
	assert.Equal(t, KindAuthRejected, pe.Kind)
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("exec: not found")
	err := &Error{Kind: KindLaunchError, Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrLaunch)
	assert.Equal(t, "pscp: LaunchError", err.Error())
}

func TestFromOutcome(t *testing.T) {
	assert.NoError(t, fromOutcome(dialogue.Outcome{}, "id"))

	cases := map[dialogue.FailureKind]error{
		dialogue.KindHostKeyProtocolViolation: ErrHostKeyProtocolViolation,
		dialogue.KindAuthRejected:             ErrAuthRejected,
		dialogue.KindPermissionDenied:         ErrPermissionDenied,
		dialogue.KindTimeout:                  ErrTimeout,
		dialogue.KindConnectionClosed:         ErrConnectionClosed,
		dialogue.KindNoSuchFile:               ErrNoSuchFile,
		dialogue.KindLaunchError:              ErrLaunch,
	}
	for kind, want := range cases {
		err := fromOutcome(dialogue.Outcome{Kind: kind, Message: "m", Text: "t"}, "id")
		assert.ErrorIs(t, err, want, kind.String())

		var pe *Error
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "t", pe.Text)
		assert.Equal(t, "id", pe.SessionID)
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "NoSuchFile", KindNoSuchFile.String())
	assert.Equal(t, "InvalidRequest", KindInvalidRequest.String())
	assert.Equal(t, "Kind(0)", Kind(0).String())
}
