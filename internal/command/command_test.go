package command

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// =============================================================================
// Helpers
// =============================================================================

func baseSpec() Spec {
	return Spec{
		Server:         "example.com",
		Username:       "alice",
		Source:         "/tmp/a.txt",
		Destination:    "/srv/b.txt",
		Direction:      ToServer,
		CheckLocalHost: true,
	}
}

func writeKey(t *testing.T, passphrase string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	}
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

// =============================================================================
// Build
// =============================================================================

func TestBuild_ToServer(t *testing.T) {
	argv, err := Build(baseSpec())
	require.NoError(t, err)
	assert.Equal(t, []string{"scp", "/tmp/a.txt", "alice@example.com:/srv/b.txt"}, argv)
}

func TestBuild_FromServer(t *testing.T) {
	s := baseSpec()
	s.Direction = FromServer
	s.Source = "/srv/b.txt"
	s.Destination = "/tmp/a.txt"

	argv, err := Build(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"scp", "alice@example.com:/srv/b.txt", "/tmp/a.txt"}, argv)
}

func TestBuild_AllFlagsInOrder(t *testing.T) {
	key := writeKey(t, "")
	s := baseSpec()
	s.Program = "/usr/bin/scp"
	s.Options = map[string]string{
		"UserKnownHostsFile":    "/dev/null",
		"StrictHostKeyChecking": "no",
	}
	s.Quiet = true
	s.CheckLocalHost = false
	s.ForcePassword = true
	s.Port = 2222
	s.IdentityFile = key

	argv, err := Build(s)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/usr/bin/scp",
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-q",
		"-o", "NoHostAuthenticationForLocalhost=yes",
		"-o", "RSAAuthentication=no",
		"-o", "PubkeyAuthentication=no",
		"-P", "2222",
		"-i", key,
		"/tmp/a.txt", "alice@example.com:/srv/b.txt",
	}, argv)
}

func TestBuild_MissingIdentitySkipped(t *testing.T) {
	s := baseSpec()
	s.IdentityFile = filepath.Join(t.TempDir(), "nope")

	argv, err := Build(s)
	require.NoError(t, err)
	assert.NotContains(t, argv, "-i")
}

func TestBuild_SkippedIdentityLoggedWithSessionFields(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := baseSpec()
	s.IdentityFile = filepath.Join(t.TempDir(), "nope")
	s.Logger = logger.WithField("session", "s-1")

	_, err := Build(s)
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.WarnLevel, entry.Level)
	assert.Equal(t, "s-1", entry.Data["session"])
	assert.Contains(t, entry.Message, "nope")
}

func TestBuild_IdentityDirectorySkipped(t *testing.T) {
	s := baseSpec()
	s.IdentityFile = t.TempDir()

	argv, err := Build(s)
	require.NoError(t, err)
	assert.NotContains(t, argv, "-i")
}

func TestBuild_IPv6Bracketed(t *testing.T) {
	s := baseSpec()
	s.Server = "fe80::1"

	argv, err := Build(s)
	require.NoError(t, err)
	assert.Equal(t, "alice@[fe80::1]:/srv/b.txt", argv[len(argv)-1])
}

func TestBuild_Invalid(t *testing.T) {
	cases := map[string]func(*Spec){
		"no server":      func(s *Spec) { s.Server = "" },
		"no username":    func(s *Spec) { s.Username = "" },
		"no source":      func(s *Spec) { s.Source = "" },
		"no destination": func(s *Spec) { s.Destination = "" },
		"bad direction":  func(s *Spec) { s.Direction = Direction(7) },
		"negative port":  func(s *Spec) { s.Port = -1 },
		"huge port":      func(s *Spec) { s.Port = 70000 },
		"bad option":     func(s *Spec) { s.Options = map[string]string{"a=b": "c"} },
	}
	for name, mutate := range cases {
		s := baseSpec()
		mutate(&s)
		_, err := Build(s)
		assert.ErrorIs(t, err, ErrInvalid, name)
	}
}

func TestBuild_MissingFieldsListed(t *testing.T) {
	_, err := Build(Spec{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destination, server, source, username")
}

// =============================================================================
// String
// =============================================================================

func TestString_QuotesWhenNeeded(t *testing.T) {
	got := String([]string{"scp", "-o", "ProxyCommand=ssh -W %h:%p jump", "my file.txt", "it's", "", "u@h:/x"})
	assert.Equal(t, `scp -o 'ProxyCommand=ssh -W %h:%p jump' 'my file.txt' 'it'\''s' '' u@h:/x`, got)
}

// =============================================================================
// InspectIdentity
// =============================================================================

func TestInspectIdentity_Plain(t *testing.T) {
	info, err := InspectIdentity(writeKey(t, ""))
	require.NoError(t, err)
	assert.False(t, info.Encrypted)
	assert.Equal(t, ssh.KeyAlgoED25519, info.Type)
	assert.Contains(t, info.Fingerprint, "SHA256:")
}

func TestInspectIdentity_Encrypted(t *testing.T) {
	info, err := InspectIdentity(writeKey(t, "open sesame"))
	require.NoError(t, err)
	assert.True(t, info.Encrypted)
}

func TestInspectIdentity_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

	_, err := InspectIdentity(path)
	assert.Error(t, err)
}

func TestInspectIdentity_Missing(t *testing.T) {
	_, err := InspectIdentity(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDirection_String(t *testing.T) {
	assert.Equal(t, "to", ToServer.String())
	assert.Equal(t, "from", FromServer.String())
	assert.Equal(t, "Direction(9)", Direction(9).String())
}
