package command

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

// KeyInfo describes a private key file.
type KeyInfo struct {
	Path string
	// Type is the ssh key algorithm, empty when it cannot be determined
	// without the passphrase.
	Type string
	// Encrypted means scp will ask "Enter passphrase for key".
	Encrypted   bool
	Fingerprint string
}

// InspectIdentity parses the private key at path without a passphrase.
func InspectIdentity(path string) (KeyInfo, error) {
	info := KeyInfo{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return info, fmt.Errorf("command: read identity: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			info.Encrypted = true
			if missing.PublicKey != nil {
				info.Type = missing.PublicKey.Type()
				info.Fingerprint = ssh.FingerprintSHA256(missing.PublicKey)
			}
			return info, nil
		}
		return info, fmt.Errorf("command: parse identity %s: %w", path, err)
	}

	info.Type = signer.PublicKey().Type()
	info.Fingerprint = ssh.FingerprintSHA256(signer.PublicKey())
	return info, nil
}

// LogIdentity logs what kind of prompt an identity file will cause.
func LogIdentity(logger *log.Entry, path string) {
	if path == "" || !usableIdentity(path) {
		return
	}
	info, err := InspectIdentity(path)
	if err != nil {
		logger.Warnf("[COMMAND] %v", err)
		return
	}
	if info.Encrypted {
		logger.Infof("[COMMAND] Identity %s is passphrase protected, expecting a passphrase prompt", path)
		return
	}
	logger.Debugf("[COMMAND] Identity %s: %s %s", path, info.Type, info.Fingerprint)
}
