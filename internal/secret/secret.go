// Package secret stores the GitHub token. The token deliberately lives
// outside the settings file so that settings can be hand-edited and shared
// without leaking the credential.
package secret

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store is the secret contract consumed by the fetch client and the auth flow.
type Store interface {
	Set(token string) error
	Get() (string, bool)
	Clear() error
}

const tokenFile = "token"

// EnvToken is checked before the token file, so CI and one-off runs can
// inject a credential without persisting it.
const EnvToken = "PRPULSE_TOKEN"

// FileStore keeps the token in a mode-0600 file in the data directory.
type FileStore struct {
	path string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, tokenFile)}
}

func (s *FileStore) Set(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return s.Clear()
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create secret dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

func (s *FileStore) Get() (string, bool) {
	if env := strings.TrimSpace(os.Getenv(EnvToken)); env != "" {
		return env, true
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(string(data))
	return token, token != ""
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}
