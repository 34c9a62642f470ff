// Package identity produces the stable per-device client identifier the
// server uses to re-associate a new socket with an existing player slot.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// FileName is the file holding the identity inside the state directory
	FileName = "identity.json"

	// Prefix is prepended to every generated identity
	Prefix = "user_"
)

// persistedIdentity is the JSON structure stored on disk
type persistedIdentity struct {
	ClientID string `json:"client_id"`
}

// Store hands out the device identity, generating and persisting it on first
// use. Storage problems never surface as errors: the store falls back to an
// in-memory identity for the rest of the run.
type Store struct {
	dir    string
	logger *zap.Logger

	mu       sync.Mutex
	clientID string
}

// NewStore creates a store rooted at dir. An empty dir disables persistence.
func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger}
}

// GetOrCreate returns the stored identity, creating it if none exists yet
func (s *Store) GetOrCreate() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clientID != "" {
		return s.clientID
	}

	if id, err := s.load(); err == nil && id != "" {
		s.clientID = id
		return id
	} else if err != nil && !os.IsNotExist(err) {
		s.logger.Warn("ignoring unreadable identity file", zap.String("path", s.path()), zap.Error(err))
	}

	s.clientID = generate()
	if err := s.save(s.clientID); err != nil {
		s.logger.Warn("identity not persisted, using it for this run only",
			zap.String("client_id", s.clientID), zap.Error(err))
	} else {
		s.logger.Info("created client identity", zap.String("client_id", s.clientID))
	}
	return s.clientID
}

func (s *Store) path() string {
	return filepath.Join(s.dir, FileName)
}

func (s *Store) load() (string, error) {
	if s.dir == "" {
		return "", os.ErrNotExist
	}

	data, err := os.ReadFile(s.path())
	if err != nil {
		return "", err
	}

	var stored persistedIdentity
	if err := json.Unmarshal(data, &stored); err != nil {
		return "", fmt.Errorf("failed to unmarshal identity: %w", err)
	}
	return strings.TrimSpace(stored.ClientID), nil
}

func (s *Store) save(id string) error {
	if s.dir == "" {
		return fmt.Errorf("no state directory configured")
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(persistedIdentity{ClientID: id}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	// Readers must never observe a partial file
	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		return fmt.Errorf("failed to replace identity file: %w", err)
	}
	return nil
}

func generate() string {
	return Prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
