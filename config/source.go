package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"
)

// Source provides configuration from an arbitrary backend. Implementations
// must be safe for concurrent use.
type Source interface {
	// Load retrieves the current configuration.
	Load(ctx context.Context) (*Config, error)

	// Hash returns a content hash of the current configuration, used for
	// change detection without full deserialization.
	Hash(ctx context.Context) (string, error)

	// Name returns a human-readable identifier for this source.
	Name() string
}

// ChangeEvent is emitted when a Source detects a configuration change.
type ChangeEvent struct {
	Source  string
	OldHash string
	NewHash string
	Config  *Config
	Time    time.Time
}

// FileSource loads configuration from a YAML file on disk.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource that reads from path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads and validates the configuration file.
func (s *FileSource) Load(_ context.Context) (*Config, error) {
	return LoadFromFile(s.path)
}

// Hash returns the SHA256 hex digest of the raw file bytes.
func (s *FileSource) Hash(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("file source: read %s: %w", s.path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Name returns a human-readable identifier for this source.
func (s *FileSource) Name() string {
	return "file:" + s.path
}

// Path returns the filesystem path this source reads from.
func (s *FileSource) Path() string { return s.path }
