// Package workspace manages the per-kind directories terraform runs in and
// serializes access to them. One workspace exists per (kind, environment)
// pair; every request against a pair overwrites the same configuration file.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/GoCodeAlone/provision/render"
)

// DefaultEnvironment is used when no environment is configured.
const DefaultEnvironment = "default"

const providersFileName = "providers.tf"

// Written once per workspace so every configuration pins the same provider.
const providersContent = `terraform {
  required_version = ">= 0.14"

  required_providers {
    aws = {
      source  = "hashicorp/aws"
      version = "~> 5.0"
    }
  }
}
`

// Workspace identifies one terraform working directory.
type Workspace struct {
	// Kind is the resource kind the directory serves.
	Kind string `json:"kind"`
	// Env is the environment the directory belongs to.
	Env string `json:"env"`
	// Dir is the absolute directory path.
	Dir string `json:"dir"`
}

// Key returns the lock key for the workspace.
func (w Workspace) Key() string {
	return w.Kind + "/" + w.Env
}

// Manager resolves and prepares workspace directories under a common root.
type Manager struct {
	root   string
	env    string
	logger *slog.Logger
}

// NewManager creates a Manager rooted at root. An empty env selects
// DefaultEnvironment.
func NewManager(root, env string, logger *slog.Logger) (*Manager, error) {
	if root == "" {
		return nil, errors.New("workspace root is required")
	}
	if env == "" {
		env = DefaultEnvironment
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{root: root, env: env, logger: logger}, nil
}

// Environment returns the environment the manager serves.
func (m *Manager) Environment() string {
	return m.env
}

// For returns the workspace for kind. The directory may not exist yet.
func (m *Manager) For(kind string) Workspace {
	return Workspace{
		Kind: kind,
		Env:  m.env,
		Dir:  filepath.Join(m.root, m.env, "terraform_"+kind),
	}
}

// Prepare creates the workspace directory and writes the shared provider
// configuration if it is not already present.
func (m *Manager) Prepare(ws Workspace) error {
	if err := os.MkdirAll(ws.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create workspace %s: %w", ws.Dir, err)
	}
	path := filepath.Join(ws.Dir, providersFileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(path, []byte(providersContent), 0o644); err != nil {
			return fmt.Errorf("failed to write provider configuration: %w", err)
		}
		m.logger.Debug("bootstrapped workspace", "dir", ws.Dir)
	}
	return nil
}

// WriteConfig overwrites the workspace's configuration file with cfg and
// returns the written path. The file always reflects the latest desired
// state; nothing is appended.
func (m *Manager) WriteConfig(ws Workspace, cfg render.GeneratedConfig) (string, error) {
	if err := m.Prepare(ws); err != nil {
		return "", err
	}
	path := filepath.Join(ws.Dir, cfg.TargetPath)
	if err := os.WriteFile(path, []byte(cfg.Content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write configuration %s: %w", path, err)
	}
	m.logger.Debug("wrote configuration",
		"path", path, "kind", cfg.Kind, "fingerprint", cfg.Fingerprint)
	return path, nil
}

// Remove deletes the workspace directory and everything under it.
func (m *Manager) Remove(ws Workspace) error {
	if err := os.RemoveAll(ws.Dir); err != nil {
		return fmt.Errorf("failed to remove workspace %s: %w", ws.Dir, err)
	}
	return nil
}
