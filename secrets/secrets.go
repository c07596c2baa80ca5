// Package secrets supplies credential material to the provisioning pipeline
// so that database passwords and provider tokens never sit in plain
// configuration files. Values reference secrets with a secret:// URI and are
// resolved at load time; resolved values stay in memory only.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SecretPrefix is the URI scheme configuration values use to reference
// secrets.
const SecretPrefix = "secret://"

// Common errors.
var (
	ErrNotFound     = errors.New("secrets: secret not found")
	ErrInvalidKey   = errors.New("secrets: invalid key")
	ErrProviderInit = errors.New("secrets: provider initialization failed")
)

// Provider is a read-only secret backend.
type Provider interface {
	// Name returns the provider identifier.
	Name() string
	// Get retrieves a secret value by key.
	Get(ctx context.Context, key string) (string, error)
}

// EnvProvider reads secrets from environment variables. Keys are uppercased
// with dots replaced by underscores, so "rds.master_password" resolves from
// RDS_MASTER_PASSWORD.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an environment variable provider. A non-empty
// prefix is prepended to every lookup.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	envKey := p.envKey(key)
	val, ok := os.LookupEnv(envKey)
	if !ok {
		return "", fmt.Errorf("%w: env var %s", ErrNotFound, envKey)
	}
	return val, nil
}

func (p *EnvProvider) envKey(key string) string {
	k := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if p.prefix != "" {
		return strings.ToUpper(p.prefix) + k
	}
	return k
}

// FileProvider reads secrets from files in a directory. The file name is the
// key and the trimmed content is the value, matching Kubernetes secret
// volume mounts.
type FileProvider struct {
	dir string
}

// NewFileProvider creates a file-based provider rooted at dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Get(_ context.Context, key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	data, err := os.ReadFile(filepath.Join(p.dir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("secrets: failed to read %s: %w", key, err)
	}
	return strings.TrimRight(string(data), "\n\r"), nil
}

// StaticProvider serves secrets from a fixed map. It backs tests and
// single-binary development setups.
type StaticProvider struct {
	mu     sync.RWMutex
	name   string
	values map[string]string
}

// NewStaticProvider creates a provider over a copy of values.
func NewStaticProvider(name string, values map[string]string) *StaticProvider {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &StaticProvider{name: name, values: copied}
}

func (p *StaticProvider) Name() string { return p.name }

func (p *StaticProvider) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	val, ok := p.values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return val, nil
}

// Put stores a value, replacing any existing one.
func (p *StaticProvider) Put(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
}
