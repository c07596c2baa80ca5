package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Resolver routes secret:// references to registered providers by scheme.
//
// Reference forms:
//   - secret://vault:path#field  — "vault" provider, key "path#field"
//   - secret://file:db_password  — "file" provider, key "db_password"
//   - secret://env:RDS_PASSWORD  — "env" provider, key "RDS_PASSWORD"
//   - secret://RDS_PASSWORD      — no scheme, defaults to "env"
//
// Values without the secret:// prefix pass through unchanged.
type Resolver struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewResolver creates a Resolver with an EnvProvider registered under "env".
func NewResolver() *Resolver {
	r := &Resolver{providers: make(map[string]Provider)}
	r.providers["env"] = NewEnvProvider("")
	return r
}

// Register adds or replaces the provider for a scheme.
func (r *Resolver) Register(scheme string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[scheme] = provider
}

// Schemes returns the registered provider schemes.
func (r *Resolver) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemes := make([]string, 0, len(r.providers))
	for s := range r.providers {
		schemes = append(schemes, s)
	}
	return schemes
}

// Resolve replaces a secret:// reference with the secret value. Plain values
// are returned as-is.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	if !strings.HasPrefix(value, SecretPrefix) {
		return value, nil
	}
	ref := strings.TrimPrefix(value, SecretPrefix)
	scheme, key := parseReference(ref)

	r.mu.RLock()
	provider, ok := r.providers[scheme]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("secrets: unknown provider scheme %q in reference %q", scheme, value)
	}

	resolved, err := provider.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("secrets: failed to resolve %q: %w", value, err)
	}
	return resolved, nil
}

// ResolveMap resolves every secret:// reference in a string map, recursing
// into nested maps.
func (r *Resolver) ResolveMap(ctx context.Context, m map[string]any) (map[string]any, error) {
	result := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			resolved, err := r.Resolve(ctx, val)
			if err != nil {
				return nil, fmt.Errorf("secrets: failed to resolve key %q: %w", k, err)
			}
			result[k] = resolved
		case map[string]any:
			resolved, err := r.ResolveMap(ctx, val)
			if err != nil {
				return nil, err
			}
			result[k] = resolved
		default:
			result[k] = v
		}
	}
	return result, nil
}

// parseReference splits "scheme:key" into its parts. References without a
// valid scheme resolve through the env provider.
func parseReference(ref string) (scheme, key string) {
	idx := strings.IndexByte(ref, ':')
	if idx > 0 && isValidScheme(ref[:idx]) {
		return ref[:idx], ref[idx+1:]
	}
	return "env", ref
}

// isValidScheme reports whether s is alphanumeric plus hyphens.
func isValidScheme(s string) bool {
	for _, c := range s {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-') {
			return false
		}
	}
	return len(s) > 0
}
