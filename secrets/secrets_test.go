package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvProvider_Get_Found(t *testing.T) {
	t.Setenv("RDS_MASTER_PASSWORD", "changeme123!")

	p := NewEnvProvider("")
	val, err := p.Get(context.Background(), "rds.master_password")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "changeme123!" {
		t.Errorf("expected 'changeme123!', got %q", val)
	}
}

func TestEnvProvider_Get_WithPrefix(t *testing.T) {
	t.Setenv("PROVISION_VAULT_TOKEN", "s.abc123")

	p := NewEnvProvider("PROVISION_")
	val, err := p.Get(context.Background(), "vault_token")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "s.abc123" {
		t.Errorf("expected 's.abc123', got %q", val)
	}
}

func TestEnvProvider_Get_NotFound(t *testing.T) {
	p := NewEnvProvider("")
	_, err := p.Get(context.Background(), "nonexistent_secret_key_xyz")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEnvProvider_Get_InvalidKey(t *testing.T) {
	p := NewEnvProvider("")
	_, err := p.Get(context.Background(), "")
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestFileProvider_Get(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "db_password"), []byte("hunter22\n"), 0o600); err != nil {
		t.Fatalf("write secret file: %v", err)
	}

	p := NewFileProvider(dir)
	val, err := p.Get(context.Background(), "db_password")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "hunter22" {
		t.Errorf("expected trailing newline trimmed, got %q", val)
	}
}

func TestFileProvider_Get_NotFound(t *testing.T) {
	p := NewFileProvider(t.TempDir())
	_, err := p.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileProvider_Get_RejectsTraversal(t *testing.T) {
	p := NewFileProvider(t.TempDir())
	_, err := p.Get(context.Background(), "../etc/passwd")
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider("static", map[string]string{"token": "abc"})
	ctx := context.Background()

	val, err := p.Get(ctx, "token")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "abc" {
		t.Errorf("expected 'abc', got %q", val)
	}

	p.Put("token", "def")
	val, err = p.Get(ctx, "token")
	if err != nil {
		t.Fatalf("Get after Put: %v", err)
	}
	if val != "def" {
		t.Errorf("expected 'def', got %q", val)
	}

	if _, err := p.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolver_PassThrough(t *testing.T) {
	r := NewResolver()
	val, err := r.Resolve(context.Background(), "plain-value")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if val != "plain-value" {
		t.Errorf("plain values must pass through, got %q", val)
	}
}

func TestResolver_EnvDefault(t *testing.T) {
	t.Setenv("DB_PASSWORD", "supersecret")

	r := NewResolver()
	val, err := r.Resolve(context.Background(), "secret://DB_PASSWORD")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if val != "supersecret" {
		t.Errorf("expected 'supersecret', got %q", val)
	}
}

func TestResolver_SchemeRouting(t *testing.T) {
	r := NewResolver()
	r.Register("static", NewStaticProvider("static", map[string]string{"api-key": "xyz"}))

	val, err := r.Resolve(context.Background(), "secret://static:api-key")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if val != "xyz" {
		t.Errorf("expected 'xyz', got %q", val)
	}
}

func TestResolver_UnknownScheme(t *testing.T) {
	r := NewResolver()
	_, err := r.Resolve(context.Background(), "secret://nope:key")
	if err == nil {
		t.Fatal("expected error for unknown scheme")
	}
}

func TestResolver_NotFoundPropagates(t *testing.T) {
	r := NewResolver()
	_, err := r.Resolve(context.Background(), "secret://DEFINITELY_NOT_SET_ANYWHERE")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolver_ResolveMap(t *testing.T) {
	r := NewResolver()
	r.Register("static", NewStaticProvider("static", map[string]string{"pw": "resolved"}))

	in := map[string]any{
		"username": "admin",
		"password": "secret://static:pw",
		"nested": map[string]any{
			"token": "secret://static:pw",
		},
		"port": 5432,
	}
	out, err := r.ResolveMap(context.Background(), in)
	if err != nil {
		t.Fatalf("ResolveMap: %v", err)
	}
	if out["username"] != "admin" {
		t.Errorf("username changed: %v", out["username"])
	}
	if out["password"] != "resolved" {
		t.Errorf("password not resolved: %v", out["password"])
	}
	nested, ok := out["nested"].(map[string]any)
	if !ok || nested["token"] != "resolved" {
		t.Errorf("nested token not resolved: %v", out["nested"])
	}
	if out["port"] != 5432 {
		t.Errorf("non-string value changed: %v", out["port"])
	}
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		ref    string
		scheme string
		key    string
	}{
		{"vault:provision/rds#password", "vault", "provision/rds#password"},
		{"file:db_password", "file", "db_password"},
		{"env:DB_HOST", "env", "DB_HOST"},
		{"DB_HOST", "env", "DB_HOST"},
		{"aws-sm:my-secret", "aws-sm", "my-secret"},
		{"path/with:colon", "env", "path/with:colon"},
	}
	for _, tt := range tests {
		scheme, key := parseReference(tt.ref)
		if scheme != tt.scheme || key != tt.key {
			t.Errorf("parseReference(%q) = (%q, %q), want (%q, %q)", tt.ref, scheme, key, tt.scheme, tt.key)
		}
	}
}
