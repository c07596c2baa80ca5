package secrets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newVaultTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/secret/data/provision/rds", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "test-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":{"password":"changeme123!","username":"admin"}}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestVaultProvider_Get_Field(t *testing.T) {
	srv := newVaultTestServer(t)
	p, err := NewVaultProvider(VaultConfig{Address: srv.URL, Token: "test-token"})
	if err != nil {
		t.Fatalf("NewVaultProvider: %v", err)
	}

	val, err := p.Get(context.Background(), "provision/rds#password")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "changeme123!" {
		t.Errorf("expected 'changeme123!', got %q", val)
	}
}

func TestVaultProvider_Get_WholeSecret(t *testing.T) {
	srv := newVaultTestServer(t)
	p, err := NewVaultProvider(VaultConfig{Address: srv.URL, Token: "test-token"})
	if err != nil {
		t.Fatalf("NewVaultProvider: %v", err)
	}

	val, err := p.Get(context.Background(), "provision/rds")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	// Whole-secret reads return the data map as JSON.
	if val != `{"password":"changeme123!","username":"admin"}` {
		t.Errorf("unexpected JSON payload: %s", val)
	}
}

func TestVaultProvider_Get_MissingField(t *testing.T) {
	srv := newVaultTestServer(t)
	p, err := NewVaultProvider(VaultConfig{Address: srv.URL, Token: "test-token"})
	if err != nil {
		t.Fatalf("NewVaultProvider: %v", err)
	}

	_, err = p.Get(context.Background(), "provision/rds#no_such_field")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestVaultProvider_Get_MissingPath(t *testing.T) {
	srv := newVaultTestServer(t)
	p, err := NewVaultProvider(VaultConfig{Address: srv.URL, Token: "test-token"})
	if err != nil {
		t.Fatalf("NewVaultProvider: %v", err)
	}

	_, err = p.Get(context.Background(), "provision/unknown")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestVaultProvider_Get_BadToken(t *testing.T) {
	srv := newVaultTestServer(t)
	p, err := NewVaultProvider(VaultConfig{Address: srv.URL, Token: "wrong"})
	if err != nil {
		t.Fatalf("NewVaultProvider: %v", err)
	}

	if _, err := p.Get(context.Background(), "provision/rds#password"); err == nil {
		t.Fatal("expected error for rejected token")
	}
}

func TestVaultProvider_Config(t *testing.T) {
	if _, err := NewVaultProvider(VaultConfig{Token: "t"}); !errors.Is(err, ErrProviderInit) {
		t.Errorf("expected ErrProviderInit without address, got %v", err)
	}
	if _, err := NewVaultProvider(VaultConfig{Address: "http://vault:8200"}); !errors.Is(err, ErrProviderInit) {
		t.Errorf("expected ErrProviderInit without token, got %v", err)
	}
}

func TestVaultProvider_ResolverIntegration(t *testing.T) {
	srv := newVaultTestServer(t)
	p, err := NewVaultProvider(VaultConfig{Address: srv.URL, Token: "test-token"})
	if err != nil {
		t.Fatalf("NewVaultProvider: %v", err)
	}

	r := NewResolver()
	r.Register("vault", p)

	val, err := r.Resolve(context.Background(), "secret://vault:provision/rds#password")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if val != "changeme123!" {
		t.Errorf("expected 'changeme123!', got %q", val)
	}
}
