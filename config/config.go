// Package config loads, validates, and watches the service configuration.
// Credential-bearing fields accept secret:// references which are resolved
// in memory after load.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/provision/cloud"
	"github.com/GoCodeAlone/provision/policy"
	"github.com/GoCodeAlone/provision/resource"
	"github.com/GoCodeAlone/provision/secrets"
	"github.com/GoCodeAlone/provision/terraform"
)

// Config is the root service configuration.
type Config struct {
	Service   ServiceConfig       `json:"service" yaml:"service"`
	Terraform TerraformConfig     `json:"terraform" yaml:"terraform"`
	Workspace WorkspaceConfig     `json:"workspace" yaml:"workspace"`
	State     StateConfig         `json:"state" yaml:"state"`
	Cloud     CloudConfig         `json:"cloud" yaml:"cloud"`
	Vault     secrets.VaultConfig `json:"vault,omitempty" yaml:"vault,omitempty"`
	Defaults  resource.Defaults   `json:"defaults" yaml:"defaults"`
	Policies  []policy.Rule       `json:"policies,omitempty" yaml:"policies,omitempty"`
}

// ServiceConfig covers the service process itself.
type ServiceConfig struct {
	Name              string `json:"name" yaml:"name"`
	HTTPAddr          string `json:"http_addr" yaml:"http_addr"`
	LogLevel          string `json:"log_level" yaml:"log_level"`
	MaxConcurrentRuns int    `json:"max_concurrent_runs" yaml:"max_concurrent_runs"`
	TracingEnabled    bool   `json:"tracing_enabled" yaml:"tracing_enabled"`
	TracingEndpoint   string `json:"tracing_endpoint,omitempty" yaml:"tracing_endpoint,omitempty"`
}

// TerraformConfig covers the CLI the orchestrator shells out to.
type TerraformConfig struct {
	Binary                string `json:"binary" yaml:"binary"`
	InitTimeoutSeconds    int    `json:"init_timeout_seconds" yaml:"init_timeout_seconds"`
	PlanTimeoutSeconds    int    `json:"plan_timeout_seconds" yaml:"plan_timeout_seconds"`
	ApplyTimeoutSeconds   int    `json:"apply_timeout_seconds" yaml:"apply_timeout_seconds"`
	DestroyTimeoutSeconds int    `json:"destroy_timeout_seconds" yaml:"destroy_timeout_seconds"`
	ShowTimeoutSeconds    int    `json:"show_timeout_seconds" yaml:"show_timeout_seconds"`
	PlanRetries           int    `json:"plan_retries" yaml:"plan_retries"`
}

// Timeouts converts the per-step second counts into terraform.Timeouts,
// keeping the package defaults for unset fields.
func (c TerraformConfig) Timeouts() terraform.Timeouts {
	t := terraform.DefaultTimeouts()
	if c.InitTimeoutSeconds > 0 {
		t.Init = time.Duration(c.InitTimeoutSeconds) * time.Second
	}
	if c.PlanTimeoutSeconds > 0 {
		t.Plan = time.Duration(c.PlanTimeoutSeconds) * time.Second
	}
	if c.ApplyTimeoutSeconds > 0 {
		t.Apply = time.Duration(c.ApplyTimeoutSeconds) * time.Second
	}
	if c.DestroyTimeoutSeconds > 0 {
		t.Destroy = time.Duration(c.DestroyTimeoutSeconds) * time.Second
	}
	if c.ShowTimeoutSeconds > 0 {
		t.Show = time.Duration(c.ShowTimeoutSeconds) * time.Second
	}
	return t
}

// WorkspaceConfig covers the on-disk workspace layout and its locks.
type WorkspaceConfig struct {
	Root            string `json:"root" yaml:"root"`
	Environment     string `json:"environment" yaml:"environment"`
	LockWaitSeconds int    `json:"lock_wait_seconds" yaml:"lock_wait_seconds"`
}

// LockWait returns how long a run waits for a workspace lock.
func (c WorkspaceConfig) LockWait() time.Duration {
	if c.LockWaitSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.LockWaitSeconds) * time.Second
}

// StateConfig covers the resource record store.
type StateConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string `json:"backend" yaml:"backend"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

// CloudConfig covers the provider account generated configurations target.
type CloudConfig struct {
	Account          string            `json:"account" yaml:"account"`
	Region           string            `json:"region,omitempty" yaml:"region,omitempty"`
	Credentials      cloud.Credentials `json:"credentials" yaml:"credentials"`
	VerifyAfterApply bool              `json:"verify_after_apply" yaml:"verify_after_apply"`
}

// Default returns the configuration the service runs with when no file is
// given.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:              "provision",
			HTTPAddr:          ":8080",
			LogLevel:          "info",
			MaxConcurrentRuns: 4,
		},
		Terraform: TerraformConfig{
			Binary:                "terraform",
			InitTimeoutSeconds:    300,
			PlanTimeoutSeconds:    300,
			ApplyTimeoutSeconds:   600,
			DestroyTimeoutSeconds: 600,
			ShowTimeoutSeconds:    60,
			PlanRetries:           2,
		},
		Workspace: WorkspaceConfig{
			Root:            "workspaces",
			Environment:     "default",
			LockWaitSeconds: 30,
		},
		State: StateConfig{
			Backend: "sqlite",
			DSN:     "provision.db",
		},
		Cloud: CloudConfig{
			Account:     "default",
			Credentials: cloud.Credentials{Type: "default"},
		},
	}
}

// LoadFromFile reads a YAML configuration file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses YAML configuration over the defaults.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Service.MaxConcurrentRuns < 1 {
		return fmt.Errorf("config: service.max_concurrent_runs must be at least 1, got %d", c.Service.MaxConcurrentRuns)
	}
	if c.Terraform.Binary == "" {
		return fmt.Errorf("config: terraform.binary must not be empty")
	}
	if c.Terraform.PlanRetries < 0 {
		return fmt.Errorf("config: terraform.plan_retries must not be negative, got %d", c.Terraform.PlanRetries)
	}
	switch c.State.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown state backend %q (want sqlite or memory)", c.State.Backend)
	}
	if c.State.Backend == "sqlite" && c.State.DSN == "" {
		return fmt.Errorf("config: state.dsn is required for the sqlite backend")
	}
	if c.Workspace.Root == "" {
		return fmt.Errorf("config: workspace.root must not be empty")
	}
	return nil
}

// ResolveSecrets replaces secret:// references in credential-bearing fields.
// Resolve the vault token with ResolveVaultToken and register the vault
// provider on r first so vault references here can be served.
func (c *Config) ResolveSecrets(ctx context.Context, r *secrets.Resolver) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"cloud.credentials.access_key", &c.Cloud.Credentials.AccessKey},
		{"cloud.credentials.secret_key", &c.Cloud.Credentials.SecretKey},
		{"cloud.credentials.session_token", &c.Cloud.Credentials.SessionToken},
		{"defaults.rds.master_username", &c.Defaults.RDS.MasterUsername},
		{"defaults.rds.master_password", &c.Defaults.RDS.MasterPassword},
	}
	for _, f := range fields {
		resolved, err := r.Resolve(ctx, *f.value)
		if err != nil {
			return fmt.Errorf("config: failed to resolve %s: %w", f.name, err)
		}
		*f.value = resolved
	}
	return nil
}

// ResolveVaultToken resolves only the vault token reference.
func (c *Config) ResolveVaultToken(ctx context.Context, r *secrets.Resolver) error {
	resolved, err := r.Resolve(ctx, c.Vault.Token)
	if err != nil {
		return fmt.Errorf("config: failed to resolve vault.token: %w", err)
	}
	c.Vault.Token = resolved
	return nil
}
