package provision

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/GoCodeAlone/modular"

	"github.com/GoCodeAlone/provision/cloud"
	"github.com/GoCodeAlone/provision/config"
	"github.com/GoCodeAlone/provision/observability"
	"github.com/GoCodeAlone/provision/policy"
	"github.com/GoCodeAlone/provision/state"
	"github.com/GoCodeAlone/provision/terraform"
	"github.com/GoCodeAlone/provision/workspace"
)

// Service names the module registers with the application.
const (
	ServiceEngine  = "provision.engine"
	ServiceMetrics = "provision.metrics"
	ServiceStore   = "provision.store"
)

// ConfigSection is the application config section the module reads.
const ConfigSection = "provision"

// Module wires the provisioning engine into a modular application: it builds
// the engine from configuration, registers it as a service, and manages the
// record store lifecycle.
type Module struct {
	name    string
	cfg     *config.Config
	logger  *slog.Logger
	runner  terraform.Runner
	store   state.Store
	metrics *observability.Metrics
	tracing *observability.TracerProvider
	engine  *Engine
}

// NewModule creates the module. A nil cfg is read from the application's
// "provision" config section during Init, falling back to defaults.
func NewModule(cfg *config.Config) *Module {
	return &Module{name: "provision", cfg: cfg}
}

// Name implements modular.Module.
func (m *Module) Name() string { return m.name }

// Engine returns the engine built during Init.
func (m *Module) Engine() *Engine { return m.engine }

// Metrics returns the metrics collector built during Init.
func (m *Module) Metrics() *observability.Metrics { return m.metrics }

// Config returns the configuration the module runs with.
func (m *Module) Config() *config.Config { return m.cfg }

// Init builds the engine and registers its services with the application.
func (m *Module) Init(app modular.Application) error {
	if logger, ok := app.Logger().(*slog.Logger); ok {
		m.logger = logger
	} else {
		m.logger = slog.Default()
	}

	if m.cfg == nil {
		if section, err := app.GetConfigSection(ConfigSection); err == nil {
			if cfg, ok := section.GetConfig().(*config.Config); ok {
				m.cfg = cfg
			}
		}
	}
	if m.cfg == nil {
		m.logger.Info("no provision config section registered, using defaults")
		m.cfg = config.Default()
	}
	cfg := m.cfg

	if m.runner == nil {
		m.runner = terraform.NewCLIRunner(
			terraform.WithBinary(cfg.Terraform.Binary),
			terraform.WithTimeouts(cfg.Terraform.Timeouts()),
			terraform.WithLogger(m.logger),
		)
	}

	store, err := openStore(cfg.State)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	m.store = store

	manager, err := workspace.NewManager(cfg.Workspace.Root, cfg.Workspace.Environment, m.logger)
	if err != nil {
		return fmt.Errorf("failed to create workspace manager: %w", err)
	}

	policies, err := policy.New(cfg.Policies)
	if err != nil {
		return fmt.Errorf("failed to compile policies: %w", err)
	}

	m.metrics = observability.NewMetrics()

	tracingCfg := observability.DefaultTracingConfig()
	tracingCfg.Enabled = cfg.Service.TracingEnabled
	if cfg.Service.TracingEndpoint != "" {
		tracingCfg.Endpoint = cfg.Service.TracingEndpoint
	}
	if cfg.Service.Name != "" {
		tracingCfg.ServiceName = cfg.Service.Name
	}
	m.tracing, err = observability.NewTracerProvider(context.Background(), tracingCfg)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	opts := []Option{
		WithDefaults(cfg.Defaults),
		WithPolicies(policies),
		WithMetrics(m.metrics),
		WithTracer(m.tracing.Tracer()),
		WithLogger(m.logger),
		WithLockWait(cfg.Workspace.LockWait()),
		WithPlanRetries(cfg.Terraform.PlanRetries),
		WithMaxConcurrent(cfg.Service.MaxConcurrentRuns),
	}
	if verifier := m.buildVerifier(cfg); verifier != nil {
		opts = append(opts, WithVerifier(verifier))
	}

	m.engine, err = NewEngine(m.runner, m.store, manager, opts...)
	if err != nil {
		return err
	}

	if err := app.RegisterService(ServiceEngine, m.engine); err != nil {
		return fmt.Errorf("failed to register engine service: %w", err)
	}
	if err := app.RegisterService(ServiceMetrics, m.metrics); err != nil {
		return fmt.Errorf("failed to register metrics service: %w", err)
	}
	if err := app.RegisterService(ServiceStore, m.store); err != nil {
		return fmt.Errorf("failed to register store service: %w", err)
	}
	return nil
}

// Start probes the terraform binary so a broken install surfaces at boot
// instead of on the first request.
func (m *Module) Start(ctx context.Context) error {
	if err := m.runner.IsAvailable(ctx); err != nil {
		m.logger.Warn("terraform binary not available, runs will fail", "binary", m.cfg.Terraform.Binary, "err", err)
	} else if version, err := m.runner.Version(ctx); err == nil {
		m.logger.Info("terraform available", "version", version)
	}
	m.logger.Info("provision module started",
		"environment", m.cfg.Workspace.Environment,
		"state_backend", m.cfg.State.Backend,
		"max_concurrent_runs", m.cfg.Service.MaxConcurrentRuns)
	return nil
}

// Stop flushes pending trace spans and closes the record store.
func (m *Module) Stop(ctx context.Context) error {
	if m.tracing != nil {
		if err := m.tracing.Shutdown(ctx); err != nil {
			m.logger.Warn("failed to shut down tracing", "err", err)
		}
	}
	if closer, ok := m.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close record store: %w", err)
		}
	}
	return nil
}

// ProvidesServices returns the services this module provides.
func (m *Module) ProvidesServices() []modular.ServiceProvider {
	return []modular.ServiceProvider{
		{
			Name:        m.name,
			Description: "Infrastructure provisioning engine",
			Instance:    m,
		},
	}
}

// RequiresServices returns the services this module requires.
func (m *Module) RequiresServices() []modular.ServiceDependency {
	return nil
}

// buildVerifier creates the post-apply verifier when configured. Any setup
// failure disables verification instead of blocking boot; runs only warn on
// verification errors anyway.
func (m *Module) buildVerifier(cfg *config.Config) Verifier {
	if !cfg.Cloud.VerifyAfterApply {
		return nil
	}
	account := cloud.NewAccount(cfg.Cloud.Account, cfg.Cloud.Region, cfg.Cloud.Credentials, m.logger)
	awsCfg, err := account.AWSConfig(context.Background())
	if err != nil {
		m.logger.Warn("cloud credentials unavailable, post-apply verification disabled", "err", err)
		return nil
	}
	return cloud.NewVerifier(awsCfg, m.logger)
}

func openStore(cfg config.StateConfig) (state.Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return state.NewSQLiteStore(cfg.DSN)
	case "memory":
		return state.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported state backend %q", cfg.Backend)
	}
}
