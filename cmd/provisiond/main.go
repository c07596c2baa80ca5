// Command provisiond runs the provisioning service: an HTTP API that turns
// infrastructure requests, free-text or structured, into terraform runs and
// tracks the resources they create.
//
// Usage:
//
//	provisiond [options]
//
// Options:
//
//	-config string      Path to service configuration YAML file
//	-addr string        HTTP listen address (overrides config)
//	-log-level string   Log level: debug, info, warn, error (overrides config)
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoCodeAlone/modular"

	"github.com/GoCodeAlone/provision"
	"github.com/GoCodeAlone/provision/api"
	"github.com/GoCodeAlone/provision/config"
	"github.com/GoCodeAlone/provision/secrets"
)

var (
	configFile = flag.String("config", "", "Path to service configuration YAML file")
	addr       = flag.String("addr", "", "HTTP listen address (overrides config)")
	logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(*configFile)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	if *addr != "" {
		cfg.Service.HTTPAddr = *addr
	}
	if *logLevel != "" {
		cfg.Service.LogLevel = *logLevel
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Service.LogLevel),
	}))

	ctx := context.Background()
	if err := resolveSecrets(ctx, cfg); err != nil {
		log.Fatalf("Failed to resolve secrets: %v", err)
	}

	app := modular.NewStdApplication(nil, logger)
	mod := provision.NewModule(cfg)
	if err := mod.Init(app); err != nil {
		log.Fatalf("Failed to initialize provisioning module: %v", err)
	}
	if err := mod.Start(ctx); err != nil {
		log.Fatalf("Failed to start provisioning module: %v", err)
	}

	router := api.NewRouter(mod.Engine(), api.Config{
		Metrics: mod.Metrics().Handler(),
		Logger:  logger,
	})

	server := &http.Server{
		Addr:              cfg.Service.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", "addr", cfg.Service.HTTPAddr, "environment", cfg.Workspace.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// The watcher only reports changes. Runs in flight hold workspace locks,
	// so the safe way to pick up new settings is a restart.
	var watcher *config.Watcher
	if *configFile != "" {
		watcher = config.NewWatcher(config.NewFileSource(*configFile), func(ev config.ChangeEvent) {
			logger.Info("configuration file changed, restart to apply", "source", ev.Source)
		}, config.WithWatchLogger(logger))
		if err := watcher.Start(); err != nil {
			logger.Warn("config watcher failed to start", "err", err)
			watcher = nil
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			log.Printf("Config watcher shutdown error: %v", err)
		}
	}
	if err := mod.Stop(shutdownCtx); err != nil {
		log.Printf("Module shutdown error: %v", err)
	}

	logger.Info("shutdown complete")
}

// resolveSecrets builds the secret resolver and replaces secret:// references
// in the configuration. The vault token itself resolves through env and file
// providers before the vault provider registers.
func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	resolver := secrets.NewResolver()
	resolver.Register("env", secrets.NewEnvProvider("PROVISION"))
	resolver.Register("file", secrets.NewFileProvider("/etc/provision/secrets"))

	if err := cfg.ResolveVaultToken(ctx, resolver); err != nil {
		return err
	}
	if cfg.Vault.Address != "" {
		vault, err := secrets.NewVaultProvider(cfg.Vault)
		if err != nil {
			return err
		}
		resolver.Register("vault", vault)
	}
	return cfg.ResolveSecrets(ctx, resolver)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
