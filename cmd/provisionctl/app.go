package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/GoCodeAlone/modular"

	"github.com/GoCodeAlone/provision"
	"github.com/GoCodeAlone/provision/config"
	"github.com/GoCodeAlone/provision/state"
)

// cliApp bootstraps the provisioning engine for a single command invocation.
// Terraform runs locally, so the CLI needs the same module wiring as the
// daemon, just without the HTTP surface.
type cliApp struct {
	cfg    *config.Config
	module *provision.Module
}

func newCLIApp(configPath string, verbose bool) (*cliApp, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// Logs go to stderr so command output on stdout stays parseable.
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	app := modular.NewStdApplication(nil, logger)
	mod := provision.NewModule(cfg)
	if err := mod.Init(app); err != nil {
		return nil, err
	}
	if err := mod.Start(context.Background()); err != nil {
		return nil, err
	}
	return &cliApp{cfg: cfg, module: mod}, nil
}

func (a *cliApp) Engine() *provision.Engine { return a.module.Engine() }

func (a *cliApp) Close() error {
	return a.module.Stop(context.Background())
}

// parseSlots converts positional key=value arguments into resource fields.
func parseSlots(args []string) (map[string]string, error) {
	slots := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q (want key=value)", arg)
		}
		slots[key] = value
	}
	return slots, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// printOutcome writes a run outcome, as indented JSON or a short human
// summary.
func printOutcome(outcome *provision.Outcome, asJSON bool) error {
	if outcome == nil {
		return nil
	}
	if asJSON {
		return printJSON(outcome)
	}

	fmt.Printf("Request:    %s\n", outcome.RequestID)
	fmt.Printf("Operation:  %s %s\n", outcome.Operation, outcome.Kind)
	fmt.Printf("Status:     %s (%s)\n", outcome.Status, outcome.Duration().Round(time.Millisecond))
	if len(outcome.Stages) > 0 {
		stages := make([]string, 0, len(outcome.Stages))
		for _, ev := range outcome.Stages {
			stages = append(stages, string(ev.Stage))
		}
		fmt.Printf("Stages:     %s\n", strings.Join(stages, " > "))
	}
	if outcome.Changes.Detected {
		fmt.Printf("Changes:    %d to add, %d to change, %d to destroy\n",
			outcome.Changes.Add, outcome.Changes.Change, outcome.Changes.Destroy)
	}
	if outcome.ConfigPath != "" {
		fmt.Printf("Config:     %s\n", outcome.ConfigPath)
	}
	if outcome.Error != "" {
		fmt.Printf("Error:      %s\n", outcome.Error)
	}
	if len(outcome.Records) > 0 {
		fmt.Println("Resources:")
		printRecords(outcome.Records)
	}
	return nil
}

func printRecords(records []state.ResourceRecord) {
	fmt.Printf("  %-30s %-8s %-22s %-10s %s\n", "ID", "KIND", "NAME", "STATUS", "UPDATED")
	for _, rec := range records {
		fmt.Printf("  %-30s %-8s %-22s %-10s %s\n",
			rec.ID, rec.Kind, rec.Name, rec.Status, rec.UpdatedAt.Format(time.RFC3339))
	}
}
