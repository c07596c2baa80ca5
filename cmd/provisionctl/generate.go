package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to service configuration YAML file")
	output := fs.String("output", "", "Write the rendered configuration to this file instead of stdout")
	asJSON := fs.Bool("json", false, "Print the rendered configuration with its metadata as JSON")
	verbose := fs.Bool("v", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: provisionctl generate [options] <kind> [field=value ...]\n\nRender terraform code for a resource without applying it. The same fields\nalways render the same bytes, so the output is safe to diff and commit.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("resource kind is required")
	}
	kind := fs.Arg(0)
	slots, err := parseSlots(fs.Args()[1:])
	if err != nil {
		return err
	}

	app, err := newCLIApp(*configPath, *verbose)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	cfg, err := app.Engine().Generate(context.Background(), kind, slots)
	if err != nil {
		return err
	}

	switch {
	case *asJSON:
		return printJSON(cfg)
	case *output != "":
		if err := os.WriteFile(*output, []byte(cfg.Content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", *output, err)
		}
		fmt.Printf("wrote %s (fingerprint %s)\n", *output, cfg.Fingerprint)
		return nil
	default:
		fmt.Print(cfg.Content)
		return nil
	}
}
