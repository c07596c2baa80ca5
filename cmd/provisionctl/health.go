package main

import (
	"context"
	"flag"
	"fmt"
)

func runHealth(args []string) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to service configuration YAML file")
	asJSON := fs.Bool("json", false, "Print the health report as JSON")
	verbose := fs.Bool("v", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: provisionctl health [options]\n\nReport engine health: terraform binary availability and tracked resource\ncounts.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := newCLIApp(*configPath, *verbose)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	health := app.Engine().CheckHealth(context.Background())
	if *asJSON {
		return printJSON(health)
	}

	fmt.Printf("Status:             %s\n", health.Status)
	fmt.Printf("Terraform:          available=%t", health.TerraformAvailable)
	if health.TerraformVersion != "" {
		fmt.Printf(" version=%s", health.TerraformVersion)
	}
	fmt.Println()
	fmt.Printf("Environment:        %s\n", health.Environment)
	fmt.Printf("Tracked resources:  %d\n", health.TrackedResources)
	if health.Status != "ok" {
		return fmt.Errorf("engine is %s", health.Status)
	}
	return nil
}
