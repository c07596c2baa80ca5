package main

import (
	"context"
	"flag"
	"fmt"
)

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to service configuration YAML file")
	asJSON := fs.Bool("json", false, "Print the full run outcome as JSON")
	verbose := fs.Bool("v", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: provisionctl create [options] <kind> [field=value ...]\n\nProvision a resource from explicit fields, e.g.:\n\n  provisionctl create ec2 name=web-1 instance_type=t2.micro\n  provisionctl create s3 bucket_name=my-logs versioning=true\n\nOptions:\n")
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

	outcome, err := app.Engine().Provision(context.Background(), kind, slots)
	if printErr := printOutcome(outcome, *asJSON); printErr != nil {
		return printErr
	}
	return err
}
