package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
)

func runRequest(args []string) error {
	fs := flag.NewFlagSet("request", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to service configuration YAML file")
	asJSON := fs.Bool("json", false, "Print the full run outcome as JSON")
	verbose := fs.Bool("v", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: provisionctl request [options] <request text>\n\nProvision from a free-text request, e.g.:\n\n  provisionctl request create ec2 instance t2.micro named web-1\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("request text is required")
	}
	text := strings.Join(fs.Args(), " ")

	app, err := newCLIApp(*configPath, *verbose)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	outcome, err := app.Engine().Handle(context.Background(), text)
	if printErr := printOutcome(outcome, *asJSON); printErr != nil {
		return printErr
	}
	return err
}
