package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/GoCodeAlone/provision/state"
)

func runState(args []string) error {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to service configuration YAML file")
	asJSON := fs.Bool("json", false, "Print records as JSON")
	verbose := fs.Bool("v", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: provisionctl state [options] [kind]\n\nShow tracked resources, optionally filtered to one kind.\n\nOptions:\n")
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

	ctx := context.Background()
	records, err := listRecords(ctx, app, fs.Args())
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(records)
	}
	if len(records) == 0 {
		fmt.Println("no tracked resources")
		return nil
	}
	printRecords(records)
	return nil
}

func listRecords(ctx context.Context, app *cliApp, args []string) ([]state.ResourceRecord, error) {
	if len(args) > 0 {
		return app.Engine().Records(ctx, args[0])
	}
	return app.Engine().AllRecords(ctx)
}
