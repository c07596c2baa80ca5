package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
)

func runDestroy(args []string) error {
	fs := flag.NewFlagSet("destroy", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to service configuration YAML file")
	asJSON := fs.Bool("json", false, "Print the full run outcome as JSON")
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	verbose := fs.Bool("v", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: provisionctl destroy [options] <kind>\n\nDestroy every tracked resource of a kind in the configured environment.\nWith nothing tracked the command succeeds without running terraform.\n\nOptions:\n")
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

	app, err := newCLIApp(*configPath, *verbose)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if !*yes {
		records, err := app.Engine().Records(context.Background(), kind)
		if err != nil {
			return err
		}
		if len(records) > 0 {
			fmt.Printf("About to destroy %d tracked %s resource(s) in environment %q:\n", len(records), kind, app.cfg.Workspace.Environment)
			printRecords(records)
			fmt.Print("Type 'yes' to continue: ")
			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if strings.TrimSpace(line) != "yes" {
				return fmt.Errorf("destroy aborted")
			}
		}
	}

	outcome, err := app.Engine().Destroy(context.Background(), kind)
	if printErr := printOutcome(outcome, *asJSON); printErr != nil {
		return printErr
	}
	return err
}
