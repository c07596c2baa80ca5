package main

import (
	"fmt"
	"os"
)

var version = "dev"

var commands = map[string]func([]string) error{
	"request":  runRequest,
	"create":   runCreate,
	"generate": runGenerate,
	"destroy":  runDestroy,
	"state":    runState,
	"health":   runHealth,
	"mcp":      runMCP,
}

func usage() {
	fmt.Fprintf(os.Stderr, `provisionctl - Infrastructure provisioning CLI (version %s)

Usage:
  provisionctl <command> [options]

Commands:
  request    Provision from a free-text request ("create ec2 instance t2.micro named web-1")
  create     Provision a resource from explicit key=value fields
  generate   Render terraform code for a resource without applying it
  destroy    Destroy every tracked resource of a kind
  state      Show tracked resources
  health     Report engine and terraform binary health
  mcp        Start the MCP server over stdio for AI assistant integration

Run 'provisionctl <command> -h' for command-specific help.
`, version)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		usage()
		os.Exit(0)
	}
	if cmd == "-v" || cmd == "--version" || cmd == "version" {
		fmt.Println(version)
		os.Exit(0)
	}

	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err := fn(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
