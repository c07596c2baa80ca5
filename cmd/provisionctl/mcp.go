package main

import (
	"flag"
	"fmt"

	provisionmcp "github.com/GoCodeAlone/provision/mcp"
)

// runMCP starts the provisioning MCP (Model Context Protocol) server over
// stdio. This exposes provisioning tools to AI assistants.
func runMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to service configuration YAML file")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: provisionctl mcp [options]

Start the provisioning MCP (Model Context Protocol) server over stdio.
This exposes provisioning tools to AI assistants such as Claude Desktop,
VS Code with GitHub Copilot, and Cursor.

The server provides tools for creating resources, generating terraform
code, destroying resources, and inspecting tracked state.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), `
Example Claude Desktop configuration (~/.config/claude/claude_desktop_config.json):

  {
    "mcpServers": {
      "provision": {
        "command": "provisionctl",
        "args": ["mcp", "-config", "/etc/provision/config.yaml"]
      }
    }
  }
`)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := newCLIApp(*configPath, false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	srv := provisionmcp.NewServer(app.Engine())
	return srv.ServeStdio()
}
