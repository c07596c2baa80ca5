// Command provision-mcp-server starts the provisioning MCP (Model Context
// Protocol) server.
//
// The server runs over stdio, making it compatible with any MCP-capable AI
// client. It exposes provisioning tools (create resources, generate terraform
// code, destroy, inspect tracked state) backed by the same engine the HTTP
// service runs.
//
// Usage:
//
//	provision-mcp-server [options]
//
// Options:
//
//	-config string   Path to service configuration YAML file
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/GoCodeAlone/modular"

	"github.com/GoCodeAlone/provision"
	"github.com/GoCodeAlone/provision/config"
	provisionmcp "github.com/GoCodeAlone/provision/mcp"
)

func main() {
	configFile := flag.String("config", "", "Path to service configuration YAML file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("provision-mcp-server %s\n", provisionmcp.Version)
		os.Exit(0)
	}

	// Stdout carries the MCP transport, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}

	app := modular.NewStdApplication(nil, logger)
	mod := provision.NewModule(cfg)
	if err := mod.Init(app); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize provisioning module: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	if err := mod.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start provisioning module: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := mod.Stop(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
		}
	}()

	srv := provisionmcp.NewServer(mod.Engine())
	if err := srv.ServeStdio(); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}
