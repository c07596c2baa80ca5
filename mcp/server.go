// Package mcp exposes the provisioning engine over the Model Context
// Protocol so AI assistants can create, inspect, and tear down
// infrastructure through typed tools or free-text requests.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/GoCodeAlone/provision"
	"github.com/GoCodeAlone/provision/render"
	"github.com/GoCodeAlone/provision/resource"
	"github.com/GoCodeAlone/provision/state"
)

// Version is the MCP server version, set at build time.
var Version = "dev"

// Provisioner is the engine surface the MCP server requires. It is kept
// narrow so tests can substitute a double for the real engine.
type Provisioner interface {
	Handle(ctx context.Context, text string) (*provision.Outcome, error)
	Provision(ctx context.Context, kind string, slots map[string]string) (*provision.Outcome, error)
	Generate(ctx context.Context, kind string, slots map[string]string) (render.GeneratedConfig, error)
	Destroy(ctx context.Context, kind string) (*provision.Outcome, error)
	Records(ctx context.Context, kind string) ([]state.ResourceRecord, error)
	AllRecords(ctx context.Context) ([]state.ResourceRecord, error)
	CheckHealth(ctx context.Context) provision.Health
}

// Server wraps an MCP server instance with provisioning tools registered.
type Server struct {
	mcpServer *server.MCPServer
	engine    Provisioner
}

// NewServer creates an MCP server over engine with all tools registered.
func NewServer(engine Provisioner) *Server {
	s := &Server{engine: engine}

	s.mcpServer = server.NewMCPServer(
		"provision-mcp-server",
		Version,
		server.WithToolCapabilities(true),
		server.WithInstructions("This MCP server provisions AWS infrastructure through terraform. "+
			"Use the typed create tools for EC2 instances, S3 buckets, and RDS databases, "+
			"provision_request for free-text requests, generate_terraform_code to preview "+
			"configurations without applying them, and delete_resource to tear a kind down. "+
			"get_resource_state reports what is currently tracked."),
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server instance (useful for testing).
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the MCP server over standard input/output.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// registerTools registers all provisioning tools with the MCP server.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("provision_request",
			mcp.WithDescription("Execute a free-text infrastructure request, e.g. 'create ec2 instance t2.micro named web-1' "+
				"or 'destroy all s3 buckets'. The request is interpreted, validated, and executed through terraform."),
			mcp.WithString("request",
				mcp.Required(),
				mcp.Description("The infrastructure request in plain English"),
			),
		),
		s.handleProvisionRequest,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("create_ec2_instance",
			mcp.WithDescription("Provision an EC2 instance. Omitted arguments fall back to the configured defaults. "+
				"SSH open to the world (0.0.0.0/0) is rejected unless ssh_open_override is true."),
			mcp.WithString("name",
				mcp.Description("Instance name tag"),
			),
			mcp.WithString("instance_type",
				mcp.Description("Instance type, e.g. 't2.micro'"),
			),
			mcp.WithString("ami",
				mcp.Description("Image id, e.g. 'ami-03f4878755434977f'"),
			),
			mcp.WithString("region",
				mcp.Description("AWS region, e.g. 'ap-south-1'"),
			),
			mcp.WithString("allowed_ssh_cidrs",
				mcp.Description("Comma-separated CIDR blocks allowed to reach port 22"),
			),
			mcp.WithBoolean("ssh_open_override",
				mcp.Description("Explicitly allow SSH from 0.0.0.0/0"),
			),
			mcp.WithString("environment",
				mcp.Description("Environment tag, e.g. 'staging'"),
			),
		),
		s.createHandler(resource.KindEC2),
	)

	s.mcpServer.AddTool(
		mcp.NewTool("create_s3_bucket",
			mcp.WithDescription("Provision an S3 bucket with versioning and encryption settings."),
			mcp.WithString("bucket_name",
				mcp.Required(),
				mcp.Description("Globally unique bucket name"),
			),
			mcp.WithString("region",
				mcp.Description("AWS region"),
			),
			mcp.WithBoolean("versioning",
				mcp.Description("Enable object versioning"),
			),
			mcp.WithBoolean("encryption",
				mcp.Description("Enable server-side encryption"),
			),
			mcp.WithString("environment",
				mcp.Description("Environment tag"),
			),
		),
		s.createHandler(resource.KindS3),
	)

	s.mcpServer.AddTool(
		mcp.NewTool("create_rds_database",
			mcp.WithDescription("Provision an RDS database instance."),
			mcp.WithString("database_name",
				mcp.Required(),
				mcp.Description("Database identifier"),
			),
			mcp.WithString("engine",
				mcp.Description("Database engine, e.g. 'mysql' or 'postgres'"),
			),
			mcp.WithString("engine_version",
				mcp.Description("Engine version, defaults per engine"),
			),
			mcp.WithString("instance_class",
				mcp.Description("Instance class, e.g. 'db.t3.micro'"),
			),
			mcp.WithString("region",
				mcp.Description("AWS region"),
			),
			mcp.WithString("master_username",
				mcp.Description("Master account username"),
			),
			mcp.WithString("master_password",
				mcp.Description("Master account password, 8-41 characters"),
			),
			mcp.WithString("environment",
				mcp.Description("Environment tag"),
			),
		),
		s.createHandler(resource.KindRDS),
	)

	s.mcpServer.AddTool(
		mcp.NewTool("deploy_custom_template",
			mcp.WithDescription("Provision infrastructure from a free-form description rendered as a custom template. "+
				"Use this for resources the typed tools do not cover."),
			mcp.WithString("request",
				mcp.Required(),
				mcp.Description("Description of the infrastructure to provision"),
			),
			mcp.WithString("region",
				mcp.Description("AWS region"),
			),
			mcp.WithString("environment",
				mcp.Description("Environment tag"),
			),
		),
		s.createHandler(resource.KindCustom),
	)

	s.mcpServer.AddTool(
		mcp.NewTool("generate_terraform_code",
			mcp.WithDescription("Render the terraform configuration for a resource without writing files or running terraform. "+
				"Identical arguments always produce identical output."),
			mcp.WithString("kind",
				mcp.Required(),
				mcp.Description("Resource kind: ec2, s3, rds, or custom"),
			),
			mcp.WithString("name",
				mcp.Description("Resource name"),
			),
			mcp.WithString("instance_type",
				mcp.Description("EC2 instance type"),
			),
			mcp.WithString("bucket_name",
				mcp.Description("S3 bucket name"),
			),
			mcp.WithString("database_name",
				mcp.Description("RDS database identifier"),
			),
			mcp.WithString("engine",
				mcp.Description("RDS engine"),
			),
			mcp.WithString("region",
				mcp.Description("AWS region"),
			),
			mcp.WithString("request",
				mcp.Description("Custom template description"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleGenerateCode,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("delete_resource",
			mcp.WithDescription("Destroy every tracked resource of a kind. With nothing tracked this succeeds without running terraform."),
			mcp.WithString("kind",
				mcp.Required(),
				mcp.Description("Resource kind: ec2, s3, rds, or custom"),
			),
		),
		s.handleDeleteResource,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_resource_state",
			mcp.WithDescription("List tracked resource records with their status (pending, active, deleting, failed)."),
			mcp.WithString("kind",
				mcp.Description("Resource kind to filter by; omit for all kinds"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleGetResourceState,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("health_check",
			mcp.WithDescription("Report whether the provisioning engine, terraform binary, and record store are serviceable."),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleHealthCheck,
	)
}

// --- Tool Handlers ---

func (s *Server) handleProvisionRequest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := mcp.ParseString(req, "request", "")
	if text == "" {
		return mcp.NewToolResultError("request is required"), nil
	}
	outcome, err := s.engine.Handle(ctx, text)
	return outcomeResult(outcome, err)
}

// createHandler builds the handler for one typed create tool. Every string
// argument becomes a slot; the validator decides what applies.
func (s *Server) createHandler(kind string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		outcome, err := s.engine.Provision(ctx, kind, slotsFromRequest(req))
		return outcomeResult(outcome, err)
	}
}

func (s *Server) handleGenerateCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := mcp.ParseString(req, "kind", "")
	if kind == "" {
		return mcp.NewToolResultError("kind is required"), nil
	}
	cfg, err := s.engine.Generate(ctx, kind, slotsFromRequest(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalToolResult(cfg)
}

func (s *Server) handleDeleteResource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := mcp.ParseString(req, "kind", "")
	if kind == "" {
		return mcp.NewToolResultError("kind is required"), nil
	}
	outcome, err := s.engine.Destroy(ctx, kind)
	return outcomeResult(outcome, err)
}

func (s *Server) handleGetResourceState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := mcp.ParseString(req, "kind", "")

	var records []state.ResourceRecord
	var err error
	if kind == "" {
		records, err = s.engine.AllRecords(ctx)
	} else {
		records, err = s.engine.Records(ctx, kind)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if records == nil {
		records = []state.ResourceRecord{}
	}
	return marshalToolResult(map[string]any{
		"records": records,
		"count":   len(records),
	})
}

func (s *Server) handleHealthCheck(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalToolResult(s.engine.CheckHealth(ctx))
}

// slotsFromRequest copies every provided argument into a slot map. Booleans
// are kept only when the caller actually sent them so validator defaults
// still apply.
func slotsFromRequest(req mcp.CallToolRequest) map[string]string {
	slots := make(map[string]string)
	for key, value := range req.GetArguments() {
		if key == "kind" {
			continue
		}
		switch v := value.(type) {
		case string:
			if v != "" {
				slots[key] = v
			}
		case bool:
			slots[key] = strconv.FormatBool(v)
		case float64:
			slots[key] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return slots
}

// outcomeResult renders a run outcome. A run that produced an outcome is
// reported as data even when it failed; only requests rejected before a run
// started become tool errors.
func outcomeResult(outcome *provision.Outcome, err error) (*mcp.CallToolResult, error) {
	if outcome == nil {
		if err == nil {
			return mcp.NewToolResultError("no outcome produced"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalToolResult(outcome)
}

func marshalToolResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("internal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
