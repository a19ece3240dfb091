package api

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/fixhive/internal/service"
	"github.com/kalambet/fixhive/internal/storage"
)

// NewMCPServer creates an MCP server with the fixhive_* tools registered.
func NewMCPServer(svc *service.Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"fixhive",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("FixHive: search known error solutions, share your fixes and vote on others'."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("fixhive_search",
			mcp.WithDescription("Search the FixHive knowledge base for error solutions"),
			mcp.WithString("errorMessage", mcp.Description("The error message to search for"), mcp.Required()),
			mcp.WithString("language", mcp.Description("Programming language (e.g. typescript, python)")),
			mcp.WithString("framework", mcp.Description("Framework (e.g. react, django)")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (1-20, default 5)")),
		),
		mcpSearch(svc),
	)

	s.AddTool(
		mcp.NewTool("fixhive_resolve",
			mcp.WithDescription("Mark an error as resolved and share the solution with the community"),
			mcp.WithString("errorId", mcp.Description("ID of the error to resolve"), mcp.Required()),
			mcp.WithString("resolution", mcp.Description("How the error was fixed (at least 10 characters)"), mcp.Required()),
			mcp.WithString("resolutionCode", mcp.Description("Code snippet of the fix")),
			mcp.WithBoolean("upload", mcp.Description("Share the solution with the community (default true)")),
		),
		mcpResolve(svc),
	)

	s.AddTool(
		mcp.NewTool("fixhive_list",
			mcp.WithDescription("List errors detected in the current session"),
			mcp.WithString("status",
				mcp.Description("Filter by status"),
				mcp.Enum(storage.StatusUnresolved, storage.StatusResolved, storage.StatusUploaded),
			),
			mcp.WithNumber("limit", mcp.Description("Maximum number of errors (1-50, default 10)")),
		),
		mcpList(svc),
	)

	s.AddTool(
		mcp.NewTool("fixhive_vote",
			mcp.WithDescription("Upvote or downvote a solution"),
			mcp.WithString("knowledgeId", mcp.Description("ID of the solution"), mcp.Required()),
			mcp.WithBoolean("helpful", mcp.Description("true to upvote, false to downvote"), mcp.Required()),
		),
		mcpVote(svc),
	)

	s.AddTool(
		mcp.NewTool("fixhive_helpful",
			mcp.WithDescription("Report that a solution was helpful"),
			mcp.WithString("knowledgeId", mcp.Description("ID of the solution"), mcp.Required()),
		),
		mcpHelpful(svc),
	)

	s.AddTool(
		mcp.NewTool("fixhive_report",
			mcp.WithDescription("Report inappropriate content"),
			mcp.WithString("knowledgeId", mcp.Description("ID of the solution"), mcp.Required()),
			mcp.WithString("reason", mcp.Description("Why the content is inappropriate")),
		),
		mcpReport(svc),
	)

	s.AddTool(
		mcp.NewTool("fixhive_stats",
			mcp.WithDescription("View FixHive usage statistics"),
		),
		mcpStats(svc),
	)

	return s
}

func mcpSearch(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		msg, err := req.RequireString("errorMessage")
		if err != nil {
			return mcpMissing("errorMessage"), nil
		}
		return mcpResult(svc.Search(ctx, service.SearchInput{
			ErrorMessage: msg,
			Language:     req.GetString("language", ""),
			Framework:    req.GetString("framework", ""),
			Limit:        req.GetInt("limit", 0),
		}))
	}
}

func mcpResolve(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("errorId")
		if err != nil {
			return mcpMissing("errorId"), nil
		}
		resolution, err := req.RequireString("resolution")
		if err != nil {
			return mcpMissing("resolution"), nil
		}
		upload := req.GetBool("upload", true)
		return mcpResult(svc.Resolve(ctx, service.ResolveInput{
			ErrorID:        id,
			Resolution:     resolution,
			ResolutionCode: req.GetString("resolutionCode", ""),
			Upload:         &upload,
		}))
	}
}

func mcpList(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcpResult(svc.List(service.ListInput{
			Status: req.GetString("status", ""),
			Limit:  req.GetInt("limit", 0),
		}))
	}
}

func mcpVote(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("knowledgeId")
		if err != nil {
			return mcpMissing("knowledgeId"), nil
		}
		helpful, err := req.RequireBool("helpful")
		if err != nil {
			return mcpMissing("helpful"), nil
		}
		return mcpResult(svc.Vote(ctx, id, helpful))
	}
}

func mcpHelpful(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("knowledgeId")
		if err != nil {
			return mcpMissing("knowledgeId"), nil
		}
		return mcpResult(svc.MarkHelpful(ctx, id))
	}
}

func mcpReport(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("knowledgeId")
		if err != nil {
			return mcpMissing("knowledgeId"), nil
		}
		return mcpResult(svc.Report(ctx, id, req.GetString("reason", "")))
	}
}

func mcpStats(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcpResult(svc.Stats())
	}
}

// mcpResult renders a service result as JSON text, or its error as the
// {code, message, data} envelope.
func mcpResult(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcpError(service.Normalize(err)), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshalling tool result", "error", err)
		return mcpError(service.NewError(service.CodeInternalError, "")), nil
	}
	return mcpText(string(b)), nil
}

func mcpMissing(field string) *mcp.CallToolResult {
	return mcpError(service.NewError(service.CodeInvalidParams, field+" is required").
		WithData(map[string]string{"field": field}))
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(e *service.Error) *mcp.CallToolResult {
	b, err := json.Marshal(e)
	if err != nil {
		b = []byte(`{"code":-32603,"message":"Internal error"}`)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: string(b)},
		},
		IsError: true,
	}
}
