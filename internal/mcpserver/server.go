// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes exact-match patching to LLM agents via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/patchwork/internal/apperr"
	"github.com/starford/patchwork/internal/descriptor"
	"github.com/starford/patchwork/internal/journal"
	"github.com/starford/patchwork/internal/patch"
	"github.com/starford/patchwork/internal/patchservice"
)

const descriptorFormatURI = "patchwork://descriptor-format"

// Server wraps the MCP server with patchwork tools.
type Server struct {
	mcp               *server.MCPServer
	svc               *patchservice.Service
	defaultOccurrence patch.Occurrence
}

// New creates a new MCP server with all patchwork tools registered.
func New(svc *patchservice.Service, defaultOccurrence patch.Occurrence, version string) *Server {
	s := &Server{svc: svc, defaultOccurrence: defaultOccurrence}

	s.mcp = server.NewMCPServer(
		"patchwork",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("apply_patch",
		mcp.WithDescription("Replace a literal block of text in one file. The old block must appear "+
			"verbatim (byte-for-byte, including whitespace and line endings). By default it must "+
			"appear exactly once. Applying the same patch twice fails with block_not_found. "+
			"Use dry_run to preview the change as a diff without writing."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Target file, relative to the workspace root")),
		mcp.WithString("old", mcp.Required(), mcp.Description("Exact block that must currently exist in the file")),
		mcp.WithString("new", mcp.Required(), mcp.Description("Replacement block (may be empty to delete)")),
		mcp.WithString("occurrence", mcp.Description("unique (default), first, or a 1-based match number")),
		mcp.WithString("expect_checksum", mcp.Description("Optional hex SHA-256 the file must currently have")),
		mcp.WithBoolean("dry_run", mcp.Description("Only report what would change")),
	), s.applyPatch)

	s.mcp.AddTool(mcp.NewTool("patch_history",
		mcp.WithDescription("List recorded patch attempts, newest first."),
		mcp.WithString("path", mcp.Description("Only attempts against this path")),
		mcp.WithNumber("limit", mcp.Description("Max entries (default 50)")),
	), s.patchHistory)

	s.mcp.AddTool(mcp.NewTool("get_descriptor_format",
		mcp.WithDescription("Returns the patch descriptor format and the exact-match rules."),
	), s.getDescriptorFormat)

	s.mcp.AddResource(
		mcp.NewResource(descriptorFormatURI, "Patch Descriptor Format",
			mcp.WithResourceDescription("YAML/JSON shape of a single exact-match patch."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDescriptorFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) applyPatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	oldBlock, err := req.RequireString("old")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newBlock, err := req.RequireString("new")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	d := descriptor.Descriptor{
		Path:           path,
		Old:            oldBlock,
		New:            newBlock,
		Occurrence:     req.GetString("occurrence", ""),
		ExpectChecksum: req.GetString("expect_checksum", ""),
	}
	spec, err := d.Spec(s.defaultOccurrence)
	if err != nil {
		return failure(path, err), nil
	}

	out, err := s.svc.Apply(ctx, spec, req.GetBool("dry_run", false))
	if err != nil {
		return failure(path, err), nil
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) patchHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.svc.History(ctx, journal.Filter{
		Path:  req.GetString("path", ""),
		Limit: req.GetInt("limit", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("no patch attempts recorded"), nil
	}
	data, _ := json.MarshalIndent(entries, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getDescriptorFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(descriptor.Format), nil
}

func (s *Server) readDescriptorFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      descriptorFormatURI,
			MIMEType: "text/markdown",
			Text:     descriptor.Format,
		},
	}, nil
}

// failure renders err as a tool error that names the code and the path, so
// an agent can tell "already applied" apart from "wrong file".
func failure(path string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %s: %v", apperr.Code(err), path, err))
}
