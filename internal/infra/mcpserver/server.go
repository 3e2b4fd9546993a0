// Package mcpserver exposes the cleaning use cases as MCP tools, a prompt and
// a resource template.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	domain "github.com/bryanwahyu/deadcode-cleaner/internal/domain/cleaning"
	"github.com/bryanwahyu/deadcode-cleaner/internal/middleware"
)

const (
	DefaultName = "Dead Code Cleaner"

	ToolAnalyze   = "analyze_code_tool"
	ToolClean     = "dead_code_cleaner"
	PromptClean   = "clean_code_with_prompt"
	ResourceLoad  = "load_code"
	LoadCodeURI   = "code://load_code/{+file_path}"
	loadURIPrefix = "code://load_code/"

	argCode               = "code"
	argFilePath           = "file_path"
	argUnusedFunctions    = "unused_functions"
	argUnusedImports      = "unused_imports"
	argIrrelevantComments = "irrelevant_comments"
)

// Cleaner is the use-case surface the transport needs.
type Cleaner interface {
	Analyze(ctx context.Context, code string) (domain.AnalysisResult, error)
	Clean(ctx context.Context, code string) (string, error)
	LoadCode(ctx context.Context, path string) (string, error)
	CleaningPrompt(code string, f domain.Findings) string
}

type Options struct {
	Name    string
	Version string
	Logger  zerolog.Logger
}

type Server struct {
	svc    Cleaner
	logger zerolog.Logger
	mcp    *server.MCPServer
}

// New registers every endpoint on a fresh MCP server.
func New(svc Cleaner, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{svc: svc, logger: opts.Logger}

	s.mcp = server.NewMCPServer(
		opts.Name,
		opts.Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(s.observe),
		server.WithInstructions(instructions),
	)

	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(LoadCodeURI, ResourceLoad,
			mcp.WithTemplateDescription("Load code from a file path, or minio://<key> when object storage is configured."),
			mcp.WithTemplateMIMEType("text/plain"),
		),
		s.handleLoadCode,
	)

	s.mcp.AddTool(mcp.NewTool(ToolAnalyze,
		mcp.WithDescription("Analyze code for unused functions, unused imports and irrelevant comments."),
		mcp.WithString(argCode,
			mcp.Required(),
			mcp.Description("Source code to analyze"),
		),
	), s.handleAnalyze)

	s.mcp.AddPrompt(mcp.NewPrompt(PromptClean,
		mcp.WithPromptDescription("Build the instruction that removes the given findings from the code."),
		mcp.WithArgument(argCode, mcp.ArgumentDescription("Source code to clean"), mcp.RequiredArgument()),
		mcp.WithArgument(argUnusedFunctions, mcp.ArgumentDescription("Unused functions to remove"), mcp.RequiredArgument()),
		mcp.WithArgument(argUnusedImports, mcp.ArgumentDescription("Unused imports to remove"), mcp.RequiredArgument()),
		mcp.WithArgument(argIrrelevantComments, mcp.ArgumentDescription("Irrelevant comments to remove"), mcp.RequiredArgument()),
	), s.handleCleanPrompt)

	s.mcp.AddTool(mcp.NewTool(ToolClean,
		mcp.WithDescription("Remove dead functions, unused imports and irrelevant comments from code."),
		mcp.WithString(argCode,
			mcp.Required(),
			mcp.Description("Source code to clean"),
		),
	), s.handleClean)

	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio serves MCP frames over in/out until ctx is done or in closes.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(s.logger, "", 0))
	return stdio.Listen(ctx, in, out)
}

// HTTPHandler serves the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// observe tags each tool call with an invocation id and keeps the tool
// metrics.
func (s *Server) observe(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := s.logger.With().
			Str("invocation_id", uuid.NewString()).
			Str("tool", req.Params.Name).
			Logger()
		ctx = logger.WithContext(ctx)

		done := middleware.ToolCallStarted()
		logger.Info().Int("code_chars", len(req.GetString(argCode, ""))).Msg("tool call started")

		res, err := next(ctx, req)

		failed := err != nil || (res != nil && res.IsError)
		done(failed)
		ev := logger.Info()
		if failed {
			ev = logger.Warn().Err(err)
		}
		ev.Msg("tool call finished")
		return res, err
	}
}

func (s *Server) handleLoadCode(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	path := filePath(req)
	if path == "" {
		return nil, domain.Wrap(domain.KindResource, errors.New("file path is required"))
	}
	text, err := s.svc.LoadCode(ctx, path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("load code failed")
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     text,
		},
	}, nil
}

func (s *Server) handleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString(argCode)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.svc.Analyze(ctx, code)
	if err != nil {
		middleware.IncrementAnalysisFailures()
		zerolog.Ctx(ctx).Warn().Err(err).Msg("analysis failed")
	}

	body, err := json.Marshal(res)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode analysis result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (s *Server) handleCleanPrompt(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	text := s.svc.CleaningPrompt(args[argCode], domain.Findings{
		UnusedFunctions:    args[argUnusedFunctions],
		UnusedImports:      args[argUnusedImports],
		IrrelevantComments: args[argIrrelevantComments],
	})
	return mcp.NewGetPromptResult(
		"Instruction for removing the listed dead code",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		},
	), nil
}

// handleClean answers with the cleaned code, or with the failure text as a
// normal result.
func (s *Server) handleClean(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString(argCode)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := s.svc.Clean(ctx, code)
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindAnalysis:
			middleware.IncrementAnalysisFailures()
		case domain.KindCleaning:
			middleware.IncrementCleaningFailures()
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("kind", domain.KindOf(err).String()).Msg("clean failed")
		return mcp.NewToolResultText(domain.Describe(err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

// filePath reads the template variable, falling back to the raw URI.
func filePath(req mcp.ReadResourceRequest) string {
	switch v := req.Params.Arguments[argFilePath].(type) {
	case string:
		if v != "" {
			return v
		}
	case []string:
		if len(v) > 0 {
			return strings.Join(v, "/")
		}
	}
	return strings.TrimPrefix(req.Params.URI, loadURIPrefix)
}

const instructions = `Dead Code Cleaner removes unused functions, unused imports and irrelevant comments from source code.

- dead_code_cleaner: pass the code, get the cleaned code back.
- analyze_code_tool: pass the code, get the findings as JSON.
- clean_code_with_prompt: build the cleaning instruction from code and findings you already have.
- code://load_code/{path}: read a file to feed the tools.`
