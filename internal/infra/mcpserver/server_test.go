package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/deadcode-cleaner/internal/domain/cleaning"
)

type mockCleaner struct {
	mock.Mock
}

func (m *mockCleaner) Analyze(ctx context.Context, code string) (domain.AnalysisResult, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(domain.AnalysisResult), args.Error(1)
}

func (m *mockCleaner) Clean(ctx context.Context, code string) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}

func (m *mockCleaner) LoadCode(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

func (m *mockCleaner) CleaningPrompt(code string, f domain.Findings) string {
	return m.Called(code, f).String(0)
}

func newTestServer(svc Cleaner) *Server {
	return New(svc, Options{Logger: zerolog.Nop()})
}

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	return textOf(t, res.Content[0])
}

func textOf(t *testing.T, c mcp.Content) string {
	t.Helper()
	switch v := c.(type) {
	case mcp.TextContent:
		return v.Text
	case *mcp.TextContent:
		return v.Text
	}
	t.Fatalf("content is %T, want text", c)
	return ""
}

func TestAnalyzeToolReturnsJSON(t *testing.T) {
	svc := &mockCleaner{}
	svc.On("Analyze", mock.Anything, "import json\n").Return(domain.Succeeded(domain.Findings{
		UnusedFunctions: "unused_function",
		UnusedImports:   "import json",
	}), nil)

	res, err := newTestServer(svc).handleAnalyze(context.Background(), toolRequest(ToolAnalyze, map[string]any{"code": "import json\n"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	assert.Equal(t, map[string]string{
		"unused_functions":    "unused_function",
		"unused_imports":      "import json",
		"irrelevant_comments": domain.NoneFound,
	}, got)
	svc.AssertExpectations(t)
}

func TestAnalyzeToolFailureIsNotAProtocolError(t *testing.T) {
	cause := errors.New("model unreachable")
	svc := &mockCleaner{}
	svc.On("Analyze", mock.Anything, "x = 1").
		Return(domain.FailedAnalysis(cause), domain.Wrap(domain.KindAnalysis, cause))

	res, err := newTestServer(svc).handleAnalyze(context.Background(), toolRequest(ToolAnalyze, map[string]any{"code": "x = 1"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var got domain.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	assert.Equal(t, "Analysis failed: model unreachable", got.Error)
	assert.Equal(t, domain.CouldNotAnalyze, got.UnusedFunctions)
	assert.Equal(t, domain.CouldNotAnalyze, got.UnusedImports)
	assert.Equal(t, domain.CouldNotAnalyze, got.IrrelevantComments)
}

func TestToolsRequireCode(t *testing.T) {
	svc := &mockCleaner{}
	s := newTestServer(svc)

	for name, h := range map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		ToolAnalyze: s.handleAnalyze,
		ToolClean:   s.handleClean,
	} {
		t.Run(name, func(t *testing.T) {
			res, err := h(context.Background(), toolRequest(name, nil))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
	svc.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
	svc.AssertNotCalled(t, "Clean", mock.Anything, mock.Anything)
}

func TestCleanTool(t *testing.T) {
	analysisCause := errors.New("rate limited")
	cleaningCause := errors.New("connection reset")

	tests := []struct {
		name string
		out  string
		err  error
		want string
	}{
		{"verbatim reply", "```python\nprint(1)\n```", nil, "```python\nprint(1)\n```"},
		{"analysis failure", "", domain.Wrap(domain.KindAnalysis, analysisCause), "Error during analysis: Analysis failed: rate limited"},
		{"cleaning failure", "", domain.Wrap(domain.KindCleaning, cleaningCause), "Error during code cleaning: connection reset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCleaner{}
			svc.On("Clean", mock.Anything, "print(1)").Return(tt.out, tt.err)

			res, err := newTestServer(svc).handleClean(context.Background(), toolRequest(ToolClean, map[string]any{"code": "print(1)"}))
			require.NoError(t, err)
			assert.False(t, res.IsError)
			assert.Equal(t, tt.want, resultText(t, res))
		})
	}
}

func TestCleanPrompt(t *testing.T) {
	f := domain.Findings{UnusedFunctions: "a", UnusedImports: "b", IrrelevantComments: "c"}
	svc := &mockCleaner{}
	svc.On("CleaningPrompt", "code", f).Return("the instruction")

	var req mcp.GetPromptRequest
	req.Params.Name = PromptClean
	req.Params.Arguments = map[string]string{
		"code":                "code",
		"unused_functions":    "a",
		"unused_imports":      "b",
		"irrelevant_comments": "c",
	}
	res, err := newTestServer(svc).handleCleanPrompt(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, mcp.RoleUser, res.Messages[0].Role)
	assert.Equal(t, "the instruction", textOf(t, res.Messages[0].Content))
}

func TestLoadCodeResource(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		uri  string
	}{
		{"template variable", map[string]any{"file_path": "/src/app.py"}, "code://load_code//src/app.py"},
		{"exploded variable", map[string]any{"file_path": []string{"/src", "app.py"}}, "code://load_code//src/app.py"},
		{"raw uri", nil, "code://load_code//src/app.py"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCleaner{}
			svc.On("LoadCode", mock.Anything, "/src/app.py").Return("print(1)\n", nil)

			var req mcp.ReadResourceRequest
			req.Params.URI = tt.uri
			req.Params.Arguments = tt.args
			contents, err := newTestServer(svc).handleLoadCode(context.Background(), req)
			require.NoError(t, err)
			require.Len(t, contents, 1)
			text, ok := contents[0].(mcp.TextResourceContents)
			require.True(t, ok)
			assert.Equal(t, "print(1)\n", text.Text)
			assert.Equal(t, tt.uri, text.URI)
		})
	}
}

func TestLoadCodeResourceFailure(t *testing.T) {
	missing := &fs.PathError{Op: "open", Path: "/nope.py", Err: fs.ErrNotExist}
	svc := &mockCleaner{}
	svc.On("LoadCode", mock.Anything, "/nope.py").Return("", domain.Wrap(domain.KindResource, missing))

	var req mcp.ReadResourceRequest
	req.Params.URI = "code://load_code//nope.py"
	_, err := newTestServer(svc).handleLoadCode(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, domain.KindResource, domain.KindOf(err))
}

func TestLoadCodeResourceEmptyPath(t *testing.T) {
	svc := &mockCleaner{}
	var req mcp.ReadResourceRequest
	req.Params.URI = "code://load_code/"
	_, err := newTestServer(svc).handleLoadCode(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, domain.KindResource, domain.KindOf(err))
	svc.AssertNotCalled(t, "LoadCode", mock.Anything, mock.Anything)
}

func TestObserveKeepsResult(t *testing.T) {
	s := newTestServer(&mockCleaner{})
	var sawLogger bool
	h := s.observe(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sawLogger = zerolog.Ctx(ctx) != nil
		return mcp.NewToolResultError("nope"), nil
	})

	res, err := h(context.Background(), toolRequest(ToolClean, map[string]any{"code": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.True(t, sawLogger)
}
