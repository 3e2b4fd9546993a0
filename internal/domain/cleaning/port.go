package cleaning

import "context"

// Analyzer port: runs the detection requests against a model.
type Analyzer interface {
	Analyze(ctx context.Context, code string) (Findings, error)
}

// ChatClient port: a single request/response exchange with a chat model.
type ChatClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SourceLoader port: resolves a path to the raw text it names.
type SourceLoader interface {
	Load(ctx context.Context, path string) (string, error)
}

// PromptBuilder formats the cleaning instruction from code and findings.
type PromptBuilder func(code string, f Findings) string
