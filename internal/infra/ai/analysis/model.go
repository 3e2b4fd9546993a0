package analysis

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// Provider names accepted by NewModel.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// ModelOptions selects the backend the analysts talk to.
type ModelOptions struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

// NewModel creates the langchaingo model for opts.Provider.
func NewModel(opts ModelOptions) (llms.Model, error) {
	switch strings.ToLower(opts.Provider) {
	case "", ProviderOpenAI:
		o := []lcopenai.Option{
			lcopenai.WithModel(opts.Model),
			lcopenai.WithToken(opts.APIKey),
		}
		if opts.BaseURL != "" {
			o = append(o, lcopenai.WithBaseURL(opts.BaseURL))
		}
		return lcopenai.New(o...)
	case ProviderAnthropic:
		o := []anthropic.Option{
			anthropic.WithToken(opts.APIKey),
			anthropic.WithModel(opts.Model),
		}
		if opts.BaseURL != "" {
			o = append(o, anthropic.WithBaseURL(opts.BaseURL))
		}
		return anthropic.New(o...)
	case ProviderOllama:
		serverURL := opts.BaseURL
		if serverURL == "" {
			serverURL = "http://localhost:11434"
		}
		return ollama.New(
			ollama.WithServerURL(serverURL),
			ollama.WithModel(opts.Model),
		)
	default:
		return nil, fmt.Errorf("unsupported analysis provider: %s", opts.Provider)
	}
}
