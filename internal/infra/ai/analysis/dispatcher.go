// Package analysis asks a model to find unused functions, unused imports and
// irrelevant comments in a piece of source code.
package analysis

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"

	"github.com/bryanwahyu/deadcode-cleaner/internal/domain/cleaning"
	"github.com/bryanwahyu/deadcode-cleaner/internal/infra/ai/crew"
	"github.com/bryanwahyu/deadcode-cleaner/internal/infra/ai/prompt"
	"github.com/bryanwahyu/deadcode-cleaner/internal/logging"
)

// Dispatcher implements cleaning.Analyzer on top of a crew of four analysts.
type Dispatcher struct {
	model       llms.Model
	language    string
	temperature float64
	concurrency int
	logger      zerolog.Logger
}

// Option tunes a Dispatcher.
type Option func(*Dispatcher)

// WithLanguage sets the language label passed to the analysts.
func WithLanguage(lang string) Option {
	return func(d *Dispatcher) {
		if strings.TrimSpace(lang) != "" {
			d.language = lang
		}
	}
}

// WithTemperature sets the analysts' sampling temperature.
func WithTemperature(t float64) Option {
	return func(d *Dispatcher) { d.temperature = t }
}

// WithMaxConcurrency caps how many detectors query the model at once.
// n <= 0 runs all of them together.
func WithMaxConcurrency(n int) Option {
	return func(d *Dispatcher) { d.concurrency = n }
}

// WithLogger sets where captured runtime diagnostics end up.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

func NewDispatcher(model llms.Model, opts ...Option) *Dispatcher {
	d := &Dispatcher{model: model, language: prompt.DefaultLanguage, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ cleaning.Analyzer = (*Dispatcher)(nil)

// Analyze runs the four analysis requests once. Runtime diagnostics are
// captured for the duration of the call and handed to the logger on return.
func (d *Dispatcher) Analyze(ctx context.Context, code string) (cleaning.Findings, error) {
	ctx, restore := logging.Scope(ctx, d.logger, "analysis")
	defer restore()

	req := newRequests()
	c, err := crew.New(d.model, req.all(),
		crew.WithTemperature(d.temperature),
		crew.WithMaxConcurrency(d.concurrency),
	)
	if err != nil {
		return cleaning.Findings{}, err
	}

	res, err := c.Kickoff(ctx, map[string]any{
		prompt.InputCode:     code,
		prompt.InputLanguage: d.language,
	})
	if err != nil {
		return cleaning.Findings{}, err
	}
	return aggregate(res, req), nil
}

// requests are the four analysis tasks of one invocation.
type requests struct {
	parse              *crew.Task
	unusedFunctions    *crew.Task
	unusedImports      *crew.Task
	irrelevantComments *crew.Task
}

func newRequests() requests {
	parse := task(prompt.StructureAnalyst())
	return requests{
		parse:              parse,
		unusedFunctions:    task(prompt.FunctionUsageAuditor(), parse),
		unusedImports:      task(prompt.ImportUsageAuditor(), parse),
		irrelevantComments: task(prompt.CommentReviewer(), parse),
	}
}

func (r requests) all() []*crew.Task {
	return []*crew.Task{r.parse, r.unusedFunctions, r.unusedImports, r.irrelevantComments}
}

func task(a prompt.Analyst, deps ...*crew.Task) *crew.Task {
	return &crew.Task{
		Name:           a.Name,
		Description:    a.Description,
		ExpectedOutput: a.ExpectedOutput,
		Agent:          &crew.Agent{Role: a.Role, Goal: a.Goal, Backstory: a.Backstory},
		Context:        deps,
	}
}

// aggregate reads the detector outputs, using cleaning.NoneFound for any
// detector that produced nothing.
func aggregate(res *crew.Result, r requests) cleaning.Findings {
	return cleaning.Findings{
		UnusedFunctions:    rawOr(res, r.unusedFunctions),
		UnusedImports:      rawOr(res, r.unusedImports),
		IrrelevantComments: rawOr(res, r.irrelevantComments),
	}
}

func rawOr(res *crew.Result, t *crew.Task) string {
	out, ok := res.Output(t)
	if !ok || strings.TrimSpace(out.Raw) == "" {
		return cleaning.NoneFound
	}
	return out.Raw
}
