// Package crew runs a small graph of role-played model requests.
//
// A Task names the Agent that answers it and the tasks whose output it reads
// (Context). Kickoff executes the graph level by level: a task starts only
// after every task in its Context finished, and tasks of the same level run
// concurrently.
package crew

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoTasks           = errors.New("crew: no tasks")
	ErrNoAgent           = errors.New("crew: task has no agent")
	ErrDuplicateTask     = errors.New("crew: task listed twice")
	ErrUnknownDependency = errors.New("crew: task depends on a task outside the crew")
	ErrCycle             = errors.New("crew: task dependencies form a cycle")
	ErrNoOutput          = errors.New("crew: model returned no choices")
)

// Agent is the persona a task is addressed to.
type Agent struct {
	Role      string
	Goal      string
	Backstory string
}

// Task is one model request. Description is an f-string template over the
// kickoff inputs, e.g. "Review this code:\n{code}".
type Task struct {
	Name           string
	Description    string
	ExpectedOutput string
	Agent          *Agent
	Context        []*Task
}

func (t *Task) label() string {
	if t.Name != "" {
		return t.Name
	}
	if t.Agent != nil {
		return t.Agent.Role
	}
	return "task"
}

// TaskOutput is the text a task produced.
type TaskOutput struct {
	Task  string
	Agent string
	Raw   string
}

// Result holds the outputs of one kickoff.
type Result struct {
	outputs map[*Task]TaskOutput
}

// Output returns t's output, if t ran.
func (r *Result) Output(t *Task) (TaskOutput, bool) {
	if r == nil {
		return TaskOutput{}, false
	}
	out, ok := r.outputs[t]
	return out, ok
}

type options struct {
	temperature    float64
	maxConcurrency int
}

// Option tunes a Crew.
type Option func(*options)

// WithTemperature sets the sampling temperature of every model call.
func WithTemperature(t float64) Option {
	return func(o *options) { o.temperature = t }
}

// WithMaxConcurrency caps how many tasks of one level run at once. n <= 0
// means no cap.
func WithMaxConcurrency(n int) Option {
	return func(o *options) { o.maxConcurrency = n }
}

// Crew is a validated task graph bound to a model. It holds no per-run
// state and may be kicked off concurrently.
type Crew struct {
	model  llms.Model
	levels [][]*Task
	opts   options
}

// New validates the graph formed by tasks.
func New(model llms.Model, tasks []*Task, opts ...Option) (*Crew, error) {
	if model == nil {
		return nil, errors.New("crew: nil model")
	}
	levels, err := plan(tasks)
	if err != nil {
		return nil, err
	}
	c := &Crew{model: model, levels: levels}
	for _, opt := range opts {
		opt(&c.opts)
	}
	return c, nil
}

// plan orders tasks into dependency levels (Kahn's algorithm). Input order
// is kept inside a level.
func plan(tasks []*Task) ([][]*Task, error) {
	if len(tasks) == 0 {
		return nil, ErrNoTasks
	}
	index := make(map[*Task]int, len(tasks))
	for i, t := range tasks {
		if t == nil {
			return nil, fmt.Errorf("crew: task %d is nil", i)
		}
		if t.Agent == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoAgent, t.label())
		}
		if _, dup := index[t]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, t.label())
		}
		index[t] = i
	}

	indegree := make([]int, len(tasks))
	dependents := make([][]int, len(tasks))
	for i, t := range tasks {
		for _, dep := range t.Context {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownDependency, t.label())
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var ready []int
	for i, d := range indegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	var levels [][]*Task
	placed := 0
	for len(ready) > 0 {
		sort.Ints(ready)
		level := make([]*Task, 0, len(ready))
		var next []int
		for _, i := range ready {
			level = append(level, tasks[i])
			for _, k := range dependents[i] {
				indegree[k]--
				if indegree[k] == 0 {
					next = append(next, k)
				}
			}
		}
		placed += len(level)
		levels = append(levels, level)
		ready = next
	}
	if placed != len(tasks) {
		return nil, ErrCycle
	}
	return levels, nil
}

// Kickoff runs every task once with inputs and returns their outputs. The
// first failure cancels the tasks still running and is returned.
func (c *Crew) Kickoff(ctx context.Context, inputs map[string]any) (*Result, error) {
	log := zerolog.Ctx(ctx)
	res := &Result{outputs: make(map[*Task]TaskOutput)}
	var mu sync.Mutex

	for n, level := range c.levels {
		log.Debug().Int("level", n).Int("tasks", len(level)).Msg("crew level started")

		g, gctx := errgroup.WithContext(ctx)
		if c.opts.maxConcurrency > 0 {
			g.SetLimit(c.opts.maxConcurrency)
		}
		for _, t := range level {
			// previous levels are done; no writer is running yet
			deps := make([]TaskOutput, 0, len(t.Context))
			for _, d := range t.Context {
				deps = append(deps, res.outputs[d])
			}

			g.Go(func() (err error) {
				defer func() {
					if p := recover(); p != nil {
						log.Error().Str("task", t.label()).Bytes("stack", debug.Stack()).Msg("task panicked")
						err = fmt.Errorf("crew: task %s panicked: %v", t.label(), p)
					}
				}()

				raw, err := c.execute(gctx, t, inputs, deps)
				if err != nil {
					log.Debug().Err(err).Str("task", t.label()).Msg("task failed")
					return fmt.Errorf("task %s: %w", t.label(), err)
				}
				log.Debug().Str("task", t.label()).Int("chars", len(raw)).Msg("task finished")

				mu.Lock()
				res.outputs[t] = TaskOutput{Task: t.label(), Agent: t.Agent.Role, Raw: raw}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (c *Crew) execute(ctx context.Context, t *Task, inputs map[string]any, deps []TaskOutput) (string, error) {
	description, err := render(t.Description, inputs)
	if err != nil {
		return "", fmt.Errorf("render description: %w", err)
	}

	var human strings.Builder
	human.WriteString(description)
	if t.ExpectedOutput != "" {
		human.WriteString("\n\nThis is the expected criteria for your final answer: ")
		human.WriteString(t.ExpectedOutput)
		human.WriteString("\nYou MUST return the actual complete content as the final answer, not a summary.")
	}
	if len(deps) > 0 {
		human.WriteString("\n\nThis is the context you're working with:\n")
		for i, d := range deps {
			if i > 0 {
				human.WriteString("\n\n----------\n\n")
			}
			human.WriteString(d.Raw)
		}
	}

	system := fmt.Sprintf("You are %s. %s\nYour personal goal is: %s", t.Agent.Role, t.Agent.Backstory, t.Agent.Goal)

	resp, err := c.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, human.String()),
	}, llms.WithTemperature(c.opts.temperature))
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoOutput
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func render(template string, inputs map[string]any) (string, error) {
	if !strings.Contains(template, "{") {
		return template, nil
	}
	vars := make([]string, 0, len(inputs))
	for k := range inputs {
		vars = append(vars, k)
	}
	pt := prompts.PromptTemplate{
		Template:       template,
		InputVariables: vars,
		TemplateFormat: prompts.TemplateFormatFString,
	}
	return pt.Format(inputs)
}
