package crew

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type call struct {
	system      string
	human       string
	temperature float64
}

// scriptedModel answers by agent role, read from the system message.
type scriptedModel struct {
	mu      sync.Mutex
	calls   []call
	answers map[string]string
	fail    map[string]error
	panics  map[string]bool
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	c := call{
		system:      messages[0].Parts[0].(llms.TextContent).Text,
		human:       messages[1].Parts[0].(llms.TextContent).Text,
		temperature: opts.Temperature,
	}
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()

	for role, err := range m.fail {
		if strings.HasPrefix(c.system, "You are "+role+".") {
			return nil, err
		}
	}
	for role := range m.panics {
		if strings.HasPrefix(c.system, "You are "+role+".") {
			panic("model exploded")
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for role, answer := range m.answers {
		if strings.HasPrefix(c.system, "You are "+role+".") {
			return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: answer}}}, nil
		}
	}
	return &llms.ContentResponse{}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *scriptedModel) callFor(role string) (call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if strings.HasPrefix(c.system, "You are "+role+".") {
			return c, true
		}
	}
	return call{}, false
}

func diamond() (root, left, right *Task, all []*Task) {
	root = &Task{Name: "parse", Description: "Parse this {lang} code:\n{code}", ExpectedOutput: "a list", Agent: &Agent{Role: "Parser", Goal: "parse", Backstory: "careful"}}
	left = &Task{Name: "left", Description: "Find left things.", Agent: &Agent{Role: "Left"}, Context: []*Task{root}}
	right = &Task{Name: "right", Description: "Find right things in ({code}).", Agent: &Agent{Role: "Right"}, Context: []*Task{root}}
	return root, left, right, []*Task{left, root, right}
}

func TestKickoffRunsDependenciesFirst(t *testing.T) {
	root, left, right, tasks := diamond()
	model := &scriptedModel{answers: map[string]string{
		"Parser": "  Line 1: def f  ",
		"Left":   "left result",
		"Right":  "right result",
	}}

	c, err := New(model, tasks, WithTemperature(0.25))
	require.NoError(t, err)

	res, err := c.Kickoff(context.Background(), map[string]any{"code": "def f(): pass", "lang": "Python"})
	require.NoError(t, err)

	out, ok := res.Output(root)
	require.True(t, ok)
	assert.Equal(t, "Line 1: def f", out.Raw)
	assert.Equal(t, "Parser", out.Agent)

	l, ok := res.Output(left)
	require.True(t, ok)
	assert.Equal(t, "left result", l.Raw)
	r, ok := res.Output(right)
	require.True(t, ok)
	assert.Equal(t, "right result", r.Raw)

	require.Len(t, model.calls, 3)
	assert.True(t, strings.HasPrefix(model.calls[0].system, "You are Parser."), "root runs first")

	parseCall, _ := model.callFor("Parser")
	assert.Contains(t, parseCall.human, "Parse this Python code:\ndef f(): pass")
	assert.Contains(t, parseCall.human, "a list")
	assert.Contains(t, parseCall.system, "Your personal goal is: parse")
	assert.Equal(t, 0.25, parseCall.temperature)

	leftCall, _ := model.callFor("Left")
	assert.Contains(t, leftCall.human, "This is the context you're working with:\nLine 1: def f")
	rightCall, _ := model.callFor("Right")
	assert.Contains(t, rightCall.human, "Find right things in (def f(): pass).")
}

func TestKickoffEmptyAnswer(t *testing.T) {
	_, _, _, tasks := diamond()
	model := &scriptedModel{answers: map[string]string{"Parser": "x", "Left": "y"}}
	c, err := New(model, tasks)
	require.NoError(t, err)

	_, err = c.Kickoff(context.Background(), map[string]any{"code": "", "lang": "Go"})
	require.ErrorIs(t, err, ErrNoOutput)
	assert.Contains(t, err.Error(), "task right")
}

func TestKickoffStopsOnFailure(t *testing.T) {
	_, _, _, tasks := diamond()
	boom := errors.New("rate limit reached")
	model := &scriptedModel{fail: map[string]error{"Parser": boom}}
	c, err := New(model, tasks)
	require.NoError(t, err)

	res, err := c.Kickoff(context.Background(), map[string]any{"code": "", "lang": "Go"})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, res)
	assert.Len(t, model.calls, 1, "dependents never start")
}

func TestKickoffRecoversPanics(t *testing.T) {
	_, _, _, tasks := diamond()
	model := &scriptedModel{
		answers: map[string]string{"Parser": "x", "Right": "z"},
		panics:  map[string]bool{"Left": true},
	}
	c, err := New(model, tasks)
	require.NoError(t, err)

	_, err = c.Kickoff(context.Background(), map[string]any{"code": "", "lang": "Go"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestKickoffMissingInput(t *testing.T) {
	_, _, _, tasks := diamond()
	c, err := New(&scriptedModel{}, tasks)
	require.NoError(t, err)

	_, err = c.Kickoff(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render description")
}

func TestKickoffCancelledContext(t *testing.T) {
	_, _, _, tasks := diamond()
	c, err := New(&scriptedModel{answers: map[string]string{"Parser": "x"}}, tasks)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Kickoff(ctx, map[string]any{"code": "", "lang": "Go"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsBadGraphs(t *testing.T) {
	agent := &Agent{Role: "A"}
	outsider := &Task{Name: "outsider", Agent: agent}
	a := &Task{Name: "a", Agent: agent}
	b := &Task{Name: "b", Agent: agent, Context: []*Task{a}}
	a.Context = []*Task{b}

	cases := []struct {
		name  string
		tasks []*Task
		want  error
	}{
		{"empty", nil, ErrNoTasks},
		{"no agent", []*Task{{Name: "x"}}, ErrNoAgent},
		{"duplicate", []*Task{outsider, outsider}, ErrDuplicateTask},
		{"unknown dependency", []*Task{{Name: "y", Agent: agent, Context: []*Task{outsider}}}, ErrUnknownDependency},
		{"cycle", []*Task{a, b}, ErrCycle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(&scriptedModel{}, tc.tasks)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := New(nil, []*Task{outsider})
	assert.Error(t, err)
}

func TestPlanLevels(t *testing.T) {
	root, left, right, tasks := diamond()
	levels, err := plan(tasks)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, []*Task{root}, levels[0])
	assert.Equal(t, []*Task{left, right}, levels[1])
}

func TestNilResult(t *testing.T) {
	var nilResult *Result
	_, ok := nilResult.Output(&Task{})
	assert.False(t, ok)
}

// countingModel records how many calls overlap.
type countingModel struct {
	mu       sync.Mutex
	inFlight int
	peak     int
}

func (m *countingModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	m.inFlight++
	m.peak = max(m.peak, m.inFlight)
	m.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	m.mu.Lock()
	m.inFlight--
	m.mu.Unlock()
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ok"}}}, nil
}

func (m *countingModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestKickoffMaxConcurrency(t *testing.T) {
	root := &Task{Name: "root", Agent: &Agent{Role: "Root"}}
	tasks := []*Task{root}
	for _, name := range []string{"a", "b", "c"} {
		tasks = append(tasks, &Task{Name: name, Agent: &Agent{Role: name}, Context: []*Task{root}})
	}
	model := &countingModel{}

	c, err := New(model, tasks, WithMaxConcurrency(1))
	require.NoError(t, err)
	res, err := c.Kickoff(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, model.peak)
	for _, task := range tasks {
		_, ok := res.Output(task)
		assert.True(t, ok, task.Name)
	}
}
