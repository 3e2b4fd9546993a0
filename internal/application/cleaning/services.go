package cleaning

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/deadcode-cleaner/internal/application"
	domain "github.com/bryanwahyu/deadcode-cleaner/internal/domain/cleaning"
)

// Service implements the dead code cleaning use-cases.
// Analyzer, Chat, Sources and Prompt are required; Clock defaults to the
// system clock. Service keeps no per-call state.
type Service struct {
	Analyzer domain.Analyzer
	Chat     domain.ChatClient
	Sources  domain.SourceLoader
	Prompt   domain.PromptBuilder
	Clock    application.Clock
	Logger   zerolog.Logger
}

func (s *Service) clock() application.Clock {
	if s.Clock == nil {
		return application.SystemClock{}
	}
	return s.Clock
}

// Analyze runs the detectors over code. It never loses the record: on
// failure it returns the error variant together with a KindAnalysis error.
func (s *Service) Analyze(ctx context.Context, code string) (res domain.AnalysisResult, err error) {
	start := s.clock().Now()
	defer func() {
		if p := recover(); p != nil {
			cause := fmt.Errorf("analyzer panicked: %v", p)
			res, err = domain.FailedAnalysis(cause), domain.Wrap(domain.KindAnalysis, cause)
		}
		ev := s.Logger.Debug()
		if err != nil {
			ev = s.Logger.Warn().Err(err)
		}
		ev.Dur("took", s.clock().Now().Sub(start)).
			Str("unused_functions", res.UnusedFunctions).
			Str("unused_imports", res.UnusedImports).
			Str("irrelevant_comments", res.IrrelevantComments).
			Msg("analysis finished")
	}()

	f, aerr := s.Analyzer.Analyze(ctx, code)
	if aerr != nil {
		return domain.FailedAnalysis(aerr), domain.Wrap(domain.KindAnalysis, aerr)
	}
	return domain.Succeeded(f), nil
}

// CleaningPrompt formats the instruction sent to the chat model.
func (s *Service) CleaningPrompt(code string, f domain.Findings) string {
	return s.Prompt(code, f)
}

// Clean runs the analysis, then asks the chat model to remove what was
// found. The model's reply is returned as is. A failed analysis skips the
// chat call.
func (s *Service) Clean(ctx context.Context, code string) (string, error) {
	res, err := s.Analyze(ctx, code)
	if err != nil {
		return "", err
	}

	start := s.clock().Now()
	out, err := s.Chat.Complete(ctx, s.CleaningPrompt(code, res.Findings()))
	if err != nil {
		s.Logger.Warn().Err(err).Msg("code cleaning failed")
		return "", domain.Wrap(domain.KindCleaning, err)
	}
	s.Logger.Debug().Dur("took", s.clock().Now().Sub(start)).Int("chars", len(out)).Msg("code cleaned")
	return out, nil
}

// LoadCode returns the text stored at path. Failures are KindResource and
// keep the underlying I/O error reachable through errors.Is.
func (s *Service) LoadCode(ctx context.Context, path string) (string, error) {
	text, err := s.Sources.Load(ctx, path)
	if err != nil {
		return "", domain.Wrap(domain.KindResource, err)
	}
	return text, nil
}
