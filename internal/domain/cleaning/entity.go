package cleaning

// Placeholder texts used when analysis produced nothing usable.
const (
	NoneFound       = "None found"
	CouldNotAnalyze = "Could not analyze"

	analysisFailedPrefix = "Analysis failed: "
)

// Findings value object: natural-language output of the three detectors.
type Findings struct {
	UnusedFunctions    string
	UnusedImports      string
	IrrelevantComments string
}

// AnalysisResult is what the analyze tool hands back to callers.
// Error is set only for the failed variant.
type AnalysisResult struct {
	Error              string `json:"error,omitempty"`
	UnusedFunctions    string `json:"unused_functions"`
	UnusedImports      string `json:"unused_imports"`
	IrrelevantComments string `json:"irrelevant_comments"`
}

// Failed reports whether r is the error variant.
func (r AnalysisResult) Failed() bool { return r.Error != "" }

// Findings returns the three findings of a successful result.
func (r AnalysisResult) Findings() Findings {
	return Findings{
		UnusedFunctions:    r.UnusedFunctions,
		UnusedImports:      r.UnusedImports,
		IrrelevantComments: r.IrrelevantComments,
	}
}

// Succeeded wraps findings, substituting NoneFound for blank entries.
func Succeeded(f Findings) AnalysisResult {
	return AnalysisResult{
		UnusedFunctions:    orNoneFound(f.UnusedFunctions),
		UnusedImports:      orNoneFound(f.UnusedImports),
		IrrelevantComments: orNoneFound(f.IrrelevantComments),
	}
}

// FailedAnalysis builds the error variant for cause.
func FailedAnalysis(cause error) AnalysisResult {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return AnalysisResult{
		Error:              analysisFailedPrefix + msg,
		UnusedFunctions:    CouldNotAnalyze,
		UnusedImports:      CouldNotAnalyze,
		IrrelevantComments: CouldNotAnalyze,
	}
}

func orNoneFound(s string) string {
	if isBlank(s) {
		return NoneFound
	}
	return s
}
