package prompt

// Input keys shared by every analyst template.
const (
	InputCode     = "code"
	InputLanguage = "programming_language"
)

// DefaultLanguage is the language the prompts assume when none is configured.
const DefaultLanguage = "Python"

// Analyst describes one analysis request: the persona asked to run it and
// the instruction it receives. Description may reference {code} and
// {programming_language}.
type Analyst struct {
	Name           string
	Role           string
	Goal           string
	Backstory      string
	Description    string
	ExpectedOutput string
}

// StructureAnalyst extracts functions, imports and comments. Every other
// analyst reads its output.
func StructureAnalyst() Analyst {
	return Analyst{
		Name:           "parse_code",
		Role:           "Code Structure Analyzer",
		Goal:           "Extract all function definitions, imports, and comments from the code.",
		Backstory:      "An expert in parsing code structure into ASTs and clean metadata.",
		Description:    "Extract all function definitions, import statements, and inline comments from this {programming_language} code:\n{code}",
		ExpectedOutput: "Structured list of functions, imports, and comments. Return a list in this format: 'Line X: [function/import/comment]'",
	}
}

// FunctionUsageAuditor finds functions that are defined but never called.
func FunctionUsageAuditor() Analyst {
	return Analyst{
		Name:           "detect_unused_functions",
		Role:           "Function Usage Auditor",
		Goal:           "Detect unused functions.",
		Backstory:      "Finds defined functions that are never called.",
		Description:    "Find functions that are defined but not called. Identify the functions which have never been used in the code provided.",
		ExpectedOutput: "List of unused functions with line numbers, in the format Line X: '[def ...]'.",
	}
}

// ImportUsageAuditor finds import statements nothing refers to.
func ImportUsageAuditor() Analyst {
	return Analyst{
		Name:           "detect_unused_imports",
		Role:           "Import Usage Auditor",
		Goal:           "Identify unused imports.",
		Backstory:      "Finds import statements that are never used.",
		Description:    "Find unused import/include statements. Identify the imports that have never been used in the code.",
		ExpectedOutput: "List of unused imports with line numbers, in the format Line X: '[import ...]'.",
	}
}

// CommentReviewer flags comments that are vague, outdated or unrelated.
func CommentReviewer() Analyst {
	return Analyst{
		Name:      "detect_irrelevant_comments",
		Role:      "Comment Reviewer",
		Goal:      "Find irrelevant or outdated comments.",
		Backstory: "Sniffs out misleading or unnecessary comments.",
		Description: `Review the comments extracted from the code ({code}).
For each comment:
- Identify whether it is useful, outdated, redundant, or irrelevant.
- Use the full code context to judge the relevance.
- Focus on comments that are vague, humorous, or unrelated to the logic.

Return a list of **irrelevant or misleading comments** in this format:
Line X: '[comment]' → Reason for removal`,
		ExpectedOutput: `List of flagged comments with their line numbers, actual text, and specific reason for removal.
Format:
Line X: '[comment]' → [reason]`,
	}
}
