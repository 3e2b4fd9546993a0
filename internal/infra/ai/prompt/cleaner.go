package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/deadcode-cleaner/internal/domain/cleaning"
)

// CleanCode builds the cleaning instruction for DefaultLanguage.
func CleanCode(code, unusedFunctions, unusedImports, irrelevantComments string) string {
	return CleanCodeFor(DefaultLanguage, code, unusedFunctions, unusedImports, irrelevantComments)
}

// CleanCodeFor builds the instruction asking a model to delete exactly the
// listed functions, imports and comments from code. Every argument is
// embedded verbatim.
func CleanCodeFor(language, code, unusedFunctions, unusedImports, irrelevantComments string) string {
	if strings.TrimSpace(language) == "" {
		language = DefaultLanguage
	}
	fence := strings.ToLower(strings.Fields(language)[0])

	return fmt.Sprintf(`You are a code cleaning engine. Your job is to remove **only and exactly** the lines listed below from the given %[1]s code.

1. Remove these unused functions (entire function block):
%[3]s

2. Remove these unused imports (exact lines):
%[4]s

3. Remove these irrelevant comments (exact lines or lines containing them):
%[5]s

Your final output must:
- Be fully working %[1]s code
- Include ONLY the cleaned version inside a single %[1]s code block (no explanation or commentary)

Clean this %[1]s code:

`+"```"+`%[2]s
%[6]s
`+"```"+`
`, language, fence, unusedFunctions, unusedImports, irrelevantComments, code)
}

// Builder returns a cleaning.PromptBuilder bound to language.
func Builder(language string) cleaning.PromptBuilder {
	return func(code string, f cleaning.Findings) string {
		return CleanCodeFor(language, code, f.UnusedFunctions, f.UnusedImports, f.IrrelevantComments)
	}
}
