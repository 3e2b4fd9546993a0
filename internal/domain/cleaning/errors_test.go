package cleaning

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("boom"), KindUnknown},
		{"analysis", Wrap(KindAnalysis, errors.New("boom")), KindAnalysis},
		{"cleaning wrapped again", fmt.Errorf("tool: %w", Wrap(KindCleaning, errors.New("boom"))), KindCleaning},
		{"resource", Wrap(KindResource, fs.ErrNotExist), KindResource},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(KindResource, &fs.PathError{Op: "open", Path: "x.py", Err: fs.ErrNotExist})
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Nil(t, Wrap(KindCleaning, nil))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Error during analysis: Analysis failed: rate limited",
		Describe(Wrap(KindAnalysis, errors.New("rate limited"))))
	assert.Equal(t, "Error during code cleaning: timeout",
		Describe(Wrap(KindCleaning, errors.New("timeout"))))
	assert.True(t, strings.HasPrefix(Describe(errors.New("x")), "Error: "))
	assert.Empty(t, Describe(nil))
}

func TestResultVariants(t *testing.T) {
	ok := Succeeded(Findings{UnusedFunctions: "Line 11: def unused_function()", UnusedImports: "  "})
	assert.False(t, ok.Failed())
	assert.Equal(t, "Line 11: def unused_function()", ok.UnusedFunctions)
	assert.Equal(t, NoneFound, ok.UnusedImports)
	assert.Equal(t, NoneFound, ok.IrrelevantComments)

	bad := FailedAnalysis(errors.New("network down"))
	assert.True(t, bad.Failed())
	assert.Equal(t, "Analysis failed: network down", bad.Error)
	assert.Equal(t, CouldNotAnalyze, bad.UnusedFunctions)
	assert.Equal(t, CouldNotAnalyze, bad.UnusedImports)
	assert.Equal(t, CouldNotAnalyze, bad.IrrelevantComments)
}
