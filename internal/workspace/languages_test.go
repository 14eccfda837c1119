package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupLanguage(t *testing.T) {
	tests := map[string]string{
		"javascript": "javascript",
		"JS":         "javascript",
		" ts ":       "typescript",
		"tsx":        "tsx",
		"py":         "python",
		"rs":         "rust",
		"golang":     "go",
		"c#":         "csharp",
		"yml":        "yaml",
	}
	for input, want := range tests {
		l, ok := LookupLanguage(input)
		require.True(t, ok, input)
		assert.Equal(t, want, l.Name, input)
	}

	_, ok := LookupLanguage("cobol")
	assert.False(t, ok)
}

func TestLanguageForPath(t *testing.T) {
	l, ok := LanguageForPath("src/App.JSX")
	require.True(t, ok)
	assert.Equal(t, "javascript", l.Name)

	l, ok = LanguageForPath("lib.rs")
	require.True(t, ok)
	assert.Equal(t, "rust", l.Name)

	_, ok = LanguageForPath("Makefile")
	assert.False(t, ok)
}

func TestSuggestLanguage(t *testing.T) {
	assert.Equal(t, "javascript", SuggestLanguage("javascrpt"))
	assert.Equal(t, "python", SuggestLanguage("pyton"))
	assert.Equal(t, "typescript", SuggestLanguage("TypeScrip"))
	assert.Empty(t, SuggestLanguage("fortran77"))
	assert.Empty(t, SuggestLanguage(""))
}

func TestLanguages(t *testing.T) {
	names := Languages()
	assert.Contains(t, names, "javascript")
	assert.IsIncreasing(t, names)
}

func TestExtensionSet(t *testing.T) {
	set := extensionSet([]string{"ts"})
	assert.True(t, set[".ts"])
	assert.False(t, set[".tsx"])
	assert.False(t, set[".js"])

	all := extensionSet([]string{"unknown"})
	assert.True(t, all[".py"])
	assert.True(t, all[".go"])
}
