package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		values   map[string]string
		expected string
	}{
		{
			name:     "single token",
			template: "Hello <<NAME>>!",
			values:   map[string]string{"NAME": "world"},
			expected: "Hello world!",
		},
		{
			name:     "repeated token replaced everywhere",
			template: "<<X>> and <<X>>",
			values:   map[string]string{"X": "a"},
			expected: "a and a",
		},
		{
			name:     "multiple tokens",
			template: "now=<<NOW>> tz=<<TZ>>",
			values:   map[string]string{"NOW": "2026-01-01T00:00:00Z", "TZ": "UTC"},
			expected: "now=2026-01-01T00:00:00Z tz=UTC",
		},
		{
			name:     "no tokens is identity",
			template: "plain text, no placeholders",
			values:   map[string]string{},
			expected: "plain text, no placeholders",
		},
		{
			name:     "extra values are ignored",
			template: "only <<A>>",
			values:   map[string]string{"A": "1", "B": "2"},
			expected: "only 1",
		},
		{
			name:     "lowercase angle text is not a token",
			template: "<<not_a_token>> stays",
			values:   map[string]string{},
			expected: "<<not_a_token>> stays",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.template, tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRenderUnresolvedTokens(t *testing.T) {
	_, err := Render("hi <<NAME>> from <<CITY>>", map[string]string{"NAME": "x"})
	require.Error(t, err)

	var unresolved *UnresolvedTokensError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, []string{"CITY"}, unresolved.Tokens)
	assert.Equal(t, "PROMPT_UNRESOLVED_TOKENS", unresolved.Code())
}

func TestRenderUnresolvedTokensDeduplicated(t *testing.T) {
	_, err := Render("<<B>> <<A>> <<B>>", nil)
	require.Error(t, err)

	var unresolved *UnresolvedTokensError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, []string{"A", "B"}, unresolved.Tokens)
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "runtime_router.md"),
		[]byte("User: <<USER_MESSAGE>>\nNow: <<NOW>>\n"), 0o644))

	loader := NewLoader(dir)

	text, err := loader.Load("runtime_router")
	require.NoError(t, err)
	assert.Contains(t, text, "<<USER_MESSAGE>>")

	rendered, err := loader.LoadAndRender("runtime_router", map[string]string{
		"USER_MESSAGE": "hello",
		"NOW":          "2026-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "User: hello\nNow: 2026-01-01T00:00:00Z\n", rendered)

	// Cached content survives file removal.
	require.NoError(t, os.Remove(filepath.Join(dir, "runtime_router.md")))
	text, err = loader.Load("runtime_router")
	require.NoError(t, err)
	assert.Contains(t, text, "<<NOW>>")
}

func TestLoaderMissingTemplate(t *testing.T) {
	loader := NewLoader(t.TempDir())
	_, err := loader.Load("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}
