// Package prompt renders template files with <<TOKEN>> placeholders.
package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// tokenPattern matches any unresolved <<TOKEN>> placeholder after substitution.
var tokenPattern = regexp.MustCompile(`<<[A-Z0-9_]+>>`)

// UnresolvedTokensError reports placeholders left in a template after
// rendering. Nodes map it to their span error code.
type UnresolvedTokensError struct {
	Tokens []string
}

func (e *UnresolvedTokensError) Error() string {
	return fmt.Sprintf("template has unresolved tokens: %s", strings.Join(e.Tokens, ", "))
}

// Code returns the stable error code for this failure class.
func (e *UnresolvedTokensError) Code() string { return "PROMPT_UNRESOLVED_TOKENS" }

// Render substitutes each <<TOKEN>> in template with values[TOKEN].
// Substitution is literal and single-pass: values are not re-scanned for
// tokens. Returns UnresolvedTokensError if any <<TOKEN>> placeholder
// survives substitution.
func Render(template string, values map[string]string) (string, error) {
	out := template
	for token, value := range values {
		out = strings.ReplaceAll(out, "<<"+token+">>", value)
	}

	if matches := tokenPattern.FindAllString(out, -1); len(matches) > 0 {
		seen := make(map[string]bool, len(matches))
		tokens := make([]string, 0, len(matches))
		for _, m := range matches {
			name := strings.TrimSuffix(strings.TrimPrefix(m, "<<"), ">>")
			if !seen[name] {
				seen[name] = true
				tokens = append(tokens, name)
			}
		}
		sort.Strings(tokens)
		return "", &UnresolvedTokensError{Tokens: tokens}
	}
	return out, nil
}
