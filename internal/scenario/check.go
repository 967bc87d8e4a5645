// Package scenario sends scripted prompts through a harness and checks the
// responses for expected indicator phrases.
package scenario

import (
	"strings"
	"unicode/utf8"

	"github.com/socratic-shell/socratic-shell/internal/sanitize"
)

// previewRunes is how much of the end of a response a Result keeps.
const previewRunes = 500

// Result is the outcome of one scenario. Indicator mismatches make a
// failed Result; Err is only set when the exchange itself went wrong.
type Result struct {
	Name           string
	Success        bool
	Found          []string
	Missing        []string
	ResponseLength int
	Preview        string
	Err            error
}

// Check matches each indicator as a case-insensitive substring of
// response. Found and Missing keep the order of indicators.
func Check(response string, indicators []string, policy Policy) Result {
	if policy == nil {
		policy = All
	}

	lower := strings.ToLower(response)
	var r Result
	for _, indicator := range indicators {
		if strings.Contains(lower, strings.ToLower(indicator)) {
			r.Found = append(r.Found, indicator)
		} else {
			r.Missing = append(r.Missing, indicator)
		}
	}

	r.Success = policy.Satisfied(len(r.Found), len(indicators))
	r.ResponseLength = utf8.RuneCountInString(response)
	r.Preview = tail(sanitize.Normalize(response), previewRunes)
	return r
}

func tail(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[len(runes)-n:])
}
