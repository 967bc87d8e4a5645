package scenario

import (
	"fmt"
	"io"
	"strings"
)

// Report collects the results of a suite run.
type Report struct {
	Results []Result
}

// Passed reports whether every scenario succeeded. An empty report passes.
func (r Report) Passed() bool {
	for _, result := range r.Results {
		if !result.Success {
			return false
		}
	}
	return true
}

// Failed returns the results that did not succeed.
func (r Report) Failed() []Result {
	var failed []Result
	for _, result := range r.Results {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	return failed
}

// WriteSummary writes a human readable summary: one PASS/FAIL line per
// scenario, what was missing, the overall verdict and response lengths.
func (r Report) WriteSummary(w io.Writer) error {
	var b strings.Builder

	b.WriteString("=== Test Summary ===\n")
	for _, result := range r.Results {
		verdict := "PASS"
		if !result.Success {
			verdict = "FAIL"
		}
		fmt.Fprintf(&b, "%s: %s\n", result.Name, verdict)
	}

	for _, result := range r.Results {
		if result.Err != nil {
			fmt.Fprintf(&b, "%s error: %v\n", result.Name, result.Err)
		}
		if !result.Success && len(result.Missing) > 0 {
			fmt.Fprintf(&b, "%s missing: %s\n", result.Name, strings.Join(result.Missing, ", "))
		}
	}

	if r.Passed() {
		b.WriteString("\nOverall: ALL TESTS PASSED\n")
	} else {
		b.WriteString("\nOverall: SOME TESTS FAILED\n")
	}

	b.WriteString("\nResponse lengths:\n")
	for _, result := range r.Results {
		fmt.Fprintf(&b, "  %s: %d chars\n", result.Name, result.ResponseLength)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
