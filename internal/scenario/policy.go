package scenario

import (
	"fmt"
	"strconv"
	"strings"
)

// Policy decides whether enough indicators were found.
type Policy interface {
	Satisfied(found, total int) bool
	String() string
}

type allPolicy struct{}

func (allPolicy) Satisfied(found, total int) bool { return found == total }
func (allPolicy) String() string                  { return "all" }

type anyPolicy struct{}

func (anyPolicy) Satisfied(found, _ int) bool { return found > 0 }
func (anyPolicy) String() string              { return "any" }

type atLeastPolicy int

func (p atLeastPolicy) Satisfied(found, _ int) bool { return found >= int(p) }
func (p atLeastPolicy) String() string              { return fmt.Sprintf("at-least:%d", int(p)) }

var (
	// All requires every indicator.
	All Policy = allPolicy{}
	// Any requires at least one indicator.
	Any Policy = anyPolicy{}
)

// AtLeast requires n indicators.
func AtLeast(n int) Policy {
	return atLeastPolicy(n)
}

// ParsePolicy accepts "all", "any" or "at-least:N". An empty string means
// all.
func ParsePolicy(s string) (Policy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "all":
		return All, nil
	case "any":
		return Any, nil
	}

	if rest, ok := strings.CutPrefix(s, "at-least:"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid policy %q: count must be a positive integer", s)
		}
		return AtLeast(n), nil
	}
	return nil, fmt.Errorf("invalid policy %q: want all, any or at-least:N", s)
}
