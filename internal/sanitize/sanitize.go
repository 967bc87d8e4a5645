// Package sanitize turns raw terminal output into text that can be compared
// against plain substrings. It removes control sequences without
// interpreting them; there is no cursor tracking or screen emulation.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	// basicPattern matches ESC [ params letter, where params are digits and
	// semicolons only.
	basicPattern = regexp.MustCompile(`\x1b\[[0-9;]*[mGKHJA-Z]`)

	// fullPattern also covers what interactive TUIs emit around the basic set:
	//   - CSI with private-mode params: ESC [ ? 25 l
	//   - OSC: ESC ] ... BEL or ST
	//   - Simple ESC sequences: ESC + one char
	fullPattern = regexp.MustCompile(
		`\x1b\[[0-9;?<=>]*[a-zA-Z@~]` +
			`|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)` +
			`|\x1b[^\[\]]`,
	)
)

// Mode selects which family of sequences is removed.
type Mode string

const (
	// ModeBasic removes SGR, cursor and erase sequences (ESC [ 0-9; letter).
	ModeBasic Mode = "basic"
	// ModeFull additionally removes private-mode CSI, OSC and two-byte escapes.
	ModeFull Mode = "full"
)

// ParseMode returns the Mode for s, defaulting to ModeBasic for "".
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeBasic:
		return ModeBasic, true
	case ModeFull:
		return ModeFull, true
	}
	return "", false
}

// Func returns the strip function for the mode.
func (m Mode) Func() func(string) string {
	if m == ModeFull {
		return StripAll
	}
	return Strip
}

// Strip removes ESC [ params letter sequences from raw. It never fails, and
// it is applied until nothing matches so Strip(Strip(s)) == Strip(s) even
// when removing one sequence splices together another.
func Strip(raw string) string {
	return fixedPoint(basicPattern, raw)
}

// StripAll removes every CSI, OSC and two-byte escape sequence from raw.
func StripAll(raw string) string {
	return fixedPoint(fullPattern, raw)
}

// Normalize drops carriage returns so CRLF line endings compare as LF.
func Normalize(s string) string {
	return strings.ReplaceAll(s, "\r", "")
}

func fixedPoint(re *regexp.Regexp, s string) string {
	if !strings.Contains(s, "\x1b") {
		return s
	}
	// Every pass that changes s makes it shorter, so this terminates.
	for {
		next := re.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = next
	}
}
