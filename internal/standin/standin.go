// Package standin is a scripted stand-in for the interactive program the
// harness drives. Test binaries re-exec themselves with HelperEnv set and
// call Main from TestMain, so PTY tests need no separately built fixture.
package standin

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const (
	// HelperEnv marks a test binary invocation as a stand-in process.
	HelperEnv = "MEMTEST_STANDIN"

	// Banner is printed by the assistant script once it accepts input.
	Banner = "Welcome to claude\r\n> "

	// BootReply answers BootPrompt.
	BootPrompt = "Hi again, Claude!"
	BootReply  = "Prime Directive engaged. Make it so."
)

// IsHelper reports whether the current process was started as a stand-in.
func IsHelper() bool {
	return os.Getenv(HelperEnv) == "1"
}

// Env returns the environment entries that turn a re-exec into a stand-in.
func Env() []string {
	return []string{HelperEnv + "=1"}
}

// Command returns the executable and arguments that run script in a
// re-exec of the current test binary.
func Command(script string, args ...string) (string, []string) {
	full := append([]string{"-test.run=^$", "--", script}, args...)
	return os.Args[0], full
}

// Main runs the script named in os.Args and exits.
func Main() {
	os.Exit(Run(scriptArgs(os.Args[1:]), os.Stdin, os.Stdout))
}

func scriptArgs(args []string) []string {
	for i, arg := range args {
		if arg == "--" {
			return args[i+1:]
		}
	}
	return args
}

// Run executes a script and returns the process exit code.
func Run(args []string, in *os.File, out io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "stand-in requires a script name")
		return 1
	}

	switch args[0] {
	case "echo":
		for _, arg := range args[1:] {
			fmt.Fprintln(out, arg)
		}
		return 0
	case "env":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "env requires a variable name")
			return 1
		}
		fmt.Fprintln(out, os.Getenv(args[1]))
		return 0
	case "pwd":
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "getwd: %v\n", err)
			return 1
		}
		fmt.Fprintln(out, wd)
		return 0
	case "exit":
		var code int
		if len(args) > 1 {
			fmt.Sscan(args[1], &code)
		}
		return code
	case "silent":
		// Never becomes ready; blocks until the terminal goes away.
		_, _ = io.Copy(io.Discard, in)
		return 0
	case "assistant":
		delay := time.Duration(0)
		if len(args) > 1 {
			delay, _ = time.ParseDuration(args[1])
		}
		return assistant(in, out, delay)
	default:
		fmt.Fprintf(os.Stderr, "unknown stand-in script: %s\n", args[0])
		return 1
	}
}

// assistant imitates a conversational CLI: a banner, then one reply per
// submitted line. The terminal is put in raw mode so input is not echoed
// and each reply is exactly the bytes written here.
func assistant(in *os.File, out io.Writer, bannerDelay time.Duration) int {
	if term.IsTerminal(int(in.Fd())) {
		state, err := term.MakeRaw(int(in.Fd()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "make raw: %v\n", err)
			return 1
		}
		defer term.Restore(int(in.Fd()), state)
	}

	time.Sleep(bannerDelay)
	io.WriteString(out, Banner)

	r := bufio.NewReader(in)
	previous := ""
	for {
		line, err := r.ReadString('\r')
		if err != nil {
			return 0
		}
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}
		if code, done := respond(line, previous, out); done {
			return code
		}
		previous = line
	}
}

func respond(line, previous string, out io.Writer) (code int, done bool) {
	switch {
	case line == BootPrompt:
		io.WriteString(out, BootReply)
	case line == "quit":
		return 3, true
	case line == "crash":
		_ = unix.Kill(unix.Getpid(), unix.SIGKILL)
		return 1, true
	case strings.HasPrefix(line, "stream "):
		// stream N GAP: N chunks separated by GAP.
		var n int
		var gap time.Duration
		parts := strings.Fields(line)
		if len(parts) == 3 {
			fmt.Sscan(parts[1], &n)
			gap, _ = time.ParseDuration(parts[2])
		}
		for i := 0; i < n; i++ {
			if i > 0 {
				time.Sleep(gap)
			}
			fmt.Fprintf(out, "\x1b[32mchunk %d\x1b[0m ", i)
		}
	case strings.HasPrefix(strings.ToLower(line), "what do you know"):
		fmt.Fprintf(out, "I remember you said: %s", previous)
	case strings.Contains(strings.ToLower(line), "plan"):
		io.WriteString(out, "Let me plan this out with you.")
	default:
		fmt.Fprintf(out, "echo: %s", line)
	}
	return 0, false
}
