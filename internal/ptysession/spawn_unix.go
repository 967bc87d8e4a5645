//go:build unix

package ptysession

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Start allocates a pseudo-terminal of the requested size and starts the
// command attached to it. The session is live as soon as Start returns,
// whether or not the child has written anything yet.
func Start(opts Options) (*Session, error) {
	if opts.Command == "" {
		return nil, fmt.Errorf("%w: no command specified", ErrSpawnFailed)
	}

	termName := opts.Term
	if termName == "" {
		termName = defaultTerm
	}
	env := opts.Env
	if env == nil {
		env = os.Environ()
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Env = append(append([]string(nil), env...),
		"TERM="+termName,
		fmt.Sprintf("COLUMNS=%d", opts.Cols),
		fmt.Sprintf("LINES=%d", opts.Rows),
	)
	cmd.Dir = opts.Dir

	ws := &pty.Winsize{Rows: opts.Rows, Cols: opts.Cols}
	ptm, err := pty.StartWithSize(cmd, ws)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawnFailed, opts.Command, err)
	}

	return newSession(ptm, cmd, opts), nil
}

// Resize changes the terminal dimensions.
func (s *Session) Resize(cols, rows uint16) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrNotStarted
	}
	return pty.Setsize(s.ptm, &pty.Winsize{Rows: rows, Cols: cols})
}

// exitStatusOf reports a code of -1 when Wait failed without the process
// having exited normally.
func exitStatusOf(state *os.ProcessState, err error) ExitStatus {
	if state == nil {
		return ExitStatus{Code: -1}
	}
	status := ExitStatus{Code: state.ExitCode()}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Signal = unix.SignalName(ws.Signal())
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) && status.Signal == "" && status.Code == 0 {
		status.Code = -1
	}
	return status
}

// terminate sends SIGTERM to the process group. The child leads its own
// session, so this also reaches anything it started on the terminal.
func terminate(p *os.Process) error {
	return signalGroup(p, unix.SIGTERM)
}

func kill(p *os.Process) error {
	return signalGroup(p, unix.SIGKILL)
}

func signalGroup(p *os.Process, sig unix.Signal) error {
	if err := unix.Kill(-p.Pid, sig); err == nil {
		return nil
	}
	return p.Signal(sig)
}
