// Package ptysession runs one child process attached to a pseudo-terminal.
// Output is delivered to a single observer, one call per chunk in arrival
// order; input is written as if typed at the terminal.
package ptysession

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/socratic-shell/socratic-shell/internal/debug"
)

var (
	// ErrSpawnFailed is returned when the pseudo-terminal or the process
	// could not be created.
	ErrSpawnFailed = errors.New("failed to spawn process in pseudo-terminal")

	// ErrNotStarted is returned by Write before Start or after Close.
	ErrNotStarted = errors.New("session not started")

	errReaderTimeout = errors.New("timeout waiting for pseudo-terminal reader to exit")
)

const (
	defaultTerm    = "xterm-256color"
	readBufferSize = 4096

	// closeGrace is how long Close waits after SIGTERM before SIGKILL.
	closeGrace = 500 * time.Millisecond
	// drainTimeout bounds how long exit notification waits for the reader
	// to deliver output still queued in the terminal.
	drainTimeout = 250 * time.Millisecond
	// stopTimeout bounds how long Close waits for background goroutines.
	stopTimeout = 2 * time.Second
)

// Options configures a Session.
type Options struct {
	Command string
	Args    []string
	Cols    uint16
	Rows    uint16
	Dir     string
	// Env is the complete child environment in KEY=VALUE form. A nil Env
	// inherits the current process environment.
	Env []string
	// Term is the TERM value exported to the child.
	Term string

	// OnData and OnExit are registered before the reader starts, so no
	// startup output can be missed.
	OnData func(data string)
	OnExit func(status ExitStatus)
}

// ExitStatus describes how the child terminated.
type ExitStatus struct {
	Code   int
	Signal string
}

func (s ExitStatus) String() string {
	if s.Signal != "" {
		return fmt.Sprintf("code %d, signal %s", s.Code, s.Signal)
	}
	return fmt.Sprintf("code %d", s.Code)
}

// Session is a live child process attached to a pseudo-terminal.
type Session struct {
	mu           sync.RWMutex
	ptm          *os.File
	cmd          *exec.Cmd
	onData       func(string)
	onExit       func(ExitStatus)
	closed       bool
	exited       bool
	exitNotified bool
	status       ExitStatus

	done     chan struct{} // closed when the child has exited
	readDone chan struct{} // closed when the reader goroutine returns

	closeOnce sync.Once
	closeErr  error
}

func newSession(ptm *os.File, cmd *exec.Cmd, opts Options) *Session {
	s := &Session{
		ptm:      ptm,
		cmd:      cmd,
		onData:   opts.OnData,
		onExit:   opts.OnExit,
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go s.readLoop()
	go s.waitLoop()
	return s
}

// OnData replaces the data observer. There is no replay of chunks that
// arrived before registration.
func (s *Session) OnData(callback func(data string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onData = callback
}

// OnExit registers the exit observer. If the child has already exited and
// no observer was notified yet, callback runs immediately.
func (s *Session) OnExit(callback func(status ExitStatus)) {
	s.mu.Lock()
	s.onExit = callback
	fire := s.exited && !s.exitNotified && callback != nil
	if fire {
		s.exitNotified = true
	}
	status := s.status
	s.mu.Unlock()

	if fire {
		callback(status)
	}
}

// Write injects text as if typed at the terminal. It does not wait for
// any response.
func (s *Session) Write(text string) error {
	if s == nil {
		return ErrNotStarted
	}
	s.mu.RLock()
	ptm := s.ptm
	closed := s.closed
	s.mu.RUnlock()
	if closed || ptm == nil {
		return ErrNotStarted
	}

	// Blocks while the target is not reading, until Close ends it.
	n, err := ptm.WriteString(text)
	debug.Write(s.pid(), text, n, err)
	if err != nil {
		if errors.Is(err, os.ErrClosed) {
			return ErrNotStarted
		}
		return fmt.Errorf("failed to write to terminal: %w", err)
	}
	return nil
}

// Pid returns the child process id.
func (s *Session) Pid() int {
	return s.pid()
}

func (s *Session) pid() int {
	if s.cmd == nil || s.cmd.Process == nil {
		return -1
	}
	return s.cmd.Process.Pid
}

// Done is closed once the child has exited and its output was drained.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// ExitStatus returns the exit status, and false while the child is running.
func (s *Session) ExitStatus() (ExitStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.exited
}

// Close terminates the child and releases the pseudo-terminal. It is safe
// to call more than once and after the child has already exited.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closeErr = s.close()
	})
	return s.closeErr
}

func (s *Session) close() error {
	s.mu.Lock()
	s.closed = true
	exited := s.exited
	s.mu.Unlock()

	var errs []error

	if !exited && s.cmd.Process != nil {
		if err := terminate(s.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("failed to signal process: %w", err))
		}
		select {
		case <-s.done:
		case <-time.After(closeGrace):
			_ = kill(s.cmd.Process)
		}
	}

	if err := s.ptm.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		errs = append(errs, fmt.Errorf("failed to close pseudo-terminal: %w", err))
	}

	select {
	case <-s.readDone:
	case <-time.After(stopTimeout):
		errs = append(errs, errReaderTimeout)
	}
	select {
	case <-s.done:
	case <-time.After(stopTimeout):
		errs = append(errs, errors.New("timeout waiting for process to exit"))
	}

	if len(errs) != 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

func (s *Session) readLoop() {
	defer close(s.readDone)
	buf := make([]byte, readBufferSize)

	for {
		n, err := s.ptm.Read(buf)
		if n > 0 {
			data := string(buf[:n])
			debug.Read(s.pid(), data)

			s.mu.RLock()
			callback := s.onData
			s.mu.RUnlock()
			if callback != nil {
				callback(data)
			}
		}
		if err != nil {
			// EIO once the child side is gone, or os.ErrClosed after Close.
			return
		}
	}
}

func (s *Session) waitLoop() {
	err := s.cmd.Wait()
	status := exitStatusOf(s.cmd.ProcessState, err)

	// Let the reader deliver whatever the child wrote before exiting.
	select {
	case <-s.readDone:
	case <-time.After(drainTimeout):
	}

	s.mu.Lock()
	s.status = status
	s.exited = true
	callback := s.onExit
	fire := callback != nil && !s.exitNotified
	if fire {
		s.exitNotified = true
	}
	s.mu.Unlock()

	debug.Printf("process %d exited: %s", s.pid(), status)
	close(s.done)

	if fire {
		callback(status)
	}
}
