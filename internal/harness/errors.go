package harness

import (
	"errors"
	"fmt"

	"github.com/socratic-shell/socratic-shell/internal/ptysession"
)

var (
	// ErrSpawnFailed is returned by Start when the target could not be run.
	ErrSpawnFailed = ptysession.ErrSpawnFailed

	// ErrReadinessTimeout is returned by Start when no ready marker appeared.
	ErrReadinessTimeout = errors.New("target never became ready")

	// ErrNotStarted is returned by SendMessage unless the harness is Ready.
	// No input reaches the target in that case.
	ErrNotStarted = errors.New("harness not ready")

	// ErrBusy is returned by SendMessage while another message is in flight.
	ErrBusy = errors.New("a message is already in flight")

	// ErrProcessExited is returned when the target exits while the harness
	// is waiting on it.
	ErrProcessExited = errors.New("target process exited")
)

// ExitError reports how the target terminated. It matches ErrProcessExited
// with errors.Is.
type ExitError struct {
	Status ptysession.ExitStatus
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s (%s)", ErrProcessExited, e.Status)
}

func (e *ExitError) Unwrap() error {
	return ErrProcessExited
}
