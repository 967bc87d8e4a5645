//go:build !unix

package ptysession

import (
	"errors"
	"fmt"
	"os"
)

// Start is not supported on this platform.
func Start(opts Options) (*Session, error) {
	return nil, fmt.Errorf("%w: pseudo-terminals are not supported on this platform", ErrSpawnFailed)
}

// Resize is not supported on this platform.
func (s *Session) Resize(cols, rows uint16) error {
	return errors.ErrUnsupported
}

func exitStatusOf(state *os.ProcessState, err error) ExitStatus {
	if state == nil || (err != nil && state.ExitCode() == 0) {
		return ExitStatus{Code: -1}
	}
	return ExitStatus{Code: state.ExitCode()}
}

func terminate(p *os.Process) error {
	return p.Kill()
}

func kill(p *os.Process) error {
	return p.Kill()
}
