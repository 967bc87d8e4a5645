package harness

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/socratic-shell/socratic-shell/internal/clock"
	"github.com/socratic-shell/socratic-shell/internal/ptysession"
)

var epoch = time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeTerminal stands in for a pty session. Output is pushed through the
// callbacks the harness registered at start.
type fakeTerminal struct {
	mu      sync.Mutex
	opts    ptysession.Options
	writes  []string
	done    chan struct{}
	status  ptysession.ExitStatus
	exited  bool
	closes  int
	onWrite func(text string)
}

func newFakeTerminal() *fakeTerminal {
	return &fakeTerminal{done: make(chan struct{})}
}

func (f *fakeTerminal) Write(text string) error {
	f.mu.Lock()
	if f.closes > 0 {
		f.mu.Unlock()
		return ptysession.ErrNotStarted
	}
	f.writes = append(f.writes, text)
	callback := f.onWrite
	f.mu.Unlock()

	if callback != nil {
		callback(text)
	}
	return nil
}

func (f *fakeTerminal) Done() <-chan struct{} {
	return f.done
}

func (f *fakeTerminal) ExitStatus() (ptysession.ExitStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.exited
}

func (f *fakeTerminal) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	return nil
}

func (f *fakeTerminal) emit(data string) {
	f.opts.OnData(data)
}

func (f *fakeTerminal) exit(status ptysession.ExitStatus) {
	f.mu.Lock()
	if f.exited {
		f.mu.Unlock()
		return
	}
	f.exited = true
	f.status = status
	f.mu.Unlock()

	close(f.done)
	f.opts.OnExit(status)
}

func (f *fakeTerminal) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *fakeTerminal) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// HarnessRobot provides a fluent interface for driving a Harness against a
// fake terminal on a mock clock.
type HarnessRobot struct {
	t        *testing.T
	clock    *clock.Mock
	term     *fakeTerminal
	harness  *Harness
	spawned  int
	spawnErr error

	startErr error
	response string
	sendErr  error
	sentAt   time.Time
	submits  int
}

// NewHarnessRobot creates a robot whose harness uses cfg with a mock clock.
func NewHarnessRobot(t *testing.T, cfg Config, opts ...Option) *HarnessRobot {
	r := &HarnessRobot{
		t:     t,
		clock: clock.NewMock(epoch),
		term:  newFakeTerminal(),
	}
	if cfg.Command == "" {
		cfg.Command = "claude"
	}
	r.harness = New(cfg, append([]Option{WithClock(r.clock)}, opts...)...)
	r.harness.start = func(o ptysession.Options) (terminal, error) {
		r.spawned++
		if r.spawnErr != nil {
			return nil, r.spawnErr
		}
		r.term.opts = o
		return r.term, nil
	}
	t.Cleanup(func() { _ = r.harness.Close() })
	return r
}

// FailSpawn makes the next start fail with err.
func (r *HarnessRobot) FailSpawn(err error) *HarnessRobot {
	r.spawnErr = err
	return r
}

// EmitAt schedules output offset after the current mock time.
func (r *HarnessRobot) EmitAt(offset time.Duration, data string) *HarnessRobot {
	at := r.clock.Now().Add(offset)
	var once sync.Once
	r.clock.OnAdvance(func(now time.Time) {
		if !now.Before(at) {
			once.Do(func() { r.term.emit(data) })
		}
	})
	return r
}

// EmitContinuously emits data on every clock advance from now on.
func (r *HarnessRobot) EmitContinuously(data string) *HarnessRobot {
	r.clock.OnAdvance(func(time.Time) {
		r.term.emit(data)
	})
	return r
}

// ExitAt schedules the target's exit offset after the current mock time.
func (r *HarnessRobot) ExitAt(offset time.Duration, status ptysession.ExitStatus) *HarnessRobot {
	at := r.clock.Now().Add(offset)
	r.clock.OnAdvance(func(now time.Time) {
		if !now.Before(at) {
			r.term.exit(status)
		}
	})
	return r
}

// OnSubmit runs reply each time a message has been fully submitted, with
// the index of the message starting at zero.
func (r *HarnessRobot) OnSubmit(reply func(r *HarnessRobot, index int)) *HarnessRobot {
	steps := len(r.harness.Config().Submit)
	written := 0
	r.term.onWrite = func(text string) {
		written++
		// message text plus every submit step
		if written%(steps+1) == 0 {
			index := r.submits
			r.submits++
			reply(r, index)
		}
	}
	return r
}

// Start starts the harness and records the result.
func (r *HarnessRobot) Start() *HarnessRobot {
	r.startErr = r.harness.Start(context.Background())
	return r
}

// Send sends a message and records the response.
func (r *HarnessRobot) Send(text string) *HarnessRobot {
	r.sentAt = r.clock.Now()
	r.response, r.sendErr = r.harness.SendMessage(context.Background(), text)
	return r
}

// Close closes the harness.
func (r *HarnessRobot) Close() *HarnessRobot {
	if err := r.harness.Close(); err != nil {
		r.t.Errorf("Close returned error: %v", err)
	}
	return r
}

// AssertStarted verifies Start succeeded and the harness is ready.
func (r *HarnessRobot) AssertStarted() *HarnessRobot {
	r.t.Helper()
	if r.startErr != nil {
		r.t.Fatalf("Expected Start to succeed, got %v", r.startErr)
	}
	if !r.harness.Ready() {
		r.t.Error("Expected harness to be ready after Start")
	}
	return r
}

// AssertStartError verifies Start failed with target.
func (r *HarnessRobot) AssertStartError(target error) *HarnessRobot {
	r.t.Helper()
	if !errors.Is(r.startErr, target) {
		r.t.Errorf("Expected Start error %v, got %v", target, r.startErr)
	}
	return r
}

// AssertState verifies the harness state.
func (r *HarnessRobot) AssertState(expected State) *HarnessRobot {
	r.t.Helper()
	if actual := r.harness.State(); actual != expected {
		r.t.Errorf("Expected state %s, got %s", expected, actual)
	}
	return r
}

// AssertResponse verifies the last response matches exactly.
func (r *HarnessRobot) AssertResponse(expected string) *HarnessRobot {
	r.t.Helper()
	if r.response != expected {
		r.t.Errorf("Expected response %q, got %q", expected, r.response)
	}
	return r
}

// AssertSendSucceeded verifies the last SendMessage returned no error.
func (r *HarnessRobot) AssertSendSucceeded() *HarnessRobot {
	r.t.Helper()
	if r.sendErr != nil {
		r.t.Errorf("Expected SendMessage to succeed, got %v", r.sendErr)
	}
	return r
}

// AssertSendError verifies the last SendMessage failed with target.
func (r *HarnessRobot) AssertSendError(target error) *HarnessRobot {
	r.t.Helper()
	if !errors.Is(r.sendErr, target) {
		r.t.Errorf("Expected SendMessage error %v, got %v", target, r.sendErr)
	}
	return r
}

// AssertExitCode verifies the last error carries the given exit code.
func (r *HarnessRobot) AssertExitCode(err error, code int) *HarnessRobot {
	r.t.Helper()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		r.t.Errorf("Expected an *ExitError, got %v", err)
		return r
	}
	if exitErr.Status.Code != code {
		r.t.Errorf("Expected exit code %d, got %d", code, exitErr.Status.Code)
	}
	return r
}

// AssertWrites verifies everything written to the terminal so far.
func (r *HarnessRobot) AssertWrites(expected ...string) *HarnessRobot {
	r.t.Helper()
	actual := r.term.written()
	if !slices.Equal(actual, expected) {
		r.t.Errorf("Expected writes %q, got %q", expected, actual)
	}
	return r
}

// AssertElapsed verifies mock time elapsed since the clock was created.
func (r *HarnessRobot) AssertElapsed(expected time.Duration) *HarnessRobot {
	r.t.Helper()
	if actual := r.clock.Now().Sub(epoch); actual != expected {
		r.t.Errorf("Expected %v elapsed, got %v", expected, actual)
	}
	return r
}

// AssertElapsedSinceSend verifies mock time spent in the last SendMessage.
func (r *HarnessRobot) AssertElapsedSinceSend(expected time.Duration) *HarnessRobot {
	r.t.Helper()
	if actual := r.clock.Now().Sub(r.sentAt); actual != expected {
		r.t.Errorf("Expected SendMessage to take %v, got %v", expected, actual)
	}
	return r
}

// LogDebugInfo logs the robot's view of the harness.
func (r *HarnessRobot) LogDebugInfo() *HarnessRobot {
	r.t.Logf("State: %s", r.harness.State())
	r.t.Logf("Writes: %q", r.term.written())
	r.t.Logf("Response: %q, err: %v", r.response, r.sendErr)
	return r
}
