// Package harness drives a conversational terminal program: it starts the
// target in a pseudo-terminal, waits for its prompt, types messages and
// returns the cleaned text printed in reply.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/socratic-shell/socratic-shell/internal/clock"
	"github.com/socratic-shell/socratic-shell/internal/ptysession"
	"github.com/socratic-shell/socratic-shell/internal/quiesce"
)

// State is the lifecycle position of a Harness.
type State int

const (
	NotStarted State = iota
	Starting
	AwaitingReadiness
	Ready
	Sending
	AwaitingQuiescence
	Closed
	// Failed means startup did not reach Ready, or a message was only
	// partly typed.
	Failed
	// Exited means the target died after becoming ready.
	Exited
)

var stateNames = map[State]string{
	NotStarted:         "not-started",
	Starting:           "starting",
	AwaitingReadiness:  "awaiting-readiness",
	Ready:              "ready",
	Sending:            "sending",
	AwaitingQuiescence: "awaiting-quiescence",
	Closed:             "closed",
	Failed:             "failed",
	Exited:             "exited",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// terminal is the part of a pty session the harness uses.
type terminal interface {
	Write(text string) error
	Done() <-chan struct{}
	ExitStatus() (ptysession.ExitStatus, bool)
	Close() error
}

type startFunc func(opts ptysession.Options) (terminal, error)

func startSession(opts ptysession.Options) (terminal, error) {
	s, err := ptysession.Start(opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Option customises a Harness.
type Option func(*Harness)

// WithLogger sets the progress logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Harness) {
		h.log = logger
	}
}

// WithClock replaces the clock used for settle delays and waits.
func WithClock(c clock.Clock) Option {
	return func(h *Harness) {
		h.clock = c
	}
}

// WithMirror copies raw target output to w as it arrives.
func WithMirror(w io.Writer) Option {
	return func(h *Harness) {
		h.mirror = w
	}
}

// Harness owns one target process for its whole life. It allows a single
// outstanding message at a time.
type Harness struct {
	cfg      Config
	log      zerolog.Logger
	clock    clock.Clock
	mirror   io.Writer
	strip    func(string) string
	detector *quiesce.Detector
	start    startFunc

	mu      sync.Mutex
	state   State
	ready   bool
	buf     strings.Builder
	term    terminal
	exitErr *ExitError

	closeOnce sync.Once
	closeErr  error
}

// New returns a harness for cfg. Nothing is started until Start.
func New(cfg Config, opts ...Option) *Harness {
	h := &Harness{
		cfg:   cfg.withDefaults(),
		log:   zerolog.Nop(),
		clock: clock.Real{},
		start: startSession,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.strip = h.cfg.Sanitizer.Func()
	h.detector = &quiesce.Detector{
		Clock:           h.clock,
		ReadyInterval:   h.cfg.ReadyInterval,
		ReadyTimeout:    h.cfg.ReadyTimeout,
		SampleInterval:  h.cfg.SampleInterval,
		IdleSamples:     h.cfg.IdleSamples,
		ResponseTimeout: h.cfg.ResponseTimeout,
	}
	return h
}

// Config returns the effective configuration, defaults included.
func (h *Harness) Config() Config {
	return h.cfg
}

// State returns the current lifecycle state.
func (h *Harness) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Ready reports whether a ready marker has been seen. Once true it stays
// true for the life of the harness.
func (h *Harness) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// ExitStatus returns the target's exit status, and false while it runs.
func (h *Harness) ExitStatus() (ptysession.ExitStatus, bool) {
	h.mu.Lock()
	t := h.term
	h.mu.Unlock()
	if t == nil {
		return ptysession.ExitStatus{}, false
	}
	return t.ExitStatus()
}

// Start spawns the target and blocks until it prints a ready marker.
func (h *Harness) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.state != NotStarted {
		state := h.state
		h.mu.Unlock()
		return fmt.Errorf("harness cannot start from state %s", state)
	}
	h.state = Starting
	h.mu.Unlock()

	h.log.Info().Str("command", h.cfg.Command).Strs("args", h.cfg.Args).Msg("Starting target")

	t, err := h.start(ptysession.Options{
		Command: h.cfg.Command,
		Args:    h.cfg.Args,
		Cols:    h.cfg.Cols,
		Rows:    h.cfg.Rows,
		Dir:     h.cfg.Dir,
		Env:     h.cfg.Env,
		Term:    h.cfg.Term,
		OnData:  h.onData,
		OnExit:  h.onExit,
	})
	if err != nil {
		h.setState(Failed)
		h.log.Error().Err(err).Msg("Failed to start target")
		return err
	}

	h.mu.Lock()
	h.term = t
	if h.state == Starting {
		h.state = AwaitingReadiness
	}
	h.mu.Unlock()

	err = h.detector.WaitReady(ctx, h.checkReady, t.Done())
	switch {
	case err == nil:
	case errors.Is(err, quiesce.ErrTimeout):
		h.setState(Failed)
		h.log.Error().Dur("timeout", h.cfg.ReadyTimeout).Msg("Target never became ready")
		return fmt.Errorf("%w after %v", ErrReadinessTimeout, h.cfg.ReadyTimeout)
	case errors.Is(err, quiesce.ErrExited):
		h.setState(Failed)
		exitErr := h.exitError()
		h.log.Error().Err(exitErr).Msg("Target exited during startup")
		return exitErr
	default:
		h.setState(Failed)
		return err
	}

	h.mu.Lock()
	if h.state == AwaitingReadiness {
		h.state = Ready
	}
	h.mu.Unlock()
	h.log.Info().Msg("Target ready")
	return nil
}

// SendMessage types text into the target, submits it and returns the
// sanitized output produced until the target went quiet. A quiescence
// timeout is not an error; whatever arrived is returned. If the target
// exits during the wait, the output so far is returned with an error
// matching ErrProcessExited.
//
// A context that is already done sends nothing. One that ends while the
// message is being typed leaves the harness Failed, since the target may
// hold a partial line.
func (h *Harness) SendMessage(ctx context.Context, text string) (string, error) {
	h.mu.Lock()
	switch h.state {
	case Ready:
	case Sending, AwaitingQuiescence:
		h.mu.Unlock()
		return "", ErrBusy
	case Exited:
		exitErr := h.exitErr
		h.mu.Unlock()
		return "", fmt.Errorf("%w: %w", ErrNotStarted, exitErr)
	default:
		state := h.state
		h.mu.Unlock()
		return "", fmt.Errorf("%w: state %s", ErrNotStarted, state)
	}
	if err := ctx.Err(); err != nil {
		h.mu.Unlock()
		return "", err
	}
	h.state = Sending
	h.buf.Reset()
	t := h.term
	h.mu.Unlock()

	h.log.Info().Str("message", preview(text)).Msg("Sending message")

	if err := h.submit(ctx, t, text); err != nil {
		// A write fails once the target is gone; report that as the exit.
		if ctx.Err() == nil && h.exitedWithin(t, h.cfg.SampleInterval) {
			h.setState(Exited)
			return h.strip(h.bufferString()), h.exitError()
		}
		// Part of the message may sit unsubmitted in the target's input
		// line, where the next message would be appended to it.
		h.setState(Failed)
		h.log.Error().Err(err).Msg("Message was not fully submitted")
		return "", err
	}

	h.setStateIf(Sending, AwaitingQuiescence)
	out, err := h.detector.WaitQuiet(ctx, h.bufferLen, t.Done())
	response := h.strip(h.bufferString())

	if err != nil {
		if errors.Is(err, quiesce.ErrExited) {
			exitErr := h.exitError()
			h.setState(Exited)
			h.log.Warn().Err(exitErr).Int("length", utf8.RuneCountInString(response)).Msg("Target exited while responding")
			return response, exitErr
		}
		h.afterSend()
		return response, err
	}

	if out.TimedOut {
		h.log.Warn().Dur("timeout", h.cfg.ResponseTimeout).Int("length", utf8.RuneCountInString(response)).Msg("Response did not settle before timeout")
	} else {
		h.log.Info().Int("length", utf8.RuneCountInString(response)).Dur("elapsed", out.Elapsed).Msg("Response complete")
	}
	h.afterSend()
	return response, nil
}

func (h *Harness) submit(ctx context.Context, t terminal, text string) error {
	if err := h.write(ctx, t, text); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	for _, step := range h.cfg.Submit {
		if err := h.settle(ctx); err != nil {
			return err
		}
		if err := h.write(ctx, t, step); err != nil {
			return fmt.Errorf("failed to submit message: %w", err)
		}
	}
	return nil
}

// write gives up on a write the target is not consuming once ctx ends or
// the target exits. The abandoned write returns when the session closes.
func (h *Harness) write(ctx context.Context, t terminal, text string) error {
	errc := make(chan error, 1)
	go func() { errc <- t.Write(text) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Done():
		return ErrProcessExited
	}
}

// settle pauses between keystrokes so the target's input handling keeps up.
func (h *Harness) settle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.clock.After(h.cfg.SettleDelay):
		return nil
	}
}

func (h *Harness) exitedWithin(t terminal, d time.Duration) bool {
	select {
	case <-t.Done():
		return true
	default:
	}
	select {
	case <-t.Done():
		return true
	case <-h.clock.After(d):
		return false
	}
}

// Close terminates the target. It is safe to call more than once.
func (h *Harness) Close() error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		t := h.term
		h.state = Closed
		h.mu.Unlock()

		if t != nil {
			h.closeErr = t.Close()
		}
		if f, ok := h.mirror.(interface{ Flush() error }); ok {
			_ = f.Flush()
		}
		h.log.Debug().Msg("Harness closed")
	})
	return h.closeErr
}

func (h *Harness) onData(data string) {
	h.mu.Lock()
	h.buf.WriteString(data)
	h.mu.Unlock()

	if h.mirror != nil {
		_, _ = io.WriteString(h.mirror, data)
	}
}

func (h *Harness) onExit(status ptysession.ExitStatus) {
	h.mu.Lock()
	h.exitErr = &ExitError{Status: status}
	if h.state == Ready {
		h.state = Exited
	}
	h.mu.Unlock()
	h.log.Info().Stringer("status", status).Msg("Target exited")
}

// checkReady looks for a marker anywhere in the output accumulated since
// start, so markers split across chunks are still found.
func (h *Harness) checkReady() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ready {
		return true
	}

	text := h.strip(h.buf.String())
	if h.cfg.ReadyCaseInsensitive {
		text = strings.ToLower(text)
	}
	for _, marker := range h.cfg.ReadyMarkers {
		if h.cfg.ReadyCaseInsensitive {
			marker = strings.ToLower(marker)
		}
		if strings.Contains(text, marker) {
			h.ready = true
			return true
		}
	}
	return false
}

func (h *Harness) bufferLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.Len()
}

func (h *Harness) bufferString() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.String()
}

func (h *Harness) exitError() *ExitError {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exitErr != nil {
		return h.exitErr
	}
	// Done closes before OnExit runs, so read the status directly.
	status, _ := h.term.ExitStatus()
	h.exitErr = &ExitError{Status: status}
	return h.exitErr
}

// afterSend returns to Ready unless the harness was closed or the target
// exited meanwhile.
func (h *Harness) afterSend() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Sending || h.state == AwaitingQuiescence {
		h.state = Ready
	}
}

func (h *Harness) setState(state State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Closed {
		h.state = state
	}
}

func (h *Harness) setStateIf(from, to State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == from {
		h.state = to
	}
}

func preview(text string) string {
	const max = 60
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max]) + "..."
}
