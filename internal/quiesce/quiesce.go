// Package quiesce turns an asynchronously growing output buffer into
// discrete waits. There is no end-of-response signal from the target, so a
// response is considered complete once the buffer has stopped growing for a
// number of consecutive samples.
package quiesce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/socratic-shell/socratic-shell/internal/clock"
)

var (
	// ErrTimeout is returned by WaitReady when the condition never held.
	ErrTimeout = errors.New("timed out waiting for readiness")

	// ErrExited is returned when the process exits during a wait.
	ErrExited = errors.New("process exited during wait")
)

const (
	DefaultReadyInterval   = 100 * time.Millisecond
	DefaultReadyTimeout    = 30 * time.Second
	DefaultSampleInterval  = 500 * time.Millisecond
	DefaultIdleSamples     = 6
	DefaultResponseTimeout = 60 * time.Second
)

// Detector holds the timing parameters for both waits. The zero value of
// any field falls back to its default.
type Detector struct {
	Clock clock.Clock

	ReadyInterval time.Duration
	ReadyTimeout  time.Duration

	SampleInterval  time.Duration
	IdleSamples     int
	ResponseTimeout time.Duration
}

// Outcome describes how a WaitQuiet call ended.
type Outcome struct {
	Quiet    bool // IdleSamples consecutive samples without growth
	TimedOut bool // ResponseTimeout elapsed first
	Exited   bool // the process exited first
	Samples  int
	Elapsed  time.Duration
	Length   int // buffer length at the last sample
}

// New returns a Detector with the default timings on the real clock.
func New() *Detector {
	return &Detector{
		Clock:           clock.Real{},
		ReadyInterval:   DefaultReadyInterval,
		ReadyTimeout:    DefaultReadyTimeout,
		SampleInterval:  DefaultSampleInterval,
		IdleSamples:     DefaultIdleSamples,
		ResponseTimeout: DefaultResponseTimeout,
	}
}

// QuietPeriod is the silence needed before WaitQuiet reports quiescence.
func (d *Detector) QuietPeriod() time.Duration {
	return time.Duration(d.idleSamples()) * d.sampleInterval()
}

// WaitReady polls ready until it returns true. It fails with ErrTimeout
// after ReadyTimeout, or ErrExited if exited is closed first.
func (d *Detector) WaitReady(ctx context.Context, ready func() bool, exited <-chan struct{}) error {
	c := d.clock()
	timeout := d.readyTimeout()
	start := c.Now()

	for {
		if ready() {
			return nil
		}
		if clock.Since(c, start) >= timeout {
			return fmt.Errorf("%w after %v", ErrTimeout, timeout)
		}
		if err := d.sleep(ctx, d.readyInterval(), exited); err != nil {
			if ready() {
				return nil
			}
			return err
		}
	}
}

// WaitQuiet samples length every SampleInterval and returns once it has not
// grown for IdleSamples consecutive samples. Any growth resets the count.
// Reaching ResponseTimeout is not an error: the outcome is returned with
// TimedOut set and the caller decides whether the output is usable.
func (d *Detector) WaitQuiet(ctx context.Context, length func() int, exited <-chan struct{}) (Outcome, error) {
	c := d.clock()
	timeout := d.responseTimeout()
	idle := d.idleSamples()
	start := c.Now()

	var out Outcome
	stable := 0
	last := 0

	for clock.Since(c, start) < timeout {
		if err := d.sleep(ctx, d.sampleInterval(), exited); err != nil {
			out.Exited = errors.Is(err, ErrExited)
			out.Length = length()
			out.Elapsed = clock.Since(c, start)
			return out, err
		}

		out.Samples++
		current := length()
		out.Length = current
		if current == last {
			stable++
			if stable >= idle {
				out.Quiet = true
				out.Elapsed = clock.Since(c, start)
				return out, nil
			}
		} else {
			stable = 0
			last = current
		}
	}

	out.TimedOut = true
	out.Length = length()
	out.Elapsed = clock.Since(c, start)
	return out, nil
}

func (d *Detector) sleep(ctx context.Context, interval time.Duration, exited <-chan struct{}) error {
	// Checked before sleeping so an exit or cancellation wins over a ready
	// timer.
	select {
	case <-exited:
		return ErrExited
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-exited:
		return ErrExited
	case <-d.clock().After(interval):
		return nil
	}
}

func (d *Detector) clock() clock.Clock {
	if d.Clock == nil {
		return clock.Real{}
	}
	return d.Clock
}

func (d *Detector) readyInterval() time.Duration {
	return orDefault(d.ReadyInterval, DefaultReadyInterval)
}

func (d *Detector) readyTimeout() time.Duration {
	return orDefault(d.ReadyTimeout, DefaultReadyTimeout)
}

func (d *Detector) sampleInterval() time.Duration {
	return orDefault(d.SampleInterval, DefaultSampleInterval)
}

func (d *Detector) responseTimeout() time.Duration {
	return orDefault(d.ResponseTimeout, DefaultResponseTimeout)
}

func (d *Detector) idleSamples() int {
	if d.IdleSamples <= 0 {
		return DefaultIdleSamples
	}
	return d.IdleSamples
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
