/*Package scheduler streams drawing primitives into the list memory of a
galvo/laser scan card, keeping the card busy without letting it execute a list
that is still being written or overwriting one that still executes.

Two disciplines are provided.  DoubleBuffer fills ListA while ListB executes
and vice versa; the first full list is started with Execute and every later one
is chained with AutoAdvance, so the card switches lists itself.  Ring treats
ListA as a circular queue: the input pointer must stay LoadGap behind the
output pointer, the device is started once the input pointer leads by more
than StartGap, told to Wait when the lead falls below StartGap/2, and
Released when the lead recovers.

TryEnqueue never blocks.  A false result is backpressure and the caller
retries; see package stream for a paced producer loop.  Basic usage:

	s, err := scheduler.New(dev, scheduler.Config{Mode: scheduler.ModeDouble, Capacity: 4000})
	if err != nil {
		log.Fatal(err)
	}
	for _, req := range reqs {
		for {
			ok, err := s.TryEnqueue(req)
			if err != nil {
				log.Fatal(err)
			}
			if ok {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}
	err = s.Flush(ctx)

A Streamer is owned by a single goroutine.  Callers that share one must
serialize access themselves.
*/
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff"
)

// State is the lifecycle state of a stream
type State int

const (
	// Idle is the state before the first enqueue and after a completed flush
	Idle State = iota

	// Filling means a list is being written and the device has not been started
	Filling

	// Executing means the device drains submitted content
	Executing

	// Paused means a Wait has been issued because the lead got too small
	Paused

	// Draining means Flush is waiting for the device to finish
	Draining
)

// String satisfies fmt.Stringer
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Filling:
		return "filling"
	case Executing:
		return "executing"
	case Paused:
		return "paused"
	case Draining:
		return "draining"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Streamer delivers requests to a Device
type Streamer interface {
	// TryEnqueue attempts to write r.  false with a nil error is
	// backpressure; retry later.  The error is non-nil only when a device
	// call fails.
	TryEnqueue(r Request) (bool, error)

	// Flush submits whatever is buffered and polls until the device is no
	// longer busy or ctx is done.  It does nothing on an idle stream.
	Flush(ctx context.Context) error

	// Reset stops the device and discards buffered content
	Reset() error

	// Suspend pauses the executing list; the device must be a Pauser
	Suspend() error

	// Resume undoes Suspend
	Resume() error

	// CheckStatus queries the device and returns a *DeviceFault if its
	// error bitmask is nonzero
	CheckStatus() error

	// State returns the lifecycle state
	State() State
}

// New creates a Streamer for cfg.Mode
func New(dev Device, cfg Config) (Streamer, error) {
	switch cfg.Mode {
	case ModeDouble:
		return NewDoubleBuffer(dev, cfg)
	case ModeRing:
		return NewRing(dev, cfg)
	default:
		return nil, &ConfigError{Field: "Mode", Reason: fmt.Sprintf("%d is not a known mode", int(cfg.Mode))}
	}
}

var errStillBusy = errors.New("device still busy")

func checkStatus(dev Device) error {
	st, err := dev.QueryStatus()
	if err != nil {
		return fmt.Errorf("query status: %w", err)
	}
	if st.Error != 0 {
		return &DeviceFault{Code: st.Error}
	}
	return nil
}

// drain polls the device status with exponential backoff until it is no
// longer busy.  A device fault or a failed query ends the poll.  onPoll, if
// not nil, sees every healthy status before it is judged.
func drain(ctx context.Context, dev Device, cfg Config, onPoll func(Status) error) error {
	var fault error
	op := func() error {
		st, err := dev.QueryStatus()
		if err != nil {
			fault = fmt.Errorf("query status: %w", err)
			return nil
		}
		if st.Error != 0 {
			fault = &DeviceFault{Code: st.Error}
			return nil
		}
		if onPoll != nil {
			if err := onPoll(st); err != nil {
				fault = err
				return nil
			}
		}
		if st.Busy.Busy() {
			return errStillBusy
		}
		return nil
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.pollInterval(),
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         cfg.maxPollInterval(),
		MaxElapsedTime:      0, // bounded by ctx
		Clock:               backoff.SystemClock}
	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return fault
}

func suspend(dev Device) error {
	p, ok := dev.(Pauser)
	if !ok {
		return ErrNotPauser
	}
	return p.PauseList()
}

func resume(dev Device) error {
	p, ok := dev.(Pauser)
	if !ok {
		return ErrNotPauser
	}
	return p.RestartList()
}
