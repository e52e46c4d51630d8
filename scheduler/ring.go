package scheduler

import (
	"context"
	"fmt"
	"log"
)

// Ring streams into ListA used as a circular queue.  The device chases the
// input pointer; the ring starts it, makes it wait when it gets too close and
// releases it once enough content is ahead again.
//
// Distances are taken modulo Capacity.  ahead is how far the input pointer
// leads the output pointer, free is Capacity-ahead.  An enqueue is refused
// while free < LoadGap, so the input pointer never laps the output pointer.
type Ring struct {
	dev Device
	cfg Config
	log *log.Logger

	opened      bool
	waitPending bool
	autoStart   bool
	draining    bool
	pending     bool
	state       State
}

// NewRing returns a Ring driving dev.  cfg.Mode is ignored.
func NewRing(dev Device, cfg Config) (*Ring, error) {
	cfg.Mode = ModeRing
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Ring{dev: dev, cfg: cfg, log: cfg.logger(), autoStart: !cfg.DisableAutoStart}, nil
}

// SetAutoStart enables or disables starting an idle device once StartGap is
// exceeded.  Flush starts the device regardless.
func (r *Ring) SetAutoStart(b bool) {
	r.autoStart = b
}

// AutoStart reports whether the ring starts an idle device on its own
func (r *Ring) AutoStart() bool {
	return r.autoStart
}

func (r *Ring) ahead(in, out uint32) uint32 {
	c := r.cfg.Capacity
	return (in%c + c - out%c) % c
}

// open claims the ring at the output pointer, discarding whatever lies
// between it and a stale input pointer
func (r *Ring) open() (bool, error) {
	st, err := r.dev.QueryStatus()
	if err != nil {
		return false, fmt.Errorf("query status: %w", err)
	}
	ok, err := r.dev.OpenBuffer(ListA, st.Position%r.cfg.Capacity)
	if err != nil {
		return false, fmt.Errorf("open ring at %d: %w", st.Position, err)
	}
	if !ok {
		return false, nil
	}
	r.opened = true
	r.state = Filling
	return true, nil
}

// regulate applies the start, wait and release rules and returns the input
// pointer, which moves when a wait is written
func (r *Ring) regulate(in uint32) (uint32, error) {
	st, err := r.dev.QueryStatus()
	if err != nil {
		return in, fmt.Errorf("query status: %w", err)
	}
	ahead := r.ahead(in, st.Position)
	switch {
	case st.Busy.Running():
		if r.state == Filling {
			r.state = Executing
		}
		if ahead < r.cfg.StartGap/2 && !r.waitPending && !r.draining {
			if err := r.dev.Wait(); err != nil {
				return in, fmt.Errorf("wait: %w", err)
			}
			r.waitPending = true
			r.state = Paused
			in, err = r.dev.InputPointer()
			if err != nil {
				return in, fmt.Errorf("input pointer: %w", err)
			}
			r.log.Printf("ring: wait written, in=%d out=%d", in, st.Position)
		}
	case !st.Busy.Busy():
		if r.autoStart && ahead > r.cfg.StartGap {
			if err := r.dev.ExecuteFrom(ListA, st.Position%r.cfg.Capacity); err != nil {
				return in, fmt.Errorf("execute ring from %d: %w", st.Position, err)
			}
			r.state = Executing
		}
	case st.Busy.Waiting():
		if r.waitPending && ahead > r.cfg.StartGap {
			if err := r.dev.Release(); err != nil {
				return in, fmt.Errorf("release: %w", err)
			}
			r.waitPending = false
			r.state = Executing
		}
	}
	return in, nil
}

// TryEnqueue writes r at the input pointer unless fewer than LoadGap slots
// are free.  When the masked input pointer equals CheckMask it first starts,
// pauses or releases the device as the lead requires.  A refusal always runs
// those checks, since the input pointer cannot move until the device does.
func (r *Ring) TryEnqueue(req Request) (bool, error) {
	if !r.opened {
		ok, err := r.open()
		if !ok || err != nil {
			return false, err
		}
	}
	in, err := r.dev.InputPointer()
	if err != nil {
		return false, fmt.Errorf("input pointer: %w", err)
	}
	checked := in&r.cfg.CheckMask == r.cfg.CheckMask
	if checked {
		in, err = r.regulate(in)
		if err != nil {
			return false, err
		}
	}
	st, err := r.dev.QueryStatus()
	if err != nil {
		return false, fmt.Errorf("query status: %w", err)
	}
	free := r.cfg.Capacity - r.ahead(in, st.Position)
	if free < r.cfg.LoadGap {
		if !checked {
			if _, err := r.regulate(in); err != nil {
				return false, err
			}
		}
		if st.Busy.Busy() && !r.draining && free < r.cfg.LoadGap/10 {
			r.log.Printf("ring: pointers close, in=%d out=%d", in, st.Position)
		}
		return false, nil
	}
	if err := appendRequest(r.dev, req); err != nil {
		return false, err
	}
	r.pending = true
	return true, nil
}

// Flush ends the stream, makes sure the device runs and blocks until it has
// consumed everything or ctx is done.  A wait still pending is released when
// the device reaches it.  Without anything enqueued since the last drain it
// returns immediately without touching the device.
func (r *Ring) Flush(ctx context.Context) error {
	if !r.pending {
		return nil
	}
	if !r.draining {
		r.draining = true
		r.state = Draining
		if err := r.dev.MarkEnd(); err != nil {
			return fmt.Errorf("close ring: %w", err)
		}
		st, err := r.dev.QueryStatus()
		if err != nil {
			return fmt.Errorf("query status: %w", err)
		}
		if !st.Busy.Busy() {
			if err := r.dev.ExecuteFrom(ListA, st.Position%r.cfg.Capacity); err != nil {
				return fmt.Errorf("execute ring from %d: %w", st.Position, err)
			}
		}
	}
	release := func(st Status) error {
		if r.waitPending && st.Busy.Waiting() {
			if err := r.dev.Release(); err != nil {
				return fmt.Errorf("release: %w", err)
			}
			r.waitPending = false
		}
		return nil
	}
	if err := drain(ctx, r.dev, r.cfg, release); err != nil {
		return err
	}
	r.opened = false
	r.waitPending = false
	r.draining = false
	r.pending = false
	r.state = Idle
	return nil
}

// Reset stops the device.  The next enqueue reopens the ring at the output
// pointer, so anything written but not executed is dropped.
func (r *Ring) Reset() error {
	err := r.dev.Stop()
	r.opened = false
	r.waitPending = false
	r.draining = false
	r.pending = false
	r.state = Idle
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}

// Suspend pauses the executing list
func (r *Ring) Suspend() error {
	return suspend(r.dev)
}

// Resume restarts a list paused with Suspend
func (r *Ring) Resume() error {
	return resume(r.dev)
}

// CheckStatus returns a *DeviceFault if the device reports an error
func (r *Ring) CheckStatus() error {
	return checkStatus(r.dev)
}

// State returns the lifecycle state
func (r *Ring) State() State {
	return r.state
}
