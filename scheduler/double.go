package scheduler

import (
	"context"
	"fmt"
	"log"
)

// DoubleBuffer streams into ListA and ListB in alternation.  While one list
// executes the other is filled; a full list is closed and chained behind the
// executing one with AutoAdvance so the device never waits on the host
// between lists as long as the host keeps up.
type DoubleBuffer struct {
	dev Device
	cfg Config
	log *log.Logger

	list      ListID // the list being filled, or the next to be opened
	open      bool
	level     uint32 // requests written to the open list
	submitted bool   // a list has been started since the last drain
	pending   bool   // something was enqueued since the last drain
	state     State
}

// NewDoubleBuffer returns a DoubleBuffer driving dev.  cfg.Mode is ignored.
func NewDoubleBuffer(dev Device, cfg Config) (*DoubleBuffer, error) {
	cfg.Mode = ModeDouble
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &DoubleBuffer{dev: dev, cfg: cfg, log: cfg.logger(), list: ListA}, nil
}

// TryEnqueue writes r to the open list, opening the next list first if
// needed.  It returns false while that list still executes.  A list is
// submitted as soon as it holds Capacity requests; if submission fails the
// request has been written and true is returned along with the error.
func (d *DoubleBuffer) TryEnqueue(r Request) (bool, error) {
	if !d.open {
		ok, err := d.dev.OpenBuffer(d.list, 0)
		if err != nil {
			return false, fmt.Errorf("open list %d: %w", d.list, err)
		}
		if !ok {
			return false, nil
		}
		d.open = true
		d.level = 0
		if d.state == Idle {
			d.state = Filling
		}
	}
	if err := appendRequest(d.dev, r); err != nil {
		return false, err
	}
	d.level++
	d.pending = true
	if d.level >= d.cfg.Capacity {
		if err := d.submit(); err != nil {
			return true, err
		}
	}
	return true, nil
}

// submit closes the open list and hands it to the device
func (d *DoubleBuffer) submit() error {
	if err := d.dev.MarkEnd(); err != nil {
		return fmt.Errorf("close list %d: %w", d.list, err)
	}
	if d.submitted {
		if err := d.dev.AutoAdvance(); err != nil {
			return fmt.Errorf("auto advance to list %d: %w", d.list, err)
		}
	} else {
		if err := d.dev.Execute(d.list); err != nil {
			return fmt.Errorf("execute list %d: %w", d.list, err)
		}
		d.submitted = true
	}
	d.open = false
	d.level = 0
	d.list = d.list.other()
	d.state = Executing
	return nil
}

// Flush submits a partially filled list and blocks until the device is idle
// or ctx is done.  Without anything enqueued since the last drain it returns
// immediately without touching the device.
func (d *DoubleBuffer) Flush(ctx context.Context) error {
	if !d.pending {
		return nil
	}
	// an open list may still be empty if its first append failed
	if d.open && d.level > 0 {
		if err := d.submit(); err != nil {
			return err
		}
	}
	d.state = Draining
	if err := drain(ctx, d.dev, d.cfg, nil); err != nil {
		return err
	}
	d.submitted = false
	d.pending = false
	d.state = Idle
	return nil
}

// Reset stops the device and forgets any buffered content.  The stream is
// Idle afterwards even if stopping the device failed.
func (d *DoubleBuffer) Reset() error {
	err := d.dev.Stop()
	d.list = ListA
	d.open = false
	d.level = 0
	d.submitted = false
	d.pending = false
	d.state = Idle
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}

// Suspend pauses the executing list
func (d *DoubleBuffer) Suspend() error {
	return suspend(d.dev)
}

// Resume restarts a list paused with Suspend
func (d *DoubleBuffer) Resume() error {
	return resume(d.dev)
}

// CheckStatus returns a *DeviceFault if the device reports an error
func (d *DoubleBuffer) CheckStatus() error {
	return checkStatus(d.dev)
}

// State returns the lifecycle state
func (d *DoubleBuffer) State() State {
	return d.state
}
