package scheduler

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// Mode selects how the list memory is used
type Mode int

const (
	// ModeDouble alternates between ListA and ListB; one executes while
	// the other is filled
	ModeDouble Mode = iota

	// ModeRing uses ListA as a circular queue chased by the output pointer
	ModeRing
)

// String satisfies fmt.Stringer
func (m Mode) String() string {
	switch m {
	case ModeDouble:
		return "double"
	case ModeRing:
		return "ring"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a mode name to a Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "double", "alternating", "":
		return ModeDouble, nil
	case "ring", "circular":
		return ModeRing, nil
	default:
		return 0, fmt.Errorf("unknown buffer mode %q", s)
	}
}

// MinCapacity is the smallest usable list: a jump and one mark
const MinCapacity = 2

// Config holds the construction parameters of a Streamer.  The gap
// thresholds are empirically tuned per installation and have no defaults.
type Config struct {
	// Mode is the buffering discipline
	Mode Mode

	// Capacity is the number of request slots per list in ModeDouble, or the
	// size of the ring in ModeRing
	Capacity uint32

	// StartGap is the lead of the input pointer over the output pointer
	// required to start or release the device.  A lead below StartGap/2 while
	// the device runs makes it wait.  It must exceed the slots consumed while
	// the producer may be preempted.  ModeRing only.
	StartGap uint32

	// LoadGap is the minimum free distance from the input pointer to the
	// output pointer below which enqueues are refused.  It must exceed the
	// slots the device can drain between two polls.  ModeRing only.
	LoadGap uint32

	// CheckMask limits the start/wait/release checks to input pointers p with
	// p&CheckMask == CheckMask, permitting block downloads on slow hosts.
	// Zero checks on every call.  Otherwise it must be 2^n-1 and CheckMask+1
	// may not exceed Capacity-StartGap-LoadGap, so a checked pointer always
	// falls between the start lead and the refusal point.  ModeRing only.
	CheckMask uint32

	// DisableAutoStart prevents the ring from starting an idle device
	DisableAutoStart bool

	// PollInterval is the first interval between status polls while draining.
	// Defaults to 1ms.
	PollInterval time.Duration

	// MaxPollInterval caps the drain poll backoff.  Defaults to 100ms.
	MaxPollInterval time.Duration

	// Logger receives pointer proximity warnings.  Nil uses the log package default.
	Logger *log.Logger
}

// Validate returns a *ConfigError if the configuration cannot work
func (c Config) Validate() error {
	if c.Capacity < MinCapacity {
		return &ConfigError{Field: "Capacity", Reason: fmt.Sprintf("%d is below the minimum of %d", c.Capacity, MinCapacity)}
	}
	switch c.Mode {
	case ModeDouble:
		return nil
	case ModeRing:
	default:
		return &ConfigError{Field: "Mode", Reason: fmt.Sprintf("%d is not a known mode", int(c.Mode))}
	}
	if c.StartGap == 0 {
		return &ConfigError{Field: "StartGap", Reason: "must be greater than zero"}
	}
	// one slot always stays free so a full ring never reads as empty
	if c.LoadGap < 2 {
		return &ConfigError{Field: "LoadGap", Reason: fmt.Sprintf("%d is below the minimum of 2", c.LoadGap)}
	}
	if c.LoadGap >= c.StartGap {
		return &ConfigError{Field: "LoadGap", Reason: fmt.Sprintf("%d must be less than StartGap %d", c.LoadGap, c.StartGap)}
	}
	if c.StartGap+c.LoadGap > c.Capacity {
		return &ConfigError{Field: "StartGap", Reason: fmt.Sprintf("StartGap+LoadGap %d exceeds Capacity %d", c.StartGap+c.LoadGap, c.Capacity)}
	}
	if m := c.CheckMask; m != 0 {
		if m&(m+1) != 0 {
			return &ConfigError{Field: "CheckMask", Reason: fmt.Sprintf("%#x is not of the form 2^n-1", m)}
		}
		if span := c.Capacity - c.StartGap - c.LoadGap; m+1 > span {
			return &ConfigError{Field: "CheckMask", Reason: fmt.Sprintf("%#x checks every %d slots, more than the %d between StartGap and LoadGap", m, m+1, span)}
		}
	}
	return nil
}

func (c Config) logger() *log.Logger {
	if c.Logger == nil {
		return log.Default()
	}
	return c.Logger
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return time.Millisecond
	}
	return c.PollInterval
}

func (c Config) maxPollInterval() time.Duration {
	if c.MaxPollInterval <= 0 {
		return 100 * time.Millisecond
	}
	return c.MaxPollInterval
}
