package scheduler

import (
	"fmt"
	"strings"
)

// Kind is the type of drawing primitive held in one list slot
type Kind int

const (
	// Jump moves the scanner to an absolute position with the laser off
	Jump Kind = iota

	// Mark moves the scanner to an absolute position with the laser on
	Mark

	// PixelRun emits Count pixels of equal Intensity along the current pixel line
	PixelRun
)

// String satisfies fmt.Stringer
func (k Kind) String() string {
	switch k {
	case Jump:
		return "jump"
	case Mark:
		return "mark"
	case PixelRun:
		return "pixels"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind converts "jump", "mark" or "pixels" (case insensitive) to a Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jump", "j":
		return Jump, nil
	case "mark", "m":
		return Mark, nil
	case "pixels", "pixel", "p":
		return PixelRun, nil
	default:
		return 0, fmt.Errorf("unknown primitive kind %q", s)
	}
}

// Request is one primitive produced by the caller and consumed by a Streamer.
// X and Y are used by Jump and Mark, Count and Intensity by PixelRun.
type Request struct {
	Kind      Kind
	X, Y      int32
	Count     uint32
	Intensity uint16
}

// JumpTo returns a Jump request
func JumpTo(x, y int32) Request {
	return Request{Kind: Jump, X: x, Y: y}
}

// MarkTo returns a Mark request
func MarkTo(x, y int32) Request {
	return Request{Kind: Mark, X: x, Y: y}
}

// Pixels returns a PixelRun request
func Pixels(count uint32, intensity uint16) Request {
	return Request{Kind: PixelRun, Count: count, Intensity: intensity}
}

// String satisfies fmt.Stringer
func (r Request) String() string {
	if r.Kind == PixelRun {
		return fmt.Sprintf("pixels(%d@%d)", r.Count, r.Intensity)
	}
	return fmt.Sprintf("%s(%d,%d)", r.Kind, r.X, r.Y)
}

// appendRequest writes r into the open list of dev
func appendRequest(dev Device, r Request) error {
	var err error
	switch r.Kind {
	case Jump:
		err = dev.AppendJump(r.X, r.Y)
	case Mark:
		err = dev.AppendMark(r.X, r.Y)
	case PixelRun:
		err = dev.AppendPixelRun(r.Count, r.Intensity)
	default:
		return fmt.Errorf("request %v: %w", r, ErrUnknownKind)
	}
	if err != nil {
		return fmt.Errorf("append %v: %w", r, err)
	}
	return nil
}
