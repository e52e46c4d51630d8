package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is generated when a request has a Kind outside Jump, Mark, PixelRun
	ErrUnknownKind = errors.New("unknown request kind")

	// ErrNotPauser is generated by Suspend and Resume when the device cannot pause its list
	ErrNotPauser = errors.New("device does not support pausing the list")
)

// ConfigError is returned by the constructors when a Config cannot work
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("scheduler: invalid config: %s %s", e.Field, e.Reason)
}

// DeviceFault is a nonzero error bitmask reported by a status query
type DeviceFault struct {
	Code uint32
}

func (e *DeviceFault) Error() string {
	return fmt.Sprintf("scheduler: device fault, error bitmask %#04x", e.Code)
}
