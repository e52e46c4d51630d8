package listcard

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tarm/serial"

	"github.jpl.nasa.gov/bdube/scanlab/comm"
	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
)

// NackError is a refusal reported by the card
type NackError struct {
	Op     Op
	Reason string
}

func (e *NackError) Error() string {
	return fmt.Sprintf("listcard: %s refused: %s", e.Op, e.Reason)
}

// Remote is a list card reached over TCP or RS-232.  It implements
// scheduler.Device and scheduler.Pauser with one telegram per call.
type Remote struct {
	*comm.RemoteDevice
	mu sync.Mutex
}

// NewRemote returns a Remote for addr, or for the serial port in conf if
// isSerial.  The connection is made on the first call.
func NewRemote(addr string, isSerial bool, conf *serial.Config) *Remote {
	rd := comm.NewRemoteDevice(addr, isSerial, conf)
	rd.Terminator = telEnd
	return &Remote{RemoteDevice: rd}
}

// call performs one round trip and returns the reply payload.  An I/O error
// or a reply that cannot be trusted drops the connection so the next call
// reconnects on a clean stream.
func (r *Remote) call(op Op, data []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Conn == nil {
		if err := r.Open(); err != nil {
			return nil, err
		}
	}
	resp, err := r.SendRecv(Encode(Telegram{Op: op, Data: data}))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("listcard: %s: %w", op, err)
	}
	t, err := Decode(resp)
	if err != nil {
		r.Close()
		return nil, err
	}
	if t.Op != op {
		r.Close()
		return nil, fmt.Errorf("listcard: sent %s, reply was for %s", op, t.Op)
	}
	if len(t.Data) == 0 {
		return nil, ErrShortTelegram
	}
	if t.Data[0] != ack {
		return nil, &NackError{Op: op, Reason: string(t.Data[1:])}
	}
	return t.Data[1:], nil
}

func (r *Remote) exec(op Op, data []byte) error {
	_, err := r.call(op, data)
	return err
}

// OpenBuffer claims list for writing at offset
func (r *Remote) OpenBuffer(list scheduler.ListID, offset uint32) (bool, error) {
	resp, err := r.call(OpOpen, payload(uint32(list), offset))
	if err != nil {
		return false, err
	}
	if len(resp) < 1 {
		return false, ErrShortTelegram
	}
	return resp[0] != 0, nil
}

// AppendJump writes a jump
func (r *Remote) AppendJump(x, y int32) error {
	return r.exec(OpJump, payload(x, y))
}

// AppendMark writes a mark
func (r *Remote) AppendMark(x, y int32) error {
	return r.exec(OpMark, payload(x, y))
}

// AppendPixelRun writes a pixel run
func (r *Remote) AppendPixelRun(count uint32, intensity uint16) error {
	return r.exec(OpPixels, payload(count, intensity))
}

// MarkEnd closes the open list
func (r *Remote) MarkEnd() error {
	return r.exec(OpEnd, nil)
}

// Execute starts list
func (r *Remote) Execute(list scheduler.ListID) error {
	return r.exec(OpExecute, payload(uint32(list)))
}

// AutoAdvance chains the last closed list
func (r *Remote) AutoAdvance() error {
	return r.exec(OpAutoAdvance, nil)
}

// ExecuteFrom starts list at pos
func (r *Remote) ExecuteFrom(list scheduler.ListID, pos uint32) error {
	return r.exec(OpExecuteFrom, payload(uint32(list), pos))
}

// QueryStatus returns the card status
func (r *Remote) QueryStatus() (scheduler.Status, error) {
	resp, err := r.call(OpStatus, nil)
	if err != nil {
		return scheduler.Status{}, err
	}
	rd := reader{buf: resp}
	st := scheduler.Status{
		Busy:     scheduler.BusyFlags(rd.u32()),
		Position: rd.u32(),
		Error:    rd.u32()}
	return st, rd.err
}

// Wait writes a wait
func (r *Remote) Wait() error {
	return r.exec(OpWait, nil)
}

// Release resumes a waiting card
func (r *Remote) Release() error {
	return r.exec(OpRelease, nil)
}

// InputPointer returns the next slot to be written
func (r *Remote) InputPointer() (uint32, error) {
	resp, err := r.call(OpInputPointer, nil)
	if err != nil {
		return 0, err
	}
	rd := reader{buf: resp}
	return rd.u32(), rd.err
}

// Stop aborts execution
func (r *Remote) Stop() error {
	return r.exec(OpStop, nil)
}

// PauseList suspends execution
func (r *Remote) PauseList() error {
	return r.exec(OpPause, nil)
}

// RestartList resumes after PauseList
func (r *Remote) RestartList() error {
	return r.exec(OpRestart, nil)
}

// IsNack is true if err is a refusal from the card
func IsNack(err error) bool {
	var n *NackError
	return errors.As(err, &n)
}
