package scheduler

import (
	"errors"
	"fmt"
)

var errTransport = errors.New("transport down")

// fakeDevice records every call and models just enough of a card to drive
// the streamers: per list busy bits, an input pointer and a settable status
type fakeDevice struct {
	capacity uint32
	loadGap  uint32 // if nonzero, appends with less free ring room are violations

	calls      []string
	written    []Request
	violations []string

	in       uint32
	status   Status
	listBusy map[ListID]bool

	// idleAfter counts down on every status query; reaching zero clears busy
	idleAfter int

	// consume, if not nil, is called on every status query
	consume func(f *fakeDevice)

	failOn string
}

func newFake(capacity uint32) *fakeDevice {
	return &fakeDevice{capacity: capacity, listBusy: map[ListID]bool{}}
}

func (f *fakeDevice) call(name string, args ...interface{}) error {
	if len(args) > 0 {
		name = name + fmt.Sprint(args...)
	}
	f.calls = append(f.calls, name)
	if f.failOn != "" && f.failOn == name {
		return errTransport
	}
	return nil
}

func (f *fakeDevice) count(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeDevice) advance() {
	f.in = (f.in + 1) % f.capacity
}

func (f *fakeDevice) push(r Request) {
	if f.loadGap != 0 {
		ahead := (f.in + f.capacity - f.status.Position) % f.capacity
		if free := f.capacity - ahead; free < f.loadGap {
			f.violations = append(f.violations, fmt.Sprintf("write at in=%d out=%d free=%d", f.in, f.status.Position, free))
		}
	}
	f.written = append(f.written, r)
	f.advance()
}

func (f *fakeDevice) OpenBuffer(list ListID, offset uint32) (bool, error) {
	if err := f.call("OpenBuffer", list); err != nil {
		return false, err
	}
	if f.listBusy[list] {
		return false, nil
	}
	f.in = offset
	return true, nil
}

func (f *fakeDevice) AppendJump(x, y int32) error {
	if err := f.call("AppendJump"); err != nil {
		return err
	}
	f.push(JumpTo(x, y))
	return nil
}

func (f *fakeDevice) AppendMark(x, y int32) error {
	if err := f.call("AppendMark"); err != nil {
		return err
	}
	f.push(MarkTo(x, y))
	return nil
}

func (f *fakeDevice) AppendPixelRun(count uint32, intensity uint16) error {
	if err := f.call("AppendPixelRun"); err != nil {
		return err
	}
	f.push(Pixels(count, intensity))
	return nil
}

func (f *fakeDevice) MarkEnd() error {
	if err := f.call("MarkEnd"); err != nil {
		return err
	}
	f.advance()
	return nil
}

func (f *fakeDevice) Execute(list ListID) error {
	if err := f.call("Execute", list); err != nil {
		return err
	}
	f.listBusy[list] = true
	f.status.Busy = BusyRunning
	return nil
}

func (f *fakeDevice) AutoAdvance() error {
	return f.call("AutoAdvance")
}

func (f *fakeDevice) ExecuteFrom(list ListID, pos uint32) error {
	if err := f.call("ExecuteFrom", list, ":", pos); err != nil {
		return err
	}
	f.status.Busy = BusyRunning
	return nil
}

func (f *fakeDevice) QueryStatus() (Status, error) {
	if err := f.call("QueryStatus"); err != nil {
		return Status{}, err
	}
	if f.consume != nil {
		f.consume(f)
	}
	if f.idleAfter > 0 {
		f.idleAfter--
		if f.idleAfter == 0 {
			f.status.Busy = 0
			f.listBusy = map[ListID]bool{}
		}
	}
	return f.status, nil
}

func (f *fakeDevice) Wait() error {
	if err := f.call("Wait"); err != nil {
		return err
	}
	f.advance()
	return nil
}

func (f *fakeDevice) Release() error {
	if err := f.call("Release"); err != nil {
		return err
	}
	f.status.Busy = BusyRunning
	return nil
}

func (f *fakeDevice) InputPointer() (uint32, error) {
	if err := f.call("InputPointer"); err != nil {
		return 0, err
	}
	return f.in, nil
}

func (f *fakeDevice) Stop() error {
	if err := f.call("Stop"); err != nil {
		return err
	}
	f.status.Busy = 0
	f.listBusy = map[ListID]bool{}
	return nil
}

// pausingFake adds list pausing
type pausingFake struct {
	*fakeDevice
}

func (p pausingFake) PauseList() error {
	if err := p.call("PauseList"); err != nil {
		return err
	}
	p.status.Busy |= 0x0100
	return nil
}

func (p pausingFake) RestartList() error {
	if err := p.call("RestartList"); err != nil {
		return err
	}
	p.status.Busy &^= BusyPaused
	return nil
}
