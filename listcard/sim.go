package listcard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
	"github.jpl.nasa.gov/bdube/scanlab/util"
)

const (
	// ErrUnderrun is set in the error bitmask when the simulated card
	// executes a slot that was never written
	ErrUnderrun uint32 = 1 << 0

	// ErrOverrun is set when a write lands on a ring slot the card has not
	// consumed yet
	ErrOverrun uint32 = 1 << 1

	// ErrListOverflow is set when a double buffer list is written past its end
	ErrListOverflow uint32 = 1 << 2
)

var faultNames = []string{"underrun", "overrun", "list overflow"}

// FaultNames lists the simulated card's error bits set in code
func FaultNames(code uint32) []string {
	var out []string
	for i, name := range faultNames {
		if util.GetBit(code, uint(i)) {
			out = append(out, name)
		}
	}
	return out
}

var (
	// ErrNoOpenList is generated by appends before OpenBuffer
	ErrNoOpenList = errors.New("listcard: no list open for writing")

	// ErrBadList is generated for a list other than ListA or ListB
	ErrBadList = errors.New("listcard: no such list")
)

type slotOp byte

const (
	slotEmpty slotOp = iota
	slotJump
	slotMark
	slotPixels
	slotEnd
	slotWait
)

type slot struct {
	op        slotOp
	x, y      int32
	count     uint32
	intensity uint16
}

// SimConfig configures a Sim
type SimConfig struct {
	// Mode is ModeDouble for two lists of Capacity+1 slots, ModeRing for a
	// single ring of Capacity slots
	Mode scheduler.Mode

	// Capacity matches the scheduler.Config it is driven with
	Capacity uint32

	// Period is the time taken to execute one slot.  Zero disables the
	// internal clock; call Step to advance.
	Period time.Duration
}

// Sim is a simulated list card.  It implements scheduler.Device and
// scheduler.Pauser and executes its lists on its own clock.
type Sim struct {
	sync.Mutex
	cfg SimConfig

	lists [2][]slot
	open  int // index of the list open for writing, -1 if none
	in    uint32

	closed int // last list closed with MarkEnd, -1 if none
	queued int // list started by an auto advance when the current ends

	running  bool
	run      int
	out      uint32
	waiting  bool
	paused   bool
	skipWait int

	errBits  uint32
	executed []scheduler.Request
	calls    map[string]int

	cancel chan struct{}
	done   chan struct{}
}

// NewSim returns a Sim with empty lists.  If cfg.Period is nonzero the clock
// is running; stop it with Close.
func NewSim(cfg SimConfig) *Sim {
	s := &Sim{cfg: cfg, open: -1, closed: -1, queued: -1, calls: map[string]int{}}
	n := cfg.Capacity + 1
	if cfg.Mode == scheduler.ModeRing {
		n = cfg.Capacity
	}
	s.lists[0] = make([]slot, n)
	s.lists[1] = make([]slot, n)
	if cfg.Period > 0 {
		s.cancel = make(chan struct{})
		s.done = make(chan struct{})
		go s.clock()
	}
	return s
}

func (s *Sim) clock() {
	t := time.NewTicker(s.cfg.Period)
	defer close(s.done)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.Step(1)
		case <-s.cancel:
			return
		}
	}
}

// Close stops the clock
func (s *Sim) Close() error {
	if s.cancel != nil {
		close(s.cancel)
		<-s.done
		s.cancel = nil
	}
	return nil
}

func (s *Sim) ring() bool {
	return s.cfg.Mode == scheduler.ModeRing
}

func index(l scheduler.ListID) (int, error) {
	switch l {
	case scheduler.ListA:
		return 0, nil
	case scheduler.ListB:
		return 1, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrBadList, l)
	}
}

// Step executes up to n slots
func (s *Sim) Step(n int) {
	s.Lock()
	defer s.Unlock()
	for i := 0; i < n; i++ {
		if !s.step() {
			return
		}
	}
}

// step executes one slot and reports if the card is still executing
func (s *Sim) step() bool {
	if !s.running || s.waiting || s.paused {
		return false
	}
	list := s.lists[s.run]
	if s.out >= uint32(len(list)) {
		s.errBits |= ErrUnderrun
		s.running = false
		return false
	}
	sl := list[s.out]
	if sl.op == slotEmpty {
		s.errBits |= ErrUnderrun
		s.running = false
		return false
	}
	if s.ring() {
		list[s.out] = slot{}
		s.out = (s.out + 1) % s.cfg.Capacity
	} else {
		s.out++
	}
	switch sl.op {
	case slotJump:
		s.executed = append(s.executed, scheduler.JumpTo(sl.x, sl.y))
	case slotMark:
		s.executed = append(s.executed, scheduler.MarkTo(sl.x, sl.y))
	case slotPixels:
		s.executed = append(s.executed, scheduler.Pixels(sl.count, sl.intensity))
	case slotWait:
		if s.skipWait > 0 {
			s.skipWait--
		} else {
			s.waiting = true
		}
	case slotEnd:
		s.running = false
		if s.queued >= 0 {
			s.start(s.queued, 0)
			s.queued = -1
		}
	}
	return s.running
}

func (s *Sim) start(list int, pos uint32) {
	s.running = true
	s.run = list
	s.out = pos
	s.waiting = false
	s.paused = false
}

func (s *Sim) count(name string) {
	s.calls[name]++
}

// Calls returns the number of times the named device method was called
func (s *Sim) Calls(name string) int {
	s.Lock()
	defer s.Unlock()
	return s.calls[name]
}

// Executed returns a copy of the primitives executed so far, in order
func (s *Sim) Executed() []scheduler.Request {
	s.Lock()
	defer s.Unlock()
	out := make([]scheduler.Request, len(s.executed))
	copy(out, s.executed)
	return out
}

// InjectError ORs code into the error bitmask
func (s *Sim) InjectError(code uint32) {
	s.Lock()
	defer s.Unlock()
	s.errBits |= code
}

// ClearError zeroes the error bitmask
func (s *Sim) ClearError() {
	s.Lock()
	defer s.Unlock()
	s.errBits = 0
}

// OpenBuffer claims list for writing at offset.  It returns false while the
// list executes or waits to be auto advanced into.  Opening discards any
// unexecuted content of the list.
func (s *Sim) OpenBuffer(list scheduler.ListID, offset uint32) (bool, error) {
	s.Lock()
	defer s.Unlock()
	s.count("OpenBuffer")
	idx, err := index(list)
	if err != nil {
		return false, err
	}
	if s.running && s.run == idx || s.queued == idx {
		return false, nil
	}
	if offset >= uint32(len(s.lists[idx])) {
		return false, fmt.Errorf("listcard: offset %d outside list of %d slots", offset, len(s.lists[idx]))
	}
	for i := range s.lists[idx] {
		s.lists[idx][i] = slot{}
	}
	s.open = idx
	s.in = offset
	return true, nil
}

func (s *Sim) write(name string, sl slot) error {
	s.count(name)
	if s.open < 0 {
		return ErrNoOpenList
	}
	list := s.lists[s.open]
	if s.ring() {
		if list[s.in].op != slotEmpty {
			s.errBits |= ErrOverrun
		}
		list[s.in] = sl
		s.in = (s.in + 1) % s.cfg.Capacity
		return nil
	}
	if s.in >= uint32(len(list)) {
		s.errBits |= ErrListOverflow
		return fmt.Errorf("listcard: list %d is full", s.open+1)
	}
	list[s.in] = sl
	s.in++
	return nil
}

// AppendJump writes a jump
func (s *Sim) AppendJump(x, y int32) error {
	s.Lock()
	defer s.Unlock()
	return s.write("AppendJump", slot{op: slotJump, x: x, y: y})
}

// AppendMark writes a mark
func (s *Sim) AppendMark(x, y int32) error {
	s.Lock()
	defer s.Unlock()
	return s.write("AppendMark", slot{op: slotMark, x: x, y: y})
}

// AppendPixelRun writes a pixel run
func (s *Sim) AppendPixelRun(count uint32, intensity uint16) error {
	s.Lock()
	defer s.Unlock()
	return s.write("AppendPixelRun", slot{op: slotPixels, count: count, intensity: intensity})
}

// MarkEnd writes an end of list and closes the open list
func (s *Sim) MarkEnd() error {
	s.Lock()
	defer s.Unlock()
	if err := s.write("MarkEnd", slot{op: slotEnd}); err != nil {
		return err
	}
	s.closed = s.open
	s.open = -1
	return nil
}

// Execute starts list at its first slot
func (s *Sim) Execute(list scheduler.ListID) error {
	s.Lock()
	defer s.Unlock()
	s.count("Execute")
	idx, err := index(list)
	if err != nil {
		return err
	}
	s.start(idx, 0)
	return nil
}

// AutoAdvance queues the last closed list behind the executing one, or
// starts it if the card is idle
func (s *Sim) AutoAdvance() error {
	s.Lock()
	defer s.Unlock()
	s.count("AutoAdvance")
	if s.closed < 0 {
		return nil
	}
	if s.running {
		s.queued = s.closed
	} else {
		s.start(s.closed, 0)
	}
	return nil
}

// ExecuteFrom starts list at pos
func (s *Sim) ExecuteFrom(list scheduler.ListID, pos uint32) error {
	s.Lock()
	defer s.Unlock()
	s.count("ExecuteFrom")
	idx, err := index(list)
	if err != nil {
		return err
	}
	if pos >= uint32(len(s.lists[idx])) {
		return fmt.Errorf("listcard: position %d outside list of %d slots", pos, len(s.lists[idx]))
	}
	s.start(idx, pos)
	return nil
}

func (s *Sim) busy() scheduler.BusyFlags {
	if !s.running {
		return 0
	}
	var b uint32
	b = util.SetBit(b, 0, !s.waiting)
	b = util.SetBit(b, 8, s.waiting || s.paused)
	return scheduler.BusyFlags(b)
}

// QueryStatus returns the busy flags, the next slot to execute and the
// error bitmask
func (s *Sim) QueryStatus() (scheduler.Status, error) {
	s.Lock()
	defer s.Unlock()
	s.count("QueryStatus")
	return scheduler.Status{Busy: s.busy(), Position: s.out, Error: s.errBits}, nil
}

// Wait writes a wait at the input pointer
func (s *Sim) Wait() error {
	s.Lock()
	defer s.Unlock()
	return s.write("Wait", slot{op: slotWait})
}

// Release resumes a card sitting at a wait.  A card that has not reached
// its wait yet will pass it.
func (s *Sim) Release() error {
	s.Lock()
	defer s.Unlock()
	s.count("Release")
	if s.waiting {
		s.waiting = false
	} else if s.running {
		s.skipWait++
	}
	return nil
}

// InputPointer returns the next slot that will be written
func (s *Sim) InputPointer() (uint32, error) {
	s.Lock()
	defer s.Unlock()
	s.count("InputPointer")
	return s.in, nil
}

// Stop aborts execution and drops a queued auto advance
func (s *Sim) Stop() error {
	s.Lock()
	defer s.Unlock()
	s.count("Stop")
	s.running = false
	s.waiting = false
	s.paused = false
	s.queued = -1
	s.skipWait = 0
	return nil
}

// PauseList suspends execution after the current slot
func (s *Sim) PauseList() error {
	s.Lock()
	defer s.Unlock()
	s.count("PauseList")
	if s.running {
		s.paused = true
	}
	return nil
}

// RestartList undoes PauseList
func (s *Sim) RestartList() error {
	s.Lock()
	defer s.Unlock()
	s.count("RestartList")
	s.paused = false
	return nil
}
