package scheduler

// ListID names one of the two list memories of a card
type ListID int

const (
	// ListA is list 1 on the card.  Ring mode uses it exclusively.
	ListA ListID = 1

	// ListB is list 2 on the card
	ListB ListID = 2
)

// other returns the list not named by l
func (l ListID) other() ListID {
	if l == ListA {
		return ListB
	}
	return ListA
}

// BusyFlags is the busy bitfield returned by a status query.
//
//	bit 0      list is executing
//	bits 1..7  list has finished, home jump still active
//	bits 8..15 list paused; by Wait if bits 0..7 are clear, by PauseList otherwise
type BusyFlags uint32

const (
	// BusyRunning is the only bit set while a list executes unhindered
	BusyRunning BusyFlags = 0x0001

	// BusyHomeJump covers the home jump bits
	BusyHomeJump BusyFlags = 0x00fe

	// BusyPaused covers the pause bits
	BusyPaused BusyFlags = 0xff00
)

// Busy is true if any flag is set
func (b BusyFlags) Busy() bool {
	return b != 0
}

// Running is true if a list executes and is neither paused nor home jumping
func (b BusyFlags) Running() bool {
	return b == BusyRunning
}

// HomeJumping is true if the list has finished but the home jump is active
func (b BusyFlags) HomeJumping() bool {
	return b&BusyHomeJump != 0
}

// Waiting is true if the list sits at a Wait command
func (b BusyFlags) Waiting() bool {
	return b&0x00ff == 0 && b&BusyPaused != 0
}

// PausedList is true if the list was paused with PauseList
func (b BusyFlags) PausedList() bool {
	return b&0x00ff != 0 && b&BusyPaused != 0
}

// Status is the result of a status query
type Status struct {
	// Busy is the busy bitfield
	Busy BusyFlags

	// Position is the output pointer, the next slot the device will consume
	Position uint32

	// Error is the device error bitmask, zero when healthy
	Error uint32
}

// Device is the list memory contract a Streamer drives.  Each method maps to
// one card command.  Appends write at the input pointer of the open list and
// advance it.
type Device interface {
	// OpenBuffer claims list for writing starting at offset.  It returns
	// false if the list is still executing.
	OpenBuffer(list ListID, offset uint32) (bool, error)

	AppendJump(x, y int32) error
	AppendMark(x, y int32) error
	AppendPixelRun(count uint32, intensity uint16) error

	// MarkEnd closes the open list with an end-of-list command
	MarkEnd() error

	// Execute starts list from its beginning
	Execute(list ListID) error

	// AutoAdvance starts the most recently closed list as soon as the
	// executing one finishes, or immediately if none executes
	AutoAdvance() error

	// ExecuteFrom starts list at pos
	ExecuteFrom(list ListID, pos uint32) error

	// QueryStatus returns the busy flags and output pointer
	QueryStatus() (Status, error)

	// Wait writes a wait command at the input pointer; the device pauses
	// when it gets there
	Wait() error

	// Release resumes a device paused by Wait
	Release() error

	// InputPointer returns the next slot that will be written
	InputPointer() (uint32, error)

	// Stop aborts execution and discards any pending auto advance
	Stop() error
}

// Pauser is a Device that can suspend and resume the executing list
type Pauser interface {
	PauseList() error
	RestartList() error
}
