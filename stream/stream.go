/*Package stream drives a scheduler.Streamer from a source of requests.

A Pump retries refused enqueues at a pace set by a rate limiter, so the
producer never spins, and services a command channel between attempts.  At
the end of the source it flushes:

	cmds := make(chan stream.Command, 1)
	p := &stream.Pump{S: s, Commands: cmds}
	go func() {
		<-stop
		cmds <- stream.CmdReset
	}()
	err := p.Run(ctx, stream.NewSliceSource(pattern.Spiral(10000, 5, 512)))
*/
package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
)

// DefaultRetryInterval paces enqueue attempts after backpressure when a Pump
// has no Limiter
const DefaultRetryInterval = time.Millisecond

var (
	// ErrReset is returned by Run when a CmdReset ended the stream
	ErrReset = errors.New("stream: reset by command")

	// ErrBusy is generated when Run is called on a Pump that is already running
	ErrBusy = errors.New("stream: pump already running")

	// ErrUnknownCommand is generated when parsing an invalid command name
	ErrUnknownCommand = errors.New("stream: unknown command")
)

// Command controls a running Pump
type Command int

const (
	// CmdFlush stops reading the source, flushes and ends the run
	CmdFlush Command = iota

	// CmdReset stops the device, discards buffered content and ends the run
	CmdReset

	// CmdSuspend pauses the executing list; the pump keeps filling
	CmdSuspend

	// CmdResume undoes CmdSuspend
	CmdResume
)

var commandNames = []string{"flush", "reset", "suspend", "resume"}

// String satisfies fmt.Stringer
func (c Command) String() string {
	if c >= 0 && int(c) < len(commandNames) {
		return commandNames[c]
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// ParseCommand converts a command name to a Command
func ParseCommand(s string) (Command, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range commandNames {
		if s == name {
			return Command(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownCommand, s)
}

// Source yields requests in order until it is exhausted
type Source interface {
	Next() (scheduler.Request, bool)
}

// SliceSource is a Source over a slice
type SliceSource struct {
	reqs []scheduler.Request
	i    int
}

// NewSliceSource returns a Source yielding reqs
func NewSliceSource(reqs []scheduler.Request) *SliceSource {
	return &SliceSource{reqs: reqs}
}

// Next satisfies Source
func (s *SliceSource) Next() (scheduler.Request, bool) {
	if s.i >= len(s.reqs) {
		return scheduler.Request{}, false
	}
	r := s.reqs[s.i]
	s.i++
	return r, true
}

// Len is the number of requests not yet yielded
func (s *SliceSource) Len() int {
	return len(s.reqs) - s.i
}

// Pump feeds a Streamer from a Source
type Pump struct {
	// S receives the requests
	S scheduler.Streamer

	// Limiter paces retries after a refused enqueue.  Nil waits
	// DefaultRetryInterval between retries.
	Limiter *rate.Limiter

	// Commands is polled between enqueue attempts; may be nil
	Commands <-chan Command

	// FlushTimeout bounds the flush at the end of a run.  Zero leaves it to
	// the context passed to Run.
	FlushTimeout time.Duration

	// Logger receives command failures.  Nil uses the log package default.
	Logger *log.Logger

	mu      sync.Mutex
	job     *Job
	running bool
}

func (p *Pump) logger() *log.Logger {
	if p.Logger == nil {
		return log.Default()
	}
	return p.Logger
}

// Job returns the current or most recent job, or nil before the first run
func (p *Pump) Job() *Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.job
}

// Running is true while Run executes
func (p *Pump) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pump) begin() (*Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil, ErrBusy
	}
	p.running = true
	p.job = newJob()
	return p.job, nil
}

func (p *Pump) end(job *Job, err error) error {
	job.finish(err)
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return err
}

// Run enqueues everything src yields, then flushes.  It returns when the
// flush completes, a command ends the run, a device call fails or ctx is
// done.  On cancellation the streamer is left as is; call Reset to stop the
// device.
func (p *Pump) Run(ctx context.Context, src Source) error {
	job, err := p.begin()
	if err != nil {
		return err
	}
	limiter := p.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(DefaultRetryInterval), 1)
	}
	var (
		req  scheduler.Request
		have bool
	)
	for {
		stop, err := p.service(ctx)
		if err != nil || stop {
			return p.end(job, err)
		}
		if !have {
			if req, have = src.Next(); !have {
				break
			}
		}
		ok, err := p.S.TryEnqueue(req)
		if ok {
			job.enqueued()
			have = false
		}
		if err != nil {
			return p.end(job, err)
		}
		if !ok {
			job.refused()
			if err := limiter.Wait(ctx); err != nil {
				// the limiter refuses waits that would overrun the deadline
				if _, ok := ctx.Deadline(); ok {
					<-ctx.Done()
					err = ctx.Err()
				}
				return p.end(job, err)
			}
		}
	}
	return p.end(job, p.flush(ctx))
}

// service handles pending commands and cancellation.  stop is true if the
// run is over.
func (p *Pump) service(ctx context.Context) (stop bool, err error) {
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case cmd := <-p.Commands:
			switch cmd {
			case CmdFlush:
				return true, p.flush(ctx)
			case CmdReset:
				if err := p.S.Reset(); err != nil {
					return true, err
				}
				return true, ErrReset
			case CmdSuspend:
				if err := p.S.Suspend(); err != nil {
					p.logger().Println("stream: suspend:", err)
				}
			case CmdResume:
				if err := p.S.Resume(); err != nil {
					p.logger().Println("stream: resume:", err)
				}
			default:
				p.logger().Println("stream: ignoring", cmd)
			}
		default:
			return false, nil
		}
	}
}

func (p *Pump) flush(ctx context.Context) error {
	if p.FlushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.FlushTimeout)
		defer cancel()
	}
	return p.S.Flush(ctx)
}
