// Package scan exposes a streaming scan job over HTTP.
//
// A Controller owns a scheduler.Streamer, the pattern to stream and the pump
// goroutine feeding it.  Routes:
//
//	POST /csv       body is CSV vector rows (as in pattern.LoadCSV), replaces the pattern
//	POST /fits      body is a FITS image, rastered with pattern.DefaultLayout
//	POST /control   {"str": "start|flush|reset|suspend|resume"}
//	GET  /state     {"str": "executing"}
//	GET  /job       status of the current or last job
//	GET  /fault     {"int": error bitmask}, 0 when healthy
//	GET  /rate      {"f64": retry rate, Hz}, POST to change it
//	GET  /autostart {"bool": ...}, POST to change it; ring streamers only
package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.jpl.nasa.gov/bdube/scanlab/generichttp"
	"github.jpl.nasa.gov/bdube/scanlab/pattern"
	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
	"github.jpl.nasa.gov/bdube/scanlab/server"
	"github.jpl.nasa.gov/bdube/scanlab/stream"
)

var (
	// ErrNoPattern is generated when a job is started before a pattern was loaded
	ErrNoPattern = errors.New("scan: no pattern loaded")

	// ErrRunning is generated when the pattern is replaced during a job
	ErrRunning = errors.New("scan: job in progress")

	// ErrCommandsFull is generated when the running job has not consumed
	// earlier commands yet
	ErrCommandsFull = errors.New("scan: command queue full")
)

// Recorder archives the pattern of a finished job
type Recorder interface {
	Record(id string, reqs []scheduler.Request) (string, error)
}

// Options tune a Controller.  The zero value is usable.
type Options struct {
	// Recorder, if not nil, archives the pattern of every job
	Recorder Recorder

	// Limiter paces enqueue retries; nil uses stream.DefaultRetryInterval
	Limiter *rate.Limiter

	// FlushTimeout bounds every flush, zero waits as long as it takes
	FlushTimeout time.Duration

	// Logger receives job failures; nil is the log package default
	Logger *log.Logger
}

// Controller runs scan jobs on a Streamer and is safe for concurrent use
type Controller struct {
	g       *guarded
	pump    *stream.Pump
	limiter *rate.Limiter
	cmds    chan stream.Command
	flushTO time.Duration
	rec     Recorder
	log     *log.Logger

	mu     sync.Mutex
	reqs   []scheduler.Request
	cancel context.CancelFunc
	done   chan struct{}

	RouteTable generichttp.RouteTable
}

// NewController wraps s.  s must not be used by anything else afterwards.
func NewController(s scheduler.Streamer, opts Options) *Controller {
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Every(stream.DefaultRetryInterval), 1)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	c := &Controller{
		g:       newGuarded(s),
		limiter: opts.Limiter,
		cmds:    make(chan stream.Command, 4),
		flushTO: opts.FlushTimeout,
		rec:     opts.Recorder,
		log:     opts.Logger,
	}
	c.pump = &stream.Pump{
		S:            c.g,
		Limiter:      c.limiter,
		Commands:     c.cmds,
		FlushTimeout: opts.FlushTimeout,
		Logger:       opts.Logger}
	done := make(chan struct{})
	close(done)
	c.done = done

	rt := generichttp.RouteTable{}
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/csv"}] = c.AcceptCSV
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/fits"}] = c.AcceptFITS
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/control"}] = c.HTTPControl
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/state"}] = generichttp.GetString(func() (string, error) {
		return c.State().String(), nil
	})
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/job"}] = c.HTTPJob
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/fault"}] = generichttp.GetInt(c.Fault)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/rate"}] = generichttp.GetFloat(func() (float64, error) {
		return float64(c.limiter.Limit()), nil
	})
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/rate"}] = generichttp.SetFloat(c.SetRate)
	if _, ok := c.g.autoStarter(); ok {
		rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autostart"}] = generichttp.GetBool(func() (bool, error) {
			b, _ := c.g.autoStart()
			return b, nil
		})
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/autostart"}] = generichttp.SetBool(func(b bool) error {
			c.g.setAutoStart(b)
			return nil
		})
	}
	c.RouteTable = rt
	return c
}

// RT makes Controller conform to generichttp.HTTPer
func (c *Controller) RT() generichttp.RouteTable {
	return c.RouteTable
}

func (c *Controller) runningLocked() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Running is true while a job is in progress
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runningLocked()
}

// Done returns a channel closed when the current job ends.  With no job in
// progress it is already closed.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Load replaces the pattern streamed by the next job
func (c *Controller) Load(reqs []scheduler.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runningLocked() {
		return ErrRunning
	}
	c.reqs = reqs
	return nil
}

// Start begins a job streaming the loaded pattern.  The job runs until the
// pattern is drained, a command ends it, or ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runningLocked() {
		return stream.ErrBusy
	}
	if len(c.reqs) == 0 {
		return ErrNoPattern
	}
	// stale commands belong to the previous job
	for len(c.cmds) > 0 {
		<-c.cmds
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	reqs := c.reqs
	go func() {
		defer close(done)
		defer cancel()
		err := c.pump.Run(ctx, stream.NewSliceSource(reqs))
		if err != nil && !errors.Is(err, context.Canceled) {
			c.log.Println("scan: job ended:", err)
		}
		if c.rec != nil {
			if job := c.pump.Job(); job != nil {
				if _, err := c.rec.Record(job.ID.String(), reqs); err != nil {
					c.log.Println("scan: archiving job:", err)
				}
			}
		}
	}()
	return nil
}

// abort cancels a job in progress and waits for it to return
func (c *Controller) abort() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-done
}

// Control applies a named command: start, or any stream.Command.  While a
// job runs, commands other than reset are queued to it; reset cancels the
// job, including a flush in progress, before stopping the device.
func (c *Controller) Control(name string) error {
	if strings.EqualFold(strings.TrimSpace(name), "start") {
		return c.Start(context.Background())
	}
	cmd, err := stream.ParseCommand(name)
	if err != nil {
		return err
	}
	if cmd == stream.CmdReset {
		c.abort()
		return c.g.Reset()
	}
	if c.Running() {
		select {
		case c.cmds <- cmd:
			return nil
		default:
			return ErrCommandsFull
		}
	}
	switch cmd {
	case stream.CmdFlush:
		ctx := context.Background()
		if c.flushTO > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.flushTO)
			defer cancel()
		}
		return c.g.Flush(ctx)
	case stream.CmdSuspend:
		return c.g.Suspend()
	case stream.CmdResume:
		return c.g.Resume()
	}
	return fmt.Errorf("scan: command %s not handled", cmd)
}

// State is the streamer's lifecycle state
func (c *Controller) State() scheduler.State {
	return c.g.State()
}

// Job is the current or most recent job, nil before the first
func (c *Controller) Job() *stream.Job {
	return c.pump.Job()
}

// Fault returns the device error bitmask, 0 if healthy.  The error is
// non-nil only if the status could not be read.
func (c *Controller) Fault() (int, error) {
	err := c.g.CheckStatus()
	var f *scheduler.DeviceFault
	if errors.As(err, &f) {
		return int(f.Code), nil
	}
	return 0, err
}

// SetRate changes the retry rate of the pump, in Hz
func (c *Controller) SetRate(hz float64) error {
	if hz <= 0 {
		return fmt.Errorf("scan: rate must be positive, got %g", hz)
	}
	c.limiter.SetLimit(rate.Limit(hz))
	return nil
}

func (c *Controller) loadStatus(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, ErrRunning):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

// AcceptCSV parses CSV vector rows from the request body and makes them the pattern
func (c *Controller) AcceptCSV(w http.ResponseWriter, r *http.Request) {
	reqs, err := pattern.LoadCSV(r.Body)
	defer r.Body.Close()
	if err == nil {
		err = c.Load(reqs)
	}
	c.loadStatus(w, err)
}

// AcceptFITS rasters a FITS image from the request and makes it the pattern
func (c *Controller) AcceptFITS(w http.ResponseWriter, r *http.Request) {
	img, err := pattern.LoadFITS(r.Body)
	defer r.Body.Close()
	if err == nil {
		err = c.Load(pattern.Raster(img, pattern.DefaultLayout()))
	}
	c.loadStatus(w, err)
}

// HTTPControl issues a command from a JSON {"str": name} body
func (c *Controller) HTTPControl(w http.ResponseWriter, r *http.Request) {
	str := server.StrT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = c.Control(str.Str)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, stream.ErrBusy), errors.Is(err, ErrCommandsFull):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrNoPattern), errors.Is(err, stream.ErrUnknownCommand):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HTTPJob sends the status of the current or last job as JSON
func (c *Controller) HTTPJob(w http.ResponseWriter, r *http.Request) {
	job := c.Job()
	if job == nil {
		http.Error(w, "no job has run", http.StatusNotFound)
		return
	}
	server.EncodeJSON(w, job.Status())
}
