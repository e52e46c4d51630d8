package stream

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Job tracks one run of a Pump.  Its methods are safe to call while the run
// is in progress.
type Job struct {
	ID      ulid.ULID
	Started time.Time

	mu       sync.Mutex
	nEnq     uint64
	nRefused uint64
	done     bool
	finished time.Time
	err      error
}

// JobStatus is a snapshot of a Job
type JobStatus struct {
	ID       string    `json:"id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitempty"`
	Enqueued uint64    `json:"enqueued"`
	Refused  uint64    `json:"refused"`
	Done     bool      `json:"done"`
	Err      string    `json:"err,omitempty"`
}

func newJob() *Job {
	return &Job{ID: ulid.Make(), Started: time.Now()}
}

func (j *Job) enqueued() {
	j.mu.Lock()
	j.nEnq++
	j.mu.Unlock()
}

func (j *Job) refused() {
	j.mu.Lock()
	j.nRefused++
	j.mu.Unlock()
}

func (j *Job) finish(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.done = true
	j.finished = time.Now()
	j.err = err
}

// Err is the error the run ended with, nil while running or on success
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Status returns a snapshot of the job
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	st := JobStatus{
		ID:       j.ID.String(),
		Started:  j.Started,
		Finished: j.finished,
		Enqueued: j.nEnq,
		Refused:  j.nRefused,
		Done:     j.done}
	if j.err != nil {
		st.Err = j.err.Error()
	}
	return st
}
