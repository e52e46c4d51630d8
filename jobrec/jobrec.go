// Package jobrec contains a recorder used to automatically archive the
// patterns of scan jobs to disk.
package jobrec

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.jpl.nasa.gov/bdube/scanlab/generichttp"
	"github.jpl.nasa.gov/bdube/scanlab/pattern"
	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
)

// Recorder writes each job's pattern as CSV into yyyy-mm-dd subfolders of
// Root, named <Prefix><job id>.csv.  It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	root    string
	prefix  string
	enabled bool
}

// New returns an enabled Recorder
func New(root, prefix string) *Recorder {
	return &Recorder{root: root, prefix: prefix, enabled: true}
}

// dayFolder is the subfolder for today, created if needed
func (r *Recorder) dayFolder() (string, error) {
	fldr := filepath.Join(r.root, time.Now().Format("2006-01-02"))
	err := os.MkdirAll(fldr, 0777)
	return fldr, err
}

// Record writes reqs for the job with the given id and returns the file
// name.  A disabled recorder writes nothing and returns "".
func (r *Recorder) Record(id string, reqs []scheduler.Request) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return "", nil
	}
	fldr, err := r.dayFolder()
	if err != nil {
		return "", err
	}
	fn := filepath.Join(fldr, fmt.Sprintf("%s%s.csv", r.prefix, id))
	f, err := os.Create(fn)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := pattern.WriteCSV(f, reqs); err != nil {
		return "", err
	}
	return fn, f.Close()
}

// Root is the folder the day folders are made in
func (r *Recorder) Root() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root
}

// SetRoot changes the root folder, creating it
func (r *Recorder) SetRoot(root string) error {
	if err := os.MkdirAll(root, 0777); err != nil {
		return err
	}
	r.mu.Lock()
	r.root = root
	r.mu.Unlock()
	return nil
}

// Prefix is the file name prefix
func (r *Recorder) Prefix() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prefix
}

// SetPrefix changes the file name prefix
func (r *Recorder) SetPrefix(p string) {
	r.mu.Lock()
	r.prefix = p
	r.mu.Unlock()
}

// Enabled is true if Record writes
func (r *Recorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// SetEnabled turns recording on or off
func (r *Recorder) SetEnabled(b bool) {
	r.mu.Lock()
	r.enabled = b
	r.mu.Unlock()
}

// Inject adds GET and POST routes for /archive/root, /archive/prefix and
// /archive/enabled to the HTTPer which manipulate r
func Inject(other generichttp.HTTPer, r *Recorder) {
	rt := other.RT()
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/archive/root"}] = generichttp.SetString(r.SetRoot)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/archive/root"}] = generichttp.GetString(func() (string, error) {
		return r.Root(), nil
	})
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/archive/prefix"}] = generichttp.SetString(func(p string) error {
		r.SetPrefix(p)
		return nil
	})
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/archive/prefix"}] = generichttp.GetString(func() (string, error) {
		return r.Prefix(), nil
	})
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/archive/enabled"}] = generichttp.SetBool(func(b bool) error {
		r.SetEnabled(b)
		return nil
	})
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/archive/enabled"}] = generichttp.GetBool(func() (bool, error) {
		return r.Enabled(), nil
	})
}
