package jobrec

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.jpl.nasa.gov/bdube/scanlab/generichttp"
	"github.jpl.nasa.gov/bdube/scanlab/pattern"
	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
)

func TestRecordWritesCSV(t *testing.T) {
	r := New(t.TempDir(), "scan_")
	reqs := []scheduler.Request{scheduler.JumpTo(1, 2), scheduler.MarkTo(3, 4), scheduler.Pixels(5, 6)}
	fn, err := r.Record("01ABC", reqs)
	require.NoError(t, err)
	assert.Equal(t, "scan_01ABC.csv", filepath.Base(fn))

	f, err := os.Open(fn)
	require.NoError(t, err)
	defer f.Close()
	back, err := pattern.LoadCSV(f)
	require.NoError(t, err)
	assert.Equal(t, reqs, back)
}

func TestDisabledRecordsNothing(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, "")
	r.SetEnabled(false)
	fn, err := r.Record("x", []scheduler.Request{scheduler.JumpTo(0, 0)})
	require.NoError(t, err)
	assert.Empty(t, fn)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type table struct{ rt generichttp.RouteTable }

func (t table) RT() generichttp.RouteTable { return t.rt }

func TestInjectedRoutes(t *testing.T) {
	r := New(t.TempDir(), "a")
	tb := table{rt: generichttp.RouteTable{}}
	Inject(tb, r)
	mux := chi.NewRouter()
	tb.RT().Bind(mux)

	newRoot := filepath.Join(t.TempDir(), "archive")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/archive/root", strings.NewReader(`{"str":"`+filepath.ToSlash(newRoot)+`"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.DirExists(t, newRoot)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/archive/enabled", strings.NewReader(`{"bool":false}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, r.Enabled())

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/archive/prefix", nil))
	assert.JSONEq(t, `{"str":"a"}`, w.Body.String())
}
