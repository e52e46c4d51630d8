package locker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"

	"github.jpl.nasa.gov/bdube/scanlab/generichttp"
)

type dummy struct{ rt generichttp.RouteTable }

func (d dummy) RT() generichttp.RouteTable { return d.rt }

func newRouter(l *Locker) chi.Router {
	d := dummy{rt: generichttp.RouteTable{
		{Method: http.MethodPost, Path: "/control"}: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
		{Method: http.MethodGet, Path: "/state"}: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	}}
	Inject(d, l)
	r := chi.NewRouter()
	r.Use(l.Check)
	d.RT().Bind(r)
	return r
}

func do(h http.Handler, method, path, body string) int {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w.Code
}

func TestLockBouncesWrites(t *testing.T) {
	l := New()
	r := newRouter(l)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/control", `{"str":"flush"}`))

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/lock", `{"bool":true}`))
	assert.True(t, l.Locked())
	assert.Equal(t, http.StatusLocked, do(r, http.MethodPost, "/control", `{"str":"flush"}`))
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/state", ""), "reads pass while locked")

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/lock", `{"bool":false}`))
	assert.False(t, l.Locked())
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/control", `{"str":"flush"}`))
}

func TestLockGet(t *testing.T) {
	l := New()
	l.Lock()
	w := httptest.NewRecorder()
	newRouter(l).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lock", nil))
	assert.JSONEq(t, `{"bool":true}`, w.Body.String())
}

func TestLockBadBody(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, do(newRouter(New()), http.MethodPost, "/lock", "nope"))
}
