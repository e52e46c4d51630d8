package server_test

import (
	"go/types"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.jpl.nasa.gov/bdube/scanlab/server"
)

func TestHumanPayloadEncodes(t *testing.T) {
	cases := []struct {
		hp   server.HumanPayload
		want string
	}{
		{server.HumanPayload{T: types.Float64, Float: 1.5}, `{"f64":1.5}`},
		{server.HumanPayload{T: types.Int, Int: 7}, `{"int":7}`},
		{server.HumanPayload{T: types.String, String: "ring"}, `{"str":"ring"}`},
		{server.HumanPayload{T: types.Bool, Bool: true}, `{"bool":true}`},
	}
	for _, c := range cases {
		w := httptest.NewRecorder()
		c.hp.EncodeAndRespond(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if got := strings.TrimSpace(w.Body.String()); got != c.want {
			t.Errorf("expected %s got %s", c.want, got)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
	}
}

func TestHumanPayloadUnsupported(t *testing.T) {
	w := httptest.NewRecorder()
	server.HumanPayload{T: types.Complex128}.EncodeAndRespond(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}
