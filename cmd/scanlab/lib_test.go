package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.jpl.nasa.gov/bdube/scanlab/generichttp/scan"
	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
)

func TestLoadConfigDefaults(t *testing.T) {
	k, err := loadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	c, err := unmarshal(k)
	require.NoError(t, err)
	assert.Equal(t, defaults(), c)

	cfg, err := c.Scheduler.SchedulerConfig()
	require.NoError(t, err)
	assert.Equal(t, scheduler.ModeDouble, cfg.Mode)
	assert.Equal(t, uint32(4000), cfg.Capacity)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scanlab.yml")
	yml := `addr: ":9001"
scheduler:
  mode: ring
  capacity: 1024
  startgap: 256
  loadgap: 32
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("SCANLAB_SCHEDULER_CHECKMASK", "15")

	k, err := loadConfig(path)
	require.NoError(t, err)
	c, err := unmarshal(k)
	require.NoError(t, err)
	assert.Equal(t, ":9001", c.Addr)
	assert.Equal(t, "scan", c.Root, "defaults survive a partial file")

	cfg, err := c.Scheduler.SchedulerConfig()
	require.NoError(t, err)
	assert.Equal(t, scheduler.ModeRing, cfg.Mode)
	assert.Equal(t, uint32(256), cfg.StartGap)
	assert.Equal(t, uint32(15), cfg.CheckMask)
	assert.False(t, cfg.DisableAutoStart)
}

func TestRingRequiresGaps(t *testing.T) {
	s := defaults().Scheduler
	s.Mode = "ring"
	_, err := s.SchedulerConfig()
	var ce *scheduler.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "StartGap", ce.Field)
}

func TestOpenDeviceUnknownType(t *testing.T) {
	_, _, err := openDevice(DeviceSetup{Type: "pcie"}, scheduler.Config{Capacity: 8})
	assert.Error(t, err)
}

func TestLoadPattern(t *testing.T) {
	for _, name := range []string{"spiral", "lissajous", "stairs"} {
		reqs, err := loadPattern(name, nil)
		require.NoError(t, err, name)
		assert.NotEmpty(t, reqs, name)
	}
	_, err := loadPattern("csv", nil)
	assert.Error(t, err)
	_, err = loadPattern("hexagon", nil)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "path.csv")
	require.NoError(t, os.WriteFile(path, []byte("jump,0,0\nmark,100,100\n"), 0o644))
	reqs, err := loadPattern("csv", []string{path})
	require.NoError(t, err)
	assert.Equal(t, []scheduler.Request{scheduler.JumpTo(0, 0), scheduler.MarkTo(100, 100)}, reqs)
}

func TestBuildMux(t *testing.T) {
	c := defaults()
	c.Device.Period = 0
	s, closer, err := setup(c)
	require.NoError(t, err)
	defer closer.Close()
	mux := BuildMux(c, scan.NewController(s, scan.Options{}))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/endpoints", nil))
	require.Equal(t, http.StatusOK, w.Code)
	graph := map[string][]string{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &graph))
	assert.Contains(t, graph["/scan"], "/control")
	assert.Contains(t, graph["/scan"], "/lock")

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scan/state", nil))
	assert.JSONEq(t, `{"str":"idle"}`, w.Body.String())

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scan/lock", strings.NewReader(`{"bool":true}`)))
	require.Equal(t, http.StatusOK, w.Code)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scan/control", strings.NewReader(`{"str":"flush"}`)))
	assert.Equal(t, http.StatusLocked, w.Code)
}
