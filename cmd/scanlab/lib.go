package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/tarm/serial"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.jpl.nasa.gov/bdube/scanlab/generichttp"
	"github.jpl.nasa.gov/bdube/scanlab/generichttp/scan"
	"github.jpl.nasa.gov/bdube/scanlab/listcard"
	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
	"github.jpl.nasa.gov/bdube/scanlab/server/middleware/locker"
	"github.jpl.nasa.gov/bdube/scanlab/util"
)

// setupLogging sends the log to stderr and, if file is not empty, to a
// rotated log file
func setupLogging(file string) {
	if file == "" {
		return
	}
	log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // megabytes after which new file is created
		MaxBackups: 4,
		MaxAge:     180, // days
		Compress:   true,
	}))
}

// openDevice connects to the card described by d.  The returned closer
// releases it.
func openDevice(d DeviceSetup, cfg scheduler.Config) (scheduler.Device, io.Closer, error) {
	switch strings.ToLower(d.Type) {
	case "sim", "":
		sim := listcard.NewSim(listcard.SimConfig{
			Mode:     cfg.Mode,
			Capacity: cfg.Capacity,
			Period:   util.SecsToDuration(d.Period)})
		return sim, sim, nil
	case "tcp":
		r := listcard.NewRemote(d.Addr, false, nil)
		return r, r, nil
	case "serial":
		r := listcard.NewRemote(d.Addr, true, &serial.Config{Name: d.Addr, Baud: d.Baud})
		return r, r, nil
	default:
		return nil, nil, fmt.Errorf("unknown device type %q, expected sim, tcp or serial", d.Type)
	}
}

// setup builds the device and streamer from c
func setup(c Config) (scheduler.Streamer, io.Closer, error) {
	cfg, err := c.Scheduler.SchedulerConfig()
	if err != nil {
		return nil, nil, err
	}
	dev, closer, err := openDevice(c.Device, cfg)
	if err != nil {
		return nil, nil, err
	}
	s, err := scheduler.New(dev, cfg)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return s, closer, nil
}

func newLimiter(hz float64) *rate.Limiter {
	if hz <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(hz), 1)
}

// BuildMux serves ctrl under c.Root behind a lock, with a listing of the
// routes at /endpoints
func BuildMux(c Config, ctrl *scan.Controller) chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	supergraph := map[string][]string{}

	hndlS := generichttp.SubMuxSanitize(c.Root)
	lock := locker.New()
	locker.Inject(ctrl, lock)
	supergraph[hndlS] = ctrl.RT().Endpoints()

	r := chi.NewRouter()
	r.Use(lock.Check)
	ctrl.RT().Bind(r)
	root.Mount(hndlS, r)

	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return root
}
