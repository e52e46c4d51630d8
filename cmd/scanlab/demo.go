package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/theckman/yacspin"

	"github.jpl.nasa.gov/bdube/scanlab/listcard"
	"github.jpl.nasa.gov/bdube/scanlab/pattern"
	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
	"github.jpl.nasa.gov/bdube/scanlab/stream"
	"github.jpl.nasa.gov/bdube/scanlab/util"
)

// loadPattern builds the named demo pattern.  csv and fits read args[0].
func loadPattern(name string, args []string) ([]scheduler.Request, error) {
	file := func() (*os.File, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("%s needs a file name", name)
		}
		return os.Open(args[0])
	}
	switch strings.ToLower(name) {
	case "spiral":
		return pattern.Spiral(8000, 20, 200), nil
	case "lissajous":
		return pattern.Lissajous(8000, 1.5, 400, 8000), nil
	case "stairs":
		return pattern.Raster(pattern.Stairs(512, 64, 9), pattern.DefaultLayout()), nil
	case "csv":
		f, err := file()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return pattern.LoadCSV(f)
	case "fits":
		f, err := file()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		img, err := pattern.LoadFITS(f)
		if err != nil {
			return nil, err
		}
		return pattern.Raster(img, pattern.DefaultLayout()), nil
	default:
		return nil, fmt.Errorf("unknown pattern %q, expected spiral, lissajous, stairs, csv or fits", name)
	}
}

// demo streams a pattern to the configured card and waits for it to drain.
// An interrupt stops the card.
func demo(c Config, args []string) error {
	if len(args) == 0 {
		args = []string{"spiral"}
	}
	reqs, err := loadPattern(args[0], args[1:])
	if err != nil {
		return err
	}
	s, closer, err := setup(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " " + args[0],
		SuffixAutoColon:   true,
		Message:           "starting",
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		return err
	}
	p := &stream.Pump{
		S:            s,
		Limiter:      newLimiter(c.RetryRate),
		FlushTimeout: util.SecsToDuration(c.FlushTimeout)}

	if err := spinner.Start(); err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		tick := time.NewTicker(100 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				if job := p.Job(); job != nil {
					st := job.Status()
					spinner.Message(fmt.Sprintf("%d/%d enqueued, %d refused", st.Enqueued, len(reqs), st.Refused))
				}
			}
		}
	}()
	start := time.Now()
	err = p.Run(ctx, stream.NewSliceSource(reqs))
	close(done)
	if err != nil {
		spinner.StopFailMessage(err.Error())
		spinner.StopFail()
		if ctx.Err() != nil {
			return s.Reset()
		}
		return err
	}
	spinner.StopMessage(fmt.Sprintf("%d requests in %v", len(reqs), time.Since(start).Round(time.Millisecond)))
	spinner.Stop()

	err = s.CheckStatus()
	var f *scheduler.DeviceFault
	if errors.As(err, &f) {
		return fmt.Errorf("card reports %s: %w", strings.Join(listcard.FaultNames(f.Code), ", "), err)
	}
	return err
}
