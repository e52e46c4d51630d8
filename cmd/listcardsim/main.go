// Command listcardsim serves a simulated list card over TCP with the
// telegram protocol, for developing against scanlab without hardware.
//
// It is configured from the environment:
//
//	LISTCARDSIM_ADDR      listen address, default :2006
//	LISTCARDSIM_MODE      double or ring, default ring
//	LISTCARDSIM_CAPACITY  slots per list, default 8192
//	LISTCARDSIM_PERIOD    seconds per slot, default 10e-6
package main

import (
	"log"
	"net"
	"os"
	"os/signal"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"

	"github.jpl.nasa.gov/bdube/scanlab/listcard"
	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
	"github.jpl.nasa.gov/bdube/scanlab/util"
)

const prefix = "LISTCARDSIM_"

// Config is the configuration of listcardsim
type Config struct {
	Addr     string  `koanf:"addr"`
	Mode     string  `koanf:"mode"`
	Capacity uint32  `koanf:"capacity"`
	Period   float64 `koanf:"period"`
}

func loadConfig() (Config, error) {
	k := koanf.New(".")
	c := Config{}
	if err := k.Load(structs.Provider(Config{
		Addr:     ":2006",
		Mode:     "ring",
		Capacity: 8192,
		Period:   10e-6}, "koanf"), nil); err != nil {
		return c, err
	}
	err := k.Load(env.Provider(prefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, prefix))
	}), nil)
	if err != nil {
		return c, err
	}
	err = k.Unmarshal("", &c)
	return c, err
}

func main() {
	c, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	mode, err := scheduler.ParseMode(c.Mode)
	if err != nil {
		log.Fatal(err)
	}
	sim := listcard.NewSim(listcard.SimConfig{
		Mode:     mode,
		Capacity: c.Capacity,
		Period:   util.SecsToDuration(c.Period)})
	defer sim.Close()

	ln, err := net.Listen("tcp", c.Addr)
	if err != nil {
		log.Fatal(err)
	}
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		<-sig
		ln.Close()
	}()
	log.Printf("simulating a %s list card of %d slots at %s", mode, c.Capacity, ln.Addr())
	if err := listcard.Serve(ln, sim); err != nil {
		log.Fatal(err)
	}
	log.Printf("executed %d requests", len(sim.Executed()))
}
