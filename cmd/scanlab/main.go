package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/knadh/koanf"
	yml "gopkg.in/yaml.v2"

	"github.jpl.nasa.gov/bdube/scanlab/generichttp/scan"
	"github.jpl.nasa.gov/bdube/scanlab/jobrec"
	"github.jpl.nasa.gov/bdube/scanlab/util"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "scanlab.yml"
	k              *koanf.Koanf
)

func setupconfig() {
	var err error
	k, err = loadConfig(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
}

func root() {
	str := `scanlab streams vector and raster commands to galvo/laser scan cards and
exposes an HTTP interface to the stream

Usage:
	scanlab <command>

Commands:
	run
	demo [spiral|lissajous|stairs|csv <file>|fits <file>]
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `scanlab is amenable to configuration via its .yml file, scanlab.yml in the
working directory.  Any key may be overridden by an environment variable, e.g.
SCANLAB_SCHEDULER_MODE=ring or SCANLAB_DEVICE_ADDR=192.168.100.40:2006.
For a primer on YAML, see https://yaml.org/start.html

device.type selects the card:
	- sim     a simulated card in process, executing one slot per device.period seconds
	- tcp     a card or listcardsim at device.addr
	- serial  a card on the serial port device.addr at device.baud

scheduler.mode selects the buffering:
	- double  two lists of scheduler.capacity slots, filled and executed in alternation
	- ring    one list of scheduler.capacity slots used as a ring.  scheduler.startgap
	          and scheduler.loadgap have no defaults and must be tuned to the card
	          and host: loadgap < startgap, startgap + loadgap <= capacity
	          scheduler.checkmask, if set, is 2^n-1 and at most
	          capacity - startgap - loadgap - 1

The HTTP routes are served under root, see /endpoints once running.  POST
{"bool": true} to <root>/lock to refuse control requests from other clients.`
	fmt.Println(str)
}

func config() Config {
	c, err := unmarshal(k)
	if err != nil {
		log.Fatal(err)
	}
	return c
}

func mkconf() {
	c := config()
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := config()
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("scanlab version %v\n", Version)
}

func run() {
	c := config()
	setupLogging(c.LogFile)
	s, closer, err := setup(c)
	if err != nil {
		log.Fatal(err)
	}
	defer closer.Close()
	opts := scan.Options{
		Limiter:      newLimiter(c.RetryRate),
		FlushTimeout: util.SecsToDuration(c.FlushTimeout)}
	var rec *jobrec.Recorder
	if c.Archive != "" {
		rec = jobrec.New(c.Archive, "scan_")
		opts.Recorder = rec
	}
	ctrl := scan.NewController(s, opts)
	if rec != nil {
		jobrec.Inject(ctrl, rec)
	}
	mux := BuildMux(c, ctrl)
	log.Println("now listening for requests at ", c.Addr)
	log.Fatal(http.ListenAndServe(c.Addr, mux))
}

func rundemo(args []string) {
	c := config()
	setupLogging(c.LogFile)
	if err := demo(c, args); err != nil {
		log.Fatal(err)
	}
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "demo":
		rundemo(args[2:])
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
