package main

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
	"github.jpl.nasa.gov/bdube/scanlab/util"
)

// EnvPrefix prefixes environment variables overriding the config file,
// e.g. SCANLAB_SCHEDULER_STARTGAP=512
const EnvPrefix = "SCANLAB_"

// DeviceSetup describes the list card
type DeviceSetup struct {
	// Type is sim, tcp or serial
	Type string `koanf:"type" yaml:"type"`

	// Addr is host:port for tcp or the port name (/dev/ttyS4, COM3) for serial
	Addr string `koanf:"addr" yaml:"addr"`

	// Baud is the serial baud rate
	Baud int `koanf:"baud" yaml:"baud"`

	// Period is the seconds the simulated card takes per slot
	Period float64 `koanf:"period" yaml:"period"`
}

// SchedulerSetup mirrors scheduler.Config in config file form
type SchedulerSetup struct {
	// Mode is double or ring
	Mode      string `koanf:"mode" yaml:"mode"`
	Capacity  uint32 `koanf:"capacity" yaml:"capacity"`
	StartGap  uint32 `koanf:"startgap" yaml:"startgap"`
	LoadGap   uint32 `koanf:"loadgap" yaml:"loadgap"`
	CheckMask uint32 `koanf:"checkmask" yaml:"checkmask"`

	// AutoStart lets the ring start an idle card on its own
	AutoStart bool `koanf:"autostart" yaml:"autostart"`

	// PollInterval and MaxPollInterval bound the drain polling, in seconds
	PollInterval    float64 `koanf:"pollinterval" yaml:"pollinterval"`
	MaxPollInterval float64 `koanf:"maxpollinterval" yaml:"maxpollinterval"`
}

// Config is the configuration of scanlab
type Config struct {
	// Addr is the address to listen at
	Addr string `koanf:"addr" yaml:"addr"`

	// Root is the URL the scan routes are served under
	Root string `koanf:"root" yaml:"root"`

	// LogFile, if not empty, receives a rotated copy of the log
	LogFile string `koanf:"logfile" yaml:"logfile"`

	// Archive, if not empty, is the folder every job's pattern is saved to
	Archive string `koanf:"archive" yaml:"archive"`

	// RetryRate is the rate enqueues are retried at under backpressure, Hz
	RetryRate float64 `koanf:"retryrate" yaml:"retryrate"`

	// FlushTimeout bounds a drain, in seconds.  Zero waits indefinitely.
	FlushTimeout float64 `koanf:"flushtimeout" yaml:"flushtimeout"`

	Device    DeviceSetup    `koanf:"device" yaml:"device"`
	Scheduler SchedulerSetup `koanf:"scheduler" yaml:"scheduler"`
}

// defaults leave the ring gaps at zero; they are tuned per installation
func defaults() Config {
	return Config{
		Addr:         ":8000",
		Root:         "scan",
		RetryRate:    1000,
		FlushTimeout: 60,
		Device: DeviceSetup{
			Type:   "sim",
			Baud:   115200,
			Period: 10e-6},
		Scheduler: SchedulerSetup{
			Mode:            "double",
			Capacity:        4000,
			AutoStart:       true,
			PollInterval:    0.001,
			MaxPollInterval: 0.1}}
}

func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", -1)
}

// loadConfig layers defaults, the file at path (which may be missing) and
// the environment
func loadConfig(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, err
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") && !strings.Contains(errtxt, "cannot find") { // file missing, who cares
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	return k, nil
}

func unmarshal(k *koanf.Koanf) (Config, error) {
	c := Config{}
	err := k.Unmarshal("", &c)
	return c, err
}

// SchedulerConfig converts the setup into a scheduler.Config
func (s SchedulerSetup) SchedulerConfig() (scheduler.Config, error) {
	mode, err := scheduler.ParseMode(s.Mode)
	if err != nil {
		return scheduler.Config{}, err
	}
	cfg := scheduler.Config{
		Mode:             mode,
		Capacity:         s.Capacity,
		StartGap:         s.StartGap,
		LoadGap:          s.LoadGap,
		CheckMask:        s.CheckMask,
		DisableAutoStart: !s.AutoStart,
		PollInterval:     util.SecsToDuration(s.PollInterval),
		MaxPollInterval:  util.SecsToDuration(s.MaxPollInterval)}
	return cfg, cfg.Validate()
}
