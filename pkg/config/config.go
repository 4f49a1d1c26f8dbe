// Package config loads a Sekas node's startup configuration: the closed
// option set spec §6 defines (init/addr/join_list/cpu_nums/root.*/db.*/
// enable_proxy_service), read from an optional YAML file and overridden by
// whatever flags the caller actually set on the command line.
//
// Grounded on cuemby-warren/cmd/warren/apply.go's yaml.v3 usage for
// manifest application — Sekas reuses the same library for its own node
// config file — and cmd/warren/main.go's pattern of binding persistent
// flags at the root command and reading them back with cmd.Flags().Get*.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// RootConfig holds the root control plane's tuning knobs (spec §6
// `root.*`).
type RootConfig struct {
	HeartbeatIntervalMS  uint32 `yaml:"heartbeat_interval_ms"`
	LivenessThresholdSec uint32 `yaml:"liveness_threshold_sec"`
	ScheduleIntervalMS   uint32 `yaml:"schedule_interval_ms"`
}

// DBConfig holds the Group Engine's storage knobs (spec §6 `db.*`).
type DBConfig struct {
	DataDir string `yaml:"data_dir"`
}

// Config is one node's full startup configuration.
type Config struct {
	Init               bool     `yaml:"init"`
	Addr               string   `yaml:"addr"`
	JoinList           []string `yaml:"join_list"`
	CPUNums            uint32   `yaml:"cpu_nums"`
	Root               RootConfig `yaml:"root"`
	DB                 DBConfig   `yaml:"db"`
	EnableProxyService bool       `yaml:"enable_proxy_service"`
}

// defaults mirror the root scheduler's own MinInterval/MaxInterval-scale
// tuning (internal/root/schedule.go) and a generous liveness threshold, so
// a config file only needs to name what it wants to override.
func defaults() Config {
	return Config{
		CPUNums: 1,
		Root: RootConfig{
			HeartbeatIntervalMS:  3000,
			LivenessThresholdSec: 15,
			ScheduleIntervalMS:   200,
		},
		DB: DBConfig{DataDir: "./data"},
	}
}

// Load reads path (if non-empty and present) as YAML over the defaults,
// returning the defaults alone if path is empty.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// BindFlags registers the cobra flags that can override a loaded config's
// fields, the same persistent-flag-at-the-root-command shape
// cmd/warren/main.go uses for its global log-level/log-json flags.
func BindFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("init", false, "bootstrap a brand-new cluster on this node")
	cmd.Flags().String("addr", "", "this node's advertise address (HOST:PORT)")
	cmd.Flags().StringSlice("join", nil, "comma-separated addresses of existing cluster members to join through")
	cmd.Flags().String("data", "", "data directory for this node's engine/raft state")
	cmd.Flags().Uint32("cpu-nums", 0, "advertised capacity for this node")
	cmd.Flags().Bool("enable-proxy-service", false, "enable the client-facing proxy service")
	cmd.Flags().String("config", "", "path to a YAML config file")
}

// ApplyFlags overrides cfg's fields with any flag the caller explicitly
// set, leaving file-loaded or default values alone otherwise.
func ApplyFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("init") {
		cfg.Init, _ = flags.GetBool("init")
	}
	if flags.Changed("addr") {
		cfg.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("join") {
		cfg.JoinList, _ = flags.GetStringSlice("join")
	}
	if flags.Changed("data") {
		cfg.DB.DataDir, _ = flags.GetString("data")
	}
	if flags.Changed("cpu-nums") {
		cfg.CPUNums, _ = flags.GetUint32("cpu-nums")
	}
	if flags.Changed("enable-proxy-service") {
		cfg.EnableProxyService, _ = flags.GetBool("enable-proxy-service")
	}
}

// HeartbeatInterval/LivenessThreshold/ScheduleInterval convert the YAML's
// millisecond/second integer fields into time.Duration for callers wiring
// internal/root.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Root.HeartbeatIntervalMS) * time.Millisecond
}

func (c Config) LivenessThreshold() time.Duration {
	return time.Duration(c.Root.LivenessThresholdSec) * time.Second
}

func (c Config) ScheduleInterval() time.Duration {
	return time.Duration(c.Root.ScheduleIntervalMS) * time.Millisecond
}
