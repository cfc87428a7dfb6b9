// Package config loads debughostd's service configuration the way the
// pack's MCP-server teacher wires spf13/cobra and spf13/viper: cobra
// supplies the CLI surface and flags, BindPFlags feeds viper, and viper
// resolves the effective value from flags, then the DEBUGHOST_-prefixed
// environment, then an optional YAML config file, then these defaults.
//
// Grounded on Scoutflo-kubernetes-mcp-server/pkg/kubernetes-mcp-server/cmd/root.go's
// init()/BindPFlags pairing, adapted from its single flag set into the
// full set of knobs debughostd's subsystems take as constructor arguments.
package config

import (
	"fmt"
	"strings"

	"github.com/cuemby/debughostd/pkg/apierr"
	"github.com/cuemby/debughostd/pkg/health"
	"github.com/cuemby/debughostd/pkg/ports"
	"github.com/cuemby/debughostd/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the fully resolved set of knobs every subsystem is
// constructed with.
type Config struct {
	// DataDir holds the JSON state files for the Project Registry and
	// Port Registry (projects.json, ports.json).
	DataDir string

	// PortRanges overrides the default per-tech TCP ranges.
	PortRanges []types.TechRange

	// Health carries the Health Monitor's interval/timeout/threshold
	// defaults, applied to every container unless a future per-project
	// override is introduced.
	Health health.Config

	// LogRingCapacity bounds the Log Collector's per-container ring
	// buffer (documents pkg/logs.RingCapacity; not yet threaded into the
	// collector's constructor, which still runs off that package
	// constant — see DESIGN.md).
	LogRingCapacity int

	// LogQueueDepth bounds each log/health subscription's delivery queue
	// (documents pkg/events.DefaultQueueDepth; same caveat as above).
	LogQueueDepth int

	// EngineSocket, if set, is passed to the engine adapter as its daemon
	// host (client.WithHost), taking precedence over DOCKER_HOST.
	EngineSocket string

	// LogLevel/LogJSON select zerolog's filter level and JSON vs console
	// writer.
	LogLevel string
	LogJSON  bool

	// MetricsAddr is the bind address for the Prometheus /metrics,
	// /health, /ready, and /live endpoints.
	MetricsAddr string
}

// Defaults returns Config populated with its baseline default values.
func Defaults() Config {
	return Config{
		DataDir:         "./debughostd-data",
		PortRanges:      ports.DefaultRanges(),
		Health:          health.DefaultConfig(),
		LogRingCapacity: 10000,
		LogQueueDepth:   1024,
		LogLevel:        "info",
		LogJSON:         false,
		MetricsAddr:     "127.0.0.1:9090",
	}
}

// BindFlags registers the persistent flags Load reads back through viper.
// Call once from the root command's init().
func BindFlags(cmd *cobra.Command) {
	d := Defaults()
	cmd.PersistentFlags().String("data-dir", d.DataDir, "Directory for registry and port state")
	cmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	cmd.PersistentFlags().String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Bool("log-json", d.LogJSON, "Output logs in JSON format")
	cmd.PersistentFlags().String("engine-socket", "", "Docker engine socket path (overrides DOCKER_HOST)")
	cmd.PersistentFlags().String("metrics-addr", d.MetricsAddr, "Bind address for metrics/health HTTP endpoints")
	cmd.PersistentFlags().Duration("health-interval", d.Health.Interval, "Time between health checks")
	cmd.PersistentFlags().Duration("health-timeout", d.Health.Timeout, "Per-check timeout")
	cmd.PersistentFlags().Int("health-unhealthy-threshold", d.Health.UnhealthyThreshold, "Consecutive failures before unhealthy")
	cmd.PersistentFlags().Int("health-healthy-threshold", d.Health.HealthyThreshold, "Consecutive successes before recovered")
	cmd.PersistentFlags().Duration("health-start-period", d.Health.StartPeriod, "Grace period before health checks begin")
	cmd.PersistentFlags().Int("log-ring-capacity", d.LogRingCapacity, "Per-container log ring buffer size")
	cmd.PersistentFlags().Int("log-queue-depth", d.LogQueueDepth, "Per-subscription log/health event queue depth")

	_ = viper.BindPFlags(cmd.PersistentFlags())
	viper.SetEnvPrefix("DEBUGHOST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// fileLayout is the shape of an optional YAML config file; only
// port_ranges is a structured section, since every other knob has a
// direct CLI/env equivalent viper already resolves.
type fileLayout struct {
	PortRanges []types.TechRange `yaml:"port_ranges"`
}

// Load resolves the effective Config: flags > DEBUGHOST_ env > the file
// named by --config (if any) > Defaults().
func Load() (Config, error) {
	cfg := Defaults()

	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return Config{}, apierr.Wrap(apierr.KindIO, "", fmt.Sprintf("failed to read config file %s", path), err)
		}
		var fl fileLayout
		if err := viper.UnmarshalKey("port_ranges", &fl.PortRanges); err == nil && len(fl.PortRanges) > 0 {
			cfg.PortRanges = fl.PortRanges
		}
	}

	if viper.IsSet("data-dir") {
		cfg.DataDir = viper.GetString("data-dir")
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	cfg.LogJSON = viper.GetBool("log-json")
	cfg.EngineSocket = viper.GetString("engine-socket")
	if v := viper.GetString("metrics-addr"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := viper.GetDuration("health-interval"); v > 0 {
		cfg.Health.Interval = v
	}
	if v := viper.GetDuration("health-timeout"); v > 0 {
		cfg.Health.Timeout = v
	}
	if v := viper.GetInt("health-unhealthy-threshold"); v > 0 {
		cfg.Health.UnhealthyThreshold = v
	}
	if v := viper.GetInt("health-healthy-threshold"); v > 0 {
		cfg.Health.HealthyThreshold = v
	}
	if v := viper.GetDuration("health-start-period"); v >= 0 && viper.IsSet("health-start-period") {
		cfg.Health.StartPeriod = v
	}
	if v := viper.GetInt("log-ring-capacity"); v > 0 {
		cfg.LogRingCapacity = v
	}
	if v := viper.GetInt("log-queue-depth"); v > 0 {
		cfg.LogQueueDepth = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects a Config that would make a subsystem misbehave rather
// than fail fast.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return apierr.New(apierr.KindValidation, "", "data-dir must not be empty")
	}
	for _, tr := range c.PortRanges {
		if tr.Min <= 0 || tr.Max < tr.Min {
			return apierr.New(apierr.KindValidation, "", fmt.Sprintf("invalid port range for tech %q", tr.Tech))
		}
	}
	if c.Health.Interval <= 0 || c.Health.Timeout <= 0 {
		return apierr.New(apierr.KindValidation, "", "health interval and timeout must be positive")
	}
	if c.Health.UnhealthyThreshold <= 0 || c.Health.HealthyThreshold <= 0 {
		return apierr.New(apierr.KindValidation, "", "health thresholds must be positive")
	}
	return nil
}

// PortRangeMap converts PortRanges into the map[string]TechRange shape
// pkg/registry.New and pkg/ports.New's range lookups key on.
func (c Config) PortRangeMap() map[string]types.TechRange {
	m := make(map[string]types.TechRange, len(c.PortRanges))
	for _, tr := range c.PortRanges {
		m[tr.Tech] = tr
	}
	return m
}
