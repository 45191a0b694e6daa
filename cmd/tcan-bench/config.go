package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v6"

	"github.com/kstaniek/go-tcan-bench/internal/config"
)

type appConfig struct {
	configPath      string
	listenAddr      string
	iface           string
	channel         string
	deviceID        uint
	baud            int
	logFormat       string
	logLevel        string
	metricsAddr     string
	hubBuffer       int
	hubPolicy       string
	maxMonitors     int
	logMetricsEvery time.Duration
	beacons         bool
	mdnsEnable      bool
	mdnsName        string
}

// envConfig lists the TCAN_BENCH_* overrides. It is pre-filled with the
// current values, so variables that are unset leave them alone.
type envConfig struct {
	Listen             string        `env:"TCAN_BENCH_LISTEN"`
	Interface          string        `env:"TCAN_BENCH_INTERFACE"`
	Channel            string        `env:"TCAN_BENCH_CHANNEL"`
	DeviceID           uint          `env:"TCAN_BENCH_DEVICE_ID"`
	Baud               int           `env:"TCAN_BENCH_BAUD"`
	LogFormat          string        `env:"TCAN_BENCH_LOG_FORMAT"`
	LogLevel           string        `env:"TCAN_BENCH_LOG_LEVEL"`
	Metrics            string        `env:"TCAN_BENCH_METRICS"`
	HubBuffer          int           `env:"TCAN_BENCH_HUB_BUFFER"`
	HubPolicy          string        `env:"TCAN_BENCH_HUB_POLICY"`
	MaxMonitors        int           `env:"TCAN_BENCH_MAX_MONITORS"`
	LogMetricsInterval time.Duration `env:"TCAN_BENCH_LOG_METRICS_INTERVAL"`
	Beacons            bool          `env:"TCAN_BENCH_BEACONS"`
	MDNSEnable         bool          `env:"TCAN_BENCH_MDNS_ENABLE"`
	MDNSName           string        `env:"TCAN_BENCH_MDNS_NAME"`
}

func defaultAppConfig() *appConfig {
	return &appConfig{
		listenAddr: net.JoinHostPort(config.DefaultHost, strconv.Itoa(config.DefaultPort)),
		iface:      "socketcan",
		channel:    "can0",
		deviceID:   1,
		baud:       config.DefaultBaud,
		logFormat:  "text",
		logLevel:   "info",
		hubBuffer:  256,
		hubPolicy:  "drop",
		beacons:    true,
	}
}

// parseServeFlags resolves the serve settings. Precedence: flag > env > config file > default.
func parseServeFlags(args []string, stderr io.Writer) (*appConfig, error) {
	cfg := defaultAppConfig()
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.configPath, "config", "", "bench-cfg-v1 YAML configuration file")
	fs.StringVar(&cfg.listenAddr, "listen", cfg.listenAddr, "Control API listen address (host:port)")
	fs.StringVar(&cfg.iface, "interface", cfg.iface, "CAN interface: socketcan|serial|virtual")
	fs.StringVar(&cfg.channel, "channel", cfg.channel, "CAN channel (netdev name, serial device path or virtual name)")
	fs.UintVar(&cfg.deviceID, "device-id", cfg.deviceID, "Device-id offset added to controller command identifiers")
	fs.IntVar(&cfg.baud, "baud", cfg.baud, "Serial baud rate (interface=serial)")
	fs.StringVar(&cfg.logFormat, "log-format", cfg.logFormat, "Log format: text|json")
	fs.StringVar(&cfg.logLevel, "log-level", cfg.logLevel, "Log level: debug|info|warn|error")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	fs.IntVar(&cfg.hubBuffer, "hub-buffer", cfg.hubBuffer, "Per-monitor frame buffer")
	fs.StringVar(&cfg.hubPolicy, "hub-policy", cfg.hubPolicy, "Monitor backpressure policy: drop|kick")
	fs.IntVar(&cfg.maxMonitors, "max-monitors", 0, "Maximum simultaneous monitor clients (0 = unlimited)")
	fs.DurationVar(&cfg.logMetricsEvery, "log-metrics-interval", 0, "If >0, periodically log metrics counters")
	fs.BoolVar(&cfg.beacons, "beacons", cfg.beacons, "Send the diagnostic beacon list every 500ms")
	fs.BoolVar(&cfg.mdnsEnable, "mdns-enable", false, "Advertise the control API via mDNS")
	fs.StringVar(&cfg.mdnsName, "mdns-name", "", "mDNS instance name (default tcan-bench-<hostname>)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	// Track which flags were explicitly set to give them precedence over env and file.
	setFlags := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	if cfg.configPath != "" {
		file, err := config.Load(cfg.configPath)
		if err != nil {
			return nil, err
		}
		applyFileConfig(cfg, file, setFlags)
	}
	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		return nil, fmt.Errorf("environment override error: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

func applyFileConfig(c *appConfig, f *config.Config, set map[string]struct{}) {
	if _, ok := set["listen"]; !ok {
		c.listenAddr = net.JoinHostPort(f.Host, strconv.Itoa(f.Port))
	}
	if f.TCAN == nil {
		return
	}
	if _, ok := set["interface"]; !ok {
		c.iface = f.TCAN.Interface
	}
	if _, ok := set["channel"]; !ok {
		c.channel = f.TCAN.Channel
	}
	if _, ok := set["device-id"]; !ok && f.TCAN.DeviceID != nil {
		c.deviceID = uint(*f.TCAN.DeviceID)
	}
	if _, ok := set["baud"]; !ok && f.TCAN.Baud > 0 {
		c.baud = f.TCAN.Baud
	}
}

// applyEnvOverrides maps TCAN_BENCH_* environment variables onto c unless the
// corresponding flag was explicitly set.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	e := envConfig{
		Listen:             c.listenAddr,
		Interface:          c.iface,
		Channel:            c.channel,
		DeviceID:           c.deviceID,
		Baud:               c.baud,
		LogFormat:          c.logFormat,
		LogLevel:           c.logLevel,
		Metrics:            c.metricsAddr,
		HubBuffer:          c.hubBuffer,
		HubPolicy:          c.hubPolicy,
		MaxMonitors:        c.maxMonitors,
		LogMetricsInterval: c.logMetricsEvery,
		Beacons:            c.beacons,
		MDNSEnable:         c.mdnsEnable,
		MDNSName:           c.mdnsName,
	}
	if err := env.Parse(&e); err != nil {
		return err
	}
	apply := func(flagName string, fn func()) {
		if _, ok := set[flagName]; !ok {
			fn()
		}
	}
	apply("listen", func() { c.listenAddr = e.Listen })
	apply("interface", func() { c.iface = e.Interface })
	apply("channel", func() { c.channel = e.Channel })
	apply("device-id", func() { c.deviceID = e.DeviceID })
	apply("baud", func() { c.baud = e.Baud })
	apply("log-format", func() { c.logFormat = e.LogFormat })
	apply("log-level", func() { c.logLevel = e.LogLevel })
	apply("metrics-addr", func() { c.metricsAddr = e.Metrics })
	apply("hub-buffer", func() { c.hubBuffer = e.HubBuffer })
	apply("hub-policy", func() { c.hubPolicy = e.HubPolicy })
	apply("max-monitors", func() { c.maxMonitors = e.MaxMonitors })
	apply("log-metrics-interval", func() { c.logMetricsEvery = e.LogMetricsInterval })
	apply("beacons", func() { c.beacons = e.Beacons })
	apply("mdns-enable", func() { c.mdnsEnable = e.MDNSEnable })
	apply("mdns-name", func() { c.mdnsName = e.MDNSName })
	return nil
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to open devices or listeners.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.iface {
	case "socketcan", "serial", "virtual":
	default:
		return fmt.Errorf("invalid interface: %s", c.iface)
	}
	if c.channel == "" {
		return errors.New("channel must not be empty")
	}
	switch c.hubPolicy {
	case "drop", "kick":
	default:
		return fmt.Errorf("invalid hub-policy: %s", c.hubPolicy)
	}
	if c.hubBuffer <= 0 {
		return fmt.Errorf("hub-buffer must be > 0 (got %d)", c.hubBuffer)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.deviceID > 0xF {
		return fmt.Errorf("device-id must be within 0..15 (got %d)", c.deviceID)
	}
	if c.maxMonitors < 0 {
		return fmt.Errorf("max-monitors must be >= 0")
	}
	if c.logMetricsEvery < 0 {
		return fmt.Errorf("log-metrics-interval must be >= 0")
	}
	if _, _, err := net.SplitHostPort(c.listenAddr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.listenAddr, err)
	}
	return nil
}
