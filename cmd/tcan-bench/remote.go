package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/caarlos0/env/v6"

	"github.com/kstaniek/go-tcan-bench/internal/can"
	"github.com/kstaniek/go-tcan-bench/internal/client"
	"github.com/kstaniek/go-tcan-bench/internal/config"
	"github.com/kstaniek/go-tcan-bench/internal/device"
)

// remoteFlags are shared by every command that talks to a running server.
type remoteFlags struct {
	server     string
	configPath string
	timeout    time.Duration
	logLevel   string
}

type remoteEnv struct {
	Server string `env:"TCAN_BENCH_SERVER"`
}

func newRemoteFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *remoteFlags) {
	rf := &remoteFlags{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&rf.server, "server", "", "Control API address host:port (default from -config, TCAN_BENCH_SERVER or localhost:8080)")
	fs.StringVar(&rf.configPath, "config", "", "bench-cfg-v1 YAML configuration file")
	fs.DurationVar(&rf.timeout, "timeout", 5*time.Second, "Request timeout")
	fs.StringVar(&rf.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	return fs, rf
}

// addr resolves the server address: flag > env > config file > default.
func (rf *remoteFlags) addr() (string, error) {
	if rf.server != "" {
		return rf.server, nil
	}
	var e remoteEnv
	if err := env.Parse(&e); err != nil {
		return "", err
	}
	if e.Server != "" {
		return e.Server, nil
	}
	if rf.configPath != "" {
		cfg, err := config.Load(rf.configPath)
		if err != nil {
			return "", err
		}
		return cfg.Addr(), nil
	}
	return net.JoinHostPort(config.DefaultHost, strconv.Itoa(config.DefaultPort)), nil
}

func (rf *remoteFlags) client() (*client.Client, error) {
	addr, err := rf.addr()
	if err != nil {
		return nil, err
	}
	return client.New(addr, client.WithTimeout(rf.timeout))
}

// parseRemote parses args and builds the client. ok is false when the caller
// should return code.
func parseRemote(fs *flag.FlagSet, rf *remoteFlags, args []string, stderr io.Writer) (c *client.Client, code int, ok bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, 0, false
		}
		return nil, 2, false
	}
	setupLogger("text", rf.logLevel, stderr)
	c, err := rf.client()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return nil, 2, false
	}
	return c, 0, true
}

func runEnterRemote(args []string, stdout, stderr io.Writer) int {
	fs, rf := newRemoteFlagSet("enter-remote", stderr)
	c, code, ok := parseRemote(fs, rf, args, stderr)
	if !ok {
		return code
	}
	if err := c.EnterMode(context.Background(), device.ModeRemote); err != nil {
		fmt.Fprintf(stderr, "Failed to enter remote control mode: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "Entered remote control mode")
	return 0
}

func runSet(args []string, stdout, stderr io.Writer) int {
	fs, rf := newRemoteFlagSet("set", stderr)
	mode := fs.String("mode", "", "Switch to the specified mode: manual|remote")
	steering := fs.Int("steering", 0, "Steering value in [-1000, 1000]")
	c, code, ok := parseRemote(fs, rf, args, stderr)
	if !ok {
		return code
	}
	steeringSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "steering" {
			steeringSet = true
		}
	})
	if *mode == "" && !steeringSet {
		fmt.Fprintln(stderr, "No options specified")
		return 0
	}
	ctx := context.Background()
	if *mode != "" {
		m, err := device.ParseMode(*mode)
		if err != nil || (m != device.ModeManual && m != device.ModeRemote) {
			fmt.Fprintf(stderr, "Invalid mode %q (want manual|remote)\n", *mode)
			return 2
		}
		if err := c.EnterMode(ctx, m); err != nil {
			fmt.Fprintf(stderr, "Failed to enter %s mode: %v\n", m, err)
			return 1
		}
		fmt.Fprintf(stdout, "Entered %s mode\n", m)
	}
	if steeringSet {
		if err := c.SetSteering(ctx, *steering); err != nil {
			if errors.Is(err, device.ErrSteeringRange) {
				fmt.Fprintln(stderr, "Invalid steering value")
				return 2
			}
			fmt.Fprintf(stderr, "Failed to set steering: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Set steering to %d\n", *steering)
	}
	return 0
}

func runAutocal(args []string, stdout, stderr io.Writer) int {
	fs, rf := newRemoteFlagSet("autocal", stderr)
	c, code, ok := parseRemote(fs, rf, args, stderr)
	if !ok {
		return code
	}
	if err := c.Autocal(context.Background()); err != nil {
		fmt.Fprintf(stderr, "Failed to initiate autocal: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "Autocal initiated")
	return 0
}

func runState(args []string, stdout, stderr io.Writer) int {
	fs, rf := newRemoteFlagSet("state", stderr)
	asJSON := fs.Bool("json", false, "Print raw JSON")
	c, code, ok := parseRemote(fs, rf, args, stderr)
	if !ok {
		return code
	}
	st, err := c.State(context.Background())
	if err != nil {
		fmt.Fprintf(stderr, "Failed to read state: %v\n", err)
		return 1
	}
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(st)
		return 0
	}
	axis := make([]byte, len(st.Axis))
	for i, v := range st.Axis {
		axis[i] = byte(v)
	}
	fmt.Fprintf(stdout, "mode:   %s (%d)\naxis:   % X\nqueued: %d\n", st.ModeName, st.Mode, axis, st.QueueDepth)
	return 0
}

// runMonitor prints every frame the server writes, candump style, until interrupted.
func runMonitor(args []string, stdout, stderr io.Writer) int {
	fs, rf := newRemoteFlagSet("monitor", stderr)
	c, code, ok := parseRemote(fs, rf, args, stderr)
	if !ok {
		return code
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := c.Monitor(ctx, func(fr can.Frame) {
		fmt.Fprintf(stdout, "%s  %s\n", time.Now().Format("15:04:05.000"), fr)
	})
	if err != nil {
		fmt.Fprintf(stderr, "monitor: %v\n", err)
		return 1
	}
	return 0
}
