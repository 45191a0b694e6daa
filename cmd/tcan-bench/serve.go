package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/kstaniek/go-tcan-bench/internal/bus"
	"github.com/kstaniek/go-tcan-bench/internal/command"
	"github.com/kstaniek/go-tcan-bench/internal/control"
	"github.com/kstaniek/go-tcan-bench/internal/device"
	"github.com/kstaniek/go-tcan-bench/internal/hub"
	"github.com/kstaniek/go-tcan-bench/internal/metrics"
	"github.com/kstaniek/go-tcan-bench/internal/server"
)

func runServe(args []string, _, stderr io.Writer) int {
	cfg, err := parseServeFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel, stderr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case s := <-sigCh:
			l.Info("shutdown_signal", "signal", s.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return serve(ctx, cfg, l, stderr)
}

// serve wires the state, queue, bus and tasks and runs them until ctx ends
// or a task fails. The return value is the process exit code.
func serve(ctx context.Context, cfg *appConfig, l *slog.Logger, stderr io.Writer) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	l.Info("build_info", "version", version, "commit", commit, "date", date)

	opener, err := newOpener(cfg, l)
	if err != nil {
		l.Error("backend_init_error", "error", err)
		return 1
	}
	policy, err := hub.ParsePolicy(cfg.hubPolicy)
	if err != nil {
		l.Warn("unknown_hub_policy", "policy", cfg.hubPolicy, "used", policy.String())
	}
	h := hub.New(hub.WithPolicy(policy), hub.WithBufSize(cfg.hubBuffer))
	l.Info("hub_config", "policy", policy.String(), "buffer", cfg.hubBuffer)

	st := device.NewState()
	q := command.NewQueue(metrics.SetQueueDepth)
	res := bus.NewResource(opener, bus.WithTap(h.Publish), bus.WithLogger(l))
	deviceID := uint32(cfg.deviceID)

	broadcaster := control.NewBroadcaster(st, res, deviceID, control.WithBroadcasterLogger(l))
	dispatcher := control.NewDispatcher(q, res, deviceID, l)
	srv := server.NewServer(
		server.WithListenAddr(cfg.listenAddr),
		server.WithState(st),
		server.WithQueue(q),
		server.WithHub(h),
		server.WithLogger(l),
		server.WithMaxMonitors(cfg.maxMonitors),
	)
	tasks := []control.Task{broadcaster.Run, dispatcher.Run, srv.Serve}
	if cfg.beacons {
		tasks = append(tasks, control.NewAnnouncer(res, control.BeaconPeriod, l).Run)
	}

	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	// Start mDNS advertisement once listener is ready.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if !cfg.mdnsEnable {
			return
		}
		select {
		case <-srv.Ready():
		case <-ctx.Done():
			return
		}
		var port int
		if _, p, err := net.SplitHostPort(srv.Addr()); err == nil {
			port, _ = strconv.Atoi(p)
		}
		cleanupMDNS, err := startMDNS(ctx, cfg, port)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
			return
		}
		l.Info("mdns_started", "service", mdnsServiceType, "name", mdnsInstance(cfg), "port", port)
		<-ctx.Done()
		cleanupMDNS()
	}()

	// Ready when the API listener is bound and context not cancelled.
	metrics.SetReadinessFunc(func() bool {
		select {
		case <-srv.Ready():
		default:
			return false
		}
		return ctx.Err() == nil
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	err = control.Run(ctx, tasks...)
	cancel()
	wg.Wait()
	switch {
	case err == nil:
		l.Info("shutdown_complete")
		return 0
	case control.IsFatal(err):
		l.Error("bus_device_not_found", "interface", cfg.iface, "channel", cfg.channel, "error", err)
		fmt.Fprintf(stderr, "No %s device '%s' found.\n", cfg.iface, cfg.channel)
		return 1
	default:
		l.Error("serve_error", "error", err)
		return 1
	}
}
