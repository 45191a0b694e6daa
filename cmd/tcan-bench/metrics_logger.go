package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-tcan-bench/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"bus_opens", snap.BusOpens,
					"bus_open_fails", snap.BusOpenFails,
					"heartbeat_tx", snap.HeartbeatTx,
					"axis_tx", snap.AxisTx,
					"command_tx", snap.CommandTx,
					"beacon_tx", snap.BeaconTx,
					"enqueued", snap.Enqueued,
					"dispatched", snap.Dispatched,
					"unknown", snap.Unknown,
					"queue_depth", snap.QueueDepth,
					"mode", snap.Mode,
					"requests", snap.Requests,
					"monitors", snap.MonitorClients,
					"monitor_drops", snap.MonitorDrops,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
