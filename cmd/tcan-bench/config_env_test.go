package main

import (
	"os"
	"testing"
	"time"
)

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := defaultAppConfig()

	os.Setenv("TCAN_BENCH_INTERFACE", "virtual")
	os.Setenv("TCAN_BENCH_DEVICE_ID", "7")
	os.Setenv("TCAN_BENCH_BEACONS", "false")
	os.Setenv("TCAN_BENCH_LOG_METRICS_INTERVAL", "5s")
	t.Cleanup(func() {
		os.Unsetenv("TCAN_BENCH_INTERFACE")
		os.Unsetenv("TCAN_BENCH_DEVICE_ID")
		os.Unsetenv("TCAN_BENCH_BEACONS")
		os.Unsetenv("TCAN_BENCH_LOG_METRICS_INTERVAL")
	})
	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.iface != "virtual" {
		t.Fatalf("expected interface override, got %s", base.iface)
	}
	if base.deviceID != 7 {
		t.Fatalf("expected device-id 7, got %d", base.deviceID)
	}
	if base.beacons {
		t.Fatalf("expected beacons disabled")
	}
	if base.logMetricsEvery != 5*time.Second {
		t.Fatalf("expected logMetricsEvery 5s got %v", base.logMetricsEvery)
	}
	// unset variables keep their current values
	if base.channel != "can0" || base.listenAddr != "localhost:8080" {
		t.Fatalf("unset env changed values: %+v", base)
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := &appConfig{baud: 115200}
	os.Setenv("TCAN_BENCH_BAUD", "230400")
	t.Cleanup(func() { os.Unsetenv("TCAN_BENCH_BAUD") })
	// Simulate user passed -baud flag (so env should be ignored)
	if err := applyEnvOverrides(base, map[string]struct{}{"baud": {}}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if base.baud != 115200 {
		t.Fatalf("expected baud unchanged 115200 got %d", base.baud)
	}
}

func TestApplyEnvOverrides_BadInt(t *testing.T) {
	base := &appConfig{hubBuffer: 256}
	os.Setenv("TCAN_BENCH_HUB_BUFFER", "notint")
	t.Cleanup(func() { os.Unsetenv("TCAN_BENCH_HUB_BUFFER") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad integer")
	}
}
