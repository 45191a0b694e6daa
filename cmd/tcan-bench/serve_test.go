package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kstaniek/go-tcan-bench/internal/bus"
	"github.com/kstaniek/go-tcan-bench/internal/can"
	"github.com/kstaniek/go-tcan-bench/internal/logging"
)

func TestServeVirtualStopsCleanly(t *testing.T) {
	cfg := validConfig()
	cfg.iface = "virtual"
	cfg.listenAddr = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	var stderr bytes.Buffer
	go func() { done <- serve(ctx, cfg, logging.Discard(), &stderr) }()

	time.Sleep(250 * time.Millisecond)
	cancel()
	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("exit code %d stderr=%q", code, stderr.String())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestServeMissingDeviceExits(t *testing.T) {
	orig := openSocketCAN
	t.Cleanup(func() { openSocketCAN = orig })
	openSocketCAN = func(string, ...can.Filter) bus.Opener {
		return func() (bus.Handle, error) { return nil, bus.ErrDeviceNotFound }
	}
	cfg := validConfig()
	cfg.channel = "can9"
	cfg.listenAddr = "127.0.0.1:0"
	var stderr bytes.Buffer
	done := make(chan int, 1)
	go func() { done <- serve(context.Background(), cfg, logging.Discard(), &stderr) }()
	select {
	case code := <-done:
		if code != 1 {
			t.Fatalf("exit code %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve kept running without a device")
	}
	if !strings.Contains(stderr.String(), "No socketcan device 'can9' found.") {
		t.Fatalf("stderr=%q", stderr.String())
	}
}
