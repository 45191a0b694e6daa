package main

import (
	"fmt"
	"log/slog"

	"github.com/kstaniek/go-tcan-bench/internal/bus"
	"github.com/kstaniek/go-tcan-bench/internal/can"
	"github.com/kstaniek/go-tcan-bench/internal/serial"
	"github.com/kstaniek/go-tcan-bench/internal/socketcan"
)

// Hooks for tests (overridden in unit tests).
var (
	openSocketCAN = socketcan.Opener
	openSerial    = serial.Opener
)

// virtualBusLimit bounds the frame log of the in-process bus.
const virtualBusLimit = 4096

// newOpener selects the backend named by cfg.iface. Nothing is opened here;
// every bus.Resource.Use opens and closes the device itself.
func newOpener(cfg *appConfig, l *slog.Logger) (bus.Opener, error) {
	switch cfg.iface {
	case "socketcan":
		l.Info("backend", "interface", cfg.iface, "channel", cfg.channel, "filter", fmt.Sprintf("%+v", can.DefaultReceiveFilter))
		return openSocketCAN(cfg.channel, can.DefaultReceiveFilter), nil
	case "serial":
		l.Info("backend", "interface", cfg.iface, "channel", cfg.channel, "baud", cfg.baud)
		return openSerial(cfg.channel, cfg.baud), nil
	case "virtual":
		l.Info("backend", "interface", cfg.iface, "channel", cfg.channel)
		return bus.NewVirtual(virtualBusLimit).Open, nil
	default:
		return nil, fmt.Errorf("unknown interface %q (use socketcan|serial|virtual)", cfg.iface)
	}
}
