//go:build !linux

package socketcan

import (
	"fmt"

	"github.com/kstaniek/go-tcan-bench/internal/bus"
	"github.com/kstaniek/go-tcan-bench/internal/can"
)

// Opener reports the interface as absent on platforms without SocketCAN.
func Opener(iface string, filters ...can.Filter) bus.Opener {
	return func() (bus.Handle, error) {
		return nil, fmt.Errorf("%w: socketcan %q unsupported on this platform", bus.ErrDeviceNotFound, iface)
	}
}
