//go:build linux

package socketcan

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/kstaniek/go-tcan-bench/internal/bus"
	"github.com/kstaniek/go-tcan-bench/internal/can"
)

// Device is a raw CAN socket bound to one interface.
type Device struct {
	fd    int
	iface string
}

// Open binds a CAN_RAW socket to iface and installs the receive filters.
// A missing interface yields bus.ErrDeviceNotFound; other faults bus.ErrIO.
func Open(iface string, filters ...can.Filter) (*Device, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("%w: socketcan %q: %v", bus.ErrDeviceNotFound, iface, err)
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("%w: socket(AF_CAN): %v", bus.ErrIO, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 0); err != nil {
		// Older kernels may not know this option; ignore ENOPROTOOPT
		if err != unix.ENOPROTOOPT {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("%w: disable CAN FD: %v", bus.ErrIO, err)
		}
	}
	if len(filters) > 0 {
		raw := make([]unix.CanFilter, len(filters))
		for i, f := range filters {
			id, mask := f.Raw()
			raw[i] = unix.CanFilter{Id: id, Mask: mask}
		}
		if err := unix.SetsockoptCanRawFilter(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, raw); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("%w: CAN_RAW_FILTER: %v", bus.ErrIO, err)
		}
	}
	sa := &unix.SockaddrCAN{Ifindex: ifi.Index}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		if errors.Is(err, unix.ENODEV) {
			return nil, fmt.Errorf("%w: bind(can@%s): %v", bus.ErrDeviceNotFound, iface, err)
		}
		return nil, fmt.Errorf("%w: bind(can@%s): %v", bus.ErrIO, iface, err)
	}
	return &Device{fd: fd, iface: iface}, nil
}

func (d *Device) Close() error { return unix.Close(d.fd) }

// WriteFrame writes one classic CAN frame to the raw CAN socket.
func (d *Device) WriteFrame(fr can.Frame) error {
	var buf [unix.CAN_MTU]byte
	encodeFrame(buf[:], fr)
	n, err := unix.Write(d.fd, buf[:])
	if err != nil {
		return fmt.Errorf("%w: write can@%s: %v", bus.ErrIO, d.iface, err)
	}
	if n != unix.CAN_MTU {
		return fmt.Errorf("%w: short write: %d", bus.ErrIO, n)
	}
	return nil
}

// encodeFrame fills buf with struct can_frame (linux/can.h):
//
//	can_id  u32   [0:4]  (includes EFF/RTR/ERR flags)
//	can_dlc u8    [4]
//	pad     3B    [5:8]
//	data    [8]   [8:16]
//
// The kernel expects host byte order; common Linux archs are little-endian.
func encodeFrame(buf []byte, fr can.Frame) {
	binary.LittleEndian.PutUint32(buf[0:4], fr.CANID)
	buf[4] = fr.Len
	copy(buf[8:16], fr.Data[:fr.Len])
}

// Opener returns a bus.Opener that opens iface with filters on every call.
func Opener(iface string, filters ...can.Filter) bus.Opener {
	return func() (bus.Handle, error) {
		d, err := Open(iface, filters...)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}
