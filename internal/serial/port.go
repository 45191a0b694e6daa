package serial

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"syscall"
	"time"

	"github.com/tarm/serial"

	"github.com/kstaniek/go-tcan-bench/internal/bus"
	"github.com/kstaniek/go-tcan-bench/internal/can"
)

// Port abstracts tarm/serial for testability.
type Port interface {
	io.Writer
	Close() error
}

// openPort is a test hook.
var openPort = func(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}

// Device writes CAN frames through a UART CAN adapter.
type Device struct {
	port Port
	name string
}

// Open opens the adapter on name. A missing device node yields
// bus.ErrDeviceNotFound; other faults bus.ErrIO.
func Open(name string, baud int) (*Device, error) {
	p, err := openPort(name, baud, 50*time.Millisecond)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENODEV) || errors.Is(err, syscall.ENXIO) {
			return nil, fmt.Errorf("%w: serial %q: %v", bus.ErrDeviceNotFound, name, err)
		}
		return nil, fmt.Errorf("%w: serial %q: %v", bus.ErrIO, name, err)
	}
	return &Device{port: p, name: name}, nil
}

func (d *Device) WriteFrame(fr can.Frame) error {
	buf := Encode(fr)
	n, err := d.port.Write(buf)
	if err != nil {
		return fmt.Errorf("%w: serial write %s: %v", bus.ErrIO, d.name, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: serial short write: %d/%d", bus.ErrIO, n, len(buf))
	}
	return nil
}

func (d *Device) Close() error { return d.port.Close() }

// Opener returns a bus.Opener that opens the adapter on every call.
func Opener(name string, baud int) bus.Opener {
	return func() (bus.Handle, error) {
		d, err := Open(name, baud)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}
