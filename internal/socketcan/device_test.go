//go:build linux

package socketcan

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/kstaniek/go-tcan-bench/internal/bus"
	"github.com/kstaniek/go-tcan-bench/internal/can"
)

func TestOpenMissingInterfaceIsDeviceNotFound(t *testing.T) {
	_, err := Open("tcanbench-missing0", can.DefaultReceiveFilter)
	if !errors.Is(err, bus.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
	r := bus.NewResource(Opener("tcanbench-missing0"))
	if err := r.Use(func(bus.Writer) error { return nil }); !errors.Is(err, bus.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound through Resource, got %v", err)
	}
}

func TestEncodeFrameLayout(t *testing.T) {
	var buf [16]byte
	fr := can.NewExtended(0x08000066, []byte{0, 0, 0, 0, 0x08, 0, 0, 0x66})
	encodeFrame(buf[:], fr)
	if id := binary.LittleEndian.Uint32(buf[0:4]); id != 0x88000066 {
		t.Fatalf("can_id = 0x%X", id)
	}
	if buf[4] != 8 || buf[5] != 0 || buf[12] != 0x08 || buf[15] != 0x66 {
		t.Fatalf("unexpected layout % X", buf)
	}
}
