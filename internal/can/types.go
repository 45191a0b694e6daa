package can

import (
	"fmt"
	"strings"
)

// SocketCAN flag bits for can_id (same values as <linux/can.h>)
const (
	CAN_EFF_FLAG = 0x80000000
	CAN_RTR_FLAG = 0x40000000
	CAN_ERR_FLAG = 0x20000000
	CAN_SFF_MASK = 0x7FF
	CAN_EFF_MASK = 0x1FFFFFFF
)

// MaxLen is the classic CAN payload size. Every frame this service emits is full length.
const MaxLen = 8

// Frame is an outbound classic CAN frame.
// CANID carries the EFF flag in its upper bits like SocketCAN; Len is the
// payload length and only the first Len bytes of Data are meaningful.
//
// Frames are built fresh per send and passed by value.
type Frame struct {
	CANID uint32
	Len   uint8
	Data  [MaxLen]byte
}

// NewStandard builds an 11-bit identifier frame. Payloads longer than 8 bytes are truncated.
func NewStandard(id uint32, payload []byte) Frame {
	return newFrame(id&CAN_SFF_MASK, payload)
}

// NewExtended builds a 29-bit identifier frame. Payloads longer than 8 bytes are truncated.
func NewExtended(id uint32, payload []byte) Frame {
	return newFrame((id&CAN_EFF_MASK)|CAN_EFF_FLAG, payload)
}

func newFrame(canID uint32, payload []byte) Frame {
	f := Frame{CANID: canID}
	f.Len = uint8(copy(f.Data[:], payload))
	return f
}

// Extended reports whether the frame uses a 29-bit identifier.
func (f Frame) Extended() bool { return f.CANID&CAN_EFF_FLAG != 0 }

// ID returns the identifier without flag bits.
func (f Frame) ID() uint32 {
	if f.Extended() {
		return f.CANID & CAN_EFF_MASK
	}
	return f.CANID & CAN_SFF_MASK
}

// Payload returns the valid bytes of Data.
func (f Frame) Payload() []byte { return f.Data[:f.Len] }

// String renders candump style: "560#0102000000000000" or "08000001#...".
func (f Frame) String() string {
	var b strings.Builder
	if f.Extended() {
		fmt.Fprintf(&b, "%08X#", f.ID())
	} else {
		fmt.Fprintf(&b, "%03X#", f.ID())
	}
	for _, v := range f.Payload() {
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}

// Filter is a receive filter in SocketCAN terms: a frame passes when
// (frame_id & Mask) == (ID & Mask) and, for a standard filter, the frame is not extended.
type Filter struct {
	ID       uint32
	Mask     uint32
	Extended bool
}

// Raw returns the id/mask pair to hand to CAN_RAW_FILTER. The EFF flag is
// always part of the mask so that the filter pins the identifier width.
func (f Filter) Raw() (id, mask uint32) {
	id, mask = f.ID, f.Mask|CAN_EFF_FLAG
	if f.Extended {
		id |= CAN_EFF_FLAG
	}
	return id, mask
}

// Match applies the filter in software (used by backends without kernel filtering).
func (f Filter) Match(fr Frame) bool {
	id, mask := f.Raw()
	return fr.CANID&mask == id&mask
}
