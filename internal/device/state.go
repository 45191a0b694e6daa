package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// AxisPayload is the pre-encoded 8-byte axis command re-sent with every heartbeat.
type AxisPayload [8]byte

// Steering limits accepted by SteeringPayload.
const (
	SteeringMin = -1000
	SteeringMax = 1000
)

var ErrSteeringRange = errors.New("steering out of range")

// AxisFromBytes copies b into a payload, truncating past 8 bytes and zero padding short input.
func AxisFromBytes(b []byte) AxisPayload {
	var p AxisPayload
	copy(p[:], b)
	return p
}

// SteeringPayload encodes a signed steering value big-endian into bytes 0-1.
func SteeringPayload(v int) (AxisPayload, error) {
	var p AxisPayload
	if v < SteeringMin || v > SteeringMax {
		return p, fmt.Errorf("%w: %d not in [%d, %d]", ErrSteeringRange, v, SteeringMin, SteeringMax)
	}
	binary.BigEndian.PutUint16(p[0:2], uint16(int16(v)))
	return p, nil
}

// Steering decodes bytes 0-1 as a signed big-endian value.
func (p AxisPayload) Steering() int { return int(int16(binary.BigEndian.Uint16(p[0:2]))) }

// State is the device control state shared by the request handlers and the bus tasks.
// All methods are safe for concurrent use; each field is replaced as a whole.
type State struct {
	mu   sync.RWMutex
	mode Mode
	axis AxisPayload
}

// NewState returns a state in manual mode with a zero axis payload.
func NewState() *State { return &State{mode: ModeManual} }

func (s *State) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode replaces the mode. Values outside the enumeration are ignored.
func (s *State) SetMode(m Mode) {
	if !m.Valid() {
		return
	}
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// Axis returns a copy of the current payload.
func (s *State) Axis() AxisPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.axis
}

// SetAxis replaces the payload verbatim, clamped or zero padded to 8 bytes.
func (s *State) SetAxis(b []byte) {
	p := AxisFromBytes(b)
	s.mu.Lock()
	s.axis = p
	s.mu.Unlock()
}

// Snapshot reads both fields under one lock.
func (s *State) Snapshot() (Mode, AxisPayload) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode, s.axis
}
