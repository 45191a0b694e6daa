package bus

import (
	"sync"

	"github.com/kstaniek/go-tcan-bench/internal/can"
)

// Virtual is an in-process bus. Every handle it opens appends written frames
// to a shared log; it is the "virtual" interface used without hardware and
// the recording fake in tests.
type Virtual struct {
	mu      sync.Mutex
	frames  []can.Frame
	limit   int
	opens   int
	closes  int
	active  int
	overlap bool

	// OpenErr / WriteErr, when set, are returned by the next Open / WriteFrame.
	OpenErr  error
	WriteErr error
}

// NewVirtual creates a virtual bus keeping at most limit frames (0 = unlimited).
func NewVirtual(limit int) *Virtual { return &Virtual{limit: limit} }

// Open satisfies Opener.
func (v *Virtual) Open() (Handle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.OpenErr; err != nil {
		return nil, err
	}
	v.opens++
	v.active++
	if v.active > 1 {
		v.overlap = true
	}
	return &virtualHandle{v: v}, nil
}

// Frames returns a copy of the recorded frames.
func (v *Virtual) Frames() []can.Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]can.Frame(nil), v.frames...)
}

// Reset clears recorded frames and counters.
func (v *Virtual) Reset() {
	v.mu.Lock()
	v.frames, v.opens, v.closes, v.overlap = nil, 0, 0, false
	v.mu.Unlock()
}

// Stats reports open/close counts and whether two handles were ever open at once.
func (v *Virtual) Stats() (opens, closes int, overlapped bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.opens, v.closes, v.overlap
}

type virtualHandle struct {
	v      *Virtual
	closed bool
}

func (h *virtualHandle) WriteFrame(fr can.Frame) error {
	v := h.v
	v.mu.Lock()
	defer v.mu.Unlock()
	if h.closed {
		return ErrReleased
	}
	if err := v.WriteErr; err != nil {
		return err
	}
	v.frames = append(v.frames, fr)
	if v.limit > 0 && len(v.frames) > v.limit {
		v.frames = append(v.frames[:0], v.frames[len(v.frames)-v.limit:]...)
	}
	return nil
}

func (h *virtualHandle) Close() error {
	v := h.v
	v.mu.Lock()
	defer v.mu.Unlock()
	if !h.closed {
		h.closed = true
		v.closes++
		v.active--
	}
	return nil
}
