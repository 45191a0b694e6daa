package bus

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kstaniek/go-tcan-bench/internal/can"
	"github.com/kstaniek/go-tcan-bench/internal/logging"
	"github.com/kstaniek/go-tcan-bench/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	// ErrDeviceNotFound means the configured interface/channel does not exist.
	// Retrying cannot help; the operator has to intervene.
	ErrDeviceNotFound = errors.New("bus device not found")
	// ErrIO covers every other open, write or close fault.
	ErrIO = errors.New("bus io")
	// ErrReleased is returned by a Writer used after its scope ended.
	ErrReleased = errors.New("bus handle released")
)

// Handle is an open connection to the physical medium.
// Implemented by the socketcan and serial backends and by fakes in tests.
type Handle interface {
	WriteFrame(can.Frame) error
	Close() error
}

// Opener opens the medium. Implementations wrap failures with ErrDeviceNotFound or ErrIO.
type Opener func() (Handle, error)

// Writer is the capability handed to a Use callback.
type Writer interface {
	WriteFrame(can.Frame) error
}

// Resource serializes all access to the bus: every Use opens the device,
// runs the callback, and closes the device before the next Use may start.
// No handle outlives a single Use call.
type Resource struct {
	mu     sync.Mutex
	open   Opener
	tap    func(can.Frame)
	logger *slog.Logger
}

type ResourceOption func(*Resource)

// WithTap registers fn to observe every successfully written frame.
func WithTap(fn func(can.Frame)) ResourceOption { return func(r *Resource) { r.tap = fn } }

func WithLogger(l *slog.Logger) ResourceOption {
	return func(r *Resource) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewResource(open Opener, opts ...ResourceOption) *Resource {
	r := &Resource{open: open, logger: logging.L()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Use acquires the bus for the duration of fn. The handle is closed on every
// exit path, including a panic in fn, before Use returns.
func (r *Resource) Use(fn func(Writer) error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, err := r.open()
	if err != nil {
		metrics.IncBusOpenFailure()
		metrics.IncError(metrics.ErrBusOpen)
		if !errors.Is(err, ErrDeviceNotFound) && !errors.Is(err, ErrIO) {
			err = fmt.Errorf("%w: open: %v", ErrIO, err)
		}
		return err
	}
	metrics.IncBusOpen()
	w := &scopedWriter{h: h, tap: r.tap}
	defer func() {
		w.release()
		if cerr := h.Close(); cerr != nil {
			metrics.IncError(metrics.ErrBusClose)
			r.logger.Debug("bus_close_error", "error", cerr)
			if err == nil {
				err = fmt.Errorf("%w: close: %v", ErrIO, cerr)
			}
		}
	}()
	return fn(w)
}

// scopedWriter forwards to the open handle until released.
type scopedWriter struct {
	h        Handle
	tap      func(can.Frame)
	released bool
}

func (w *scopedWriter) WriteFrame(fr can.Frame) error {
	if w.released {
		return ErrReleased
	}
	if err := w.h.WriteFrame(fr); err != nil {
		metrics.IncError(metrics.ErrBusWrite)
		if errors.Is(err, ErrIO) {
			return err
		}
		return fmt.Errorf("%w: write %s: %v", ErrIO, fr, err)
	}
	if w.tap != nil {
		w.tap(fr)
	}
	return nil
}

func (w *scopedWriter) release() { w.released = true }
