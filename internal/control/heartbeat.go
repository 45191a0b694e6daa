package control

import (
	"context"
	"log/slog"
	"time"

	"github.com/kstaniek/go-tcan-bench/internal/bus"
	"github.com/kstaniek/go-tcan-bench/internal/can"
	"github.com/kstaniek/go-tcan-bench/internal/device"
	"github.com/kstaniek/go-tcan-bench/internal/logging"
	"github.com/kstaniek/go-tcan-bench/internal/metrics"
)

// HeartbeatPeriod is how often mode and axis are re-asserted. The device
// reverts to its safe default when the heartbeat stops.
const HeartbeatPeriod = 100 * time.Millisecond

// Broadcaster periodically writes the mode heartbeat and the axis command.
type Broadcaster struct {
	state    *device.State
	bus      *bus.Resource
	deviceID uint32
	period   time.Duration
	logger   *slog.Logger
	faults   faultLog
}

type BroadcasterOption func(*Broadcaster)

func WithPeriod(d time.Duration) BroadcasterOption {
	return func(b *Broadcaster) {
		if d > 0 {
			b.period = d
		}
	}
}

func WithBroadcasterLogger(l *slog.Logger) BroadcasterOption {
	return func(b *Broadcaster) {
		if l != nil {
			b.logger = l
		}
	}
}

func NewBroadcaster(st *device.State, r *bus.Resource, deviceID uint32, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{state: st, bus: r, deviceID: deviceID, period: HeartbeatPeriod, logger: logging.L()}
	for _, o := range opts {
		o(b)
	}
	b.logger = b.logger.With("task", "heartbeat")
	b.faults = faultLog{logger: b.logger, event: "heartbeat_send_error", label: metrics.ErrHeartbeat}
	return b
}

// Run sends one heartbeat pair per period until ctx ends. Transient bus
// faults are logged and the loop goes on; ErrDeviceNotFound is returned.
func (b *Broadcaster) Run(ctx context.Context) error {
	t := time.NewTicker(b.period)
	defer t.Stop()
	b.logger.Info("heartbeat_start", "period", b.period, "device_id", b.deviceID)
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("heartbeat_stop")
			return nil
		case <-t.C:
		}
		if err := b.Tick(); err != nil {
			if IsFatal(err) {
				return err
			}
			b.faults.fail(err)
			continue
		}
		b.faults.ok()
	}
}

// Tick performs one broadcast: both frames within a single bus acquisition.
func (b *Broadcaster) Tick() error {
	mode := b.state.Mode()
	axis := b.state.Axis()
	metrics.SetMode(uint8(mode))

	hb := HeartbeatFrame(b.deviceID, mode)
	ax := AxisFrame(b.deviceID, axis)
	return b.bus.Use(func(w bus.Writer) error {
		if err := w.WriteFrame(hb); err != nil {
			return err
		}
		metrics.IncTx(metrics.StreamHeartbeat)
		if err := w.WriteFrame(ax); err != nil {
			return err
		}
		metrics.IncTx(metrics.StreamAxis)
		return nil
	})
}

// HeartbeatFrame carries the mode value in byte 0.
func HeartbeatFrame(deviceID uint32, m device.Mode) can.Frame {
	return can.NewStandard(can.Address(can.IDControllerSys, deviceID), []byte{byte(m), 0, 0, 0, 0, 0, 0, 0})
}

// AxisFrame carries the axis payload verbatim.
func AxisFrame(deviceID uint32, a device.AxisPayload) can.Frame {
	return can.NewStandard(can.Address(can.IDControllerCANAxis, deviceID), a[:])
}
