package control

import (
	"context"
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/kstaniek/go-tcan-bench/internal/bus"
	"github.com/kstaniek/go-tcan-bench/internal/can"
	"github.com/kstaniek/go-tcan-bench/internal/logging"
	"github.com/kstaniek/go-tcan-bench/internal/metrics"
)

const BeaconPeriod = 500 * time.Millisecond

// Announcer writes the beacon identifier list once per period.
type Announcer struct {
	bus    *bus.Resource
	ids    []uint32
	period time.Duration
	logger *slog.Logger
	faults faultLog
}

// NewAnnouncer announces can.BeaconIDs. period <= 0 selects BeaconPeriod.
func NewAnnouncer(r *bus.Resource, period time.Duration, logger *slog.Logger) *Announcer {
	if period <= 0 {
		period = BeaconPeriod
	}
	if logger == nil {
		logger = logging.L()
	}
	logger = logger.With("task", "beacon")
	return &Announcer{
		bus:    r,
		ids:    can.BeaconIDs,
		period: period,
		logger: logger,
		faults: faultLog{logger: logger, event: "beacon_send_error", label: metrics.ErrBeacon},
	}
}

func (a *Announcer) Run(ctx context.Context) error {
	t := time.NewTicker(a.period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		if err := a.Tick(); err != nil {
			if IsFatal(err) {
				return err
			}
			a.faults.fail(err)
			continue
		}
		a.faults.ok()
	}
}

// Tick sends every beacon in order within one bus acquisition.
func (a *Announcer) Tick() error {
	return a.bus.Use(func(w bus.Writer) error {
		for _, id := range a.ids {
			if err := w.WriteFrame(BeaconFrame(id)); err != nil {
				return err
			}
			metrics.IncTx(metrics.StreamBeacon)
		}
		return nil
	})
}

// BeaconFrame is an extended frame whose payload is its own identifier, big-endian.
func BeaconFrame(id uint32) can.Frame {
	var p [8]byte
	binary.BigEndian.PutUint64(p[:], uint64(id))
	return can.NewExtended(id, p[:])
}
