package control

import (
	"context"
	"log/slog"
	"sort"

	"github.com/kstaniek/go-tcan-bench/internal/bus"
	"github.com/kstaniek/go-tcan-bench/internal/can"
	"github.com/kstaniek/go-tcan-bench/internal/command"
	"github.com/kstaniek/go-tcan-bench/internal/logging"
	"github.com/kstaniek/go-tcan-bench/internal/metrics"
)

// builder renders a command into the frames that carry it.
type builder func(deviceID uint32) []can.Frame

var commands = map[command.Token]builder{
	command.Autocal: autocalFrames,
}

// autocal: custom-1 group, 0xFF01 big-endian in bytes 2..3.
func autocalFrames(deviceID uint32) []can.Frame {
	return []can.Frame{
		can.NewStandard(can.Address(can.IDControllerCustom1, deviceID), []byte{0, 0, 0xFF, 0x01, 0, 0, 0, 0}),
	}
}

// Commands lists the tokens the dispatcher knows, sorted.
func Commands() []command.Token {
	out := make([]command.Token, 0, len(commands))
	for tok := range commands {
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Known reports whether tok has a frame mapping.
func Known(tok command.Token) bool {
	_, ok := commands[tok]
	return ok
}

// Dispatcher drains the command queue in order and writes each command to the bus.
type Dispatcher struct {
	queue    *command.Queue
	bus      *bus.Resource
	deviceID uint32
	logger   *slog.Logger
}

func NewDispatcher(q *command.Queue, r *bus.Resource, deviceID uint32, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.L()
	}
	return &Dispatcher{queue: q, bus: r, deviceID: deviceID, logger: logger.With("task", "dispatcher")}
}

// Run dequeues until ctx ends. Unknown tokens and transient bus faults are
// logged and skipped; ErrDeviceNotFound is returned. Tokens still queued at
// shutdown are abandoned.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		tok, err := d.queue.Dequeue(ctx)
		if err != nil {
			d.logger.Info("dispatcher_stop", "abandoned", d.queue.Len())
			return nil
		}
		if err := d.Dispatch(tok); err != nil {
			if IsFatal(err) {
				return err
			}
			metrics.IncError(metrics.ErrDispatch)
			d.logger.Warn("command_send_error", "command", string(tok), "error", err)
		}
	}
}

// Dispatch writes one command. An unknown token is reported and yields nil.
func (d *Dispatcher) Dispatch(tok command.Token) error {
	build, ok := commands[tok]
	if !ok {
		metrics.IncUnknownCommand()
		d.logger.Warn("command_unknown", "command", string(tok))
		return nil
	}
	frames := build(d.deviceID)
	err := d.bus.Use(func(w bus.Writer) error {
		for _, fr := range frames {
			if err := w.WriteFrame(fr); err != nil {
				return err
			}
			metrics.IncTx(metrics.StreamCommand)
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.IncDispatched()
	d.logger.Info("command_dispatched", "command", string(tok), "frames", len(frames))
	return nil
}
