// Package api holds the JSON bodies exchanged by the control server and client.
package api

import (
	"encoding/hex"
	"fmt"

	"github.com/kstaniek/go-tcan-bench/internal/can"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Status is the body of every mutating endpoint's response.
type Status struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// State is returned by GET /state. Axis is a list of numbers so that it
// reads the same way set_axis accepts it.
type State struct {
	Mode       uint8  `json:"mode"`
	ModeName   string `json:"mode_name"`
	Axis       []int  `json:"axis"`
	QueueDepth int    `json:"queue_depth"`
}

// Frame is one transmitted frame on the monitor feed.
type Frame struct {
	ID       uint32 `json:"id"`
	Extended bool   `json:"extended,omitempty"`
	Data     string `json:"data"` // hex
}

func FromFrame(fr can.Frame) Frame {
	return Frame{ID: fr.ID(), Extended: fr.Extended(), Data: hex.EncodeToString(fr.Payload())}
}

func (f Frame) CAN() (can.Frame, error) {
	data, err := hex.DecodeString(f.Data)
	if err != nil {
		return can.Frame{}, fmt.Errorf("frame %X: %w", f.ID, err)
	}
	if len(data) > can.MaxLen {
		return can.Frame{}, fmt.Errorf("frame %X: %d data bytes", f.ID, len(data))
	}
	if f.Extended {
		return can.NewExtended(f.ID, data), nil
	}
	return can.NewStandard(f.ID, data), nil
}
