package device

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is the operating state asserted to the device by the heartbeat.
type Mode uint8

const (
	ModeManual Mode = iota
	ModeRemote
	ModeEmergency
	ModeOTA
)

// ErrInvalidMode is returned when a value is outside the enumerated modes.
var ErrInvalidMode = errors.New("invalid mode")

var modeNames = [...]string{
	ModeManual:    "manual",
	ModeRemote:    "remote",
	ModeEmergency: "emergency",
	ModeOTA:       "ota",
}

// Modes lists every valid mode in wire order.
func Modes() []Mode { return []Mode{ModeManual, ModeRemote, ModeEmergency, ModeOTA} }

// Valid reports whether m is one of the four enumerated modes.
func (m Mode) Valid() bool { return int(m) < len(modeNames) }

func (m Mode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
	return modeNames[m]
}

// ModeFromInt validates a wire/request integer.
func ModeFromInt(v int) (Mode, error) {
	if v < 0 || v >= len(modeNames) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidMode, v)
	}
	return Mode(v), nil
}

// ParseMode accepts a mode name (case-insensitive).
func ParseMode(s string) (Mode, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for i, n := range modeNames {
		if n == want {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}
