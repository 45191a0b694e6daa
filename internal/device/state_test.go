package device

import (
	"bytes"
	"errors"
	"sync"
	"testing"
)

func TestNewStateDefaults(t *testing.T) {
	s := NewState()
	if s.Mode() != ModeManual {
		t.Fatalf("expected manual, got %v", s.Mode())
	}
	if s.Axis() != (AxisPayload{}) {
		t.Fatalf("expected zero axis, got % X", s.Axis())
	}
}

func TestSetModeRoundTrip(t *testing.T) {
	s := NewState()
	for _, m := range Modes() {
		s.SetMode(m)
		if got := s.Mode(); got != m {
			t.Fatalf("set %v got %v", m, got)
		}
	}
}

func TestSetModeInvalidIsNoop(t *testing.T) {
	s := NewState()
	s.SetMode(ModeEmergency)
	for _, bad := range []Mode{4, 5, 0x7F, 0xFF} {
		s.SetMode(bad)
		if got := s.Mode(); got != ModeEmergency {
			t.Fatalf("invalid %d changed mode to %v", bad, got)
		}
	}
}

func TestSetAxisRoundTrip(t *testing.T) {
	s := NewState()
	in := []byte{0xFF, 0x38, 1, 2, 3, 4, 5, 6}
	s.SetAxis(in)
	got := s.Axis()
	if !bytes.Equal(got[:], in) {
		t.Fatalf("got % X want % X", got, in)
	}
	// the caller's slice must not alias the stored payload
	in[0] = 0
	if s.Axis()[0] != 0xFF {
		t.Fatalf("stored payload aliased caller slice")
	}
}

func TestSetAxisClampAndPad(t *testing.T) {
	s := NewState()
	s.SetAxis([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	if s.Axis() != (AxisPayload{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Fatalf("long payload not clamped: % X", s.Axis())
	}
	s.SetAxis([]byte{9})
	if s.Axis() != (AxisPayload{9}) {
		t.Fatalf("short payload not padded: % X", s.Axis())
	}
}

func TestStateConcurrentAccess(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				s.SetMode(Mode(j % 4))
				s.SetAxis([]byte{byte(i), byte(j)})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				m, _ := s.Snapshot()
				if !m.Valid() {
					t.Errorf("observed invalid mode %d", m)
					return
				}
				_ = s.Axis()
			}
		}()
	}
	wg.Wait()
}

func TestModeParsing(t *testing.T) {
	if m, err := ParseMode("Remote"); err != nil || m != ModeRemote {
		t.Fatalf("ParseMode remote: %v %v", m, err)
	}
	if _, err := ParseMode("turbo"); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	if m, err := ModeFromInt(3); err != nil || m != ModeOTA {
		t.Fatalf("ModeFromInt(3): %v %v", m, err)
	}
	for _, v := range []int{-1, 4, 256} {
		if _, err := ModeFromInt(v); !errors.Is(err, ErrInvalidMode) {
			t.Fatalf("ModeFromInt(%d) expected ErrInvalidMode, got %v", v, err)
		}
	}
	if Mode(9).String() != "mode(9)" || ModeOTA.String() != "ota" {
		t.Fatalf("unexpected String output")
	}
}

func TestSteeringPayload(t *testing.T) {
	p, err := SteeringPayload(-200)
	if err != nil {
		t.Fatalf("SteeringPayload: %v", err)
	}
	if p[0] != 0xFF || p[1] != 0x38 {
		t.Fatalf("expected FF 38, got % X", p[:2])
	}
	for _, b := range p[2:] {
		if b != 0 {
			t.Fatalf("trailing bytes must be zero: % X", p)
		}
	}
	if p.Steering() != -200 {
		t.Fatalf("decode got %d", p.Steering())
	}
	if _, err := SteeringPayload(1001); !errors.Is(err, ErrSteeringRange) {
		t.Fatalf("expected ErrSteeringRange, got %v", err)
	}
}
