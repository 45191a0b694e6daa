package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kstaniek/go-tcan-bench/internal/can"
	"github.com/kstaniek/go-tcan-bench/internal/command"
	"github.com/kstaniek/go-tcan-bench/internal/device"
	"github.com/kstaniek/go-tcan-bench/internal/hub"
	"github.com/kstaniek/go-tcan-bench/internal/logging"
	"github.com/kstaniek/go-tcan-bench/internal/server"
)

func newPair(t *testing.T) (*server.Server, *hub.Hub, *Client) {
	t.Helper()
	h := hub.New()
	s := server.NewServer(server.WithHub(h), server.WithFlushInterval(time.Millisecond), server.WithLogger(logging.Discard()))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	c, err := New(ts.URL, WithTimeout(2*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	return s, h, c
}

func TestClientMutations(t *testing.T) {
	s, _, c := newPair(t)
	ctx := context.Background()

	if err := c.EnterMode(ctx, device.ModeRemote); err != nil {
		t.Fatalf("EnterMode: %v", err)
	}
	if err := c.SetSteering(ctx, -200); err != nil {
		t.Fatalf("SetSteering: %v", err)
	}
	if err := c.Autocal(ctx); err != nil {
		t.Fatalf("Autocal: %v", err)
	}
	if err := c.Command(ctx, "zero axis"); err != nil {
		t.Fatalf("Command: %v", err)
	}

	if s.State.Mode() != device.ModeRemote {
		t.Fatalf("mode %s", s.State.Mode())
	}
	if a := s.State.Axis(); a[0] != 0xFF || a[1] != 0x38 {
		t.Fatalf("axis % X", a)
	}
	first, _ := s.Queue.TryDequeue()
	second, _ := s.Queue.TryDequeue()
	if first != command.Autocal || second != "zero axis" {
		t.Fatalf("queue %q %q", first, second)
	}

	st, err := c.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if st.ModeName != "remote" || st.Axis[1] != 0x38 {
		t.Fatalf("state %+v", st)
	}
}

func TestClientErrors(t *testing.T) {
	_, _, c := newPair(t)
	ctx := context.Background()
	err := c.EnterMode(ctx, device.Mode(9))
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}
	if err := c.SetSteering(ctx, 5000); !errors.Is(err, device.ErrSteeringRange) {
		t.Fatalf("expected ErrSteeringRange, got %v", err)
	}
	if err := c.SetAxis(ctx, make([]byte, 9)); !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus for long axis, got %v", err)
	}
}

func TestClientMonitor(t *testing.T) {
	_, h, c := newPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	got := make(chan can.Frame, 4)
	done := make(chan error, 1)
	go func() { done <- c.Monitor(ctx, func(fr can.Frame) { got <- fr }) }()

	for h.Count() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("monitor never subscribed")
		case <-time.After(time.Millisecond):
		}
	}
	want := can.NewStandard(0x550, []byte{0, 0, 0xFF, 0x01, 0, 0, 0, 0})
	h.Publish(want)
	select {
	case fr := <-got:
		if fr != want {
			t.Fatalf("got %s want %s", fr, want)
		}
	case <-ctx.Done():
		t.Fatal("no frame received")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Monitor: %v", err)
	}
}

func TestNewAcceptsHostPort(t *testing.T) {
	c, err := New("localhost:8080")
	if err != nil {
		t.Fatal(err)
	}
	if got := c.url("state"); got != "http://localhost:8080/state" {
		t.Fatalf("url %s", got)
	}
}
