package control

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kstaniek/go-tcan-bench/internal/bus"
	"github.com/kstaniek/go-tcan-bench/internal/command"
	"github.com/kstaniek/go-tcan-bench/internal/device"
	"github.com/kstaniek/go-tcan-bench/internal/logging"
)

func TestRunReturnsNilOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx,
			func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() },
			func(ctx context.Context) error { <-ctx.Done(); return nil },
		)
	}()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// A missing bus seen by any task ends every task and surfaces as fatal.
func TestRunPropagatesDeviceNotFound(t *testing.T) {
	v := bus.NewVirtual(0)
	r := bus.NewResource(v.Open)
	st := device.NewState()
	q := command.NewQueue(nil)

	b := NewBroadcaster(st, r, 0, WithPeriod(time.Millisecond), WithBroadcasterLogger(logging.Discard()))
	d := NewDispatcher(q, r, 0, logging.Discard())
	a := NewAnnouncer(r, time.Hour, logging.Discard())

	v.OpenErr = fmt.Errorf("%w: socketcan can0", bus.ErrDeviceNotFound)
	done := make(chan error, 1)
	go func() { done <- Run(context.Background(), b.Run, d.Run, a.Run) }()

	select {
	case err := <-done:
		if !IsFatal(err) {
			t.Fatalf("expected fatal error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fatal bus error did not stop the task group")
	}
}

func TestIsFatal(t *testing.T) {
	if IsFatal(nil) || IsFatal(bus.ErrIO) || IsFatal(errors.New("x")) {
		t.Fatal("non-fatal error classified fatal")
	}
	if !IsFatal(fmt.Errorf("wrap: %w", bus.ErrDeviceNotFound)) {
		t.Fatal("wrapped ErrDeviceNotFound not fatal")
	}
}
