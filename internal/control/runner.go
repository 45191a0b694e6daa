package control

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/kstaniek/go-tcan-bench/internal/bus"
)

// Task is a long-running activity. It returns nil once ctx is done.
type Task func(ctx context.Context) error

// Run starts every task and waits for all of them. The first task to fail
// cancels the rest and its error is returned; cancellation itself is not an error.
func Run(ctx context.Context, tasks ...Task) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		t := t
		g.Go(func() error {
			err := t(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// IsFatal reports whether err must stop the process.
func IsFatal(err error) bool { return errors.Is(err, bus.ErrDeviceNotFound) }
