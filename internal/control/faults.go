package control

import (
	"log/slog"

	"github.com/kstaniek/go-tcan-bench/internal/metrics"
)

// faultEvery limits repeated failure logs while a bus stays broken.
const faultEvery = 100

// faultLog logs the first failure of a streak, every faultEvery-th one after
// that, and the recovery. Every failure is counted.
type faultLog struct {
	logger *slog.Logger
	event  string
	label  string
	streak int
}

func (f *faultLog) fail(err error) {
	f.streak++
	metrics.IncError(f.label)
	if f.streak == 1 || f.streak%faultEvery == 0 {
		f.logger.Warn(f.event, "error", err, "consecutive", f.streak)
	}
}

func (f *faultLog) ok() {
	if f.streak > 0 {
		f.logger.Info(f.event+"_recovered", "failed", f.streak)
		f.streak = 0
	}
}
