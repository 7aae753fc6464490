package render

import (
	"context"
	"time"

	"serial-plotter/internal/capture"
	"serial-plotter/internal/metrics"
)

// DefaultPeriod is the interval between firings.
const DefaultPeriod = 500 * time.Millisecond

// Source supplies a point-in-time copy of the sliding window.
type Source interface {
	SnapshotWindow() []capture.Sample
}

// Surface receives drawing instructions. Draw is called from the scheduler's
// goroutine and must hand work off to the host's UI thread itself.
type Surface interface {
	Draw(Instruction)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(Instruction)

func (f SurfaceFunc) Draw(in Instruction) { f(in) }

type Options struct {
	Period        time.Duration
	VisiblePoints int
	Margin        float64
	Metrics       *metrics.Metrics
}

// Scheduler periodically snapshots the window and draws it.
type Scheduler struct {
	src     Source
	surface Surface
	opts    Options
}

func NewScheduler(src Source, surface Surface, opts Options) *Scheduler {
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	if opts.VisiblePoints <= 0 {
		opts.VisiblePoints = DefaultVisiblePoints
	}
	return &Scheduler{src: src, surface: surface, opts: opts}
}

// Fire draws the current window once. It reports false when the window was
// empty and nothing was drawn.
func (s *Scheduler) Fire() bool {
	in, ok := Compute(s.src.SnapshotWindow(), s.opts.VisiblePoints, s.opts.Margin)
	if !ok {
		return false
	}
	s.surface.Draw(in)
	s.opts.Metrics.Rendered()
	return true
}

// Run fires every period until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Fire()
		}
	}
}
