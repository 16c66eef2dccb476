package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/rs/zerolog"
)

type Runner struct {
	schedule Schedule
	cycler   Cycler
	done     chan struct{}
	progress chan RunnerProgress

	mu     sync.Mutex
	latest *RunnerProgress
}

type RunnerProgress struct {
	Runs      int64
	Failures  int64
	LastRunAt time.Time
	Summary   domain.CycleSummary
	Err       error
}

func NewRunner(schedule Schedule, cycler Cycler) *Runner {
	return &Runner{
		schedule: schedule,
		cycler:   cycler,
		done:     make(chan struct{}),
		progress: make(chan RunnerProgress, 100),
	}
}

func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Progress reports every finished cycle. Updates are dropped when nobody keeps up.
func (r *Runner) Progress() <-chan RunnerProgress {
	return r.progress
}

func (r *Runner) Latest() *RunnerProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		return nil
	}
	p := *r.latest
	return &p
}

// Run executes the cycle right away and then on every tick until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	logger := zerolog.Ctx(ctx)
	defer close(r.done)
	defer close(r.progress)

	ticker := time.NewTicker(r.schedule.Interval)
	defer ticker.Stop()

	var state RunnerProgress
	for {
		summary, err := r.cycler.RunCycle(ctx, r.schedule.Request)
		state.Runs++
		state.LastRunAt = summary.FinishedAt
		state.Summary = summary
		state.Err = err
		if err != nil {
			state.Failures++
			logger.Error().Err(err).Str("cycle", summary.ID).Msg("scheduled cycle failed")
		}
		r.publish(state)

		select {
		case <-ctx.Done():
			logger.Info().Int64("runs", state.Runs).Msg("schedule stopped")
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) publish(p RunnerProgress) {
	r.mu.Lock()
	r.latest = &p
	r.mu.Unlock()

	select {
	case r.progress <- p:
	default:
	}
}
