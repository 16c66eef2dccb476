package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/rs/zerolog"
)

// Cycler runs one remediation cycle.
type Cycler interface {
	RunCycle(ctx context.Context, req domain.CycleRequest) (domain.CycleSummary, error)
}

// Schedule runs the same cycle request every Interval until cancelled.
type Schedule struct {
	Name     string
	Interval time.Duration
	Request  domain.CycleRequest
}

func (s Schedule) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: schedule name is required", domain.ErrConfiguration)
	}
	if s.Interval <= 0 {
		return fmt.Errorf("%w: schedule %s: interval must be positive", domain.ErrConfiguration, s.Name)
	}
	if _, err := domain.ParseMode(string(s.Request.Mode)); err != nil {
		return fmt.Errorf("%w: schedule %s: %v", domain.ErrConfiguration, s.Name, err)
	}
	return nil
}

type Controller interface {
	Start(ctx context.Context, schedule Schedule) error
	Cancel(ctx context.Context, name string) error
}

type scheduleDescriptor struct {
	cancelFunc context.CancelFunc
	schedule   Schedule
	runner     *Runner
}

// Status is a point-in-time view of a running schedule.
type Status struct {
	Schedule Schedule
	Latest   *RunnerProgress
}

type DefaultController struct {
	cycler Cycler

	mu        sync.Mutex
	schedules map[string]scheduleDescriptor
}

func NewController(cycler Cycler) *DefaultController {
	return &DefaultController{
		cycler:    cycler,
		schedules: make(map[string]scheduleDescriptor),
	}
}

// Init starts the configured schedules.
func (ctrl *DefaultController) Init(ctx context.Context, schedules []Schedule) error {
	for _, s := range schedules {
		if err := ctrl.Start(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Start launches a schedule. The runner outlives the caller's context and stops only through
// Cancel or Close.
func (ctrl *DefaultController) Start(ctx context.Context, schedule Schedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()

	if _, ok := ctrl.schedules[schedule.Name]; ok {
		return fmt.Errorf("schedule already running: %s", schedule.Name)
	}

	logger := zerolog.Ctx(ctx).With().Str("schedule", schedule.Name).Logger()
	runCtx, cancel := context.WithCancel(logger.WithContext(context.WithoutCancel(ctx)))

	runner := NewRunner(schedule, ctrl.cycler)
	ctrl.schedules[schedule.Name] = scheduleDescriptor{
		cancelFunc: cancel,
		schedule:   schedule,
		runner:     runner,
	}

	go runner.Run(runCtx)
	logger.Info().Dur("interval", schedule.Interval).Str("mode", string(schedule.Request.Mode)).Msg("schedule started")
	return nil
}

func (ctrl *DefaultController) Cancel(ctx context.Context, name string) error {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()

	desc, ok := ctrl.schedules[name]
	if !ok {
		return fmt.Errorf("schedule not running: %s", name)
	}
	desc.cancelFunc()
	<-desc.runner.Done()

	delete(ctrl.schedules, name)
	zerolog.Ctx(ctx).Info().Str("schedule", name).Msg("schedule cancelled")
	return nil
}

// Close cancels every schedule and waits for the runners to stop.
func (ctrl *DefaultController) Close() {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()

	for name, desc := range ctrl.schedules {
		desc.cancelFunc()
		<-desc.runner.Done()
		delete(ctrl.schedules, name)
	}
}

func (ctrl *DefaultController) List() []Status {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()

	out := make([]Status, 0, len(ctrl.schedules))
	for _, desc := range ctrl.schedules {
		out = append(out, Status{Schedule: desc.schedule, Latest: desc.runner.Latest()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Schedule.Name < out[j].Schedule.Name })
	return out
}
