package remediation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/services/actuation"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Settings struct {
	ActionTimeout time.Duration
	// Parallelism bounds how many resources are remediated at once. Actions of one resource
	// always run one after another.
	Parallelism int
}

func DefaultSettings() Settings {
	return Settings{
		ActionTimeout: 30 * time.Second,
		Parallelism:   4,
	}
}

func (s Settings) Validate() error {
	if s.ActionTimeout <= 0 {
		return fmt.Errorf("%w: action timeout must be positive", domain.ErrConfiguration)
	}
	if s.Parallelism < 1 {
		return fmt.Errorf("%w: parallelism must be at least 1", domain.ErrConfiguration)
	}
	return nil
}

// Gate brackets every action. Admit runs before the action and may refuse it, in which case it
// fills in the action's recorded result. Record runs after the action reached a terminal result.
type Gate interface {
	Admit(ctx context.Context, action *domain.RemediationAction) (bool, error)
	Record(ctx context.Context, action domain.RemediationAction) error
}

type Executor struct {
	actuator actuation.Actuator
	settings Settings
}

func NewExecutor(actuator actuation.Actuator, settings Settings) (*Executor, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if actuator == nil {
		return nil, fmt.Errorf("%w: no actuator configured", domain.ErrConfiguration)
	}
	return &Executor{actuator: actuator, settings: settings}, nil
}

// Execute runs a plan and returns the actions with their terminal results, in plan order.
// Failures never abort other resources; a failed action blocks the remaining actions of its
// resource.
func (x *Executor) Execute(ctx context.Context, plan Plan, gate Gate) []domain.RemediationAction {
	actions := make([]domain.RemediationAction, len(plan.Actions))
	copy(actions, plan.Actions)

	var g errgroup.Group
	g.SetLimit(x.settings.Parallelism)
	for _, idx := range byResource(actions) {
		g.Go(func() error {
			x.runResource(ctx, actions, idx, gate)
			return nil
		})
	}
	_ = g.Wait()
	return actions
}

// byResource groups action indexes per resource, keeping plan order inside each group.
func byResource(actions []domain.RemediationAction) [][]int {
	var groups [][]int
	pos := make(map[string]int)
	for i, a := range actions {
		p, ok := pos[a.ResourceID]
		if !ok {
			p = len(groups)
			pos[a.ResourceID] = p
			groups = append(groups, nil)
		}
		groups[p] = append(groups[p], i)
	}
	return groups
}

func (x *Executor) runResource(ctx context.Context, actions []domain.RemediationAction, idx []int, gate Gate) {
	logger := zerolog.Ctx(ctx)
	blockedBy := ""

	defer func() {
		if r := recover(); r != nil {
			for _, i := range idx {
				if !actions[i].Result.Terminal() {
					actions[i].Result = domain.ResultFailed
					actions[i].Note = fmt.Sprintf("panic during remediation: %v", r)
				}
			}
			logger.Error().Interface("panic", r).Str("resource", actions[idx[0]].ResourceID).Msg("remediation panicked")
		}
	}()

	for _, i := range idx {
		a := &actions[i]
		if blockedBy != "" {
			a.Result = domain.ResultSkipped
			a.Note = "blocked by failed " + blockedBy
			x.record(ctx, gate, *a)
			continue
		}

		ok, err := gate.Admit(ctx, a)
		if err != nil {
			a.Result = domain.ResultFailed
			a.Note = fmt.Sprintf("intent not recorded: %v", err)
			blockedBy = string(a.Kind)
			logger.Error().Err(err).Str("action", a.ID).Msg("refusing to act without audit intent")
			continue
		}
		if !ok {
			if a.Result == domain.ResultFailed {
				blockedBy = string(a.Kind)
			}
			continue
		}

		x.run(ctx, a)
		x.record(ctx, gate, *a)
		if a.Result == domain.ResultFailed {
			blockedBy = string(a.Kind)
		}
	}
}

func (x *Executor) record(ctx context.Context, gate Gate, a domain.RemediationAction) {
	if err := gate.Record(ctx, a); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("action", a.ID).Msg("failed to record action outcome")
	}
}

func (x *Executor) run(ctx context.Context, a *domain.RemediationAction) {
	if a.DryRun {
		a.Result = domain.ResultSkipped
		a.Note = "dry-run"
		return
	}
	if err := ctx.Err(); err != nil {
		a.Result = domain.ResultSkipped
		a.Note = fmt.Sprintf("cycle cancelled: %v", err)
		return
	}

	resp, err := x.invoke(ctx, a)
	switch {
	case errors.Is(err, domain.ErrActuationTimeout):
		a.Result = domain.ResultFailed
		a.Note = err.Error()
	case err != nil:
		a.Result = domain.ResultFailed
		a.Note = fmt.Errorf("%w: %v", domain.ErrActuationFailure, err).Error()
	default:
		switch resp.Result {
		case domain.ResultApplied, domain.ResultSkipped:
			a.Result = resp.Result
			a.Note = resp.Diagnostic
		case domain.ResultFailed:
			a.Result = domain.ResultFailed
			a.Note = fmt.Errorf("%w: %s", domain.ErrActuationFailure, resp.Diagnostic).Error()
		default:
			a.Result = domain.ResultFailed
			a.Note = fmt.Errorf("%w: actuator returned result %q", domain.ErrActuationFailure, resp.Result).Error()
		}
	}

	zerolog.Ctx(ctx).Info().
		Str("action", a.ID).
		Str("resource", a.ResourceID).
		Str("kind", string(a.Kind)).
		Str("result", string(a.Result)).
		Str("note", a.Note).
		Msg("remediation action finished")
}

// invoke calls the actuator under the per-action timeout. A call that does not return in time is
// abandoned and reported as a timeout.
func (x *Executor) invoke(ctx context.Context, a *domain.RemediationAction) (actuation.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, x.settings.ActionTimeout)
	defer cancel()

	type reply struct {
		resp actuation.Response
		err  error
	}
	replies := make(chan reply, 1)
	req := actuation.Request{
		ActionID:   a.ID,
		ResourceID: a.ResourceID,
		Kind:       a.Kind,
		Params:     a.Params,
		DryRun:     a.DryRun,
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				replies <- reply{err: fmt.Errorf("actuator panic: %v", r)}
			}
		}()
		resp, err := x.actuator.Actuate(callCtx, req)
		replies <- reply{resp: resp, err: err}
	}()

	select {
	case r := <-replies:
		if r.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return r.resp, fmt.Errorf("%w: no answer within %s", domain.ErrActuationTimeout, x.settings.ActionTimeout)
		}
		return r.resp, r.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return actuation.Response{}, fmt.Errorf("%w: no answer within %s", domain.ErrActuationTimeout, x.settings.ActionTimeout)
		}
		return actuation.Response{}, callCtx.Err()
	}
}
