package cycle

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/de-tools/linkmind/pkg/adapters"
	"github.com/de-tools/linkmind/pkg/metrics"
	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/services/auditor"
	"github.com/de-tools/linkmind/pkg/services/ledger"
	"github.com/de-tools/linkmind/pkg/services/remediation"
	"github.com/de-tools/linkmind/pkg/services/rico"
	"github.com/de-tools/linkmind/pkg/services/roi"
	"github.com/de-tools/linkmind/pkg/store/workflow"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MalformedCounter reports how many malformed offense records intake has seen.
type MalformedCounter interface {
	Malformed() int64
}

type Dependencies struct {
	Ledger     *ledger.Ledger
	Docket     *rico.Docket
	Aggregator *rico.Aggregator
	Quantifier *roi.Quantifier
	Executor   *remediation.Executor
	Auditor    *auditor.Auditor

	// Optional.
	Runs    workflow.Store
	Intake  MalformedCounter
	Metrics *metrics.Metrics
	Clock   func() time.Time
}

// Controller runs remediation cycles. Cycles are serialized.
type Controller struct {
	deps Dependencies

	mu            sync.Mutex
	lastMalformed int64
}

func NewController(deps Dependencies) (*Controller, error) {
	switch {
	case deps.Ledger == nil:
		return nil, fmt.Errorf("%w: ledger is required", domain.ErrConfiguration)
	case deps.Docket == nil:
		return nil, fmt.Errorf("%w: docket is required", domain.ErrConfiguration)
	case deps.Aggregator == nil:
		return nil, fmt.Errorf("%w: aggregator is required", domain.ErrConfiguration)
	case deps.Quantifier == nil:
		return nil, fmt.Errorf("%w: quantifier is required", domain.ErrConfiguration)
	case deps.Executor == nil:
		return nil, fmt.Errorf("%w: executor is required", domain.ErrConfiguration)
	case deps.Auditor == nil:
		return nil, fmt.Errorf("%w: auditor is required", domain.ErrConfiguration)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Controller{deps: deps}, nil
}

// RunCycle evaluates the ledger, forms and prices cases, and executes the approved ones. A dry
// run works on a copy of the docket and never changes ledger state. The summary is returned
// even when the cycle fails; configuration problems abort it before anything is mutated.
func (ctrl *Controller) RunCycle(ctx context.Context, req domain.CycleRequest) (domain.CycleSummary, error) {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()

	now := ctrl.deps.Clock()
	summary := domain.CycleSummary{
		ID:        uuid.NewString(),
		Mode:      req.Mode,
		StartedAt: now,
	}
	logger := zerolog.Ctx(ctx).With().Str("cycle", summary.ID).Str("mode", string(req.Mode)).Logger()
	ctx = logger.WithContext(ctx)

	if err := ctrl.check(req); err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		summary.FinishedAt = ctrl.deps.Clock()
		logger.Error().Err(err).Msg("cycle aborted")
		return summary, err
	}

	if req.Mode == domain.ModeLive {
		report := ctrl.deps.Ledger.Evaluate(ctx, now)
		logger.Debug().Strs("redeemed", report.Redeemed).Strs("restored", report.Restored).Msg("time driven transitions applied")
	}

	docket := ctrl.deps.Docket
	if req.Mode == domain.ModeDryRun {
		docket = docket.Clone()
	}

	snapshot := ctrl.deps.Ledger.SnapshotConvicted(req.Scope)
	summary.ResourcesConvicted = len(snapshot)

	result, err := ctrl.deps.Aggregator.Aggregate(ctx, snapshot, docket, now)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		logger.Error().Err(err).Msg("aggregation failed")
	}
	summary.PendingResources = len(result.Pending)
	summary.CasesFormed = len(result.Formed)

	for _, c := range docket.Open() {
		if !ctrl.inScope(c, req.Scope) {
			continue
		}
		report := ctrl.processCase(ctx, c, req.Mode, docket, now)
		ctrl.tally(&summary, report, req.Mode)
	}

	if ctrl.deps.Intake != nil {
		malformed := ctrl.deps.Intake.Malformed()
		summary.MalformedOffenses = malformed - ctrl.lastMalformed
		ctrl.lastMalformed = malformed
	}
	summary.FinishedAt = ctrl.deps.Clock()
	ctrl.record(ctx, summary)

	logger.Info().
		Int("convicted", summary.ResourcesConvicted).
		Int("pending", summary.PendingResources).
		Int("cases", len(summary.Cases)).
		Int("applied", summary.ActionsApplied).
		Int("failed", summary.ActionsFailed).
		Int("skipped", summary.ActionsSkipped).
		Float64("savings", summary.TotalSavings).
		Msg("cycle finished")

	if len(summary.Errors) > 0 {
		return summary, fmt.Errorf("cycle finished with %d error(s): %s", len(summary.Errors), strings.Join(summary.Errors, "; "))
	}
	return summary, nil
}

func (ctrl *Controller) check(req domain.CycleRequest) error {
	if _, err := domain.ParseMode(string(req.Mode)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	if req.Scope != nil && req.Scope.Value != "" {
		if _, err := domain.ParseScopeLevel(req.Scope.Level.String()); err != nil {
			return fmt.Errorf("%w: scope: %v", domain.ErrConfiguration, err)
		}
	}
	if _, err := ctrl.deps.Quantifier.Table(); err != nil {
		return err
	}
	return nil
}

// inScope keeps a case when every member matches the filter.
func (ctrl *Controller) inScope(c domain.RICOCase, filter *domain.ScopeFilter) bool {
	if filter == nil || filter.Value == "" {
		return true
	}
	for _, id := range c.ResourceIDs {
		r, ok := ctrl.deps.Ledger.Resource(id)
		if !ok || !filter.Matches(r.Scope) {
			return false
		}
	}
	return true
}

func (ctrl *Controller) processCase(
	ctx context.Context,
	c domain.RICOCase,
	mode domain.Mode,
	docket *rico.Docket,
	now time.Time,
) (report domain.CaseReport) {
	logger := zerolog.Ctx(ctx).With().Str("case", c.ID).Logger()
	report.Case = c

	defer func() {
		if r := recover(); r != nil {
			report.Err = fmt.Sprintf("panic while handling case: %v", r)
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("case handling panicked")
		}
		if latest, ok := docket.Get(c.ID); ok {
			report.Case = latest
		}
	}()

	if c.Status == domain.CaseDraft {
		if reason := ctrl.staleMember(c); reason != "" {
			if err := docket.Reject(c.ID, reason); err != nil {
				report.Err = err.Error()
			}
			logger.Info().Str("reason", reason).Msg("rico case rejected")
			return report
		}

		if err := ctrl.deps.Quantifier.PriceCase(&c, now); err != nil {
			report.Err = err.Error()
			return report
		}
		if err := docket.Annotate(c.ID, c.Charges, c.Pricing); err != nil {
			report.Err = err.Error()
			return report
		}
		if err := docket.Approve(c.ID); err != nil {
			report.Err = err.Error()
			return report
		}
		c.Status = domain.CaseApproved
	}

	plan, err := remediation.NewPlan(c, mode)
	if err != nil {
		report.Err = err.Error()
		return report
	}
	report.Actions = ctrl.deps.Executor.Execute(ctx, plan, ctrl.deps.Auditor.Gate(mode))

	if _, err := ctrl.deps.Auditor.Conclude(ctx, c, mode, report.Actions, docket); err != nil {
		report.Err = err.Error()
	}
	return report
}

// staleMember names the first member that is no longer convicted.
func (ctrl *Controller) staleMember(c domain.RICOCase) string {
	for _, id := range c.ResourceIDs {
		r, ok := ctrl.deps.Ledger.Resource(id)
		if !ok {
			return fmt.Sprintf("member %s is unknown", id)
		}
		if r.Status != domain.StatusConvicted {
			return fmt.Sprintf("member %s is %s, no longer convicted", id, r.Status)
		}
	}
	return ""
}

func (ctrl *Controller) tally(summary *domain.CycleSummary, report domain.CaseReport, mode domain.Mode) {
	m := ctrl.deps.Metrics
	summary.Cases = append(summary.Cases, report)
	if report.Err != "" {
		summary.Errors = append(summary.Errors, fmt.Sprintf("case %s: %s", report.Case.ID, report.Err))
	}

	c := report.Case
	m.ObserveCase(string(mode), string(c.Status))
	if c.Status == domain.CaseRejected {
		summary.CasesRejected++
		return
	}
	if c.Pricing != nil {
		if summary.Currency == "" {
			summary.Currency = c.Pricing.Currency
		}
		summary.TotalSavings += c.Pricing.TotalSavings
		summary.UnpricedOffenses += c.Pricing.UnpricedCount
	}

	for _, a := range report.Actions {
		m.ObserveAction(string(mode), string(a.Kind), string(a.Result))
		switch a.Result {
		case domain.ResultApplied:
			summary.ActionsApplied++
			if a.Savings != nil && !a.DryRun {
				summary.RecoveredValue += *a.Savings
				m.ObserveSavings(a.Currency, *a.Savings)
			}
		case domain.ResultFailed:
			summary.ActionsFailed++
		case domain.ResultSkipped:
			summary.ActionsSkipped++
		}
	}
}

func (ctrl *Controller) record(ctx context.Context, summary domain.CycleSummary) {
	m := ctrl.deps.Metrics
	m.ObserveCycle(string(summary.Mode), summary.FinishedAt.Sub(summary.StartedAt))

	counts := make(map[string]int)
	for _, r := range ctrl.deps.Ledger.Resources() {
		counts[r.Status.String()]++
	}
	m.SetResourceCounts(counts)

	if ctrl.deps.Runs == nil {
		return
	}
	err := ctrl.deps.Runs.SaveRun(context.WithoutCancel(ctx), adapters.MapDomainCycleSummaryToStore(summary.ID, summary))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to save cycle run")
	}
}

// Docket exposes the live docket for read access.
func (ctrl *Controller) Docket() *rico.Docket {
	return ctrl.deps.Docket
}

// IsConfigurationError reports whether a cycle failed before touching any state.
func IsConfigurationError(err error) bool {
	return errors.Is(err, domain.ErrConfiguration)
}
