package auditor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/de-tools/linkmind/pkg/adapters"
	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/services/remediation"
	"github.com/de-tools/linkmind/pkg/store/audit"
	"github.com/de-tools/linkmind/pkg/store/savings"
	"github.com/rs/zerolog"
)

// Remediator is the part of the ledger the auditor drives.
type Remediator interface {
	MarkRemediated(ctx context.Context, resourceID string, at time.Time, reason string) error
}

// CaseCloser is the part of the docket the auditor drives.
type CaseCloser interface {
	MarkExecuted(id string, partial bool, at time.Time) error
}

// Auditor brackets every remediation action with intent and outcome entries and is the only
// component that moves resources to Remediated and cases to Executed.
type Auditor struct {
	trail   audit.Store
	savings savings.Store
	ledger  Remediator
	now     func() time.Time
}

func New(trail audit.Store, savingsStore savings.Store, ledger Remediator, now func() time.Time) *Auditor {
	if now == nil {
		now = time.Now
	}
	return &Auditor{
		trail:   trail,
		savings: savingsStore,
		ledger:  ledger,
		now:     now,
	}
}

// Gate returns the executor hook for one case run.
func (a *Auditor) Gate(mode domain.Mode) remediation.Gate {
	return &gate{auditor: a, mode: mode}
}

type gate struct {
	auditor *Auditor
	mode    domain.Mode
}

// Admit refuses live actions that already have a terminal outcome on the trail and records the
// intent of every other action before it runs.
func (g *gate) Admit(ctx context.Context, action *domain.RemediationAction) (bool, error) {
	// audit writes must land even when the cycle is being cancelled
	ctx = context.WithoutCancel(ctx)

	if !action.DryRun {
		prior, err := g.auditor.recordedOutcome(ctx, action.ID)
		if err != nil {
			return false, err
		}
		if prior != nil {
			action.Result = prior.Result
			action.Note = fmt.Sprintf("outcome already recorded at %s: %s", prior.Timestamp.Format(time.RFC3339), prior.Note)
			zerolog.Ctx(ctx).Info().
				Str("action", action.ID).
				Str("result", string(prior.Result)).
				Msg("action already executed, not re-entering")
			return false, nil
		}
	}

	_, err := g.auditor.append(ctx, domain.AuditEntry{
		Phase:      domain.AuditIntent,
		CaseID:     action.CaseID,
		ActionID:   action.ID,
		ResourceID: action.ResourceID,
		Action:     action.Kind,
		Mode:       g.mode,
		OffenseIDs: action.OffenseIDs,
		Note:       describeParams(action.Params),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *gate) Record(ctx context.Context, action domain.RemediationAction) error {
	ctx = context.WithoutCancel(ctx)

	entry, err := g.auditor.append(ctx, domain.AuditEntry{
		Phase:      domain.AuditOutcome,
		CaseID:     action.CaseID,
		ActionID:   action.ID,
		ResourceID: action.ResourceID,
		Action:     action.Kind,
		Mode:       g.mode,
		OffenseIDs: action.OffenseIDs,
		Result:     action.Result,
		Note:       action.Note,
	})
	if err != nil {
		return err
	}

	if action.DryRun || action.Result != domain.ResultApplied || action.Savings == nil || g.auditor.savings == nil {
		return nil
	}
	err = g.auditor.savings.Add(ctx, adapters.MapDomainSavingsToStore(domain.SavingsRecord{
		ActionID:   action.ID,
		CaseID:     action.CaseID,
		ResourceID: action.ResourceID,
		Action:     action.Kind,
		Amount:     *action.Savings,
		Currency:   action.Currency,
		RecordedAt: entry.Timestamp,
	}))
	if err != nil {
		return fmt.Errorf("record savings of action %s: %w", action.ID, err)
	}
	return nil
}

// Conclude settles a case once every action is terminal. In live mode each resource whose actions
// were all applied becomes Remediated, and the case becomes Executed, partial when any action
// failed. It reports whether the case was partial.
func (a *Auditor) Conclude(
	ctx context.Context,
	c domain.RICOCase,
	mode domain.Mode,
	actions []domain.RemediationAction,
	cases CaseCloser,
) (bool, error) {
	ctx = context.WithoutCancel(ctx)
	logger := zerolog.Ctx(ctx)

	partial := false
	perResource := make(map[string]bool)
	for _, act := range actions {
		if !act.Result.Terminal() {
			return false, fmt.Errorf("case %s: action %s is still %s", c.ID, act.ID, act.Result)
		}
		if act.Result == domain.ResultFailed {
			partial = true
		}
		applied, seen := perResource[act.ResourceID]
		perResource[act.ResourceID] = (applied || !seen) && act.Result == domain.ResultApplied
	}

	if mode != domain.ModeLive {
		return partial, nil
	}

	now := a.now()
	resources := make([]string, 0, len(perResource))
	for id := range perResource {
		resources = append(resources, id)
	}
	sort.Strings(resources)

	var errs []error
	for _, id := range resources {
		if !perResource[id] {
			continue
		}
		err := a.ledger.MarkRemediated(ctx, id, now, "remediated by case "+c.ID)
		if errors.Is(err, domain.ErrIllegalTransition) {
			logger.Warn().Err(err).Str("resource", id).Msg("resource no longer convicted, leaving status as is")
			continue
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	if err := cases.MarkExecuted(c.ID, partial, now); err != nil {
		errs = append(errs, err)
	}

	logger.Info().
		Str("case", c.ID).
		Bool("partial", partial).
		Msg("rico case executed")
	return partial, errors.Join(errs...)
}

func (a *Auditor) recordedOutcome(ctx context.Context, actionID string) (*domain.AuditEntry, error) {
	records, err := a.trail.List(ctx, audit.Filter{ActionID: actionID, Phase: string(domain.AuditOutcome)})
	if err != nil {
		return nil, fmt.Errorf("look up outcome of action %s: %w", actionID, err)
	}
	for i := len(records) - 1; i >= 0; i-- {
		e := adapters.MapStoreAuditRecordToDomain(records[i])
		if e.Mode == domain.ModeLive && e.Result.Terminal() {
			return &e, nil
		}
	}
	return nil, nil
}

func (a *Auditor) append(ctx context.Context, e domain.AuditEntry) (domain.AuditEntry, error) {
	e.Timestamp = a.now()
	rec, err := a.trail.Append(ctx, adapters.MapDomainAuditEntryToStore(e))
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("append %s entry for action %s: %w", e.Phase, e.ActionID, err)
	}
	return adapters.MapStoreAuditRecordToDomain(rec), nil
}

// Trail lists audit entries, oldest first.
func (a *Auditor) Trail(ctx context.Context, filter audit.Filter) ([]domain.AuditEntry, error) {
	records, err := a.trail.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AuditEntry, 0, len(records))
	for _, r := range records {
		out = append(out, adapters.MapStoreAuditRecordToDomain(r))
	}
	return out, nil
}

func describeParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, " ")
}
