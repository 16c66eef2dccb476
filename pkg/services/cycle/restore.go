package cycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/de-tools/linkmind/pkg/adapters"
	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/services/ledger"
	"github.com/de-tools/linkmind/pkg/services/rico"
	"github.com/de-tools/linkmind/pkg/store/audit"
	"github.com/de-tools/linkmind/pkg/store/journal"
	"github.com/rs/zerolog"
)

type RestoreReport struct {
	Offenses   int
	Duplicates int
	Rejected   int
	Remediated int
}

type replayEvent struct {
	at         time.Time
	offense    *ledger.Observation
	resourceID string
	caseID     string
}

// Restore rebuilds a ledger from the offense journal and the live remediations on the audit trail.
// Events are replayed in time order with the time driven transitions evaluated in between, so the
// resulting statuses match those of an engine that never stopped. A remediation counts once every
// live action recorded for that resource and case was applied.
func Restore(ctx context.Context, l *ledger.Ledger, j journal.Store, trail audit.Store, now time.Time) (RestoreReport, error) {
	var report RestoreReport
	logger := zerolog.Ctx(ctx)

	records, err := j.List(ctx, time.Time{})
	if err != nil {
		return report, fmt.Errorf("read offense journal: %w", err)
	}
	events := make([]replayEvent, 0, len(records))
	for _, r := range records {
		off, kind, scope := adapters.MapStoreOffenseToDomain(r)
		events = append(events, replayEvent{
			at:      off.DetectedAt,
			offense: &ledger.Observation{Offense: off, ResourceKind: kind, Scope: scope},
		})
	}

	remediations, err := appliedRemediations(ctx, trail)
	if err != nil {
		return report, err
	}
	events = append(events, remediations...)

	// Offenses go before remediations recorded at the same instant.
	sort.SliceStable(events, func(i, k int) bool {
		if !events[i].at.Equal(events[k].at) {
			return events[i].at.Before(events[k].at)
		}
		return events[i].offense != nil && events[k].offense == nil
	})

	for _, ev := range events {
		l.Evaluate(ctx, ev.at)
		if ev.offense != nil {
			out, err := l.Record(ctx, *ev.offense)
			switch {
			case err != nil:
				report.Rejected++
				logger.Warn().Err(err).Str("offense", ev.offense.Offense.ID).Msg("journaled offense rejected on replay")
			case out.Status == domain.IngestDuplicate:
				report.Duplicates++
			default:
				report.Offenses++
			}
			continue
		}
		err := l.MarkRemediated(ctx, ev.resourceID, ev.at, "remediated by case "+ev.caseID)
		if errors.Is(err, domain.ErrIllegalTransition) || errors.Is(err, domain.ErrUnknownResource) {
			logger.Warn().Err(err).Str("resource", ev.resourceID).Msg("recorded remediation does not apply on replay")
			continue
		}
		if err != nil {
			return report, err
		}
		report.Remediated++
	}
	l.Evaluate(ctx, now)

	logger.Info().
		Int("offenses", report.Offenses).
		Int("duplicates", report.Duplicates).
		Int("rejected", report.Rejected).
		Int("remediated", report.Remediated).
		Msg("ledger restored")
	return report, nil
}

// ReserveCaseIDs marks every case id on the audit trail as taken in the docket. Case ids derive
// from the convictions, so without this a restarted engine would refile a failed case under its
// old id and the gate would refuse all of its actions.
func ReserveCaseIDs(ctx context.Context, docket *rico.Docket, trail audit.Store) (int, error) {
	records, err := trail.List(ctx, audit.Filter{})
	if err != nil {
		return 0, fmt.Errorf("read audit trail: %w", err)
	}
	seen := make(map[string]struct{})
	for _, r := range records {
		seen[r.CaseID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	docket.Reserve(ids...)
	zerolog.Ctx(ctx).Debug().Int("cases", len(ids)).Msg("case ids reserved from audit trail")
	return len(ids), nil
}

func appliedRemediations(ctx context.Context, trail audit.Store) ([]replayEvent, error) {
	records, err := trail.List(ctx, audit.Filter{Mode: string(domain.ModeLive)})
	if err != nil {
		return nil, fmt.Errorf("read audit trail: %w", err)
	}

	type key struct{ caseID, resourceID string }
	type progress struct {
		intents map[string]struct{}
		applied map[string]struct{}
		last    time.Time
	}
	byKey := make(map[key]*progress)
	var order []key
	for _, r := range records {
		e := adapters.MapStoreAuditRecordToDomain(r)
		k := key{e.CaseID, e.ResourceID}
		p, ok := byKey[k]
		if !ok {
			p = &progress{intents: map[string]struct{}{}, applied: map[string]struct{}{}}
			byKey[k] = p
			order = append(order, k)
		}
		switch {
		case e.Phase == domain.AuditIntent:
			p.intents[e.ActionID] = struct{}{}
		case e.Phase == domain.AuditOutcome && e.Result == domain.ResultApplied:
			p.applied[e.ActionID] = struct{}{}
			if e.Timestamp.After(p.last) {
				p.last = e.Timestamp
			}
		}
	}

	var out []replayEvent
	for _, k := range order {
		p := byKey[k]
		if len(p.intents) == 0 {
			continue
		}
		complete := true
		for id := range p.intents {
			if _, ok := p.applied[id]; !ok {
				complete = false
				break
			}
		}
		if complete {
			out = append(out, replayEvent{at: p.last, resourceID: k.resourceID, caseID: k.caseID})
		}
	}
	return out, nil
}
