package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/rs/zerolog"
)

// Observation is a validated offense together with the descriptor of the resource it targets.
type Observation struct {
	Offense      domain.Offense
	ResourceKind domain.ResourceKind
	Scope        domain.Scope
}

// RecordOutcome reports what a single observation did to the ledger.
type RecordOutcome struct {
	Status      domain.IngestStatus
	Transitions []domain.Transition
}

// Convicted reports whether the observation convicted the resource.
func (o RecordOutcome) Convicted() bool {
	for _, t := range o.Transitions {
		if t.To == domain.StatusConvicted {
			return true
		}
	}
	return false
}

type EvaluationReport struct {
	Redeemed []string
	Restored []string
}

// Ledger is an arena of resource records indexed by id. The arena lock only guards the index;
// every read-modify-write of a resource happens under that resource's own lock.
type Ledger struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	thresholds domain.Thresholds
}

func New(thresholds domain.Thresholds) (*Ledger, error) {
	if err := ValidateThresholds(thresholds); err != nil {
		return nil, err
	}
	return &Ledger{
		entries:    make(map[string]*entry),
		thresholds: thresholds,
	}, nil
}

func ValidateThresholds(t domain.Thresholds) error {
	if t.ObservationWindow <= 0 {
		return fmt.Errorf("%w: observation window must be positive", domain.ErrConfiguration)
	}
	if t.RedemptionPeriod <= 0 {
		return fmt.Errorf("%w: redemption period must be positive", domain.ErrConfiguration)
	}
	if t.RemediationCooldown <= 0 {
		return fmt.Errorf("%w: remediation cooldown must be positive", domain.ErrConfiguration)
	}
	if t.ConvictionCount < 1 {
		return fmt.Errorf("%w: conviction count must be at least 1", domain.ErrConfiguration)
	}
	for kind, cutoff := range t.SeverityCutoff {
		if _, err := domain.ParseOffenseKind(string(kind)); err != nil {
			return fmt.Errorf("%w: severity cutoff: %v", domain.ErrConfiguration, err)
		}
		if cutoff <= 0 {
			return fmt.Errorf("%w: severity cutoff for %s must be positive", domain.ErrConfiguration, kind)
		}
	}
	return nil
}

func (l *Ledger) Thresholds() domain.Thresholds {
	return l.thresholds
}

// Record applies one observation. Replaying an observation with the same resource, kind and
// timestamp is a no-op reported as a duplicate.
func (l *Ledger) Record(ctx context.Context, obs Observation) (RecordOutcome, error) {
	off := obs.Offense
	if obs.ResourceKind != off.Kind.ResourceKind() {
		return RecordOutcome{Status: domain.IngestRejected}, fmt.Errorf(
			"%w: %s offense cannot target a %s resource", domain.ErrMalformedOffense, off.Kind, obs.ResourceKind)
	}

	e := l.getOrCreate(obs)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.matches(obs); err != nil {
		return RecordOutcome{Status: domain.IngestRejected}, err
	}
	if _, dup := e.seen[off.DedupeKey()]; dup {
		return RecordOutcome{Status: domain.IngestDuplicate}, nil
	}

	mark := len(e.resource.History)
	e.seen[off.DedupeKey()] = struct{}{}
	e.offenses = append(e.offenses, off)
	if err := e.apply(off, l.thresholds); err != nil {
		return RecordOutcome{Status: domain.IngestRejected}, err
	}

	transitions := append([]domain.Transition(nil), e.resource.History[mark:]...)
	logger := zerolog.Ctx(ctx)
	for _, t := range transitions {
		logger.Debug().
			Str("resource", e.resource.ID).
			Str("from", t.From.String()).
			Str("to", t.To.String()).
			Str("reason", t.Reason).
			Msg("resource transition")
	}
	return RecordOutcome{Status: domain.IngestAccepted, Transitions: transitions}, nil
}

func (l *Ledger) getOrCreate(obs Observation) *entry {
	id := obs.Offense.ResourceID

	l.mu.RLock()
	e, ok := l.entries[id]
	l.mu.RUnlock()
	if ok {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok = l.entries[id]; ok {
		return e
	}
	e = newEntry(domain.Resource{
		ID:          id,
		Kind:        obs.ResourceKind,
		Scope:       obs.Scope,
		Status:      domain.StatusClean,
		FirstSeen:   obs.Offense.DetectedAt,
		StatusSince: obs.Offense.DetectedAt,
	})
	l.entries[id] = e
	return e
}

// Evaluate runs the time driven transitions: expired probation cases are redeemed and remediated
// resources past their cooldown return to Clean.
func (l *Ledger) Evaluate(ctx context.Context, now time.Time) EvaluationReport {
	var report EvaluationReport
	for _, e := range l.snapshotEntries() {
		e.mu.Lock()
		switch e.resource.Status {
		case domain.StatusProbation:
			if e.expired(now) {
				e.redeem(now, "no new offense before redemption deadline")
				report.Redeemed = append(report.Redeemed, e.resource.ID)
			}
		case domain.StatusRemediated:
			if !now.Before(e.cooldownEnds(l.thresholds.RemediationCooldown)) {
				e.move(domain.StatusClean, now, "remediation cooldown elapsed")
				e.evidence = nil
				report.Restored = append(report.Restored, e.resource.ID)
			}
		}
		e.mu.Unlock()
	}

	zerolog.Ctx(ctx).Debug().
		Int("redeemed", len(report.Redeemed)).
		Int("restored", len(report.Restored)).
		Time("now", now).
		Msg("ledger evaluated")
	return report
}

// MarkRemediated moves a convicted resource to Remediated. Only the safety auditor calls it.
func (l *Ledger) MarkRemediated(ctx context.Context, resourceID string, at time.Time, reason string) error {
	l.mu.RLock()
	e, ok := l.entries[resourceID]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownResource, resourceID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resource.Status != domain.StatusConvicted {
		return fmt.Errorf("%w: %s is %s, not convicted", domain.ErrIllegalTransition, resourceID, e.resource.Status)
	}
	e.move(domain.StatusRemediated, at, reason)
	e.remediatedAt = at

	zerolog.Ctx(ctx).Info().
		Str("resource", resourceID).
		Time("at", at).
		Msg("resource remediated")
	return nil
}

// SnapshotConvicted copies every convicted resource matching the filter. The arena lock is held
// only while collecting entry pointers.
func (l *Ledger) SnapshotConvicted(filter *domain.ScopeFilter) []domain.ConvictedResource {
	var out []domain.ConvictedResource
	for _, e := range l.snapshotEntries() {
		e.mu.Lock()
		if e.resource.Status == domain.StatusConvicted && filter.Matches(e.resource.Scope) {
			out = append(out, domain.ConvictedResource{
				Resource:    e.resource.Clone(),
				ConvictedAt: e.convictedAt,
				Offenses:    append([]domain.Offense(nil), e.evidence...),
			})
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource.ID < out[j].Resource.ID })
	return out
}

func (l *Ledger) Resource(id string) (domain.Resource, bool) {
	l.mu.RLock()
	e, ok := l.entries[id]
	l.mu.RUnlock()
	if !ok {
		return domain.Resource{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resource.Clone(), true
}

func (l *Ledger) Resources() []domain.Resource {
	var out []domain.Resource
	for _, e := range l.snapshotEntries() {
		e.mu.Lock()
		out = append(out, e.resource.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Offenses returns the append-only offense history of a resource.
func (l *Ledger) Offenses(id string) []domain.Offense {
	l.mu.RLock()
	e, ok := l.entries[id]
	l.mu.RUnlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Offense(nil), e.offenses...)
}

// Cases returns the closed probation cases followed by the open one, if any.
func (l *Ledger) Cases(id string) []domain.ProbationCase {
	l.mu.RLock()
	e, ok := l.entries[id]
	l.mu.RUnlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.ProbationCase, 0, len(e.closed)+1)
	for _, c := range e.closed {
		out = append(out, c.Clone())
	}
	if e.open != nil {
		out = append(out, e.open.Clone())
	}
	return out
}

func (l *Ledger) snapshotEntries() []*entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	return out
}
