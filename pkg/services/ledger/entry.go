package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/de-tools/linkmind/pkg/models/domain"
)

type entry struct {
	mu sync.Mutex

	resource domain.Resource
	offenses []domain.Offense
	seen     map[domain.DedupeKey]struct{}

	open   *domain.ProbationCase
	closed []domain.ProbationCase

	// evidence holds the offenses counted by the current probation case and those observed
	// while convicted or remediated. It is reset when a fresh case opens.
	evidence      []domain.Offense
	convictedAt   time.Time
	remediatedAt  time.Time
	lastOffenseAt time.Time
}

func newEntry(r domain.Resource) *entry {
	return &entry{
		resource: r,
		seen:     make(map[domain.DedupeKey]struct{}),
	}
}

// matches rejects observations whose descriptor conflicts with the known resource.
func (e *entry) matches(obs Observation) error {
	if e.resource.Kind != obs.ResourceKind {
		return fmt.Errorf("%w: resource %s is a %s, observation says %s",
			domain.ErrMalformedOffense, e.resource.ID, e.resource.Kind, obs.ResourceKind)
	}
	if e.resource.Scope != obs.Scope {
		return fmt.Errorf("%w: resource %s is located at %+v, observation says %+v",
			domain.ErrMalformedOffense, e.resource.ID, e.resource.Scope, obs.Scope)
	}
	return nil
}

// move performs one edge of the lifecycle. Every status change goes through here.
func (e *entry) move(to domain.Status, at time.Time, reason string) {
	from := e.resource.Status
	if !domain.CanTransition(from, to) {
		panic(fmt.Sprintf("ledger: illegal transition %s -> %s for %s", from, to, e.resource.ID))
	}
	e.resource.Status = to
	if from != to {
		e.resource.StatusSince = at
	}
	e.resource.History = append(e.resource.History, domain.Transition{
		From:   from,
		To:     to,
		At:     at,
		Reason: reason,
	})
}

func (e *entry) apply(off domain.Offense, t domain.Thresholds) error {
	at := off.DetectedAt
	// A quiet cooldown ends on arrival too, so the outcome does not depend on when Evaluate last ran.
	if e.resource.Status == domain.StatusRemediated && !at.Before(e.cooldownEnds(t.RemediationCooldown)) {
		e.move(domain.StatusClean, at, "remediation cooldown elapsed")
		e.evidence = nil
	}
	if at.After(e.lastOffenseAt) {
		e.lastOffenseAt = at
	}

	switch e.resource.Status {
	case domain.StatusClean:
		e.openCase(off, t)
	case domain.StatusProbation:
		if e.expired(at) {
			e.redeem(at, "probation lapsed before new offense")
			e.openCase(off, t)
			break
		}
		if at.Before(e.open.WindowStart) {
			// Late delivery of an observation older than the case: kept as history only.
			return nil
		}
		e.extend(off, t)
	case domain.StatusConvicted, domain.StatusRemediated:
		e.evidence = append(e.evidence, off)
		return nil
	case domain.StatusRedemption:
		// Redemption always settles to Clean in the same step; a resource is never left here.
		e.move(domain.StatusClean, at, "redemption settled")
		e.openCase(off, t)
	default:
		return fmt.Errorf("%w: unknown status %d", domain.ErrIllegalTransition, e.resource.Status)
	}

	e.judge(at, t)
	return nil
}

func (e *entry) openCase(off domain.Offense, t domain.Thresholds) {
	at := off.DetectedAt
	e.open = &domain.ProbationCase{
		ID:                 fmt.Sprintf("%s/probation-%d", e.resource.ID, len(e.closed)+1),
		ResourceID:         e.resource.ID,
		OpenedAt:           at,
		WindowStart:        at,
		WindowEnd:          at.Add(t.ObservationWindow),
		RedemptionDeadline: at.Add(t.RedemptionPeriod),
		LastOffenseAt:      at,
		OffenseCount:       1,
		Severity:           map[domain.OffenseKind]float64{off.Kind: off.Magnitude},
		OffenseIDs:         []string{off.ID},
		Outcome:            domain.CaseOpen,
	}
	e.evidence = []domain.Offense{off}
	e.move(domain.StatusProbation, at, fmt.Sprintf("%s observed", off.Kind))
}

// extend counts an in-window offense without moving the window start.
func (e *entry) extend(off domain.Offense, t domain.Thresholds) {
	c := e.open
	at := off.DetectedAt
	c.OffenseCount++
	c.Severity[off.Kind] += off.Magnitude
	c.OffenseIDs = append(c.OffenseIDs, off.ID)
	if at.After(c.LastOffenseAt) {
		c.LastOffenseAt = at
	}
	if deadline := at.Add(t.RedemptionPeriod); deadline.After(c.RedemptionDeadline) {
		c.RedemptionDeadline = deadline
	}
	e.evidence = append(e.evidence, off)
	e.move(domain.StatusProbation, at, fmt.Sprintf("%s observed, %d offenses in window", off.Kind, c.OffenseCount))
}

func (e *entry) judge(at time.Time, t domain.Thresholds) {
	c := e.open
	if c == nil || e.resource.Status != domain.StatusProbation {
		return
	}

	reason := ""
	if c.OffenseCount >= t.ConvictionCount {
		reason = fmt.Sprintf("%d offenses within observation window", c.OffenseCount)
	}
	for _, kind := range domain.OffenseKinds() {
		cutoff, ok := t.SeverityCutoff[kind]
		if ok && reason == "" && c.Severity[kind] >= cutoff {
			reason = fmt.Sprintf("combined %s severity %.2f reached cutoff %.2f", kind, c.Severity[kind], cutoff)
		}
	}
	if reason == "" {
		return
	}

	e.close(domain.CaseFailed, at, reason)
	e.convictedAt = at
	e.move(domain.StatusConvicted, at, reason)
}

// expired reports whether the open case has lapsed at the given instant.
func (e *entry) expired(at time.Time) bool {
	c := e.open
	if c == nil {
		return false
	}
	return !at.Before(c.RedemptionDeadline) || !at.Before(c.WindowEnd)
}

// redeem closes the open case as redeemed and settles the resource back to Clean.
func (e *entry) redeem(at time.Time, reason string) {
	e.close(domain.CaseRedeemed, at, reason)
	e.evidence = nil
	e.move(domain.StatusRedemption, at, reason)
	e.move(domain.StatusClean, at, "redeemed")
}

func (e *entry) close(outcome domain.CaseOutcome, at time.Time, reason string) {
	c := e.open
	c.Outcome = outcome
	c.ClosedAt = at
	c.CloseReason = reason
	e.closed = append(e.closed, *c)
	e.open = nil
}

// cooldownEnds is measured from the later of the remediation and the last relapse offense.
func (e *entry) cooldownEnds(cooldown time.Duration) time.Time {
	anchor := e.remediatedAt
	if e.lastOffenseAt.After(anchor) {
		anchor = e.lastOffenseAt
	}
	return anchor.Add(cooldown)
}
