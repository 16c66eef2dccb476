package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0        = time.Date(2026, 2, 4, 8, 0, 0, 0, time.UTC)
	djelfa    = domain.Scope{Node: "NE-01", Site: "DJELFA", Region: "CENTER"}
	day       = 24 * time.Hour
	testRules = domain.Thresholds{
		ObservationWindow:   30 * day,
		RedemptionPeriod:    15 * day,
		RemediationCooldown: 7 * day,
		ConvictionCount:     3,
		SeverityCutoff:      map[domain.OffenseKind]float64{domain.OffenseSpectrumWaste: 20},
	}
)

func observation(resourceID string, kind domain.OffenseKind, magnitude float64, at time.Time) Observation {
	return Observation{
		Offense: domain.Offense{
			ID:         domain.OffenseID(resourceID, kind, at),
			ResourceID: resourceID,
			Kind:       kind,
			Magnitude:  magnitude,
			Unit:       kind.Unit(),
			DetectedAt: at,
		},
		ResourceKind: kind.ResourceKind(),
		Scope:        djelfa,
	}
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(testRules)
	require.NoError(t, err)
	return l
}

func statuses(r domain.Resource) []string {
	var out []string
	for _, tr := range r.History {
		out = append(out, fmt.Sprintf("%s->%s", tr.From, tr.To))
	}
	return out
}

func TestNew_RejectsInvalidThresholds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Thresholds)
	}{
		{"zero window", func(th *domain.Thresholds) { th.ObservationWindow = 0 }},
		{"zero redemption", func(th *domain.Thresholds) { th.RedemptionPeriod = 0 }},
		{"zero cooldown", func(th *domain.Thresholds) { th.RemediationCooldown = 0 }},
		{"zero count", func(th *domain.Thresholds) { th.ConvictionCount = 0 }},
		{"negative cutoff", func(th *domain.Thresholds) {
			th.SeverityCutoff = map[domain.OffenseKind]float64{domain.OffenseZombiePort: -1}
		}},
		{"unknown cutoff kind", func(th *domain.Thresholds) {
			th.SeverityCutoff = map[domain.OffenseKind]float64{"power_overdrive": 1}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := testRules
			tt.mutate(&th)
			_, err := New(th)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestRecord_ThreeOffensesConvict(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	for i := 0; i < 2; i++ {
		out, err := l.Record(ctx, observation("R1", domain.OffenseLicenseHoarding, 340, t0.Add(time.Duration(i)*day)))
		require.NoError(t, err)
		assert.Equal(t, domain.IngestAccepted, out.Status)
		assert.False(t, out.Convicted())
	}

	r, ok := l.Resource("R1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusProbation, r.Status)

	out, err := l.Record(ctx, observation("R1", domain.OffenseLicenseHoarding, 340, t0.Add(2*day)))
	require.NoError(t, err)
	assert.True(t, out.Convicted())

	r, _ = l.Resource("R1")
	assert.Equal(t, domain.StatusConvicted, r.Status)
	assert.Equal(t, []string{
		"clean->probation",
		"probation->probation",
		"probation->probation",
		"probation->convicted",
	}, statuses(r))

	cases := l.Cases("R1")
	require.Len(t, cases, 1)
	assert.Equal(t, domain.CaseFailed, cases[0].Outcome)
	assert.Equal(t, 3, cases[0].OffenseCount)
	assert.Equal(t, t0, cases[0].WindowStart, "extensions must not move the window start")
}

func TestRecord_SeverityCutoffConvictsThroughProbation(t *testing.T) {
	l := newTestLedger(t)

	out, err := l.Record(context.Background(), observation("R2", domain.OffenseSpectrumWaste, 28, t0))
	require.NoError(t, err)
	assert.True(t, out.Convicted())

	r, _ := l.Resource("R2")
	assert.Equal(t, []string{"clean->probation", "probation->convicted"}, statuses(r))
}

func TestRecord_ReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	once := newTestLedger(t)
	twice := newTestLedger(t)

	obs := []Observation{
		observation("R1", domain.OffenseLicenseHoarding, 340, t0),
		observation("R1", domain.OffenseLicenseHoarding, 340, t0.Add(day)),
	}
	for _, o := range obs {
		_, err := once.Record(ctx, o)
		require.NoError(t, err)
	}
	for _, o := range obs {
		_, err := twice.Record(ctx, o)
		require.NoError(t, err)
		out, err := twice.Record(ctx, o)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestDuplicate, out.Status)
		assert.Empty(t, out.Transitions)
	}

	r1, _ := once.Resource("R1")
	r2, _ := twice.Resource("R1")
	assert.Equal(t, r1, r2)
	assert.Equal(t, once.Cases("R1"), twice.Cases("R1"))
	assert.Len(t, twice.Offenses("R1"), 2)
	assert.Equal(t, domain.StatusProbation, r2.Status, "replays must not convict")
}

func TestEvaluate_RedemptionClearsCount(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.Record(ctx, observation("R1", domain.OffenseLicenseHoarding, 340, t0))
	require.NoError(t, err)
	_, err = l.Record(ctx, observation("R1", domain.OffenseLicenseHoarding, 340, t0.Add(day)))
	require.NoError(t, err)

	report := l.Evaluate(ctx, t0.Add(10*day))
	assert.Empty(t, report.Redeemed, "deadline slides with the last offense")

	report = l.Evaluate(ctx, t0.Add(16*day))
	assert.Equal(t, []string{"R1"}, report.Redeemed)

	r, _ := l.Resource("R1")
	assert.Equal(t, domain.StatusClean, r.Status)
	assert.Equal(t, []string{
		"clean->probation",
		"probation->probation",
		"probation->redemption",
		"redemption->clean",
	}, statuses(r))

	_, err = l.Record(ctx, observation("R1", domain.OffenseLicenseHoarding, 340, t0.Add(20*day)))
	require.NoError(t, err)
	cases := l.Cases("R1")
	require.Len(t, cases, 2)
	assert.Equal(t, domain.CaseRedeemed, cases[0].Outcome)
	assert.Equal(t, 2, cases[0].OffenseCount, "history is retained")
	assert.True(t, cases[1].IsOpen())
	assert.Equal(t, 1, cases[1].OffenseCount)
	assert.Len(t, l.Offenses("R1"), 3)
}

func TestRecord_LapsedCaseIsRedeemedBeforeNewOffense(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.Record(ctx, observation("R1", domain.OffenseLicenseHoarding, 340, t0))
	require.NoError(t, err)
	_, err = l.Record(ctx, observation("R1", domain.OffenseLicenseHoarding, 340, t0.Add(40*day)))
	require.NoError(t, err)

	cases := l.Cases("R1")
	require.Len(t, cases, 2)
	assert.Equal(t, domain.CaseRedeemed, cases[0].Outcome)
	assert.Equal(t, 1, cases[1].OffenseCount)
}

func TestRemediation_CooldownReturnsToCleanAndReopensFresh(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	for i := 0; i < 3; i++ {
		_, err := l.Record(ctx, observation("R1", domain.OffenseLicenseHoarding, 340, t0.Add(time.Duration(i)*day)))
		require.NoError(t, err)
	}
	remediatedAt := t0.Add(3 * day)
	require.NoError(t, l.MarkRemediated(ctx, "R1", remediatedAt, "case executed"))

	report := l.Evaluate(ctx, remediatedAt.Add(6*day))
	assert.Empty(t, report.Restored)

	report = l.Evaluate(ctx, remediatedAt.Add(7*day))
	assert.Equal(t, []string{"R1"}, report.Restored)
	r, _ := l.Resource("R1")
	assert.Equal(t, domain.StatusClean, r.Status)

	_, err := l.Record(ctx, observation("R1", domain.OffenseLicenseHoarding, 340, remediatedAt.Add(8*day)))
	require.NoError(t, err)
	r, _ = l.Resource("R1")
	assert.Equal(t, domain.StatusProbation, r.Status)
	cases := l.Cases("R1")
	require.Len(t, cases, 2)
	assert.Equal(t, 1, cases[1].OffenseCount, "a fresh case, not a continuation")
	assert.Equal(t, "R1/probation-2", cases[1].ID)
}

func TestRemediation_OffenseAfterQuietCooldownOpensFreshCase(t *testing.T) {
	ctx := context.Background()
	remediatedAt := t0.Add(3 * day)
	late := remediatedAt.Add(20 * day)

	build := func(evaluateFirst bool) *Ledger {
		l := newTestLedger(t)
		for i := 0; i < 3; i++ {
			_, err := l.Record(ctx, observation("R1", domain.OffenseLicenseHoarding, 340, t0.Add(time.Duration(i)*day)))
			require.NoError(t, err)
		}
		require.NoError(t, l.MarkRemediated(ctx, "R1", remediatedAt, "case executed"))
		if evaluateFirst {
			l.Evaluate(ctx, late)
		}
		_, err := l.Record(ctx, observation("R1", domain.OffenseLicenseHoarding, 340, late))
		require.NoError(t, err)
		return l
	}

	tests := []struct {
		name          string
		evaluateFirst bool
	}{
		{"offense arrives before any evaluation", false},
		{"evaluation ran first", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := build(tt.evaluateFirst)
			r, _ := l.Resource("R1")
			assert.Equal(t, domain.StatusProbation, r.Status)
			cases := l.Cases("R1")
			require.Len(t, cases, 2)
			assert.Equal(t, domain.CaseOpen, cases[1].Outcome)
			assert.Equal(t, 1, cases[1].OffenseCount)
			assert.Equal(t, late, cases[1].OpenedAt)

			l.Evaluate(ctx, late.Add(day))
			r, _ = l.Resource("R1")
			assert.Equal(t, domain.StatusProbation, r.Status, "the new offense still counts")
		})
	}
}

func TestRemediation_RelapseDelaysCooldown(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.Record(ctx, observation("R2", domain.OffenseSpectrumWaste, 28, t0))
	require.NoError(t, err)
	require.NoError(t, l.MarkRemediated(ctx, "R2", t0.Add(day), "case executed"))

	_, err = l.Record(ctx, observation("R2", domain.OffenseSpectrumWaste, 28, t0.Add(5*day)))
	require.NoError(t, err)

	report := l.Evaluate(ctx, t0.Add(9*day))
	assert.Empty(t, report.Restored)
	report = l.Evaluate(ctx, t0.Add(12*day))
	assert.Equal(t, []string{"R2"}, report.Restored)
}

func TestMarkRemediated_RequiresConviction(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	err := l.MarkRemediated(ctx, "missing", t0, "x")
	assert.ErrorIs(t, err, domain.ErrUnknownResource)

	_, err = l.Record(ctx, observation("R1", domain.OffenseLicenseHoarding, 340, t0))
	require.NoError(t, err)
	err = l.MarkRemediated(ctx, "R1", t0, "x")
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestRecord_RejectsConflictingDescriptors(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.Record(ctx, observation("R1", domain.OffenseLicenseHoarding, 340, t0))
	require.NoError(t, err)

	moved := observation("R1", domain.OffenseLicenseHoarding, 340, t0.Add(day))
	moved.Scope.Site = "ORAN"
	out, err := l.Record(ctx, moved)
	assert.ErrorIs(t, err, domain.ErrMalformedOffense)
	assert.Equal(t, domain.IngestRejected, out.Status)

	wrongKind := observation("R1", domain.OffenseZombiePort, 10, t0.Add(day))
	_, err = l.Record(ctx, wrongKind)
	assert.ErrorIs(t, err, domain.ErrMalformedOffense)

	mismatch := observation("R9", domain.OffenseZombiePort, 10, t0)
	mismatch.ResourceKind = domain.ResourceKindLicense
	_, err = l.Record(ctx, mismatch)
	assert.ErrorIs(t, err, domain.ErrMalformedOffense)
	_, ok := l.Resource("R9")
	assert.False(t, ok, "rejected observations never create resources")

	assert.Len(t, l.Offenses("R1"), 1)
}

func TestRecord_ConcurrentDetectionsOfOneResource(t *testing.T) {
	ctx := context.Background()
	rules := testRules
	rules.ConvictionCount = 1000
	l, err := New(rules)
	require.NoError(t, err)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		at := t0.Add(time.Duration(i) * time.Minute)
		for dup := 0; dup < 2; dup++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := l.Record(ctx, observation("R1", domain.OffenseLicenseHoarding, 1, at))
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	cases := l.Cases("R1")
	require.Len(t, cases, 1)
	assert.Equal(t, n, len(l.Offenses("R1")))
	// Offenses delivered before the case opened are history only; everything else is counted.
	assert.LessOrEqual(t, cases[0].OffenseCount, n)
	assert.Equal(t, n, cases[0].OffenseCount+lateDeliveries(l, "R1"))
}

func lateDeliveries(l *Ledger, id string) int {
	cases := l.Cases(id)
	late := 0
	for _, o := range l.Offenses(id) {
		if o.DetectedAt.Before(cases[0].WindowStart) {
			late++
		}
	}
	return late
}

func TestHistory_OnlyLegalTransitions(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	rng := rand.New(rand.NewSource(42))
	kinds := domain.OffenseKinds()

	now := t0
	for i := 0; i < 500; i++ {
		now = now.Add(time.Duration(rng.Intn(72)) * time.Hour)
		id := fmt.Sprintf("R%d", rng.Intn(5))
		kind := kinds[int(id[1]-'0')%len(kinds)]
		switch rng.Intn(4) {
		case 0:
			l.Evaluate(ctx, now)
		case 1:
			err := l.MarkRemediated(ctx, id, now, "random")
			if err != nil {
				assert.True(t, errors.Is(err, domain.ErrIllegalTransition) || errors.Is(err, domain.ErrUnknownResource))
			}
		default:
			_, err := l.Record(ctx, observation(id, kind, float64(rng.Intn(30)), now))
			require.NoError(t, err)
		}
	}

	for _, r := range l.Resources() {
		for _, tr := range r.History {
			assert.True(t, domain.CanTransition(tr.From, tr.To), "%s: %s -> %s", r.ID, tr.From, tr.To)
		}
		for i := 1; i < len(r.History); i++ {
			assert.Equal(t, r.History[i-1].To, r.History[i].From, "%s: history must be contiguous", r.ID)
		}
	}
}

func TestSnapshotConvicted_FiltersAndCopies(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.Record(ctx, observation("R2", domain.OffenseSpectrumWaste, 28, t0))
	require.NoError(t, err)
	other := observation("R3", domain.OffenseSpectrumWaste, 28, t0)
	other.Scope = domain.Scope{Node: "NE-09", Site: "ORAN", Region: "WEST"}
	_, err = l.Record(ctx, other)
	require.NoError(t, err)
	_, err = l.Record(ctx, observation("R1", domain.OffenseLicenseHoarding, 340, t0))
	require.NoError(t, err)

	all := l.SnapshotConvicted(nil)
	require.Len(t, all, 2)
	assert.Equal(t, "R2", all[0].Resource.ID)
	assert.Equal(t, "R3", all[1].Resource.ID)
	assert.Len(t, all[0].Offenses, 1)

	filtered := l.SnapshotConvicted(&domain.ScopeFilter{Level: domain.ScopeSite, Value: "ORAN"})
	require.Len(t, filtered, 1)
	assert.Equal(t, "R3", filtered[0].Resource.ID)

	all[0].Resource.History[0].Reason = "tampered"
	r, _ := l.Resource("R2")
	assert.NotEqual(t, "tampered", r.History[0].Reason)
}
