package remediation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/services/actuation"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func approvedCase() domain.RICOCase {
	amount := func(v float64) *float64 { return &v }
	return domain.RICOCase{
		ID:     "case-1",
		Status: domain.CaseApproved,
		Charges: []domain.Charge{
			{
				ResourceID: "R2", Kind: domain.OffenseSpectrumWaste,
				Latest: domain.Offense{ID: "o3", Kind: domain.OffenseSpectrumWaste, Magnitude: 28, Unit: "MHz",
					Attributes: map[string]string{AttrBandwidth: "56"}},
				OffenseIDs: []string{"o3"},
				Estimate:   &domain.Estimate{Currency: "USD", Amount: amount(560)},
			},
			{
				ResourceID: "R1", Kind: domain.OffenseZombiePort,
				Latest:     domain.Offense{ID: "o2", Kind: domain.OffenseZombiePort, Magnitude: 15, Unit: "W"},
				OffenseIDs: []string{"o2"},
				Estimate:   &domain.Estimate{Currency: "USD"},
			},
			{
				ResourceID: "R1", Kind: domain.OffenseLicenseHoarding,
				Latest: domain.Offense{ID: "o1", Kind: domain.OffenseLicenseHoarding, Magnitude: 340, Unit: "Mbps",
					Attributes: map[string]string{AttrReservedCapacity: "400"}},
				OffenseIDs: []string{"o1a", "o1"},
				Estimate:   &domain.Estimate{Currency: "USD", Amount: amount(3400)},
			},
		},
	}
}

type orderKey struct {
	Resource string
	Kind     domain.ActionKind
}

func order(actions []domain.RemediationAction) []orderKey {
	out := make([]orderKey, 0, len(actions))
	for _, a := range actions {
		out = append(out, orderKey{a.ResourceID, a.Kind})
	}
	return out
}

func TestNewPlan_OrdersByResourceThenRisk(t *testing.T) {
	plan, err := NewPlan(approvedCase(), domain.ModeLive)
	require.NoError(t, err)

	want := []orderKey{
		{"R1", domain.ActionRevokeLicense},
		{"R1", domain.ActionDisablePort},
		{"R2", domain.ActionReclaimSpectrum},
	}
	if diff := cmp.Diff(want, order(plan.Actions)); diff != "" {
		t.Errorf("plan order mismatch (-want +got):\n%s", diff)
	}

	license := plan.Actions[0]
	assert.Equal(t, "60", license.Params[actuation.ParamTargetCapacity])
	assert.Equal(t, []string{"o1a", "o1"}, license.OffenseIDs)
	require.NotNil(t, license.Savings)
	assert.Equal(t, 3400.0, *license.Savings)
	assert.Nil(t, plan.Actions[1].Savings, "unpriced charge has no savings")
	assert.Equal(t, "28", plan.Actions[2].Params[actuation.ParamTargetBandwidth])
	for _, a := range plan.Actions {
		assert.Equal(t, domain.ResultPending, a.Result)
		assert.False(t, a.DryRun)
	}
}

func TestNewPlan_StableIDsPerMode(t *testing.T) {
	live1, err := NewPlan(approvedCase(), domain.ModeLive)
	require.NoError(t, err)
	live2, err := NewPlan(approvedCase(), domain.ModeLive)
	require.NoError(t, err)
	dry, err := NewPlan(approvedCase(), domain.ModeDryRun)
	require.NoError(t, err)

	for i := range live1.Actions {
		assert.Equal(t, live1.Actions[i].ID, live2.Actions[i].ID)
		assert.NotEqual(t, live1.Actions[i].ID, dry.Actions[i].ID)
		assert.True(t, dry.Actions[i].DryRun)
	}
}

func TestNewPlan_RequiresApprovedCase(t *testing.T) {
	c := approvedCase()
	c.Status = domain.CaseDraft
	_, err := NewPlan(c, domain.ModeLive)
	assert.Error(t, err)

	_, err = NewPlan(approvedCase(), domain.Mode("yolo"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

type memoryGate struct {
	mu       sync.Mutex
	admitted []string
	recorded []domain.RemediationAction
	done     map[string]domain.ActionResult
	failOn   string
}

func (g *memoryGate) Admit(_ context.Context, a *domain.RemediationAction) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if a.ResourceID == g.failOn {
		return false, errors.New("audit store unavailable")
	}
	if r, ok := g.done[a.ID]; ok {
		a.Result = r
		a.Note = "already recorded"
		return false, nil
	}
	g.admitted = append(g.admitted, a.ID)
	return true, nil
}

func (g *memoryGate) Record(_ context.Context, a domain.RemediationAction) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recorded = append(g.recorded, a)
	return nil
}

func newExecutor(t *testing.T, act actuation.Actuator, timeout time.Duration) *Executor {
	t.Helper()
	x, err := NewExecutor(act, Settings{ActionTimeout: timeout, Parallelism: 2})
	require.NoError(t, err)
	return x
}

func TestExecute_DryRunNeverCallsActuator(t *testing.T) {
	rec := actuation.NewRecorder()
	plan, err := NewPlan(approvedCase(), domain.ModeDryRun)
	require.NoError(t, err)

	gate := &memoryGate{}
	actions := newExecutor(t, rec, time.Second).Execute(context.Background(), plan, gate)

	assert.Empty(t, rec.Calls())
	require.Len(t, actions, 3)
	for _, a := range actions {
		assert.Equal(t, domain.ResultSkipped, a.Result)
		assert.Equal(t, "dry-run", a.Note)
	}
	assert.Len(t, gate.recorded, 3)
}

func TestExecute_TimeoutFailsActionAndBlocksResource(t *testing.T) {
	rec := actuation.NewRecorder()
	rec.On("R1", func(ctx context.Context, req actuation.Request) (actuation.Response, error) {
		time.Sleep(200 * time.Millisecond)
		return actuation.Response{Result: domain.ResultApplied}, nil
	})

	plan, err := NewPlan(approvedCase(), domain.ModeLive)
	require.NoError(t, err)

	start := time.Now()
	actions := newExecutor(t, rec, 20*time.Millisecond).Execute(context.Background(), plan, &memoryGate{})
	assert.Less(t, time.Since(start), 150*time.Millisecond, "hung actuator must not stall the cycle")

	assert.Equal(t, domain.ResultFailed, actions[0].Result)
	assert.Contains(t, actions[0].Note, domain.ErrActuationTimeout.Error())
	assert.Equal(t, domain.ResultSkipped, actions[1].Result)
	assert.Equal(t, "blocked by failed revoke_license", actions[1].Note)
	assert.Equal(t, domain.ResultApplied, actions[2].Result, "other resources proceed")
}

func TestExecute_ActuatorFailureIsReported(t *testing.T) {
	rec := actuation.NewRecorder()
	rec.On("R2", func(context.Context, actuation.Request) (actuation.Response, error) {
		return actuation.Response{Result: domain.ResultFailed, Diagnostic: "NE rejected command"}, nil
	})
	rec.On("R1", func(context.Context, actuation.Request) (actuation.Response, error) {
		return actuation.Response{}, errors.New("connection reset")
	})

	plan, err := NewPlan(approvedCase(), domain.ModeLive)
	require.NoError(t, err)
	actions := newExecutor(t, rec, time.Second).Execute(context.Background(), plan, &memoryGate{})

	assert.Equal(t, domain.ResultFailed, actions[0].Result)
	assert.Contains(t, actions[0].Note, "connection reset")
	assert.Equal(t, domain.ResultSkipped, actions[1].Result)
	assert.Equal(t, domain.ResultFailed, actions[2].Result)
	assert.Contains(t, actions[2].Note, "NE rejected command")
	assert.Empty(t, rec.Applied())
}

func TestExecute_GateRefusals(t *testing.T) {
	rec := actuation.NewRecorder()
	plan, err := NewPlan(approvedCase(), domain.ModeLive)
	require.NoError(t, err)

	gate := &memoryGate{
		failOn: "R2",
		done:   map[string]domain.ActionResult{plan.Actions[0].ID: domain.ResultApplied},
	}
	actions := newExecutor(t, rec, time.Second).Execute(context.Background(), plan, gate)

	assert.Equal(t, domain.ResultApplied, actions[0].Result)
	assert.Equal(t, "already recorded", actions[0].Note)
	assert.Equal(t, domain.ResultApplied, actions[1].Result)
	assert.Equal(t, domain.ResultFailed, actions[2].Result, "no actuation without an intent entry")

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.ActionDisablePort, calls[0].Kind)
}

func TestExecute_ActuatorPanicIsContained(t *testing.T) {
	rec := actuation.NewRecorder()
	rec.On("R2", func(context.Context, actuation.Request) (actuation.Response, error) {
		panic("driver bug")
	})

	plan, err := NewPlan(approvedCase(), domain.ModeLive)
	require.NoError(t, err)
	actions := newExecutor(t, rec, time.Second).Execute(context.Background(), plan, &memoryGate{})

	assert.Equal(t, domain.ResultApplied, actions[0].Result)
	assert.Equal(t, domain.ResultApplied, actions[1].Result)
	assert.Equal(t, domain.ResultFailed, actions[2].Result)
	assert.Contains(t, actions[2].Note, "driver bug")
}

func TestSettings_Validate(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())
	assert.ErrorIs(t, Settings{Parallelism: 1}.Validate(), domain.ErrConfiguration)
	assert.ErrorIs(t, Settings{ActionTimeout: time.Second}.Validate(), domain.ErrConfiguration)

	_, err := NewExecutor(nil, DefaultSettings())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
