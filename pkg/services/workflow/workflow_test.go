package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingCycler struct {
	mu    sync.Mutex
	calls []domain.CycleRequest
	fail  atomic.Bool
}

func (c *countingCycler) RunCycle(_ context.Context, req domain.CycleRequest) (domain.CycleSummary, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	c.mu.Unlock()
	summary := domain.CycleSummary{Mode: req.Mode, FinishedAt: time.Now()}
	if c.fail.Load() {
		return summary, errors.New("boom")
	}
	return summary, nil
}

func (c *countingCycler) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func TestController_StartRunsPeriodicallyUntilCancelled(t *testing.T) {
	ctx := context.Background()
	cycler := &countingCycler{}
	ctrl := NewController(cycler)

	schedule := Schedule{
		Name:     "djelfa-dry",
		Interval: 10 * time.Millisecond,
		Request:  domain.CycleRequest{Mode: domain.ModeDryRun, Scope: &domain.ScopeFilter{Level: domain.ScopeSite, Value: "DJELFA"}},
	}
	require.NoError(t, ctrl.Start(ctx, schedule))
	assert.Error(t, ctrl.Start(ctx, schedule), "same name twice")

	require.Eventually(t, func() bool { return cycler.count() >= 3 }, 2*time.Second, 5*time.Millisecond)

	statuses := ctrl.List()
	require.Len(t, statuses, 1)
	assert.Equal(t, "djelfa-dry", statuses[0].Schedule.Name)
	require.NotNil(t, statuses[0].Latest)
	assert.GreaterOrEqual(t, statuses[0].Latest.Runs, int64(1))

	require.NoError(t, ctrl.Cancel(ctx, "djelfa-dry"))
	assert.Empty(t, ctrl.List())
	assert.Error(t, ctrl.Cancel(ctx, "djelfa-dry"))

	after := cycler.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, cycler.count())

	cycler.mu.Lock()
	defer cycler.mu.Unlock()
	for _, req := range cycler.calls {
		assert.Equal(t, schedule.Request, req)
	}
}

func TestController_StartOutlivesCallerContext(t *testing.T) {
	cycler := &countingCycler{}
	ctrl := NewController(cycler)
	defer ctrl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, ctrl.Start(ctx, Schedule{Name: "live", Interval: 5 * time.Millisecond, Request: domain.CycleRequest{Mode: domain.ModeLive}}))
	cancel()

	require.Eventually(t, func() bool { return cycler.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestRunner_ReportsFailures(t *testing.T) {
	cycler := &countingCycler{}
	cycler.fail.Store(true)
	runner := NewRunner(Schedule{Name: "failing", Interval: time.Hour, Request: domain.CycleRequest{Mode: domain.ModeLive}}, cycler)

	ctx, cancel := context.WithCancel(context.Background())
	go runner.Run(ctx)

	p := <-runner.Progress()
	assert.Equal(t, int64(1), p.Runs)
	assert.Equal(t, int64(1), p.Failures)
	assert.EqualError(t, p.Err, "boom")

	cancel()
	<-runner.Done()
	_, open := <-runner.Progress()
	assert.False(t, open)
}

func TestSchedule_Validate(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
		wantErr  bool
	}{
		{"valid", Schedule{Name: "a", Interval: time.Minute, Request: domain.CycleRequest{Mode: domain.ModeLive}}, false},
		{"no name", Schedule{Interval: time.Minute, Request: domain.CycleRequest{Mode: domain.ModeLive}}, true},
		{"no interval", Schedule{Name: "a", Request: domain.CycleRequest{Mode: domain.ModeLive}}, true},
		{"bad mode", Schedule{Name: "a", Interval: time.Minute, Request: domain.CycleRequest{Mode: "often"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schedule.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrConfiguration)
				return
			}
			assert.NoError(t, err)
		})
	}
}
