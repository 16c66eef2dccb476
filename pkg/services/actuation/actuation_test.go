package actuation

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCommand(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		want    string
		wantErr bool
	}{
		{
			name: "license",
			req: Request{ResourceID: "DJELFA_GHOST_LINK", Kind: domain.ActionRevokeLicense,
				Params: map[string]string{ParamTargetCapacity: "60"}},
			want: "MOD MWLICENSE: ID=DJELFA_GHOST_LINK, CAP=60;",
		},
		{
			name: "spectrum",
			req: Request{ResourceID: "DJELFA_GHOST_LINK", Kind: domain.ActionReclaimSpectrum,
				Params: map[string]string{ParamTargetBandwidth: "28"}},
			want: "MOD MWPORT: ID=DJELFA_GHOST_LINK, AM=ENABLE, BW=28MHZ;",
		},
		{
			name: "zombie port",
			req:  Request{ResourceID: "DJELFA_GHOST_LINK", Kind: domain.ActionDisablePort},
			want: "MOD MWPORT: ID=DJELFA_GHOST_LINK, ADMIN=DOWN;",
		},
		{
			name:    "missing capacity",
			req:     Request{ResourceID: "X", Kind: domain.ActionRevokeLicense},
			wantErr: true,
		},
		{
			name: "garbage bandwidth",
			req: Request{ResourceID: "X", Kind: domain.ActionReclaimSpectrum,
				Params: map[string]string{ParamTargetBandwidth: "wide"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderCommand(tt.req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScriptActuator_DryRunWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	a := NewScriptActuator(&buf)

	resp, err := a.Actuate(context.Background(), Request{ResourceID: "P1", Kind: domain.ActionDisablePort, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultSkipped, resp.Result)
	assert.Contains(t, resp.Diagnostic, "ADMIN=DOWN")
	assert.Zero(t, buf.Len())

	resp, err = a.Actuate(context.Background(), Request{ActionID: "a1", ResourceID: "P1", Kind: domain.ActionDisablePort})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultApplied, resp.Result)
	assert.Equal(t, "// disable_port P1 (action a1)\nMOD MWPORT: ID=P1, ADMIN=DOWN;\n", buf.String())
}

func TestScriptActuator_UnrenderableIsFailed(t *testing.T) {
	var buf bytes.Buffer
	resp, err := NewScriptActuator(&buf).Actuate(context.Background(), Request{ResourceID: "L1", Kind: domain.ActionRevokeLicense})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultFailed, resp.Result)
	assert.Zero(t, buf.Len())
}

func TestThrottle_HonoursContext(t *testing.T) {
	rec := NewRecorder()
	th := Throttle(rec, 0.001, 1)

	_, err := th.Actuate(context.Background(), Request{ResourceID: "P1", Kind: domain.ActionDisablePort})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = th.Actuate(ctx, Request{ResourceID: "P2", Kind: domain.ActionDisablePort})
	assert.Error(t, err)

	_, err = th.Actuate(ctx, Request{ResourceID: "P3", Kind: domain.ActionDisablePort, DryRun: true})
	assert.NoError(t, err, "dry-run calls bypass the limiter")
	assert.Len(t, rec.Calls(), 2)
}
