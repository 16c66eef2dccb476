package actuation

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/de-tools/linkmind/pkg/models/domain"
)

const (
	ParamTargetCapacity  = "target_capacity_mbps"
	ParamTargetBandwidth = "target_bandwidth_mhz"
)

// RenderCommand renders a remediation step as an MML command for RTN microwave equipment.
func RenderCommand(req Request) (string, error) {
	switch req.Kind {
	case domain.ActionRevokeLicense:
		capacity, err := intParam(req.Params, ParamTargetCapacity)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("MOD MWLICENSE: ID=%s, CAP=%d;", req.ResourceID, capacity), nil
	case domain.ActionReclaimSpectrum:
		bw, err := intParam(req.Params, ParamTargetBandwidth)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("MOD MWPORT: ID=%s, AM=ENABLE, BW=%dMHZ;", req.ResourceID, bw), nil
	case domain.ActionDisablePort:
		return fmt.Sprintf("MOD MWPORT: ID=%s, ADMIN=DOWN;", req.ResourceID), nil
	default:
		return "", fmt.Errorf("no command for action %q", req.Kind)
	}
}

func intParam(params map[string]string, key string) (int, error) {
	raw, ok := params[key]
	if !ok || raw == "" {
		return 0, fmt.Errorf("missing parameter %s", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid parameter %s=%q", key, raw)
	}
	return int(v), nil
}

// ScriptActuator commits each live step to a batch script that operators push to the network.
type ScriptActuator struct {
	mu sync.Mutex
	w  io.Writer
}

func NewScriptActuator(w io.Writer) *ScriptActuator {
	return &ScriptActuator{w: w}
}

func (s *ScriptActuator) Actuate(ctx context.Context, req Request) (Response, error) {
	cmd, err := RenderCommand(req)
	if err != nil {
		return Response{Result: domain.ResultFailed, Diagnostic: err.Error()}, nil
	}
	if req.DryRun {
		return Response{Result: domain.ResultSkipped, Diagnostic: "dry-run: " + cmd}, nil
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "// %s %s (action %s)\n%s\n", req.Kind, req.ResourceID, req.ActionID, cmd); err != nil {
		return Response{}, fmt.Errorf("write script: %w", err)
	}
	return Response{Result: domain.ResultApplied, Diagnostic: cmd}, nil
}
