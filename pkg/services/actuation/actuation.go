package actuation

import (
	"context"

	"github.com/de-tools/linkmind/pkg/models/domain"
)

// Request is one remediation step handed to the network actuation collaborator.
type Request struct {
	ActionID   string
	ResourceID string
	Kind       domain.ActionKind
	Params     map[string]string
	DryRun     bool
}

// Response is the collaborator's verdict: Applied or Failed, with optional diagnostics.
type Response struct {
	Result     domain.ActionResult
	Diagnostic string
}

// Actuator applies remediation steps. Calls with DryRun set must have no external side effects.
type Actuator interface {
	Actuate(ctx context.Context, req Request) (Response, error)
}

// Func adapts a function to the Actuator interface.
type Func func(ctx context.Context, req Request) (Response, error)

func (f Func) Actuate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
