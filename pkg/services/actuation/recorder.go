package actuation

import (
	"context"
	"sync"

	"github.com/de-tools/linkmind/pkg/models/domain"
)

// Recorder is an in-memory actuator that remembers every call. Responses can be scripted per
// resource; unscripted live calls are Applied.
type Recorder struct {
	mu        sync.Mutex
	calls     []Request
	responses map[string]Func
	applied   map[string][]domain.ActionKind
}

func NewRecorder() *Recorder {
	return &Recorder{
		responses: make(map[string]Func),
		applied:   make(map[string][]domain.ActionKind),
	}
}

// On scripts the response for every call targeting the resource.
func (r *Recorder) On(resourceID string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[resourceID] = fn
}

func (r *Recorder) Actuate(ctx context.Context, req Request) (Response, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	fn := r.responses[req.ResourceID]
	r.mu.Unlock()

	if req.DryRun {
		return Response{Result: domain.ResultSkipped, Diagnostic: "dry-run"}, nil
	}

	resp := Response{Result: domain.ResultApplied}
	if fn != nil {
		var err error
		resp, err = fn(ctx, req)
		if err != nil {
			return resp, err
		}
	}
	if resp.Result == domain.ResultApplied {
		r.mu.Lock()
		r.applied[req.ResourceID] = append(r.applied[req.ResourceID], req.Kind)
		r.mu.Unlock()
	}
	return resp, nil
}

func (r *Recorder) Calls() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.calls...)
}

// Applied returns the externally observable state: the actions applied per resource.
func (r *Recorder) Applied() map[string][]domain.ActionKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]domain.ActionKind, len(r.applied))
	for k, v := range r.applied {
		out[k] = append([]domain.ActionKind(nil), v...)
	}
	return out
}
