package remediation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/de-tools/linkmind/pkg/adapters"
	"github.com/de-tools/linkmind/pkg/handlers/respond"
	"github.com/de-tools/linkmind/pkg/models/api"
	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/models/store"
	"github.com/de-tools/linkmind/pkg/services/roi"
	"github.com/de-tools/linkmind/pkg/services/workflow"
	"github.com/de-tools/linkmind/pkg/store/audit"
	"github.com/go-chi/chi/v5"
)

type CycleRunner interface {
	RunCycle(ctx context.Context, req domain.CycleRequest) (domain.CycleSummary, error)
}

type CaseLister interface {
	List() []domain.RICOCase
}

type TrailReader interface {
	Trail(ctx context.Context, filter audit.Filter) ([]domain.AuditEntry, error)
}

type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]store.CycleRun, error)
}

type SavingsReader interface {
	Totals(ctx context.Context) (map[string]float64, error)
}

type RateReloader interface {
	ReloadRates(ctx context.Context) (roi.RateTable, error)
}

type Scheduler interface {
	Start(ctx context.Context, schedule workflow.Schedule) error
	Cancel(ctx context.Context, name string) error
	List() []workflow.Status
}

// Dependencies may leave Runs, Savings, Rates and Scheduler nil; their routes then answer 501.
type Dependencies struct {
	Cycles    CycleRunner
	Cases     CaseLister
	Trail     TrailReader
	Runs      RunLister
	Savings   SavingsReader
	Rates     RateReloader
	Scheduler Scheduler
}

type Handler struct {
	deps Dependencies
}

func NewHandler(deps Dependencies) *Handler {
	return &Handler{deps: deps}
}

var errUnavailable = errors.New("not available in this deployment")

func (h *Handler) Routes(r chi.Router) {
	r.Post("/cycles", h.RunCycle)
	r.Get("/cycles", h.ListCycles)
	r.Get("/cases", h.ListCases)
	r.Get("/audit", h.ListAudit)
	r.Get("/savings", h.GetSavings)
	r.Post("/rates/reload", h.ReloadRates)
	r.Get("/schedules", h.ListSchedules)
	r.Post("/schedules", h.StartSchedule)
	r.Delete("/schedules/{name}", h.CancelSchedule)
}

func (h *Handler) RunCycle(w http.ResponseWriter, r *http.Request) {
	var req api.CycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, fmt.Errorf("invalid cycle request: %w", err))
		return
	}
	cycleReq, err := parseCycleRequest(req.Mode, req.Scope)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, err)
		return
	}

	summary, err := h.deps.Cycles.RunCycle(r.Context(), cycleReq)
	if errors.Is(err, domain.ErrConfiguration) {
		respond.Error(w, r, http.StatusBadRequest, err)
		return
	}
	// Case level failures are part of the summary.
	respond.JSON(w, r, http.StatusOK, adapters.MapDomainCycleSummaryToAPI(summary))
}

func parseCycleRequest(mode, scope string) (domain.CycleRequest, error) {
	if mode == "" {
		mode = string(domain.ModeDryRun)
	}
	m, err := domain.ParseMode(mode)
	if err != nil {
		return domain.CycleRequest{}, err
	}
	filter, err := domain.ParseScopeFilter(scope)
	if err != nil {
		return domain.CycleRequest{}, err
	}
	return domain.CycleRequest{Mode: m, Scope: filter}, nil
}

func (h *Handler) ListCycles(w http.ResponseWriter, r *http.Request) {
	if h.deps.Runs == nil {
		respond.Error(w, r, http.StatusNotImplemented, errUnavailable)
		return
	}
	limit, err := intQuery(r, "limit", 20)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, err)
		return
	}
	runs, err := h.deps.Runs.ListRuns(r.Context(), limit)
	if err != nil {
		respond.Error(w, r, http.StatusInternalServerError, err)
		return
	}
	response := make([]api.CycleRun, 0, len(runs))
	for _, run := range runs {
		response = append(response, adapters.MapStoreCycleRunToAPI(run))
	}
	respond.JSON(w, r, http.StatusOK, response)
}

func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	response := []api.Case{}
	for _, c := range h.deps.Cases.List() {
		if status != "" && string(c.Status) != status {
			continue
		}
		response = append(response, adapters.MapDomainRICOCaseToAPI(c))
	}
	respond.JSON(w, r, http.StatusOK, response)
}

func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, err)
		return
	}
	entries, err := h.deps.Trail.Trail(r.Context(), audit.Filter{
		CaseID:     q.Get("case_id"),
		ResourceID: q.Get("resource_id"),
		ActionID:   q.Get("action_id"),
		Phase:      q.Get("phase"),
		Result:     q.Get("result"),
		Mode:       q.Get("mode"),
		Limit:      limit,
	})
	if err != nil {
		respond.Error(w, r, http.StatusInternalServerError, err)
		return
	}
	response := make([]api.AuditEntry, 0, len(entries))
	for _, e := range entries {
		response = append(response, adapters.MapDomainAuditEntryToAPI(e))
	}
	respond.JSON(w, r, http.StatusOK, response)
}

func (h *Handler) GetSavings(w http.ResponseWriter, r *http.Request) {
	if h.deps.Savings == nil {
		respond.Error(w, r, http.StatusNotImplemented, errUnavailable)
		return
	}
	totals, err := h.deps.Savings.Totals(r.Context())
	if err != nil {
		respond.Error(w, r, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, api.Savings{Totals: totals})
}

func (h *Handler) ReloadRates(w http.ResponseWriter, r *http.Request) {
	if h.deps.Rates == nil {
		respond.Error(w, r, http.StatusNotImplemented, errUnavailable)
		return
	}
	table, err := h.deps.Rates.ReloadRates(r.Context())
	if errors.Is(err, domain.ErrConfiguration) {
		respond.Error(w, r, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		respond.Error(w, r, http.StatusInternalServerError, err)
		return
	}

	response := api.RateTable{Currency: table.Currency, Rates: make(map[string]api.Rate, len(table.Rates))}
	for kind, rate := range table.Rates {
		response.Rates[string(kind)] = api.Rate{PerUnit: rate.PerUnit, Unit: rate.Unit}
	}
	respond.JSON(w, r, http.StatusOK, response)
}

func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	if h.deps.Scheduler == nil {
		respond.Error(w, r, http.StatusNotImplemented, errUnavailable)
		return
	}
	response := []api.ScheduleStatus{}
	for _, s := range h.deps.Scheduler.List() {
		status := api.ScheduleStatus{Schedule: mapSchedule(s.Schedule)}
		if p := s.Latest; p != nil {
			status.Runs = p.Runs
			status.Failures = p.Failures
			status.LastCycle = p.Summary.ID
			if !p.LastRunAt.IsZero() {
				at := p.LastRunAt
				status.LastRunAt = &at
			}
			if p.Err != nil {
				status.LastError = p.Err.Error()
			}
		}
		response = append(response, status)
	}
	respond.JSON(w, r, http.StatusOK, response)
}

func (h *Handler) StartSchedule(w http.ResponseWriter, r *http.Request) {
	if h.deps.Scheduler == nil {
		respond.Error(w, r, http.StatusNotImplemented, errUnavailable)
		return
	}
	var req api.Schedule
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, fmt.Errorf("invalid schedule: %w", err))
		return
	}
	interval, err := time.ParseDuration(req.Interval)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, fmt.Errorf("invalid interval: %w", err))
		return
	}
	cycleReq, err := parseCycleRequest(req.Mode, req.Scope)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, err)
		return
	}

	schedule := workflow.Schedule{Name: req.Name, Interval: interval, Request: cycleReq}
	if err := schedule.Validate(); err != nil {
		respond.Error(w, r, http.StatusBadRequest, err)
		return
	}
	if err := h.deps.Scheduler.Start(r.Context(), schedule); err != nil {
		respond.Error(w, r, http.StatusConflict, err)
		return
	}
	respond.JSON(w, r, http.StatusCreated, mapSchedule(schedule))
}

func (h *Handler) CancelSchedule(w http.ResponseWriter, r *http.Request) {
	if h.deps.Scheduler == nil {
		respond.Error(w, r, http.StatusNotImplemented, errUnavailable)
		return
	}
	if err := h.deps.Scheduler.Cancel(r.Context(), chi.URLParam(r, "name")); err != nil {
		respond.Error(w, r, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func mapSchedule(s workflow.Schedule) api.Schedule {
	return api.Schedule{
		Name:     s.Name,
		Interval: s.Interval.String(),
		Mode:     string(s.Request.Mode),
		Scope:    s.Request.Scope.String(),
	}
}

func intQuery(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return v, nil
}
