package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/de-tools/linkmind/pkg/adapters"
	"github.com/de-tools/linkmind/pkg/handlers/respond"
	"github.com/de-tools/linkmind/pkg/models/api"
	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/services/detector"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 8 << 20

type Ingestor interface {
	Ingest(ctx context.Context, inputs []domain.OffenseInput) ([]domain.IngestResult, error)
}

type Detector interface {
	Detect(s detector.LinkSnapshot) ([]domain.OffenseInput, error)
}

type Reader interface {
	Resources() []domain.Resource
	Resource(id string) (domain.Resource, bool)
	Offenses(id string) []domain.Offense
	Cases(id string) []domain.ProbationCase
}

type Handler struct {
	intake   Ingestor
	detector Detector
	ledger   Reader
}

func NewHandler(intake Ingestor, detector Detector, ledger Reader) *Handler {
	return &Handler{
		intake:   intake,
		detector: detector,
		ledger:   ledger,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/offenses", h.IngestOffenses)
	r.Post("/telemetry", h.IngestTelemetry)
	r.Get("/resources", h.ListResources)
	r.Get("/resources/{id}", h.GetResource)
}

// IngestOffenses accepts a JSON array of raw offense records.
func (h *Handler) IngestOffenses(w http.ResponseWriter, r *http.Request) {
	var inputs []domain.OffenseInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&inputs); err != nil {
		respond.Error(w, r, http.StatusBadRequest, fmt.Errorf("invalid offense batch: %w", err))
		return
	}
	h.ingest(w, r, inputs)
}

// IngestTelemetry runs the reference detector over a JSON array of link snapshots.
func (h *Handler) IngestTelemetry(w http.ResponseWriter, r *http.Request) {
	var snapshots []detector.LinkSnapshot
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&snapshots); err != nil {
		respond.Error(w, r, http.StatusBadRequest, fmt.Errorf("invalid telemetry batch: %w", err))
		return
	}

	var inputs []domain.OffenseInput
	for i, s := range snapshots {
		found, err := h.detector.Detect(s)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, fmt.Errorf("snapshot %d: %w", i, err))
			return
		}
		inputs = append(inputs, found...)
	}
	zerolog.Ctx(r.Context()).Debug().
		Int("snapshots", len(snapshots)).
		Int("offenses", len(inputs)).
		Msg("telemetry scanned")
	h.ingest(w, r, inputs)
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request, inputs []domain.OffenseInput) {
	results, err := h.intake.Ingest(r.Context(), inputs)
	if err != nil {
		respond.Error(w, r, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, adapters.MapDomainIngestResultsToAPI(results))
}

// ListResources supports status, node, site and region query filters.
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var status *domain.Status
	if raw := q.Get("status"); raw != "" {
		s, err := domain.ParseStatus(raw)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, err)
			return
		}
		status = &s
	}

	response := []api.Resource{}
	for _, res := range h.ledger.Resources() {
		if status != nil && res.Status != *status {
			continue
		}
		if !matches(q.Get("node"), res.Scope.Node) || !matches(q.Get("site"), res.Scope.Site) ||
			!matches(q.Get("region"), res.Scope.Region) {
			continue
		}
		out := adapters.MapDomainResourceToAPI(res)
		out.History = nil
		response = append(response, out)
	}
	respond.JSON(w, r, http.StatusOK, response)
}

func matches(filter, value string) bool {
	return filter == "" || filter == value
}

func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, ok := h.ledger.Resource(id)
	if !ok {
		respond.Error(w, r, http.StatusNotFound, fmt.Errorf("%w: %s", domain.ErrUnknownResource, id))
		return
	}

	detail := api.ResourceDetail{
		Resource:       adapters.MapDomainResourceToAPI(res),
		Offenses:       []api.Offense{},
		ProbationCases: []api.ProbationCase{},
	}
	for _, o := range h.ledger.Offenses(id) {
		detail.Offenses = append(detail.Offenses, adapters.MapDomainOffenseToAPI(o))
	}
	for _, c := range h.ledger.Cases(id) {
		detail.ProbationCases = append(detail.ProbationCases, adapters.MapDomainProbationCaseToAPI(c))
	}
	respond.JSON(w, r, http.StatusOK, detail)
}
