package intake

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/de-tools/linkmind/pkg/adapters"
	"github.com/de-tools/linkmind/pkg/metrics"
	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/models/store"
	"github.com/de-tools/linkmind/pkg/services/ledger"
	"github.com/de-tools/linkmind/pkg/store/journal"
	"github.com/rs/zerolog"
)

type Ledger interface {
	Record(ctx context.Context, obs ledger.Observation) (ledger.RecordOutcome, error)
}

// Service validates raw offense records and feeds the accepted ones to the ledger and the journal.
type Service struct {
	ledger    Ledger
	journal   journal.Store
	metrics   *metrics.Metrics
	malformed atomic.Int64
}

// NewService wires intake. The journal and metrics are optional.
func NewService(l Ledger, j journal.Store, m *metrics.Metrics) *Service {
	return &Service{
		ledger:  l,
		journal: j,
		metrics: m,
	}
}

// Ingest processes a batch record by record; a bad record never affects the others. The error
// reports a journal failure, in which case the ledger state is ahead of the journal.
func (s *Service) Ingest(ctx context.Context, inputs []domain.OffenseInput) ([]domain.IngestResult, error) {
	logger := zerolog.Ctx(ctx)
	results := make([]domain.IngestResult, 0, len(inputs))
	var accepted []store.OffenseRecord

	for i, in := range inputs {
		res := domain.IngestResult{Index: i}

		obs, err := Parse(in)
		if err != nil {
			res.Status = domain.IngestRejected
			res.Err = err
			s.reject(ctx, i, in, err)
			results = append(results, res)
			continue
		}
		res.OffenseID = obs.Offense.ID

		outcome, err := s.ledger.Record(ctx, obs)
		res.Status = outcome.Status
		if err != nil {
			res.Status = domain.IngestRejected
			res.Err = err
			s.reject(ctx, i, in, err)
			results = append(results, res)
			continue
		}

		s.metrics.ObserveOffense(string(obs.Offense.Kind), string(res.Status))
		if res.Status == domain.IngestAccepted {
			accepted = append(accepted, adapters.MapDomainOffenseToStore(obs.Offense, obs.ResourceKind, obs.Scope))
			if outcome.Convicted() {
				s.metrics.ObserveConviction(string(obs.ResourceKind))
				logger.Info().
					Str("resource", obs.Offense.ResourceID).
					Str("kind", string(obs.Offense.Kind)).
					Msg("resource convicted")
			}
		}
		results = append(results, res)
	}

	logger.Debug().
		Int("records", len(inputs)).
		Int("accepted", len(accepted)).
		Msg("offense batch ingested")

	if s.journal == nil || len(accepted) == 0 {
		return results, nil
	}
	if err := s.journal.Append(ctx, accepted); err != nil {
		logger.Error().Err(err).Int("records", len(accepted)).Msg("failed to journal accepted offenses")
		return results, fmt.Errorf("journal offenses: %w", err)
	}
	return results, nil
}

func (s *Service) reject(ctx context.Context, index int, in domain.OffenseInput, err error) {
	if errors.Is(err, domain.ErrMalformedOffense) {
		s.malformed.Add(1)
	}
	label := "invalid"
	if kind, err := domain.ParseOffenseKind(in.Kind); err == nil {
		label = string(kind)
	}
	s.metrics.ObserveOffense(label, string(domain.IngestRejected))
	zerolog.Ctx(ctx).Warn().
		Err(err).
		Int("index", index).
		Str("resource", in.ResourceID).
		Str("kind", in.Kind).
		Msg("offense rejected")
}

// Malformed is the number of malformed records seen since start.
func (s *Service) Malformed() int64 {
	return s.malformed.Load()
}

// Parse validates a raw record. Every error wraps domain.ErrMalformedOffense.
func Parse(in domain.OffenseInput) (ledger.Observation, error) {
	malformed := func(format string, args ...any) (ledger.Observation, error) {
		return ledger.Observation{}, fmt.Errorf("%w: %s", domain.ErrMalformedOffense, fmt.Sprintf(format, args...))
	}

	resourceID := strings.TrimSpace(in.ResourceID)
	if resourceID == "" {
		return malformed("resource id is required")
	}
	rk, err := domain.ParseResourceKind(strings.TrimSpace(in.ResourceKind))
	if err != nil {
		return malformed("%v", err)
	}
	kind, err := domain.ParseOffenseKind(strings.TrimSpace(in.Kind))
	if err != nil {
		return malformed("%v", err)
	}
	if kind.ResourceKind() != rk {
		return malformed("%s offense cannot target a %s resource", kind, rk)
	}
	if in.Magnitude == nil {
		return malformed("magnitude is required")
	}
	magnitude := *in.Magnitude
	if math.IsNaN(magnitude) || math.IsInf(magnitude, 0) || magnitude < 0 {
		return malformed("magnitude %v must be a finite non-negative number", magnitude)
	}
	raw := strings.TrimSpace(in.DetectedAt)
	if raw == "" {
		return malformed("detection timestamp is required")
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return malformed("detection timestamp %q is not RFC 3339", raw)
	}
	at = at.UTC()

	var attrs map[string]string
	if len(in.Attributes) > 0 {
		attrs = make(map[string]string, len(in.Attributes))
		for k, v := range in.Attributes {
			attrs[k] = v
		}
	}

	return ledger.Observation{
		Offense: domain.Offense{
			ID:         domain.OffenseID(resourceID, kind, at),
			ResourceID: resourceID,
			Kind:       kind,
			Magnitude:  magnitude,
			Unit:       kind.Unit(),
			DetectedAt: at,
			Evidence:   in.Evidence,
			Attributes: attrs,
		},
		ResourceKind: rk,
		Scope: domain.Scope{
			Node:   strings.TrimSpace(in.Node),
			Site:   strings.TrimSpace(in.Site),
			Region: strings.TrimSpace(in.Region),
		},
	}, nil
}
