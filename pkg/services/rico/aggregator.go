package rico

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var caseNamespace = uuid.MustParse("3f8e5a2d-9b1c-4c7a-8e0f-2a6d4b9c1e57")

type Settings struct {
	// Levels lists the grouping keys from the narrowest to the widest.
	Levels []domain.ScopeLevel
	// MinDistinctKinds is the number of distinct offense kinds a group needs to form a case.
	MinDistinctKinds int
}

func DefaultSettings() Settings {
	return Settings{
		Levels:           []domain.ScopeLevel{domain.ScopeSite, domain.ScopeRegion},
		MinDistinctKinds: 2,
	}
}

func (s Settings) Validate() error {
	if len(s.Levels) == 0 {
		return fmt.Errorf("%w: at least one aggregation scope is required", domain.ErrConfiguration)
	}
	for i := 1; i < len(s.Levels); i++ {
		if s.Levels[i] <= s.Levels[i-1] {
			return fmt.Errorf("%w: aggregation scopes must go from narrowest to widest, got %s before %s",
				domain.ErrConfiguration, s.Levels[i-1], s.Levels[i])
		}
	}
	if s.MinDistinctKinds < 2 {
		return fmt.Errorf("%w: a RICO case needs at least two distinct offense kinds", domain.ErrConfiguration)
	}
	return nil
}

type Result struct {
	Formed  []domain.RICOCase
	Pending []string
}

type Aggregator struct {
	settings Settings
}

func NewAggregator(settings Settings) (*Aggregator, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{settings: settings}, nil
}

// Aggregate groups convicted resources without an open case into draft cases. Groups are tried
// from the narrowest scope outwards, so a resource joins the narrowest qualifying group. Groups
// holding a single offense kind stay pending.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	snapshot []domain.ConvictedResource,
	docket *Docket,
	now time.Time,
) (Result, error) {
	logger := zerolog.Ctx(ctx)

	remaining := make(map[string]domain.ConvictedResource, len(snapshot))
	for _, cr := range snapshot {
		if open, busy := docket.OpenCaseOf(cr.Resource.ID); busy {
			logger.Debug().Str("resource", cr.Resource.ID).Str("case", open).Msg("resource already in open case")
			continue
		}
		remaining[cr.Resource.ID] = cr
	}

	var result Result
	for _, level := range a.settings.Levels {
		for _, group := range groupBy(remaining, level) {
			kinds := distinctKinds(group.members)
			if len(kinds) < a.settings.MinDistinctKinds {
				continue
			}

			c := buildCase(group.scope, group.members, kinds, now)
			base := c.ID
			c.ID = caseID(base, docket.attempt(base))
			created, err := docket.File(c, base)
			if err != nil {
				return result, fmt.Errorf("file case for %s: %w", group.scope, err)
			}
			for _, m := range group.members {
				delete(remaining, m.Resource.ID)
			}
			if !created {
				continue
			}

			logger.Info().
				Str("case", c.ID).
				Str("scope", group.scope.String()).
				Strs("resources", c.ResourceIDs).
				Int("kinds", len(kinds)).
				Msg("rico case formed")
			result.Formed = append(result.Formed, c)
		}
	}

	for id := range remaining {
		result.Pending = append(result.Pending, id)
	}
	sort.Strings(result.Pending)
	return result, nil
}

type group struct {
	scope   domain.ScopeRef
	members []domain.ConvictedResource
}

func groupBy(candidates map[string]domain.ConvictedResource, level domain.ScopeLevel) []group {
	byKey := make(map[string][]domain.ConvictedResource)
	for _, cr := range candidates {
		key := cr.Resource.Scope.Key(level)
		if key == "" {
			continue
		}
		byKey[key] = append(byKey[key], cr)
	}

	groups := make([]group, 0, len(byKey))
	for key, members := range byKey {
		sort.Slice(members, func(i, j int) bool { return members[i].Resource.ID < members[j].Resource.ID })
		groups = append(groups, group{
			scope:   domain.ScopeRef{Level: level, Value: key},
			members: members,
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].scope.Value < groups[j].scope.Value })
	return groups
}

func distinctKinds(members []domain.ConvictedResource) []domain.OffenseKind {
	seen := make(map[domain.OffenseKind]bool)
	var kinds []domain.OffenseKind
	for _, m := range members {
		for _, o := range m.Offenses {
			if !seen[o.Kind] {
				seen[o.Kind] = true
				kinds = append(kinds, o.Kind)
			}
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// buildCase assembles a draft whose id is derived from its scope and members, so the same
// convictions always produce the same case.
func buildCase(scope domain.ScopeRef, members []domain.ConvictedResource, kinds []domain.OffenseKind, now time.Time) domain.RICOCase {
	c := domain.RICOCase{
		Scope:        scope,
		OffenseKinds: kinds,
		CreatedAt:    now,
		Status:       domain.CaseDraft,
	}

	var name strings.Builder
	name.WriteString(scope.String())
	for _, m := range members {
		c.ResourceIDs = append(c.ResourceIDs, m.Resource.ID)
		fmt.Fprintf(&name, "|%s@%d", m.Resource.ID, m.ConvictedAt.UnixNano())
		c.Charges = append(c.Charges, chargesOf(m)...)
	}
	c.ID = uuid.NewSHA1(caseNamespace, []byte(name.String())).String()
	return c
}

// chargesOf folds the evidence of one resource into one charge per offense kind.
func chargesOf(m domain.ConvictedResource) []domain.Charge {
	byKind := make(map[domain.OffenseKind]*domain.Charge)
	var order []domain.OffenseKind
	for _, o := range m.Offenses {
		ch, ok := byKind[o.Kind]
		if !ok {
			ch = &domain.Charge{ResourceID: m.Resource.ID, Kind: o.Kind, Latest: o}
			byKind[o.Kind] = ch
			order = append(order, o.Kind)
		}
		ch.OffenseIDs = append(ch.OffenseIDs, o.ID)
		if !o.DetectedAt.Before(ch.Latest.DetectedAt) {
			ch.Latest = o
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]domain.Charge, 0, len(order))
	for _, k := range order {
		out = append(out, *byKind[k])
	}
	return out
}

func caseID(base string, attempt int) string {
	if attempt == 0 {
		return base
	}
	return uuid.NewSHA1(caseNamespace, []byte(fmt.Sprintf("%s#%d", base, attempt))).String()
}
