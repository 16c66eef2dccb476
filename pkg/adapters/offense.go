package adapters

import (
	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/models/store"
)

func MapDomainOffenseToStore(o domain.Offense, kind domain.ResourceKind, scope domain.Scope) store.OffenseRecord {
	attrs := make(map[string]string, len(o.Attributes))
	for k, v := range o.Attributes {
		attrs[k] = v
	}
	return store.OffenseRecord{
		ID:           o.ID,
		ResourceID:   o.ResourceID,
		ResourceKind: string(kind),
		Node:         scope.Node,
		Site:         scope.Site,
		Region:       scope.Region,
		Kind:         string(o.Kind),
		Magnitude:    o.Magnitude,
		Unit:         o.Unit,
		DetectedAt:   o.DetectedAt,
		Evidence:     o.Evidence,
		Attributes:   attrs,
	}
}

// MapStoreOffenseToDomain rebuilds a journaled offense together with the descriptor of its resource.
func MapStoreOffenseToDomain(r store.OffenseRecord) (domain.Offense, domain.ResourceKind, domain.Scope) {
	return domain.Offense{
			ID:         r.ID,
			ResourceID: r.ResourceID,
			Kind:       domain.OffenseKind(r.Kind),
			Magnitude:  r.Magnitude,
			Unit:       r.Unit,
			DetectedAt: r.DetectedAt,
			Evidence:   r.Evidence,
			Attributes: r.Attributes,
		},
		domain.ResourceKind(r.ResourceKind),
		domain.Scope{Node: r.Node, Site: r.Site, Region: r.Region}
}
