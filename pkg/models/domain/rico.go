package domain

import "time"

type CaseStatus string

const (
	CaseDraft    CaseStatus = "draft"
	CaseApproved CaseStatus = "approved"
	CaseExecuted CaseStatus = "executed"
	CaseRejected CaseStatus = "rejected"
)

// IsOpen reports whether the case still holds its member resources.
func (s CaseStatus) IsOpen() bool {
	return s == CaseDraft || s == CaseApproved
}

// Estimate is the monetary value of one charge. Amount is nil when the offense is unpriced.
type Estimate struct {
	Kind      OffenseKind
	Magnitude float64
	Unit      string
	Rate      float64
	Currency  string
	Amount    *float64
}

func (e Estimate) Priced() bool {
	return e.Amount != nil
}

// Charge is one offense kind held against one member resource. The latest offense of that kind
// carries the current magnitude; all offense ids are kept as evidence.
type Charge struct {
	ResourceID string
	Kind       OffenseKind
	Latest     Offense
	OffenseIDs []string
	Estimate   *Estimate
}

type Pricing struct {
	Currency      string
	TotalSavings  float64
	PricedCount   int
	UnpricedCount int
	PricedAt      time.Time
}

// RICOCase aggregates convicted resources of one scope. It is immutable once executed.
type RICOCase struct {
	ID           string
	Scope        ScopeRef
	ResourceIDs  []string
	OffenseKinds []OffenseKind
	Charges      []Charge
	Pricing      *Pricing
	CreatedAt    time.Time
	Status       CaseStatus
	Partial      bool
	ExecutedAt   time.Time
	RejectReason string
}

// OffenseIDs returns every offense id justifying actions against the resource.
func (c *RICOCase) OffenseIDs(resourceID string) []string {
	var ids []string
	for _, ch := range c.Charges {
		if ch.ResourceID == resourceID {
			ids = append(ids, ch.OffenseIDs...)
		}
	}
	return ids
}

// ConvictedResource is the snapshot view of a convicted resource handed to the aggregator.
type ConvictedResource struct {
	Resource    Resource
	ConvictedAt time.Time
	Offenses    []Offense
}
