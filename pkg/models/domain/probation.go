package domain

import "time"

type CaseOutcome string

const (
	CaseOpen     CaseOutcome = "open"
	CaseRedeemed CaseOutcome = "redeemed"
	CaseFailed   CaseOutcome = "failed"
)

// ProbationCase tracks one observation window of a resource. At most one is open per resource.
type ProbationCase struct {
	ID                 string
	ResourceID         string
	OpenedAt           time.Time
	WindowStart        time.Time
	WindowEnd          time.Time
	RedemptionDeadline time.Time
	LastOffenseAt      time.Time
	OffenseCount       int
	Severity           map[OffenseKind]float64
	OffenseIDs         []string
	Outcome            CaseOutcome
	ClosedAt           time.Time
	CloseReason        string
}

func (c *ProbationCase) IsOpen() bool {
	return c != nil && c.Outcome == CaseOpen
}

// Thresholds parameterize the ledger. All values are required configuration.
type Thresholds struct {
	ObservationWindow   time.Duration
	RedemptionPeriod    time.Duration
	RemediationCooldown time.Duration
	ConvictionCount     int
	// SeverityCutoff convicts as soon as the combined magnitude of one kind within the window
	// reaches the cutoff. Kinds without an entry are judged by count only.
	SeverityCutoff map[OffenseKind]float64
}

func (c ProbationCase) Clone() ProbationCase {
	c.OffenseIDs = append([]string(nil), c.OffenseIDs...)
	sev := make(map[OffenseKind]float64, len(c.Severity))
	for k, v := range c.Severity {
		sev[k] = v
	}
	c.Severity = sev
	return c
}
