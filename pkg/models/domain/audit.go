package domain

import "time"

type AuditPhase string

const (
	AuditIntent  AuditPhase = "intent"
	AuditOutcome AuditPhase = "outcome"
)

// AuditEntry is one line of the append-only audit trail.
type AuditEntry struct {
	Seq        int64
	Timestamp  time.Time
	Phase      AuditPhase
	CaseID     string
	ActionID   string
	ResourceID string
	Action     ActionKind
	Mode       Mode
	OffenseIDs []string
	Result     ActionResult
	Note       string
}

// SavingsRecord is the recovered value of one applied action.
type SavingsRecord struct {
	ActionID   string
	CaseID     string
	ResourceID string
	Action     ActionKind
	Amount     float64
	Currency   string
	RecordedAt time.Time
}
