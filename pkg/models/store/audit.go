package store

import "time"

type AuditRecord struct {
	Seq        int64
	Timestamp  time.Time
	Phase      string
	CaseID     string
	ActionID   string
	ResourceID string
	Action     string
	Mode       string
	OffenseIDs []string
	Result     string
	Note       string
}

type SavingsRecord struct {
	ActionID   string
	CaseID     string
	ResourceID string
	Action     string
	Amount     float64
	Currency   string
	RecordedAt time.Time
}
