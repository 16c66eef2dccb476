package store

import "time"

// CycleRun is the persisted summary of one remediation cycle.
type CycleRun struct {
	ID             string
	Mode           string
	StartedAt      time.Time
	FinishedAt     time.Time
	CasesFormed    int
	ActionsApplied int
	ActionsFailed  int
	ActionsSkipped int
	TotalSavings   float64
	Currency       string
	Errors         []string
}
