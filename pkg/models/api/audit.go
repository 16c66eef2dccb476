package api

import "time"

type AuditEntry struct {
	Seq        int64     `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	Phase      string    `json:"phase"`
	CaseID     string    `json:"case_id"`
	ActionID   string    `json:"action_id"`
	ResourceID string    `json:"resource_id"`
	Action     string    `json:"action"`
	Mode       string    `json:"mode"`
	OffenseIDs []string  `json:"offense_ids,omitempty"`
	Result     string    `json:"result,omitempty"`
	Note       string    `json:"note,omitempty"`
}

type Savings struct {
	Totals map[string]float64 `json:"totals"`
}
