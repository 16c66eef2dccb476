package api

import "time"

type CycleRequest struct {
	Mode string `json:"mode"`
	// Scope is "level=value", e.g. "site=DJELFA".
	Scope string `json:"scope,omitempty"`
}

type Estimate struct {
	Kind      string   `json:"kind"`
	Magnitude float64  `json:"magnitude"`
	Unit      string   `json:"unit"`
	Rate      float64  `json:"rate"`
	Currency  string   `json:"currency"`
	Amount    *float64 `json:"amount"`
}

type Charge struct {
	ResourceID string    `json:"resource_id"`
	Kind       string    `json:"kind"`
	OffenseIDs []string  `json:"offense_ids"`
	Estimate   *Estimate `json:"estimate,omitempty"`
}

type Case struct {
	ID            string     `json:"id"`
	Scope         string     `json:"scope"`
	ResourceIDs   []string   `json:"resource_ids"`
	OffenseKinds  []string   `json:"offense_kinds"`
	Charges       []Charge   `json:"charges"`
	Currency      string     `json:"currency,omitempty"`
	TotalSavings  float64    `json:"total_savings"`
	UnpricedCount int        `json:"unpriced_count"`
	CreatedAt     time.Time  `json:"created_at"`
	Status        string     `json:"status"`
	Partial       bool       `json:"partial"`
	ExecutedAt    *time.Time `json:"executed_at,omitempty"`
	RejectReason  string     `json:"reject_reason,omitempty"`
}

type Action struct {
	ID         string            `json:"id"`
	ResourceID string            `json:"resource_id"`
	Kind       string            `json:"kind"`
	Params     map[string]string `json:"params,omitempty"`
	DryRun     bool              `json:"dry_run"`
	Result     string            `json:"result"`
	Note       string            `json:"note,omitempty"`
	Savings    *float64          `json:"savings,omitempty"`
	Currency   string            `json:"currency,omitempty"`
}

type CaseReport struct {
	Case    Case     `json:"case"`
	Actions []Action `json:"actions"`
	Error   string   `json:"error,omitempty"`
}

type CycleSummary struct {
	ID                 string       `json:"id"`
	Mode               string       `json:"mode"`
	StartedAt          time.Time    `json:"started_at"`
	FinishedAt         time.Time    `json:"finished_at"`
	ResourcesConvicted int          `json:"resources_convicted"`
	PendingResources   int          `json:"pending_resources"`
	CasesFormed        int          `json:"cases_formed"`
	CasesRejected      int          `json:"cases_rejected"`
	Currency           string       `json:"currency,omitempty"`
	TotalSavings       float64      `json:"total_savings"`
	RecoveredValue     float64      `json:"recovered_value"`
	UnpricedOffenses   int          `json:"unpriced_offenses"`
	MalformedOffenses  int64        `json:"malformed_offenses"`
	ActionsApplied     int          `json:"actions_applied"`
	ActionsFailed      int          `json:"actions_failed"`
	ActionsSkipped     int          `json:"actions_skipped"`
	Cases              []CaseReport `json:"cases"`
	Errors             []string     `json:"errors,omitempty"`
}

type CycleRun struct {
	ID             string    `json:"id"`
	Mode           string    `json:"mode"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	CasesFormed    int       `json:"cases_formed"`
	ActionsApplied int       `json:"actions_applied"`
	ActionsFailed  int       `json:"actions_failed"`
	ActionsSkipped int       `json:"actions_skipped"`
	TotalSavings   float64   `json:"total_savings"`
	Currency       string    `json:"currency,omitempty"`
	Errors         []string  `json:"errors,omitempty"`
}

type Schedule struct {
	Name     string `json:"name"`
	Interval string `json:"interval"`
	Mode     string `json:"mode"`
	Scope    string `json:"scope,omitempty"`
}

type ScheduleStatus struct {
	Schedule
	Runs      int64      `json:"runs"`
	Failures  int64      `json:"failures"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastCycle string     `json:"last_cycle,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

type Rate struct {
	PerUnit float64 `json:"per_unit"`
	Unit    string  `json:"unit"`
}

type RateTable struct {
	Currency string          `json:"currency"`
	Rates    map[string]Rate `json:"rates"`
}

type Error struct {
	Error string `json:"error"`
}
