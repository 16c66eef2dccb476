package api

import "time"

type Scope struct {
	Node   string `json:"node"`
	Site   string `json:"site"`
	Region string `json:"region"`
}

type Transition struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

type Resource struct {
	ID          string       `json:"id"`
	Kind        string       `json:"kind"`
	Scope       Scope        `json:"scope"`
	Status      string       `json:"status"`
	FirstSeen   time.Time    `json:"first_seen"`
	StatusSince time.Time    `json:"status_since"`
	History     []Transition `json:"history,omitempty"`
}

type ProbationCase struct {
	ID                 string             `json:"id"`
	OpenedAt           time.Time          `json:"opened_at"`
	WindowEnd          time.Time          `json:"window_end"`
	RedemptionDeadline time.Time          `json:"redemption_deadline"`
	OffenseCount       int                `json:"offense_count"`
	Severity           map[string]float64 `json:"severity"`
	Outcome            string             `json:"outcome"`
	ClosedAt           *time.Time         `json:"closed_at,omitempty"`
	CloseReason        string             `json:"close_reason,omitempty"`
}

type ResourceDetail struct {
	Resource
	Offenses       []Offense       `json:"offenses"`
	ProbationCases []ProbationCase `json:"probation_cases"`
}
