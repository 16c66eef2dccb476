package api

import "time"

type IngestResult struct {
	Index     int    `json:"index"`
	OffenseID string `json:"offense_id,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type IngestResponse struct {
	Accepted   int            `json:"accepted"`
	Duplicates int            `json:"duplicates"`
	Rejected   int            `json:"rejected"`
	Results    []IngestResult `json:"results"`
}

type Offense struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Magnitude  float64           `json:"magnitude"`
	Unit       string            `json:"unit"`
	DetectedAt time.Time         `json:"detected_at"`
	Evidence   string            `json:"evidence,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}
