package store

import "time"

type OffenseRecord struct {
	ID           string
	ResourceID   string
	ResourceKind string
	Node         string
	Site         string
	Region       string
	Kind         string
	Magnitude    float64
	Unit         string
	DetectedAt   time.Time
	Evidence     string
	Attributes   map[string]string
	RecordedAt   time.Time
}
