package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type OffenseKind string

const (
	OffenseLicenseHoarding OffenseKind = "license_hoarding"
	OffenseSpectrumWaste   OffenseKind = "spectrum_waste"
	OffenseZombiePort      OffenseKind = "zombie_port"
)

// offenseCatalog binds each offense kind to the resource kind it applies to and its unit.
var offenseCatalog = map[OffenseKind]struct {
	resource ResourceKind
	unit     string
}{
	OffenseLicenseHoarding: {ResourceKindLicense, "Mbps"},
	OffenseSpectrumWaste:   {ResourceKindSpectrumChannel, "MHz"},
	OffenseZombiePort:      {ResourceKindPort, "W"},
}

func ParseOffenseKind(s string) (OffenseKind, error) {
	k := OffenseKind(s)
	if _, ok := offenseCatalog[k]; !ok {
		return "", fmt.Errorf("unknown offense kind %q", s)
	}
	return k, nil
}

// ResourceKind returns the resource kind an offense of this kind must target.
func (k OffenseKind) ResourceKind() ResourceKind {
	return offenseCatalog[k].resource
}

// Unit is the unit of the offense magnitude.
func (k OffenseKind) Unit() string {
	return offenseCatalog[k].unit
}

func OffenseKinds() []OffenseKind {
	return []OffenseKind{OffenseLicenseHoarding, OffenseSpectrumWaste, OffenseZombiePort}
}

// Offense is an immutable record of one detected anomaly. Offenses reference resources by id only.
type Offense struct {
	ID         string
	ResourceID string
	Kind       OffenseKind
	Magnitude  float64
	Unit       string
	DetectedAt time.Time
	Evidence   string
	Attributes map[string]string
}

// DedupeKey identifies replays of the same observation.
type DedupeKey struct {
	ResourceID string
	Kind       OffenseKind
	At         int64
}

func (o Offense) DedupeKey() DedupeKey {
	return DedupeKey{ResourceID: o.ResourceID, Kind: o.Kind, At: o.DetectedAt.UnixNano()}
}

var offenseNamespace = uuid.MustParse("9a4c1c1e-58a3-4f0e-9a57-6c2f1f0b7d11")

// OffenseID derives a stable id from the dedupe key, so replays share the same identity.
func OffenseID(resourceID string, kind OffenseKind, at time.Time) string {
	name := resourceID + "|" + string(kind) + "|" + strconv.FormatInt(at.UnixNano(), 10)
	return uuid.NewSHA1(offenseNamespace, []byte(name)).String()
}

// OffenseInput is the raw record produced by an external detector, prior to validation.
type OffenseInput struct {
	ResourceID   string            `json:"resource_id" yaml:"resource_id"`
	ResourceKind string            `json:"resource_kind" yaml:"resource_kind"`
	Node         string            `json:"node" yaml:"node"`
	Site         string            `json:"site" yaml:"site"`
	Region       string            `json:"region" yaml:"region"`
	Kind         string            `json:"kind" yaml:"kind"`
	Magnitude    *float64          `json:"magnitude" yaml:"magnitude"`
	DetectedAt   string            `json:"detected_at" yaml:"detected_at"`
	Evidence     string            `json:"evidence" yaml:"evidence"`
	Attributes   map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

type IngestStatus string

const (
	IngestAccepted  IngestStatus = "accepted"
	IngestDuplicate IngestStatus = "duplicate"
	IngestRejected  IngestStatus = "rejected"
)

type IngestResult struct {
	Index     int
	OffenseID string
	Status    IngestStatus
	Err       error
}
