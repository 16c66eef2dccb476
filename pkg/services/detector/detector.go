package detector

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/services/actuation"
	"github.com/de-tools/linkmind/pkg/services/remediation"
)

// LinkSnapshot is the structured telemetry of one microwave link at one instant.
type LinkSnapshot struct {
	LinkID string `json:"link_id" yaml:"link_id"`
	Node   string `json:"node" yaml:"node"`
	Site   string `json:"site" yaml:"site"`
	Region string `json:"region" yaml:"region"`

	// Resource ids default to the link id suffixed with the resource kind.
	LicenseID string `json:"license_id,omitempty" yaml:"license_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty" yaml:"channel_id,omitempty"`
	PortID    string `json:"port_id,omitempty" yaml:"port_id,omitempty"`

	ObservedAt           time.Time `json:"observed_at" yaml:"observed_at"`
	ReservedCapacityMbps float64   `json:"reserved_capacity_mbps" yaml:"reserved_capacity_mbps"`
	ThroughputMbps       float64   `json:"throughput_mbps" yaml:"throughput_mbps"`
	BandwidthMHz         float64   `json:"bandwidth_mhz" yaml:"bandwidth_mhz"`
	AdminStatus          string    `json:"admin_status" yaml:"admin_status"`
	PowerDrawW           float64   `json:"power_draw_w,omitempty" yaml:"power_draw_w,omitempty"`
}

func (s LinkSnapshot) resourceID(explicit, suffix string) string {
	if explicit != "" {
		return explicit
	}
	return s.LinkID + ":" + suffix
}

type Settings struct {
	// SafetyMargin is the headroom applied to peak throughput to size the license that is needed.
	SafetyMargin float64 `mapstructure:"safety_margin"`
	// HoardingFactor flags a license reserving more than this multiple of the needed capacity.
	HoardingFactor    float64 `mapstructure:"hoarding_factor"`
	HoardingFloorMbps float64 `mapstructure:"hoarding_floor_mbps"`
	WideChannelMHz    float64 `mapstructure:"wide_channel_mhz"`
	NarrowChannelMHz  float64 `mapstructure:"narrow_channel_mhz"`
	SpectrumIdleMbps  float64 `mapstructure:"spectrum_idle_mbps"`
	ZombieIdleMbps    float64 `mapstructure:"zombie_idle_mbps"`
	// DefaultPortPowerW is used when the snapshot carries no power reading.
	DefaultPortPowerW float64 `mapstructure:"default_port_power_w"`
}

func DefaultSettings() Settings {
	return Settings{
		SafetyMargin:      1.2,
		HoardingFactor:    1.5,
		HoardingFloorMbps: 50,
		WideChannelMHz:    56,
		NarrowChannelMHz:  28,
		SpectrumIdleMbps:  50,
		ZombieIdleMbps:    1,
		DefaultPortPowerW: 10,
	}
}

type Detector struct {
	settings Settings
}

func New(settings Settings) *Detector {
	return &Detector{settings: settings}
}

// Detect applies every rule to the snapshot and returns one offense record per rule that fires.
// A link can commit several offenses at once.
func (d *Detector) Detect(s LinkSnapshot) ([]domain.OffenseInput, error) {
	if strings.TrimSpace(s.LinkID) == "" {
		return nil, fmt.Errorf("%w: snapshot without link id", domain.ErrMalformedOffense)
	}
	if s.ObservedAt.IsZero() {
		return nil, fmt.Errorf("%w: snapshot of %s has no observation time", domain.ErrMalformedOffense, s.LinkID)
	}

	var out []domain.OffenseInput
	at := s.ObservedAt.UTC().Format(time.RFC3339Nano)
	base := func(id string, rk domain.ResourceKind, kind domain.OffenseKind, magnitude float64, evidence string) domain.OffenseInput {
		m := magnitude
		return domain.OffenseInput{
			ResourceID:   id,
			ResourceKind: string(rk),
			Node:         s.Node,
			Site:         s.Site,
			Region:       s.Region,
			Kind:         string(kind),
			Magnitude:    &m,
			DetectedAt:   at,
			Evidence:     evidence,
			Attributes:   map[string]string{"link_id": s.LinkID},
		}
	}

	needed := float64(int(s.ThroughputMbps * d.settings.SafetyMargin))
	if s.ReservedCapacityMbps > needed*d.settings.HoardingFactor && s.ReservedCapacityMbps > d.settings.HoardingFloorMbps {
		wasted := s.ReservedCapacityMbps - needed
		in := base(s.resourceID(s.LicenseID, "license"), domain.ResourceKindLicense, domain.OffenseLicenseHoarding, wasted,
			fmt.Sprintf("hoarding %sMbps: reserved %s, needed %s", num(wasted), num(s.ReservedCapacityMbps), num(needed)))
		in.Attributes[remediation.AttrReservedCapacity] = num(s.ReservedCapacityMbps)
		in.Attributes[actuation.ParamTargetCapacity] = num(needed)
		out = append(out, in)
	}

	if s.BandwidthMHz == d.settings.WideChannelMHz && s.ThroughputMbps < d.settings.SpectrumIdleMbps {
		wasted := d.settings.WideChannelMHz - d.settings.NarrowChannelMHz
		in := base(s.resourceID(s.ChannelID, "channel"), domain.ResourceKindSpectrumChannel, domain.OffenseSpectrumWaste, wasted,
			fmt.Sprintf("%sMHz channel carrying %sMbps", num(s.BandwidthMHz), num(s.ThroughputMbps)))
		in.Attributes[remediation.AttrBandwidth] = num(s.BandwidthMHz)
		in.Attributes[actuation.ParamTargetBandwidth] = num(d.settings.NarrowChannelMHz)
		out = append(out, in)
	}

	if strings.EqualFold(s.AdminStatus, "UP") && s.ThroughputMbps < d.settings.ZombieIdleMbps {
		power := s.PowerDrawW
		if power <= 0 {
			power = d.settings.DefaultPortPowerW
		}
		in := base(s.resourceID(s.PortID, "port"), domain.ResourceKindPort, domain.OffenseZombiePort, power,
			fmt.Sprintf("port admin UP carrying %sMbps", num(s.ThroughputMbps)))
		out = append(out, in)
	}

	return out, nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
