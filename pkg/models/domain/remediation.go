package domain

import "fmt"

type Mode string

const (
	ModeDryRun Mode = "dry-run"
	ModeLive   Mode = "live"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeDryRun, ModeLive:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected dry-run or live)", s)
	}
}

type ActionKind string

const (
	ActionRevokeLicense   ActionKind = "revoke_license"
	ActionDisablePort     ActionKind = "disable_port"
	ActionReclaimSpectrum ActionKind = "reclaim_spectrum"
)

// Risk ranks actions; lower values are reversible and run first within a resource.
func (k ActionKind) Risk() int {
	switch k {
	case ActionRevokeLicense:
		return 0
	case ActionDisablePort:
		return 1
	case ActionReclaimSpectrum:
		return 2
	default:
		return 99
	}
}

// ActionFor maps an offense kind to the remediation that addresses it.
func ActionFor(kind OffenseKind) (ActionKind, bool) {
	switch kind {
	case OffenseLicenseHoarding:
		return ActionRevokeLicense, true
	case OffenseZombiePort:
		return ActionDisablePort, true
	case OffenseSpectrumWaste:
		return ActionReclaimSpectrum, true
	default:
		return "", false
	}
}

type ActionResult string

const (
	ResultPending ActionResult = "pending"
	ResultApplied ActionResult = "applied"
	ResultFailed  ActionResult = "failed"
	ResultSkipped ActionResult = "skipped"
)

func (r ActionResult) Terminal() bool {
	return r == ResultApplied || r == ResultFailed || r == ResultSkipped
}

type RemediationAction struct {
	ID         string
	CaseID     string
	ResourceID string
	Kind       ActionKind
	Params     map[string]string
	DryRun     bool
	Result     ActionResult
	Note       string
	OffenseIDs []string
	// Savings is the priced value of the charge the action addresses, nil when unpriced.
	Savings  *float64
	Currency string
}
