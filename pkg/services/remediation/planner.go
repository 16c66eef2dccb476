package remediation

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/services/actuation"
	"github.com/google/uuid"
)

var actionNamespace = uuid.MustParse("b7d4c1a9-5e2f-4f83-9a6b-0c8e7d1f2a34")

// Telemetry attributes the planner reads from the latest offense of a charge.
const (
	AttrReservedCapacity = "reserved_capacity_mbps"
	AttrBandwidth        = "bandwidth_mhz"
)

// Plan is the ordered list of actions for one approved case.
type Plan struct {
	CaseID  string
	Mode    domain.Mode
	Actions []domain.RemediationAction
}

// NewPlan derives one action per charge, ordered by resource id and then by ascending risk.
func NewPlan(c domain.RICOCase, mode domain.Mode) (Plan, error) {
	if c.Status != domain.CaseApproved {
		return Plan{}, fmt.Errorf("case %s is %s, only approved cases can be planned", c.ID, c.Status)
	}
	if _, err := domain.ParseMode(string(mode)); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	plan := Plan{CaseID: c.ID, Mode: mode}
	for _, ch := range c.Charges {
		kind, ok := domain.ActionFor(ch.Kind)
		if !ok {
			return Plan{}, fmt.Errorf("no remediation for offense kind %s", ch.Kind)
		}
		a := domain.RemediationAction{
			ID:         ActionID(c.ID, mode, ch.ResourceID, kind),
			CaseID:     c.ID,
			ResourceID: ch.ResourceID,
			Kind:       kind,
			Params:     paramsFor(kind, ch.Latest),
			DryRun:     mode == domain.ModeDryRun,
			Result:     domain.ResultPending,
			OffenseIDs: append([]string(nil), ch.OffenseIDs...),
		}
		if ch.Estimate != nil && ch.Estimate.Amount != nil {
			v := *ch.Estimate.Amount
			a.Savings = &v
			a.Currency = ch.Estimate.Currency
		}
		plan.Actions = append(plan.Actions, a)
	}

	sort.SliceStable(plan.Actions, func(i, j int) bool {
		ai, aj := plan.Actions[i], plan.Actions[j]
		if ai.ResourceID != aj.ResourceID {
			return ai.ResourceID < aj.ResourceID
		}
		return ai.Kind.Risk() < aj.Kind.Risk()
	})
	return plan, nil
}

// ActionID is stable for a case, mode, resource and action kind, so a re-run of the same case
// addresses the same actions.
func ActionID(caseID string, mode domain.Mode, resourceID string, kind domain.ActionKind) string {
	name := fmt.Sprintf("%s|%s|%s|%s", caseID, mode, resourceID, kind)
	return uuid.NewSHA1(actionNamespace, []byte(name)).String()
}

func paramsFor(kind domain.ActionKind, latest domain.Offense) map[string]string {
	params := map[string]string{
		"offense_kind": string(latest.Kind),
		"magnitude":    formatFloat(latest.Magnitude),
		"unit":         latest.Unit,
	}

	switch kind {
	case domain.ActionRevokeLicense:
		if v, ok := latest.Attributes[actuation.ParamTargetCapacity]; ok {
			params[actuation.ParamTargetCapacity] = v
		} else if reserved, ok := floatAttr(latest.Attributes, AttrReservedCapacity); ok {
			params[actuation.ParamTargetCapacity] = formatFloat(max(reserved-latest.Magnitude, 0))
		}
	case domain.ActionReclaimSpectrum:
		if v, ok := latest.Attributes[actuation.ParamTargetBandwidth]; ok {
			params[actuation.ParamTargetBandwidth] = v
		} else if bw, ok := floatAttr(latest.Attributes, AttrBandwidth); ok {
			params[actuation.ParamTargetBandwidth] = formatFloat(max(bw-latest.Magnitude, 0))
		}
	}
	return params
}

func floatAttr(attrs map[string]string, key string) (float64, bool) {
	raw, ok := attrs[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
