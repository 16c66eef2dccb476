package adapters

import (
	"time"

	"github.com/de-tools/linkmind/pkg/models/api"
	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/models/store"
)

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func MapDomainIngestResultsToAPI(results []domain.IngestResult) api.IngestResponse {
	resp := api.IngestResponse{Results: make([]api.IngestResult, 0, len(results))}
	for _, r := range results {
		out := api.IngestResult{Index: r.Index, OffenseID: r.OffenseID, Status: string(r.Status)}
		if r.Err != nil {
			out.Error = r.Err.Error()
		}
		switch r.Status {
		case domain.IngestAccepted:
			resp.Accepted++
		case domain.IngestDuplicate:
			resp.Duplicates++
		default:
			resp.Rejected++
		}
		resp.Results = append(resp.Results, out)
	}
	return resp
}

func MapDomainResourceToAPI(r domain.Resource) api.Resource {
	out := api.Resource{
		ID:          r.ID,
		Kind:        string(r.Kind),
		Scope:       api.Scope{Node: r.Scope.Node, Site: r.Scope.Site, Region: r.Scope.Region},
		Status:      r.Status.String(),
		FirstSeen:   r.FirstSeen,
		StatusSince: r.StatusSince,
	}
	for _, t := range r.History {
		out.History = append(out.History, api.Transition{
			From:   t.From.String(),
			To:     t.To.String(),
			At:     t.At,
			Reason: t.Reason,
		})
	}
	return out
}

func MapDomainOffenseToAPI(o domain.Offense) api.Offense {
	return api.Offense{
		ID:         o.ID,
		Kind:       string(o.Kind),
		Magnitude:  o.Magnitude,
		Unit:       o.Unit,
		DetectedAt: o.DetectedAt,
		Evidence:   o.Evidence,
		Attributes: o.Attributes,
	}
}

func MapDomainProbationCaseToAPI(c domain.ProbationCase) api.ProbationCase {
	severity := make(map[string]float64, len(c.Severity))
	for k, v := range c.Severity {
		severity[string(k)] = v
	}
	return api.ProbationCase{
		ID:                 c.ID,
		OpenedAt:           c.OpenedAt,
		WindowEnd:          c.WindowEnd,
		RedemptionDeadline: c.RedemptionDeadline,
		OffenseCount:       c.OffenseCount,
		Severity:           severity,
		Outcome:            string(c.Outcome),
		ClosedAt:           timePtr(c.ClosedAt),
		CloseReason:        c.CloseReason,
	}
}

func MapDomainRICOCaseToAPI(c domain.RICOCase) api.Case {
	out := api.Case{
		ID:           c.ID,
		Scope:        c.Scope.String(),
		ResourceIDs:  append([]string(nil), c.ResourceIDs...),
		CreatedAt:    c.CreatedAt,
		Status:       string(c.Status),
		Partial:      c.Partial,
		ExecutedAt:   timePtr(c.ExecutedAt),
		RejectReason: c.RejectReason,
	}
	for _, k := range c.OffenseKinds {
		out.OffenseKinds = append(out.OffenseKinds, string(k))
	}
	for _, ch := range c.Charges {
		charge := api.Charge{ResourceID: ch.ResourceID, Kind: string(ch.Kind), OffenseIDs: ch.OffenseIDs}
		if e := ch.Estimate; e != nil {
			charge.Estimate = &api.Estimate{
				Kind:      string(e.Kind),
				Magnitude: e.Magnitude,
				Unit:      e.Unit,
				Rate:      e.Rate,
				Currency:  e.Currency,
				Amount:    e.Amount,
			}
		}
		out.Charges = append(out.Charges, charge)
	}
	if c.Pricing != nil {
		out.Currency = c.Pricing.Currency
		out.TotalSavings = c.Pricing.TotalSavings
		out.UnpricedCount = c.Pricing.UnpricedCount
	}
	return out
}

func MapDomainActionToAPI(a domain.RemediationAction) api.Action {
	return api.Action{
		ID:         a.ID,
		ResourceID: a.ResourceID,
		Kind:       string(a.Kind),
		Params:     a.Params,
		DryRun:     a.DryRun,
		Result:     string(a.Result),
		Note:       a.Note,
		Savings:    a.Savings,
		Currency:   a.Currency,
	}
}

func MapDomainCycleSummaryToAPI(s domain.CycleSummary) api.CycleSummary {
	out := api.CycleSummary{
		ID:                 s.ID,
		Mode:               string(s.Mode),
		StartedAt:          s.StartedAt,
		FinishedAt:         s.FinishedAt,
		ResourcesConvicted: s.ResourcesConvicted,
		PendingResources:   s.PendingResources,
		CasesFormed:        s.CasesFormed,
		CasesRejected:      s.CasesRejected,
		Currency:           s.Currency,
		TotalSavings:       s.TotalSavings,
		RecoveredValue:     s.RecoveredValue,
		UnpricedOffenses:   s.UnpricedOffenses,
		MalformedOffenses:  s.MalformedOffenses,
		ActionsApplied:     s.ActionsApplied,
		ActionsFailed:      s.ActionsFailed,
		ActionsSkipped:     s.ActionsSkipped,
		Cases:              make([]api.CaseReport, 0, len(s.Cases)),
		Errors:             s.Errors,
	}
	for _, r := range s.Cases {
		report := api.CaseReport{Case: MapDomainRICOCaseToAPI(r.Case), Error: r.Err}
		for _, a := range r.Actions {
			report.Actions = append(report.Actions, MapDomainActionToAPI(a))
		}
		out.Cases = append(out.Cases, report)
	}
	return out
}

func MapStoreCycleRunToAPI(r store.CycleRun) api.CycleRun {
	return api.CycleRun{
		ID:             r.ID,
		Mode:           r.Mode,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		CasesFormed:    r.CasesFormed,
		ActionsApplied: r.ActionsApplied,
		ActionsFailed:  r.ActionsFailed,
		ActionsSkipped: r.ActionsSkipped,
		TotalSavings:   r.TotalSavings,
		Currency:       r.Currency,
		Errors:         r.Errors,
	}
}

func MapDomainAuditEntryToAPI(e domain.AuditEntry) api.AuditEntry {
	return api.AuditEntry{
		Seq:        e.Seq,
		Timestamp:  e.Timestamp,
		Phase:      string(e.Phase),
		CaseID:     e.CaseID,
		ActionID:   e.ActionID,
		ResourceID: e.ResourceID,
		Action:     string(e.Action),
		Mode:       string(e.Mode),
		OffenseIDs: e.OffenseIDs,
		Result:     string(e.Result),
		Note:       e.Note,
	}
}
