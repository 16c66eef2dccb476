package adapters

import (
	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/models/store"
)

func MapDomainCycleSummaryToStore(id string, s domain.CycleSummary) store.CycleRun {
	return store.CycleRun{
		ID:             id,
		Mode:           string(s.Mode),
		StartedAt:      s.StartedAt,
		FinishedAt:     s.FinishedAt,
		CasesFormed:    s.CasesFormed,
		ActionsApplied: s.ActionsApplied,
		ActionsFailed:  s.ActionsFailed,
		ActionsSkipped: s.ActionsSkipped,
		TotalSavings:   s.TotalSavings,
		Currency:       s.Currency,
		Errors:         append([]string(nil), s.Errors...),
	}
}
