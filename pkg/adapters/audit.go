package adapters

import (
	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/models/store"
)

func MapDomainAuditEntryToStore(e domain.AuditEntry) store.AuditRecord {
	return store.AuditRecord{
		Seq:        e.Seq,
		Timestamp:  e.Timestamp,
		Phase:      string(e.Phase),
		CaseID:     e.CaseID,
		ActionID:   e.ActionID,
		ResourceID: e.ResourceID,
		Action:     string(e.Action),
		Mode:       string(e.Mode),
		OffenseIDs: append([]string(nil), e.OffenseIDs...),
		Result:     string(e.Result),
		Note:       e.Note,
	}
}

func MapStoreAuditRecordToDomain(r store.AuditRecord) domain.AuditEntry {
	return domain.AuditEntry{
		Seq:        r.Seq,
		Timestamp:  r.Timestamp,
		Phase:      domain.AuditPhase(r.Phase),
		CaseID:     r.CaseID,
		ActionID:   r.ActionID,
		ResourceID: r.ResourceID,
		Action:     domain.ActionKind(r.Action),
		Mode:       domain.Mode(r.Mode),
		OffenseIDs: r.OffenseIDs,
		Result:     domain.ActionResult(r.Result),
		Note:       r.Note,
	}
}

func MapDomainSavingsToStore(s domain.SavingsRecord) store.SavingsRecord {
	return store.SavingsRecord{
		ActionID:   s.ActionID,
		CaseID:     s.CaseID,
		ResourceID: s.ResourceID,
		Action:     string(s.Action),
		Amount:     s.Amount,
		Currency:   s.Currency,
		RecordedAt: s.RecordedAt,
	}
}

func MapStoreSavingsToDomain(s store.SavingsRecord) domain.SavingsRecord {
	return domain.SavingsRecord{
		ActionID:   s.ActionID,
		CaseID:     s.CaseID,
		ResourceID: s.ResourceID,
		Action:     domain.ActionKind(s.Action),
		Amount:     s.Amount,
		Currency:   s.Currency,
		RecordedAt: s.RecordedAt,
	}
}
