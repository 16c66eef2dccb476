package domain

import (
	"fmt"
	"strings"
	"time"
)

// ScopeFilter restricts a cycle to resources whose scope matches at the given level.
type ScopeFilter struct {
	Level ScopeLevel
	Value string
}

func (f *ScopeFilter) Matches(s Scope) bool {
	if f == nil || f.Value == "" {
		return true
	}
	return s.Key(f.Level) == f.Value
}

// ParseScopeFilter reads "level=value", e.g. "site=DJELFA". An empty string means no filter.
func ParseScopeFilter(s string) (*ScopeFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	level, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("scope %q must look like level=value", s)
	}
	l, err := ParseScopeLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, err
	}
	return &ScopeFilter{Level: l, Value: strings.TrimSpace(value)}, nil
}

func (f *ScopeFilter) String() string {
	if f == nil || f.Value == "" {
		return ""
	}
	return fmt.Sprintf("%s=%s", f.Level, f.Value)
}

type CycleRequest struct {
	Mode  Mode
	Scope *ScopeFilter
}

type CaseReport struct {
	Case    RICOCase
	Actions []RemediationAction
	Err     string
}

// CycleSummary is returned by every remediation cycle, including failed or dry-run ones.
type CycleSummary struct {
	ID                 string
	Mode               Mode
	StartedAt          time.Time
	FinishedAt         time.Time
	ResourcesConvicted int
	PendingResources   int
	CasesFormed        int
	CasesRejected      int
	Currency           string
	// TotalSavings is the priced value of every case handled in the cycle.
	TotalSavings float64
	// RecoveredValue is the value of the actions actually applied.
	RecoveredValue    float64
	UnpricedOffenses  int
	MalformedOffenses int64
	ActionsApplied    int
	ActionsFailed     int
	ActionsSkipped    int
	Cases             []CaseReport
	Errors            []string
}
