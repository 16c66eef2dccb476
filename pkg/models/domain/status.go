package domain

import "fmt"

// Status is the judicial lifecycle state of a resource.
type Status int

const (
	StatusClean Status = iota
	StatusProbation
	StatusRedemption
	StatusConvicted
	StatusRemediated
)

var statusNames = map[Status]string{
	StatusClean:      "clean",
	StatusProbation:  "probation",
	StatusRedemption: "redemption",
	StatusConvicted:  "convicted",
	StatusRemediated: "remediated",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func ParseStatus(s string) (Status, error) {
	for st, name := range statusNames {
		if name == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// legalTransitions enumerates every edge of the lifecycle. Probation -> Probation is the
// in-window extension of an open case.
var legalTransitions = map[Status][]Status{
	StatusClean:      {StatusProbation},
	StatusProbation:  {StatusProbation, StatusRedemption, StatusConvicted},
	StatusRedemption: {StatusClean},
	StatusConvicted:  {StatusRemediated},
	StatusRemediated: {StatusClean},
}

func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// LegalTransitions returns a copy of the transition table.
func LegalTransitions() map[Status][]Status {
	out := make(map[Status][]Status, len(legalTransitions))
	for from, to := range legalTransitions {
		out[from] = append([]Status(nil), to...)
	}
	return out
}
