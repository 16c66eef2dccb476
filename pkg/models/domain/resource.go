package domain

import (
	"fmt"
	"time"
)

type ResourceKind string

const (
	ResourceKindLicense         ResourceKind = "license"
	ResourceKindSpectrumChannel ResourceKind = "spectrum_channel"
	ResourceKindPort            ResourceKind = "port"
)

func ParseResourceKind(s string) (ResourceKind, error) {
	switch k := ResourceKind(s); k {
	case ResourceKindLicense, ResourceKindSpectrumChannel, ResourceKindPort:
		return k, nil
	default:
		return "", fmt.Errorf("unknown resource kind %q", s)
	}
}

// ScopeLevel orders grouping keys from the narrowest to the widest.
type ScopeLevel int

const (
	ScopeNode ScopeLevel = iota
	ScopeSite
	ScopeRegion
)

func (l ScopeLevel) String() string {
	switch l {
	case ScopeNode:
		return "node"
	case ScopeSite:
		return "site"
	case ScopeRegion:
		return "region"
	default:
		return fmt.Sprintf("scope(%d)", int(l))
	}
}

func ParseScopeLevel(s string) (ScopeLevel, error) {
	switch s {
	case "node":
		return ScopeNode, nil
	case "site":
		return ScopeSite, nil
	case "region":
		return ScopeRegion, nil
	default:
		return 0, fmt.Errorf("unknown scope level %q", s)
	}
}

// Scope locates a resource in the network topology.
type Scope struct {
	Node   string
	Site   string
	Region string
}

// Key returns the grouping value of the scope at the given level.
func (s Scope) Key(level ScopeLevel) string {
	switch level {
	case ScopeNode:
		return s.Node
	case ScopeSite:
		return s.Site
	case ScopeRegion:
		return s.Region
	default:
		return ""
	}
}

// ScopeRef names one grouping bucket, e.g. site=DJELFA.
type ScopeRef struct {
	Level ScopeLevel
	Value string
}

func (r ScopeRef) String() string {
	return fmt.Sprintf("%s=%s", r.Level, r.Value)
}

// Resource is a manageable network asset. It is created on the first offense and never deleted.
type Resource struct {
	ID          string
	Kind        ResourceKind
	Scope       Scope
	Status      Status
	FirstSeen   time.Time
	StatusSince time.Time
	History     []Transition
}

type Transition struct {
	From   Status
	To     Status
	At     time.Time
	Reason string
}

func (r Resource) Clone() Resource {
	r.History = append([]Transition(nil), r.History...)
	return r
}
