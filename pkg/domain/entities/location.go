package entities

import "fmt"

// LocationKind separates storage warehouses from project sites
type LocationKind int

const (
	Warehouse LocationKind = iota
	Site
)

// String method for LocationKind enum
func (k LocationKind) String() string {
	switch k {
	case Warehouse:
		return "Warehouse"
	case Site:
		return "Site"
	default:
		return "Unknown"
	}
}

// ParseLocationKind maps "warehouse"/"site" (any case) to a LocationKind
func ParseLocationKind(s string) (LocationKind, error) {
	switch s {
	case "warehouse", "Warehouse", "WAREHOUSE":
		return Warehouse, nil
	case "site", "Site", "SITE":
		return Site, nil
	default:
		return Warehouse, fmt.Errorf("invalid location kind: %s (expected warehouse or site)", s)
	}
}

// UnmatchedID is the canonical identifier for labels no rule resolves.
const UnmatchedID = "UNMATCHED"

// CanonicalLocation is a member of the closed warehouse/site vocabulary
type CanonicalLocation struct {
	ID   string
	Kind LocationKind
}

// Unmatched is the sentinel location. It is warehouse-kind so its events still
// accumulate into a balance bucket.
var Unmatched = CanonicalLocation{ID: UnmatchedID, Kind: Warehouse}

// NewCanonicalLocation creates a validated CanonicalLocation
func NewCanonicalLocation(id string, kind LocationKind) (CanonicalLocation, error) {
	if id == "" {
		return CanonicalLocation{}, fmt.Errorf("location id cannot be empty")
	}
	if kind != Warehouse && kind != Site {
		return CanonicalLocation{}, fmt.Errorf("invalid location kind %d for %s", kind, id)
	}
	return CanonicalLocation{ID: id, Kind: kind}, nil
}

// IsUnmatched reports whether l is the unmatched sentinel
func (l CanonicalLocation) IsUnmatched() bool {
	return l.ID == UnmatchedID
}

func (l CanonicalLocation) String() string {
	return l.ID
}

// ResolutionRule maps a label pattern to a canonical location id. Rules are
// evaluated in slice order and the first match wins.
type ResolutionRule struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Target  string `yaml:"target" json:"target"`
}
