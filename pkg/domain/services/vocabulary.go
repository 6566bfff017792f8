package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/macho715/wh3/pkg/domain/entities"
)

// ErrDuplicateLocation is returned when a vocabulary lists the same id twice
var ErrDuplicateLocation = errors.New("duplicate canonical location")

// DefaultVocabularyVersion tags the built-in vocabulary and rule table
const DefaultVocabularyVersion = "2.4"

// Vocabulary is the closed, versioned set of canonical warehouse and site ids.
// Changing it means building a new Vocabulary; nothing is ever inferred.
type Vocabulary struct {
	version   string
	locations []entities.CanonicalLocation
	index     map[string]entities.CanonicalLocation
}

// NewVocabulary builds a vocabulary from ordered warehouse and site ids. The
// unmatched sentinel is always appended as a warehouse.
func NewVocabulary(version string, warehouses, sites []string) (*Vocabulary, error) {
	if strings.TrimSpace(version) == "" {
		return nil, fmt.Errorf("vocabulary version cannot be empty")
	}

	v := &Vocabulary{
		version:   version,
		locations: make([]entities.CanonicalLocation, 0, len(warehouses)+len(sites)+1),
		index:     make(map[string]entities.CanonicalLocation, len(warehouses)+len(sites)+1),
	}

	add := func(id string, kind entities.LocationKind) error {
		loc, err := entities.NewCanonicalLocation(strings.TrimSpace(id), kind)
		if err != nil {
			return err
		}
		if _, exists := v.index[loc.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateLocation, loc.ID)
		}
		v.index[loc.ID] = loc
		v.locations = append(v.locations, loc)
		return nil
	}

	for _, id := range warehouses {
		if id == entities.UnmatchedID {
			continue
		}
		if err := add(id, entities.Warehouse); err != nil {
			return nil, err
		}
	}
	for _, id := range sites {
		if err := add(id, entities.Site); err != nil {
			return nil, err
		}
	}
	if err := add(entities.UnmatchedID, entities.Warehouse); err != nil {
		return nil, err
	}

	return v, nil
}

// DefaultVocabulary returns the HVDC project warehouses and sites
func DefaultVocabulary() *Vocabulary {
	v, err := NewVocabulary(DefaultVocabularyVersion, DefaultWarehouses(), DefaultSites())
	if err != nil {
		panic(err)
	}
	return v
}

// DefaultWarehouses lists the built-in warehouse ids, excluding the sentinel
func DefaultWarehouses() []string {
	return []string{
		"DSV Indoor",
		"DSV Outdoor",
		"DSV Al Markaz",
		"DSV MZP",
		"DSV WH",
		"DSV Kizad",
		"MOSB",
		"DHL WH",
		"AAA Storage",
		"Shifting",
		"Hauler DG Storage",
		"ZENER WH",
		"Vijay Tanks",
	}
}

// DefaultSites lists the built-in project site ids
func DefaultSites() []string {
	return []string{"AGI", "DAS", "MIR", "SHU"}
}

// Version returns the vocabulary version tag
func (v *Vocabulary) Version() string {
	return v.version
}

// Lookup returns the canonical location with the given id
func (v *Vocabulary) Lookup(id string) (entities.CanonicalLocation, bool) {
	loc, ok := v.index[id]
	return loc, ok
}

// Contains reports whether id is part of the vocabulary
func (v *Vocabulary) Contains(id string) bool {
	_, ok := v.index[id]
	return ok
}

// Unmatched returns the sentinel location
func (v *Vocabulary) Unmatched() entities.CanonicalLocation {
	return v.index[entities.UnmatchedID]
}

// Locations returns every location in declaration order, sentinel last
func (v *Vocabulary) Locations() []entities.CanonicalLocation {
	out := make([]entities.CanonicalLocation, len(v.locations))
	copy(out, v.locations)
	return out
}

// Warehouses returns the warehouse-kind locations including the sentinel
func (v *Vocabulary) Warehouses() []entities.CanonicalLocation {
	return v.ofKind(entities.Warehouse)
}

// Sites returns the site-kind locations
func (v *Vocabulary) Sites() []entities.CanonicalLocation {
	return v.ofKind(entities.Site)
}

func (v *Vocabulary) ofKind(kind entities.LocationKind) []entities.CanonicalLocation {
	var out []entities.CanonicalLocation
	for _, loc := range v.locations {
		if loc.Kind == kind {
			out = append(out, loc)
		}
	}
	return out
}

// Len returns the number of locations including the sentinel
func (v *Vocabulary) Len() int {
	return len(v.locations)
}
