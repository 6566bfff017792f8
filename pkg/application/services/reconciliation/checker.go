package reconciliation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/domain/services"
)

// Config holds the tolerances of the reconciliation checker
type Config struct {
	// Epsilon is the largest |delta| still counted as a match
	Epsilon decimal.Decimal
	// AttentionThreshold is the largest |delta| with status OK
	AttentionThreshold decimal.Decimal
	// MediumThreshold and HighThreshold grade unmatched deltas
	MediumThreshold decimal.Decimal
	HighThreshold   decimal.Decimal
}

// DefaultConfig requires exact matches and grades deltas at 5 and 10
func DefaultConfig() Config {
	return Config{
		Epsilon:            decimal.Zero,
		AttentionThreshold: decimal.NewFromInt(5),
		MediumThreshold:    decimal.NewFromInt(5),
		HighThreshold:      decimal.NewFromInt(10),
	}
}

// Checker compares computed closings with independently recorded ones
type Checker struct {
	resolver *services.Resolver
	config   Config
}

// NewChecker creates a checker resolving reference labels through resolver
func NewChecker(resolver *services.Resolver, config Config) *Checker {
	return &Checker{resolver: resolver, config: config}
}

type referenceEntry struct {
	rawLocation string
	location    entities.CanonicalLocation
	period      entities.Period
	closing     decimal.Decimal
}

// Reconcile matches computed balances to reference snapshots on (location,
// period). Reference labels go through the same resolver as transactions and
// snapshots sharing a key are summed. Every computed balance yields exactly one
// result, in input order; reference records with no computed balance are
// reported as orphans.
func (c *Checker) Reconcile(computed []entities.PeriodBalance, reference []entities.StockSnapshot) *entities.ReconciliationReport {
	refs, refOrder := c.indexReference(reference)

	report := &entities.ReconciliationReport{
		Results: make([]entities.ReconciliationResult, 0, len(computed)),
		Orphans: make([]entities.OrphanReference, 0),
		Epsilon: c.config.Epsilon,
	}

	used := make(map[entities.BalanceKey]bool, len(refs))
	for _, b := range computed {
		key := b.Key()
		ref, ok := refs[key]
		if !ok {
			report.Results = append(report.Results, entities.ReconciliationResult{
				Location:        b.Location,
				Period:          b.Period,
				ComputedClosing: b.ClosingStock,
				Status:          entities.StatusMissing,
			})
			report.MissingReference++
			continue
		}
		used[key] = true

		res := c.compare(b, ref.closing)
		report.TotalCompared++
		if res.Matched {
			report.Matched++
		}
		report.Results = append(report.Results, res)
	}

	for _, key := range refOrder {
		if used[key] {
			continue
		}
		ref := refs[key]
		report.Orphans = append(report.Orphans, entities.OrphanReference{
			RawLocation:  ref.rawLocation,
			Location:     ref.location,
			Period:       ref.period,
			ClosingStock: ref.closing,
		})
	}
	sort.SliceStable(report.Orphans, func(i, j int) bool {
		a, b := report.Orphans[i], report.Orphans[j]
		if a.Location.ID != b.Location.ID {
			return a.Location.ID < b.Location.ID
		}
		return a.Period.Before(b.Period)
	})

	if report.TotalCompared > 0 {
		report.MatchRate = float64(report.Matched) / float64(report.TotalCompared)
	}
	return report
}

func (c *Checker) compare(b entities.PeriodBalance, reference decimal.Decimal) entities.ReconciliationResult {
	delta := reference.Sub(b.ClosingStock)
	abs := delta.Abs()
	matched := abs.LessThanOrEqual(c.config.Epsilon)

	status := entities.StatusAttention
	if matched || abs.LessThanOrEqual(c.config.AttentionThreshold) {
		status = entities.StatusOK
	}

	level := entities.AlertNone
	if !matched {
		switch {
		case abs.GreaterThan(c.config.HighThreshold):
			level = entities.AlertHigh
		case abs.GreaterThan(c.config.MediumThreshold):
			level = entities.AlertMedium
		default:
			level = entities.AlertLow
		}
	}

	return entities.ReconciliationResult{
		Location:         b.Location,
		Period:           b.Period,
		ComputedClosing:  b.ClosingStock,
		ReferenceClosing: &reference,
		Matched:          matched,
		Delta:            &delta,
		Status:           status,
		AlertLevel:       level,
	}
}

func (c *Checker) indexReference(reference []entities.StockSnapshot) (map[entities.BalanceKey]*referenceEntry, []entities.BalanceKey) {
	refs := make(map[entities.BalanceKey]*referenceEntry, len(reference))
	order := make([]entities.BalanceKey, 0, len(reference))

	for _, snap := range reference {
		loc := c.resolver.Resolve(snap.RawLocation)
		key := entities.BalanceKey{LocationID: loc.ID, Period: snap.Period.String()}

		entry, ok := refs[key]
		if !ok {
			refs[key] = &referenceEntry{
				rawLocation: snap.RawLocation,
				location:    loc,
				period:      snap.Period,
				closing:     snap.ClosingStock,
			}
			order = append(order, key)
			continue
		}
		entry.closing = entry.closing.Add(snap.ClosingStock)
	}
	return refs, order
}
