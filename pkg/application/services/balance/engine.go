package balance

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/domain/services"
)

// Config holds configuration for the balance engine
type Config struct {
	// Granularity is the period width, monthly by default
	Granularity entities.Granularity
	// Workers bounds the number of locations computed in parallel (<= 1 = serial)
	Workers int
	// Vocabulary supplies the kind of locations known only from initial stocks
	Vocabulary *services.Vocabulary
}

// Engine folds canonical transaction events into per-location period balances
type Engine struct {
	config Config
}

// NewEngine creates a balance engine with default configuration
func NewEngine() *Engine {
	return NewEngineWithConfig(Config{Granularity: entities.Monthly, Workers: 1})
}

// NewEngineWithConfig creates a balance engine with custom configuration
func NewEngineWithConfig(config Config) *Engine {
	return &Engine{config: config}
}

// Result is the balance table of a run plus what the engine observed while building it
type Result struct {
	Balances         []entities.PeriodBalance
	Periods          []entities.Period
	EventsCounted    int
	Duplicates       []entities.DuplicateSourceRecord
	NegativeClosings []entities.NegativeClosingStock
	// Initial is the initial stock the series start from, after ids outside
	// the vocabulary were folded into the unmatched sentinel
	Initial entities.InitialStocks
	// UnknownInitial lists those ids, sorted
	UnknownInitial []string
}

type bucket struct {
	inbound  decimal.Decimal
	outbound decimal.Decimal
	events   int
}

type partition struct {
	location entities.CanonicalLocation
	buckets  map[time.Time]*bucket
}

// ComputeBalances deduplicates events by source record id, then computes a
// gap-free balance series for every location that has events or an initial
// stock. Every series spans the same global period range, from the earliest
// to the latest event period. Output is ordered by location id, then period.
func (e *Engine) ComputeBalances(ctx context.Context, events []entities.TransactionEvent, initial entities.InitialStocks) (*Result, error) {
	unique, duplicates := Deduplicate(events)
	initial, unknown := e.closeInitial(initial)

	result := &Result{
		EventsCounted:  len(unique),
		Duplicates:     duplicates,
		Initial:        initial,
		UnknownInitial: unknown,
	}
	if len(unique) == 0 {
		result.Balances = make([]entities.PeriodBalance, 0)
		return result, nil
	}

	partitions := e.partition(unique, initial)
	result.Periods = e.periodRange(unique)

	series := make([][]entities.PeriodBalance, len(partitions))
	g, ctx := errgroup.WithContext(ctx)
	if e.config.Workers > 1 {
		g.SetLimit(e.config.Workers)
	} else {
		g.SetLimit(1)
	}

	for i, p := range partitions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			series[i] = fold(p, result.Periods, initial.Get(p.location.ID))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Balances = make([]entities.PeriodBalance, 0, len(partitions)*len(result.Periods))
	for _, s := range series {
		result.Balances = append(result.Balances, s...)
	}
	result.NegativeClosings = NegativeClosings(result.Balances)

	return result, nil
}

// Deduplicate keeps the first event of every source record id, preserving
// input order, and reports the ids that occurred more than once.
func Deduplicate(events []entities.TransactionEvent) ([]entities.TransactionEvent, []entities.DuplicateSourceRecord) {
	seen := make(map[string]int, len(events))
	unique := make([]entities.TransactionEvent, 0, len(events))
	var order []string

	for _, ev := range events {
		n := seen[ev.SourceRecordID]
		seen[ev.SourceRecordID] = n + 1
		if n == 0 {
			unique = append(unique, ev)
			continue
		}
		if n == 1 {
			order = append(order, ev.SourceRecordID)
		}
	}

	duplicates := make([]entities.DuplicateSourceRecord, 0, len(order))
	for _, id := range order {
		duplicates = append(duplicates, entities.DuplicateSourceRecord{SourceRecordID: id, Occurrences: seen[id]})
	}
	return unique, duplicates
}

// NegativeClosings lists every balance whose closing stock is below zero
func NegativeClosings(balances []entities.PeriodBalance) []entities.NegativeClosingStock {
	out := make([]entities.NegativeClosingStock, 0)
	for _, b := range balances {
		if b.IsNegative() {
			out = append(out, entities.NegativeClosingStock{
				Location:     b.Location,
				Period:       b.Period,
				ClosingStock: b.ClosingStock,
			})
		}
	}
	return out
}

func (e *Engine) partition(events []entities.TransactionEvent, initial entities.InitialStocks) []*partition {
	byID := make(map[string]*partition)

	get := func(loc entities.CanonicalLocation) *partition {
		p, ok := byID[loc.ID]
		if !ok {
			p = &partition{location: loc, buckets: make(map[time.Time]*bucket)}
			byID[loc.ID] = p
		}
		return p
	}

	for _, ev := range events {
		p := get(ev.CanonicalLocation)
		start := entities.PeriodOf(ev.Timestamp, e.config.Granularity).Start
		b, ok := p.buckets[start]
		if !ok {
			b = &bucket{}
			p.buckets[start] = b
		}
		if ev.Direction == entities.Outbound {
			b.outbound = b.outbound.Add(ev.Quantity)
		} else {
			b.inbound = b.inbound.Add(ev.Quantity)
		}
		b.events++
	}

	for id := range initial {
		if _, ok := byID[id]; ok {
			continue
		}
		get(e.lookup(id))
	}

	out := make([]*partition, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].location.ID < out[j].location.ID
	})
	return out
}

func (e *Engine) lookup(id string) entities.CanonicalLocation {
	if e.config.Vocabulary != nil {
		if loc, ok := e.config.Vocabulary.Lookup(id); ok {
			return loc
		}
		return e.config.Vocabulary.Unmatched()
	}
	return entities.CanonicalLocation{ID: id, Kind: entities.Warehouse}
}

// closeInitial moves initial stocks of ids outside the vocabulary onto the
// unmatched sentinel. Without a vocabulary every id is kept as is.
func (e *Engine) closeInitial(initial entities.InitialStocks) (entities.InitialStocks, []string) {
	vocab := e.config.Vocabulary
	if vocab == nil {
		return initial, nil
	}

	var unknown []string
	for id := range initial {
		if !vocab.Contains(id) {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) == 0 {
		return initial, nil
	}
	sort.Strings(unknown)

	unmatched := vocab.Unmatched().ID
	out := make(entities.InitialStocks, len(initial))
	for id, qty := range initial {
		if !vocab.Contains(id) {
			id = unmatched
		}
		out[id] = out.Get(id).Add(qty)
	}
	return out, unknown
}

func (e *Engine) periodRange(events []entities.TransactionEvent) []entities.Period {
	first := entities.PeriodOf(events[0].Timestamp, e.config.Granularity)
	last := first
	for _, ev := range events[1:] {
		p := entities.PeriodOf(ev.Timestamp, e.config.Granularity)
		if p.Before(first) {
			first = p
		}
		if last.Before(p) {
			last = p
		}
	}
	return entities.PeriodRange(first, last)
}

// fold runs the opening/closing recurrence over periods for one location
func fold(p *partition, periods []entities.Period, initial decimal.Decimal) []entities.PeriodBalance {
	out := make([]entities.PeriodBalance, 0, len(periods))
	opening := initial

	for _, period := range periods {
		b := p.buckets[period.Start]
		if b == nil {
			b = &bucket{}
		}
		pb := entities.PeriodBalance{
			Location:     p.location,
			Period:       period,
			OpeningStock: opening,
			InboundQty:   b.inbound,
			OutboundQty:  b.outbound,
			EventCount:   b.events,
		}
		pb.ClosingStock = opening.Add(pb.NetMovement())
		pb.CumulativeStock = pb.ClosingStock.Sub(initial)

		out = append(out, pb)
		opening = pb.ClosingStock
	}
	return out
}
