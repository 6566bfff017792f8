package normalizer

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/domain/services"
)

// Normalizer turns raw transaction rows into canonical transaction events
type Normalizer struct {
	resolver *services.Resolver
}

// NewNormalizer creates a normalizer resolving locations through resolver
func NewNormalizer(resolver *services.Resolver) *Normalizer {
	return &Normalizer{resolver: resolver}
}

// Result holds the events of a batch and the rows that were rejected
type Result struct {
	Events      []entities.TransactionEvent
	Rows        int
	Diagnostics *entities.Diagnostics
}

// Normalize returns a lazy sequence over rows. Each valid row yields one event
// per direction column holding a quantity; a malformed row yields a
// *entities.MalformedRecordError instead and the sequence carries on. Events
// come out in input order and the sequence can be ranged over repeatedly.
func (n *Normalizer) Normalize(rows []entities.TransactionRow) iter.Seq2[entities.TransactionEvent, error] {
	return func(yield func(entities.TransactionEvent, error) bool) {
		for i := range rows {
			row := &rows[i]
			if err := checkRow(row); err != nil {
				if !yield(entities.TransactionEvent{}, err) {
					return
				}
				continue
			}

			events, err := n.rowEvents(row)
			if err != nil {
				if !yield(entities.TransactionEvent{}, err) {
					return
				}
				continue
			}
			for _, event := range events {
				if !yield(event, nil) {
					return
				}
			}
		}
	}
}

// Collect validates the source, drains Normalize and accumulates malformed
// rows and unresolved labels into diagnostics. Only a structurally invalid
// source returns an error.
func (n *Normalizer) Collect(rows []entities.TransactionRow) (*Result, error) {
	if err := ValidateSource(rows); err != nil {
		return nil, err
	}

	result := &Result{
		Events:      make([]entities.TransactionEvent, 0, len(rows)),
		Rows:        len(rows),
		Diagnostics: &entities.Diagnostics{},
	}

	unresolved := make(map[string]int)
	var labels []string

	for event, err := range n.Normalize(rows) {
		if err != nil {
			var malformed *entities.MalformedRecordError
			if errors.As(err, &malformed) {
				result.Diagnostics.Malformed = append(result.Diagnostics.Malformed, *malformed)
				continue
			}
			return nil, err
		}

		if event.CanonicalLocation.IsUnmatched() {
			if _, seen := unresolved[event.RawLocation]; !seen {
				labels = append(labels, event.RawLocation)
			}
			unresolved[event.RawLocation]++
		}
		result.Events = append(result.Events, event)
	}

	for _, label := range labels {
		result.Diagnostics.Unresolved = append(result.Diagnostics.Unresolved, entities.UnresolvedLocation{
			RawLocation: label,
			Events:      unresolved[label],
		})
	}

	return result, nil
}

// ValidateSource fails when a required field is empty on every row. An empty
// batch is valid and produces no events.
func ValidateSource(rows []entities.TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	var hasID, hasLocation, hasTimestamp, hasQuantity bool
	for i := range rows {
		row := &rows[i]
		hasID = hasID || strings.TrimSpace(row.SourceRecordID) != ""
		hasLocation = hasLocation || strings.TrimSpace(row.RawLocation) != ""
		hasTimestamp = hasTimestamp || !row.Timestamp.IsZero()
		hasQuantity = hasQuantity || row.InboundQty != nil || row.OutboundQty != nil
	}

	missing := make([]string, 0)
	if !hasID {
		missing = append(missing, "source record id")
	}
	if !hasLocation {
		missing = append(missing, "location")
	}
	if !hasTimestamp {
		missing = append(missing, "timestamp")
	}
	if !hasQuantity {
		missing = append(missing, "quantity")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s empty on all %d rows", entities.ErrInvalidSource, strings.Join(missing, ", "), len(rows))
	}
	return nil
}

func checkRow(row *entities.TransactionRow) error {
	reject := func(format string, args ...any) error {
		return &entities.MalformedRecordError{
			SourceRecordID: row.SourceRecordID,
			Row:            row.Row,
			Reason:         fmt.Sprintf(format, args...),
		}
	}

	if strings.TrimSpace(row.SourceRecordID) == "" {
		return reject("missing source record id")
	}
	if entities.HasDirectionSuffix(row.SourceRecordID) {
		return reject("source record id ends with reserved suffix %q or %q", entities.Inbound.Suffix(), entities.Outbound.Suffix())
	}
	if row.Invalid != "" {
		return reject("%s", row.Invalid)
	}
	if row.Timestamp.IsZero() {
		return reject("missing timestamp")
	}
	if row.InboundQty == nil && row.OutboundQty == nil {
		return reject("no quantity in either direction column")
	}
	if row.InboundQty != nil && row.InboundQty.IsNegative() {
		return reject("negative inbound quantity %s", row.InboundQty)
	}
	if row.OutboundQty != nil && row.OutboundQty.IsNegative() {
		return reject("negative outbound quantity %s", row.OutboundQty)
	}
	return nil
}

// rowEvents builds the events of one checked row. A row yields all of its
// events or none.
func (n *Normalizer) rowEvents(row *entities.TransactionRow) ([]entities.TransactionEvent, error) {
	location := n.resolver.Resolve(row.RawLocation)
	twoSided := row.InboundQty != nil && row.OutboundQty != nil

	events := make([]entities.TransactionEvent, 0, 2)
	if row.InboundQty != nil {
		event, err := newEvent(row, location, entities.Inbound, *row.InboundQty, twoSided)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if row.OutboundQty != nil {
		event, err := newEvent(row, location, entities.Outbound, *row.OutboundQty, twoSided)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func newEvent(row *entities.TransactionRow, location entities.CanonicalLocation, direction entities.Direction, qty decimal.Decimal, twoSided bool) (entities.TransactionEvent, error) {
	id := row.SourceRecordID
	if twoSided {
		id += direction.Suffix()
	}
	event, err := entities.NewTransactionEvent(id, row.RawLocation, location, row.Timestamp, direction, qty)
	if err != nil {
		return entities.TransactionEvent{}, &entities.MalformedRecordError{
			SourceRecordID: row.SourceRecordID,
			Row:            row.Row,
			Reason:         err.Error(),
		}
	}
	event.CaseNo = row.CaseNo
	return *event, nil
}
