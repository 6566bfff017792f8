package normalizer

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/domain/services"
)

func qty(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func day(d int) time.Time {
	return time.Date(2024, time.May, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalize_OrderAndDirection(t *testing.T) {
	n := NewNormalizer(services.NewDefaultResolver())
	rows := []entities.TransactionRow{
		{SourceRecordID: "R1", Row: 2, RawLocation: "M44-A12", Timestamp: day(3), InboundQty: qty(10)},
		{SourceRecordID: "R2", Row: 3, RawLocation: "OUT-03", Timestamp: day(1), OutboundQty: qty(4)},
		{SourceRecordID: "R3", Row: 4, RawLocation: "MOSB", Timestamp: day(2), InboundQty: qty(7), OutboundQty: qty(2)},
	}

	var ids []string
	var dirs []entities.Direction
	for event, err := range n.Normalize(rows) {
		require.NoError(t, err)
		ids = append(ids, event.SourceRecordID)
		dirs = append(dirs, event.Direction)
	}

	assert.Equal(t, []string{"R1", "R2", "R3#IN", "R3#OUT"}, ids)
	assert.Equal(t, []entities.Direction{entities.Inbound, entities.Outbound, entities.Inbound, entities.Outbound}, dirs)
}

func TestNormalize_Restartable(t *testing.T) {
	n := NewNormalizer(services.NewDefaultResolver())
	rows := []entities.TransactionRow{
		{SourceRecordID: "R1", RawLocation: "DSV WH", Timestamp: day(1), InboundQty: qty(1)},
		{SourceRecordID: "R2", RawLocation: "DSV WH", Timestamp: day(2), InboundQty: qty(2)},
	}
	seq := n.Normalize(rows)

	count := func() int {
		c := 0
		for range seq {
			c++
		}
		return c
	}
	assert.Equal(t, 2, count())
	assert.Equal(t, 2, count())

	// early exit stops the sequence without panicking
	for range seq {
		break
	}
}

func TestNormalize_MalformedRowsSkipped(t *testing.T) {
	n := NewNormalizer(services.NewDefaultResolver())
	rows := []entities.TransactionRow{
		{SourceRecordID: "OK1", Row: 2, RawLocation: "MOSB", Timestamp: day(1), InboundQty: qty(5)},
		{SourceRecordID: "NEG", Row: 3, RawLocation: "MOSB", Timestamp: day(1), InboundQty: qty(-5)},
		{SourceRecordID: "NOTS", Row: 4, RawLocation: "MOSB", InboundQty: qty(5)},
		{SourceRecordID: "NOQ", Row: 5, RawLocation: "MOSB", Timestamp: day(1)},
		{SourceRecordID: "", Row: 6, RawLocation: "MOSB", Timestamp: day(1), InboundQty: qty(1)},
		{SourceRecordID: "NEGOUT", Row: 7, RawLocation: "MOSB", Timestamp: day(1), OutboundQty: qty(-1)},
		{SourceRecordID: "BADQ", Row: 8, RawLocation: "MOSB", Timestamp: day(1), Invalid: `invalid inbound_qty "x"`},
		{SourceRecordID: "OK2", Row: 9, RawLocation: "MOSB", Timestamp: day(2), OutboundQty: qty(3)},
	}

	result, err := n.Collect(rows)
	require.NoError(t, err)

	require.Len(t, result.Events, 2)
	assert.Equal(t, "OK1", result.Events[0].SourceRecordID)
	assert.Equal(t, "OK2", result.Events[1].SourceRecordID)

	malformed := result.Diagnostics.Malformed
	require.Len(t, malformed, 6)
	assert.Equal(t, "NEG", malformed[0].SourceRecordID)
	assert.Equal(t, "negative inbound quantity -5", malformed[0].Reason)
	assert.Equal(t, "missing timestamp", malformed[1].Reason)
	assert.Equal(t, "no quantity in either direction column", malformed[2].Reason)
	assert.Equal(t, 6, malformed[3].Row)
	assert.Equal(t, "missing source record id", malformed[3].Reason)
	assert.Equal(t, "negative outbound quantity -1", malformed[4].Reason)
	assert.Equal(t, `invalid inbound_qty "x"`, malformed[5].Reason)

	for _, m := range malformed {
		assert.True(t, errors.Is(&m, entities.ErrMalformedRecord))
	}
}

func TestCollect_UnresolvedStillCounted(t *testing.T) {
	n := NewNormalizer(services.NewDefaultResolver())
	rows := []entities.TransactionRow{
		{SourceRecordID: "A", RawLocation: "Jebel Ali Yard", Timestamp: day(1), InboundQty: qty(5)},
		{SourceRecordID: "B", RawLocation: "", Timestamp: day(1), InboundQty: qty(2)},
		{SourceRecordID: "C", RawLocation: "Jebel Ali Yard", Timestamp: day(2), OutboundQty: qty(1)},
		{SourceRecordID: "D", RawLocation: "DSV Indoor", Timestamp: day(2), OutboundQty: qty(1)},
	}

	result, err := n.Collect(rows)
	require.NoError(t, err)
	require.Len(t, result.Events, 4)

	assert.True(t, result.Events[0].CanonicalLocation.IsUnmatched())
	assert.True(t, result.Events[1].CanonicalLocation.IsUnmatched())
	assert.Equal(t, "DSV Indoor", result.Events[3].CanonicalLocation.ID)

	assert.Equal(t, []entities.UnresolvedLocation{
		{RawLocation: "Jebel Ali Yard", Events: 2},
		{RawLocation: "", Events: 1},
	}, result.Diagnostics.Unresolved)
}

func TestValidateSource(t *testing.T) {
	assert.NoError(t, ValidateSource(nil))

	rows := []entities.TransactionRow{
		{SourceRecordID: "A", RawLocation: "MOSB", InboundQty: qty(1)},
		{SourceRecordID: "B", RawLocation: "MOSB", OutboundQty: qty(1)},
	}
	err := ValidateSource(rows)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrInvalidSource))
	assert.Contains(t, err.Error(), "timestamp empty on all 2 rows")

	_, err = NewNormalizer(services.NewDefaultResolver()).Collect(rows)
	assert.True(t, errors.Is(err, entities.ErrInvalidSource))

	// one good timestamp is enough for the source to be structurally valid
	rows[1].Timestamp = day(1)
	assert.NoError(t, ValidateSource(rows))
}

func TestNormalize_EventsMatchConstructor(t *testing.T) {
	resolver := services.NewDefaultResolver()
	n := NewNormalizer(resolver)
	rows := []entities.TransactionRow{
		{SourceRecordID: "R1", Row: 2, RawLocation: "Mosb barge", Timestamp: day(4), InboundQty: qty(9), OutboundQty: qty(3), CaseNo: "C7"},
	}

	result, err := n.Collect(rows)
	require.NoError(t, err)
	require.Len(t, result.Events, 2)

	want, err := entities.NewTransactionEvent("R1#OUT", "Mosb barge", resolver.Resolve("Mosb barge"), day(4), entities.Outbound, decimal.NewFromInt(3))
	require.NoError(t, err)
	want.CaseNo = "C7"
	assert.Equal(t, *want, result.Events[1])
	assert.Equal(t, "C7", result.Events[0].CaseNo)
}

func TestNormalize_ReservedSuffixRejected(t *testing.T) {
	n := NewNormalizer(services.NewDefaultResolver())
	rows := []entities.TransactionRow{
		{SourceRecordID: "R1", Row: 2, RawLocation: "MOSB", Timestamp: day(1), InboundQty: qty(10), OutboundQty: qty(1)},
		{SourceRecordID: "R1#IN", Row: 3, RawLocation: "MOSB", Timestamp: day(1), InboundQty: qty(7)},
		{SourceRecordID: "R2#OUT", Row: 4, RawLocation: "MOSB", Timestamp: day(1), OutboundQty: qty(2)},
		{SourceRecordID: "R3#INV", Row: 5, RawLocation: "MOSB", Timestamp: day(1), InboundQty: qty(4)},
	}

	result, err := n.Collect(rows)
	require.NoError(t, err)

	var ids []string
	for _, event := range result.Events {
		ids = append(ids, event.SourceRecordID)
	}
	assert.Equal(t, []string{"R1#IN", "R1#OUT", "R3#INV"}, ids)

	require.Len(t, result.Diagnostics.Malformed, 2)
	assert.Equal(t, 3, result.Diagnostics.Malformed[0].Row)
	assert.Equal(t, "R1#IN", result.Diagnostics.Malformed[0].SourceRecordID)
	assert.Contains(t, result.Diagnostics.Malformed[0].Reason, "reserved suffix")
	assert.Equal(t, "R2#OUT", result.Diagnostics.Malformed[1].SourceRecordID)
}
