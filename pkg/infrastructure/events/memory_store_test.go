package events

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	types []string
	seen  []Event
	err   error
}

func (h *recordingHandler) CanHandle(eventType string) bool {
	for _, t := range h.types {
		if t == eventType {
			return true
		}
	}
	return false
}

func (h *recordingHandler) Handle(event Event) error {
	h.seen = append(h.seen, event)
	return h.err
}

func TestInMemoryEventStore_AppendAndRead(t *testing.T) {
	store := NewInMemoryEventStore()

	require.NoError(t, store.AppendEvent("run-1", NewEvent(RunStartedEvent, "", RunStarted{Granularity: "monthly"})))
	require.NoError(t, store.AppendEvent("run-1", NewEvent(SourceLoadedEvent, "", SourceLoaded{Rows: 3})))
	require.NoError(t, store.AppendEvent("run-2", NewEvent(RunStartedEvent, "", RunStarted{})))

	events, err := store.ReadEvents("run-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Version())
	assert.Equal(t, 2, events[1].Version())
	assert.Equal(t, "run-1", events[1].StreamID())

	tail, err := store.ReadEvents("run-1", 2)
	require.NoError(t, err)
	assert.Len(t, tail, 1)

	none, err := store.ReadEvents("missing", 1)
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := store.ReadAllEvents(1)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 2, store.Count("run-1"))

	assert.Error(t, store.AppendEvent("", NewEvent(RunStartedEvent, "", nil)))
}

func TestInMemoryEventStore_SynchronousSubscribers(t *testing.T) {
	store := NewInMemoryEventStore()
	handler := &recordingHandler{types: []string{RecordDuplicateEvent}}
	require.NoError(t, store.Subscribe([]string{RecordDuplicateEvent}, handler))

	require.NoError(t, store.AppendEvent("run", NewEvent(RecordDuplicateEvent, "", RecordDuplicate{SourceRecordID: "R1", Occurrences: 2})))
	require.NoError(t, store.AppendEvent("run", NewEvent(RunCompletedEvent, "", RunCompleted{})))

	require.Len(t, handler.seen, 1, "handler runs before AppendEvent returns")
	assert.Equal(t, RecordDuplicateEvent, handler.seen[0].Type())

	require.NoError(t, store.Unsubscribe(handler))
	require.NoError(t, store.AppendEvent("run", NewEvent(RecordDuplicateEvent, "", RecordDuplicate{})))
	assert.Len(t, handler.seen, 1)
}

func TestInMemoryEventStore_HandlerErrorReturned(t *testing.T) {
	store := NewInMemoryEventStore()
	boom := errors.New("boom")
	require.NoError(t, store.Subscribe([]string{RunFailedEvent}, &recordingHandler{types: []string{RunFailedEvent}, err: boom}))

	err := store.AppendEvent("run", NewEvent(RunFailedEvent, "", RunFailed{Error: "x"}))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.Count("run"), "event is stored even when a handler fails")
}

func TestDiagnosticLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sub := NewDiagnosticLogger(logger)

	store := NewInMemoryEventStore()
	require.NoError(t, store.Subscribe(DiagnosticEventTypes, sub))

	require.NoError(t, store.AppendEvent("run-9", NewEvent(LocationUnresolvedEvent, "", LocationUnresolved{RawLocation: "Jebel Ali", Events: 4})))
	require.NoError(t, store.AppendEvent("run-9", NewEvent(RunCompletedEvent, "", RunCompleted{})))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `msg=location.unresolved`)
	assert.Contains(t, out, `raw_location="Jebel Ali"`)
	assert.Contains(t, out, "run_id=run-9")
	assert.Equal(t, 1, strings.Count(out, "\n"))

	assert.False(t, sub.CanHandle(RunCompletedEvent))
}

func TestDiagnosticLogger_ForStream(t *testing.T) {
	var buf bytes.Buffer
	sub := NewDiagnosticLogger(slog.New(slog.NewTextHandler(&buf, nil))).ForStream("run-1")

	store := NewInMemoryEventStore()
	require.NoError(t, store.Subscribe(DiagnosticEventTypes, sub))

	require.NoError(t, store.AppendEvent("run-1", NewEvent(RecordDuplicateEvent, "", RecordDuplicate{SourceRecordID: "T1", Occurrences: 2})))
	require.NoError(t, store.AppendEvent("run-2", NewEvent(RecordDuplicateEvent, "", RecordDuplicate{SourceRecordID: "T2", Occurrences: 2})))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "record=T1")
	assert.NotContains(t, out, "record=T2")

	require.NoError(t, store.Unsubscribe(sub))
	require.NoError(t, store.AppendEvent("run-1", NewEvent(RecordDuplicateEvent, "", RecordDuplicate{SourceRecordID: "T3", Occurrences: 2})))
	assert.NotContains(t, buf.String(), "record=T3")
}
