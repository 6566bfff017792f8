package orchestration

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macho715/wh3/pkg/domain/services"
	testhelpers "github.com/macho715/wh3/pkg/infrastructure/testing"
)

func TestPipeline_WarehouseScenario(t *testing.T) {
	var logs bytes.Buffer
	pipeline, _, runs := newTestPipeline(t, &logs)
	transactions, snapshots, initial := testhelpers.BuildWarehouseScenario()

	result, err := pipeline.RunSources(context.Background(), Sources{
		SourceFile:   "scenario",
		Transactions: transactions,
		Snapshots:    snapshots,
		Initial:      initial,
	})
	require.NoError(t, err)

	// DSV Indoor, DSV Outdoor, MIR and MOSB over January to March
	require.Len(t, result.Balances, 12)
	indoor := result.Balances[:3]
	for _, b := range indoor {
		assert.Equal(t, "DSV Indoor", b.Location.ID)
	}
	assert.Equal(t, "2", indoor[0].OpeningStock.String())
	assert.Equal(t, "14", indoor[0].ClosingStock.String())
	assert.Equal(t, "10", indoor[1].ClosingStock.String())
	assert.Equal(t, "10", indoor[2].ClosingStock.String())

	assert.True(t, result.Validation.Valid)
	require.NotNil(t, result.Reconciliation)
	assert.Equal(t, 2, result.Reconciliation.Matched)
	assert.Empty(t, result.Reconciliation.Mismatches())
	assert.Empty(t, result.Diagnostics.Unresolved)

	saved, err := runs.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, result.RunID, saved[0].ID)
}

func BenchmarkPipeline_Run(b *testing.B) {
	ctx := context.Background()
	config := DefaultConfig()
	config.Workers = 4
	config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	pipeline := NewPipeline(services.NewDefaultResolver(), config)
	in := RunInput{SourceFile: "benchmark", Rows: testhelpers.BuildLargeRows(20000)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := pipeline.Run(ctx, in)
		if err != nil {
			b.Fatalf("Run failed: %v", err)
		}
	}
}
