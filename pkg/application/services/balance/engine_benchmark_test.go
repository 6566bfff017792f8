package balance

import (
	"context"
	"testing"

	"github.com/macho715/wh3/pkg/domain/entities"
	testhelpers "github.com/macho715/wh3/pkg/infrastructure/testing"
)

func benchmarkEvents(b *testing.B, n int) []entities.TransactionEvent {
	b.Helper()
	events, err := testhelpers.NormalizeRows(testhelpers.BuildLargeRows(n))
	if err != nil {
		b.Fatalf("NormalizeRows failed: %v", err)
	}
	return events
}

func benchmarkEngine(b *testing.B, n, workers int) {
	ctx := context.Background()
	events := benchmarkEvents(b, n)
	engine := NewEngineWithConfig(Config{Granularity: entities.Monthly, Workers: workers})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := engine.ComputeBalances(ctx, events, nil)
		if err != nil {
			b.Fatalf("ComputeBalances failed: %v", err)
		}
	}
}

func BenchmarkEngine_Serial(b *testing.B) {
	benchmarkEngine(b, 10000, 1)
}

func BenchmarkEngine_Parallel(b *testing.B) {
	benchmarkEngine(b, 10000, 8)
}

func BenchmarkEngine_LargeParallel(b *testing.B) {
	if testing.Short() {
		b.Skip("Skipping large benchmark in short mode")
	}
	benchmarkEngine(b, 200000, 8)
}

func BenchmarkEngine_Daily(b *testing.B) {
	ctx := context.Background()
	events := benchmarkEvents(b, 10000)
	engine := NewEngineWithConfig(Config{Granularity: entities.Daily, Workers: 4})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := engine.ComputeBalances(ctx, events, nil)
		if err != nil {
			b.Fatalf("ComputeBalances failed: %v", err)
		}
	}
}

func BenchmarkDeduplicate(b *testing.B) {
	events := benchmarkEvents(b, 10000)
	events = append(events, events[:1000]...)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Deduplicate(events)
	}
}
