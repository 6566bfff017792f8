package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/domain/repositories"
)

// RunRepository keeps balance runs in memory. Saving a run id twice keeps the first.
type RunRepository struct {
	runs  map[string]*entities.Run
	mutex sync.RWMutex
}

// NewRunRepository creates a new in-memory run repository
func NewRunRepository() *RunRepository {
	return &RunRepository{
		runs: make(map[string]*entities.Run),
	}
}

// Verify interface compliance
var _ repositories.RunRepository = (*RunRepository)(nil)

func (r *RunRepository) SaveRun(ctx context.Context, run *entities.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run id cannot be empty")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.runs[run.ID]; exists {
		return nil
	}
	stored := *run
	stored.Balances = append([]entities.PeriodBalance(nil), run.Balances...)
	r.runs[run.ID] = &stored
	return nil
}

func (r *RunRepository) ListRuns(ctx context.Context) ([]entities.RunSummary, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]entities.RunSummary, 0, len(r.runs))
	for _, run := range r.runs {
		summary := entities.RunSummary{
			ID:                run.ID,
			CreatedAt:         run.CreatedAt,
			VocabularyVersion: run.VocabularyVersion,
			Granularity:       run.Granularity,
			SourceFile:        run.SourceFile,
			BalanceCount:      len(run.Balances),
		}
		if run.Reconciliation != nil {
			rate := run.Reconciliation.MatchRate
			summary.MatchRate = &rate
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *RunRepository) LoadBalances(ctx context.Context, runID string) ([]entities.PeriodBalance, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	run, ok := r.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return append([]entities.PeriodBalance(nil), run.Balances...), nil
}

func (r *RunRepository) FinalClosings(ctx context.Context, runID string) (entities.InitialStocks, error) {
	balances, err := r.LoadBalances(ctx, runID)
	if err != nil {
		return nil, err
	}

	return entities.FinalClosings(balances), nil
}
