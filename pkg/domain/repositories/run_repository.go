package repositories

import (
	"context"

	"github.com/macho715/wh3/pkg/domain/entities"
)

// RunRepository persists balance runs so later runs can carry their closings forward
type RunRepository interface {
	SaveRun(ctx context.Context, run *entities.Run) error
	ListRuns(ctx context.Context) ([]entities.RunSummary, error)
	LoadBalances(ctx context.Context, runID string) ([]entities.PeriodBalance, error)

	// FinalClosings returns the last closing stock of every location in a run,
	// suitable as initial stocks for the next run.
	FinalClosings(ctx context.Context, runID string) (entities.InitialStocks, error)
}
