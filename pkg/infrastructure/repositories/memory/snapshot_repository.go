package memory

import (
	"github.com/shopspring/decimal"

	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/domain/repositories"
)

// SnapshotRepository provides in-memory reference snapshot storage
type SnapshotRepository struct {
	snapshots []entities.StockSnapshot
}

// NewSnapshotRepository creates a new in-memory snapshot repository
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{
		snapshots: []entities.StockSnapshot{},
	}
}

// Verify interface compliance
var _ repositories.SnapshotRepository = (*SnapshotRepository)(nil)

// LoadSnapshots appends snapshots in order
func (r *SnapshotRepository) LoadSnapshots(snapshots []entities.StockSnapshot) error {
	r.snapshots = append(r.snapshots, snapshots...)
	return nil
}

// GetSnapshots returns a copy of all snapshots in load order
func (r *SnapshotRepository) GetSnapshots() ([]entities.StockSnapshot, error) {
	out := make([]entities.StockSnapshot, len(r.snapshots))
	copy(out, r.snapshots)
	return out, nil
}

// InitialStockRepository provides in-memory opening balances keyed by canonical location
type InitialStockRepository struct {
	stocks entities.InitialStocks
}

// NewInitialStockRepository creates a new in-memory initial stock repository
func NewInitialStockRepository() *InitialStockRepository {
	return &InitialStockRepository{
		stocks: make(entities.InitialStocks),
	}
}

// Verify interface compliance
var _ repositories.InitialStockRepository = (*InitialStockRepository)(nil)

// LoadInitialStocks adds stocks, summing values for a location loaded twice
func (r *InitialStockRepository) LoadInitialStocks(stocks entities.InitialStocks) error {
	for id, qty := range stocks {
		r.AddInitialStock(id, qty)
	}
	return nil
}

// AddInitialStock adds qty to the opening balance of a location
func (r *InitialStockRepository) AddInitialStock(locationID string, qty decimal.Decimal) {
	r.stocks[locationID] = r.stocks.Get(locationID).Add(qty)
}

// GetInitialStocks returns a copy of the opening balances
func (r *InitialStockRepository) GetInitialStocks() (entities.InitialStocks, error) {
	out := make(entities.InitialStocks, len(r.stocks))
	for id, qty := range r.stocks {
		out[id] = qty
	}
	return out, nil
}
