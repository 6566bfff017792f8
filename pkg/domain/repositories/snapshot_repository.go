package repositories

import "github.com/macho715/wh3/pkg/domain/entities"

// SnapshotRepository provides access to reference closing stocks
type SnapshotRepository interface {
	GetSnapshots() ([]entities.StockSnapshot, error)
	LoadSnapshots(snapshots []entities.StockSnapshot) error
}

// InitialStockRepository provides the opening balance per canonical location
type InitialStockRepository interface {
	GetInitialStocks() (entities.InitialStocks, error)
	LoadInitialStocks(stocks entities.InitialStocks) error
}
