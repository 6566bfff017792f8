package repositories

import "github.com/macho715/wh3/pkg/domain/entities"

// TransactionRepository provides access to raw transaction rows
type TransactionRepository interface {
	GetRows() ([]entities.TransactionRow, error)
	LoadRows(rows []entities.TransactionRow) error
}
