package memory

import (
	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/domain/repositories"
)

// TransactionRepository provides in-memory transaction row storage
type TransactionRepository struct {
	rows []entities.TransactionRow
}

// NewTransactionRepository creates a new in-memory transaction repository
func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{
		rows: []entities.TransactionRow{},
	}
}

// Verify interface compliance
var _ repositories.TransactionRepository = (*TransactionRepository)(nil)

// LoadRows appends rows in order
func (r *TransactionRepository) LoadRows(rows []entities.TransactionRow) error {
	r.rows = append(r.rows, rows...)
	return nil
}

// GetRows returns a copy of all rows in load order
func (r *TransactionRepository) GetRows() ([]entities.TransactionRow, error) {
	out := make([]entities.TransactionRow, len(r.rows))
	copy(out, r.rows)
	return out, nil
}
