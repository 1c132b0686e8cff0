package perspective

import (
	"fmt"
	"sync"

	"github.com/shubham-shewale/stock-graph/pkg/models"
)

// Compile-time check
var _ Table = (*MemoryTable)(nil)

type UpdateListener func(offset int, rows []models.DisplayRow)

type MemoryTable struct {
	schema Schema

	mu        sync.RWMutex
	rows      []models.DisplayRow
	listeners []UpdateListener
}

func NewMemoryTable(schema Schema) *MemoryTable {
	return &MemoryTable{schema: schema}
}

func (t *MemoryTable) Schema() Schema { return t.schema }

// Update appends rows. The batch is rejected as a whole if any row is invalid.
func (t *MemoryTable) Update(rows []models.DisplayRow) error {
	if len(rows) == 0 {
		return nil
	}
	for i, r := range rows {
		if !r.Valid() {
			return fmt.Errorf("row %d (%q): %w", i, r.Stock, ErrInvalidRow)
		}
	}

	appended := make([]models.DisplayRow, len(rows))
	copy(appended, rows)

	t.mu.Lock()
	offset := len(t.rows)
	t.rows = append(t.rows, appended...)
	listeners := t.listeners
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(offset, appended)
	}
	return nil
}

func (t *MemoryTable) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// OnUpdate registers fn to be called with every appended batch.
func (t *MemoryTable) OnUpdate(fn UpdateListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

func (t *MemoryTable) Rows() []models.DisplayRow {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.DisplayRow, len(t.rows))
	copy(out, t.rows)
	return out
}

// RowsFor returns the rows of the given stocks and the table size they were read at.
func (t *MemoryTable) RowsFor(stocks []string) ([]models.DisplayRow, int) {
	want := make(map[string]bool, len(stocks))
	for _, s := range stocks {
		want[s] = true
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []models.DisplayRow
	for _, r := range t.rows {
		if want[r.Stock] {
			out = append(out, r)
		}
	}
	return out, len(t.rows)
}
