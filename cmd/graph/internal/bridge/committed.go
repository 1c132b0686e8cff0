package bridge

import (
	"github.com/shubham-shewale/stock-graph/pkg/models"
)

// committedSet remembers every quote already appended to the table, so a
// delivery that repeats earlier quotes (whole history, overlapping windows,
// replayed snapshots) only contributes the quotes never seen before.
type committedSet struct {
	keys map[models.RecordKey]struct{}
}

func newCommittedSet() committedSet {
	return committedSet{keys: make(map[models.RecordKey]struct{})}
}

// unseen returns the quotes of batch not yet committed, in delivery order and
// without repeats inside the batch itself.
func (c *committedSet) unseen(batch []models.QuoteRecord) []models.QuoteRecord {
	var fresh []models.QuoteRecord
	var pending map[models.RecordKey]struct{}

	for _, q := range batch {
		k := q.Key()
		if _, ok := c.keys[k]; ok {
			continue
		}
		if _, ok := pending[k]; ok {
			continue
		}
		if pending == nil {
			pending = make(map[models.RecordKey]struct{})
		}
		pending[k] = struct{}{}
		fresh = append(fresh, q)
	}
	return fresh
}

func (c *committedSet) commit(quotes []models.QuoteRecord) {
	for _, q := range quotes {
		c.keys[q.Key()] = struct{}{}
	}
}

func (c *committedSet) len() int { return len(c.keys) }
