// Package perspective defines the contract between the display bridge and the
// visualization engine, and a hosted engine that keeps the backing table in
// memory and forwards it to remote chart viewers.
package perspective

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/shubham-shewale/stock-graph/pkg/models"
)

var ErrInvalidRow = errors.New("row does not match table schema")

type ColumnType string

const (
	TypeString   ColumnType = "string"
	TypeFloat    ColumnType = "float"
	TypeInteger  ColumnType = "integer"
	TypeBoolean  ColumnType = "boolean"
	TypeDate     ColumnType = "date"
	TypeDatetime ColumnType = "datetime"
)

type Column struct {
	Name string
	Type ColumnType
}

// Schema is an ordered list of columns. It encodes as a JSON object whose
// keys keep declaration order, the form chart viewers expect.
type Schema []Column

func (s Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(col.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		typ, err := json.Marshal(string(col.Type))
		if err != nil {
			return nil, err
		}
		buf.Write(typ)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Engine hands out the worker that constructs tables. A nil Worker means the
// engine is not available.
type Engine interface {
	Worker() Worker
}

type Worker interface {
	Table(schema Schema) (Table, error)
}

// Table is an append-only store of display rows.
type Table interface {
	Update(rows []models.DisplayRow) error
	Size() int
}

// Widget is the chart element a table is loaded into.
type Widget interface {
	Load(t Table)
	SetAttribute(name, value string)
}

// View is what a remote viewer needs to configure its chart.
type View struct {
	Schema     Schema            `json:"schema"`
	Attributes map[string]string `json:"attributes"`
	Rows       int               `json:"rows"`
}

// Publisher receives widget changes. offset is the table index of rows[0].
type Publisher interface {
	PublishView(v View)
	PublishRows(offset int, rows []models.DisplayRow)
}
