package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/JonMunkholm/datagrid/internal/core"
)

// Parquet loads rows from a Parquet file through Arrow. Fields match
// columns by id, ignoring case; unmatched columns load as nil.
type Parquet struct {
	Path      string
	Columns   []core.Column
	KeyColumn string
}

// NewParquet returns a loader for path shaped by def.
func NewParquet(path string, def core.TableDefinition) *Parquet {
	return &Parquet{Path: path, Columns: def.DataColumns(), KeyColumn: def.KeyColumn}
}

// Load reads the whole file into an Arrow table and converts it.
func (l *Parquet) Load(ctx context.Context) ([]core.Row, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()

	pf, err := file.NewParquetReader(f, file.WithReadProps(parquet.NewReaderProperties(memory.DefaultAllocator)))
	if err != nil {
		return nil, fmt.Errorf("create parquet reader: %w", err)
	}
	defer pf.Close()

	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: 4096}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("create arrow reader: %w", err)
	}

	table, err := reader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("read parquet data: %w", err)
	}
	defer table.Release()

	return l.convert(ctx, table)
}

func (l *Parquet) convert(ctx context.Context, table arrow.Table) ([]core.Row, error) {
	fields := make(map[string]int, table.NumCols())
	for i, fld := range table.Schema().Fields() {
		fields[strings.ToLower(fld.Name)] = i
	}
	index := make([]int, len(l.Columns))
	for i, col := range l.Columns {
		index[i] = -1
		if pos, ok := fields[strings.ToLower(col.ID)]; ok {
			index[i] = pos
		}
	}

	rows := make([]core.Row, 0, table.NumRows())
	tr := array.NewTableReader(table, 0)
	defer tr.Release()

	for tr.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := tr.Record()
		for r := 0; r < int(rec.NumRows()); r++ {
			cells := make(map[string]any, len(l.Columns))
			for i, col := range l.Columns {
				if index[i] < 0 {
					cells[col.ID] = nil
					continue
				}
				cells[col.ID] = normalize(col.Kind, arrowValue(rec.Column(index[i]), r))
			}
			rows = append(rows, core.Row{Key: rowKey(l.KeyColumn, cells, len(rows)+1), Cells: cells})
		}
	}
	if err := tr.Err(); err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	return rows, nil
}

// arrowValue returns the Go value at pos, or nil for nulls and nested types.
func arrowValue(col arrow.Array, pos int) any {
	if col.IsNull(pos) {
		return nil
	}

	switch c := col.(type) {
	case *array.String:
		return c.Value(pos)
	case *array.LargeString:
		return c.Value(pos)
	case *array.Binary:
		return string(c.Value(pos))
	case *array.Boolean:
		return c.Value(pos)
	case *array.Int8:
		return int64(c.Value(pos))
	case *array.Int16:
		return int64(c.Value(pos))
	case *array.Int32:
		return int64(c.Value(pos))
	case *array.Int64:
		return c.Value(pos)
	case *array.Uint8:
		return int64(c.Value(pos))
	case *array.Uint16:
		return int64(c.Value(pos))
	case *array.Uint32:
		return int64(c.Value(pos))
	case *array.Uint64:
		return int64(c.Value(pos))
	case *array.Float32:
		return float64(c.Value(pos))
	case *array.Float64:
		return c.Value(pos)
	case *array.Date32:
		return c.Value(pos).ToTime()
	case *array.Date64:
		return c.Value(pos).ToTime()
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		return c.Value(pos).ToTime(unit)
	case *array.Decimal128:
		dt := c.DataType().(*arrow.Decimal128Type)
		return c.Value(pos).ToFloat64(dt.Scale)
	case *array.Dictionary:
		return arrowValue(c.Dictionary(), c.GetValueIndex(pos))
	default:
		return col.ValueStr(pos)
	}
}
