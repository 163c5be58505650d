package source

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/datagrid/internal/core"
)

// normalize converts a driver value into a cell value: string, float64,
// int64, bool, time.Time or nil.
func normalize(kind core.FieldType, v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return fromText(kind, val)
	case []byte:
		return fromText(kind, string(val))
	case bool:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	case float64:
		return val
	case time.Time:
		if val.IsZero() {
			return nil
		}
		return val
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case pgtype.Date:
		if !val.Valid {
			return nil
		}
		return val.Time
	case pgtype.Timestamp:
		if !val.Valid {
			return nil
		}
		return val.Time
	case pgtype.Timestamptz:
		if !val.Valid {
			return nil
		}
		return val.Time
	case pgtype.Text:
		if !val.Valid {
			return nil
		}
		return fromText(kind, val.String)
	case pgtype.Bool:
		if !val.Valid {
			return nil
		}
		return val.Bool
	case pgtype.Int8:
		if !val.Valid {
			return nil
		}
		return val.Int64
	case pgtype.Float8:
		if !val.Valid {
			return nil
		}
		return val.Float64
	case [16]byte:
		return pgtype.UUID{Bytes: val, Valid: true}.String()
	case fmt.Stringer:
		return fromText(kind, val.String())
	default:
		return fmt.Sprint(val)
	}
}

// fromText parses strings stored in date and numeric columns the way CSV
// cells are parsed. Text and enum strings are kept verbatim.
func fromText(kind core.FieldType, s string) any {
	switch kind {
	case core.FieldDate, core.FieldNumeric:
		return core.CoerceCell(kind, s)
	default:
		return s
	}
}

// rowKey derives a row's key from its key column, falling back to the
// 1-based position when the table has no key column or the value is empty.
func rowKey(keyColumn string, cells map[string]any, position int) string {
	if keyColumn != "" {
		if k := core.Stringify(cells[keyColumn]); k != "" {
			return k
		}
	}
	return "row-" + strconv.Itoa(position)
}
