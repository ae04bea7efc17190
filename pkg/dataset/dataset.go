// Package dataset holds the tabular result that flows from the query executor through
// augmentation to export.
package dataset

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Kind is the coarse type of a result column.
type Kind int

const (
	KindUnknown Kind = iota
	KindNumeric
	KindText
	KindTemporal
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	case KindTemporal:
		return "temporal"
	case KindBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// Result is a materialised query result. Rows are positionally aligned to Columns, and Kinds
// holds one entry per column.
type Result struct {
	Columns []string
	Kinds   []Kind
	Rows    [][]any
}

// Validate checks the shape invariants of the result.
func (r Result) Validate() error {
	if len(r.Kinds) != len(r.Columns) {
		return fmt.Errorf("result has %d columns but %d kinds", len(r.Columns), len(r.Kinds))
	}
	seen := make(map[string]struct{}, len(r.Columns))
	for _, c := range r.Columns {
		if _, ok := seen[c]; ok {
			return fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	for i, row := range r.Rows {
		if len(row) != len(r.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), len(r.Columns))
		}
	}
	return nil
}

// NumericColumns returns the indexes of numeric columns.
func (r Result) NumericColumns() []int {
	var idx []int
	for i, k := range r.Kinds {
		if k == KindNumeric {
			idx = append(idx, i)
		}
	}
	return idx
}

// ColumnIndex returns the index of the named column or -1.
func (r Result) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// KindForDatabaseType maps a driver-reported column type name (SQL Server, PostgreSQL, DuckDB,
// ClickHouse) to a Kind.
func KindForDatabaseType(name string) Kind {
	t := strings.ToUpper(strings.TrimSpace(name))
	// ClickHouse wrappers.
	for unwrapped := false; !unwrapped; {
		unwrapped = true
		for _, wrapper := range []string{"NULLABLE(", "LOWCARDINALITY("} {
			if strings.HasPrefix(t, wrapper) && strings.HasSuffix(t, ")") {
				t = strings.TrimSuffix(strings.TrimPrefix(t, wrapper), ")")
				unwrapped = false
			}
		}
	}
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	switch t {
	case "":
		return KindUnknown
	case "INT", "INTEGER", "INT2", "INT4", "INT8", "TINYINT", "SMALLINT", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT", "UHUGEINT",
		"DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY", "REAL", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE",
		"INT16", "INT32", "INT64", "INT128", "INT256", "UINT8", "UINT16", "UINT32", "UINT64", "UINT128", "UINT256",
		"FLOAT32", "FLOAT64", "DECIMAL32", "DECIMAL64", "DECIMAL128", "DECIMAL256":
		return KindNumeric
	case "BIT", "BOOL", "BOOLEAN":
		return KindBoolean
	case "DATE", "DATE32", "TIME", "DATETIME", "DATETIME2", "DATETIME64", "SMALLDATETIME", "DATETIMEOFFSET",
		"TIMESTAMP", "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE", "TIMESTAMP_S", "TIMESTAMP_MS", "TIMESTAMP_NS", "INTERVAL":
		return KindTemporal
	case "CHAR", "NCHAR", "VARCHAR", "NVARCHAR", "TEXT", "NTEXT", "STRING", "FIXEDSTRING", "BPCHAR", "UUID", "ENUM8", "ENUM16", "ENUM":
		return KindText
	}
	if strings.HasPrefix(t, "INT") || strings.HasPrefix(t, "UINT") || strings.HasPrefix(t, "FLOAT") || strings.HasPrefix(t, "DECIMAL") {
		return KindNumeric
	}
	return KindUnknown
}

// KindOfValue infers a Kind from a single scanned value.
func KindOfValue(v any) Kind {
	switch v.(type) {
	case nil:
		return KindUnknown
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, *big.Int:
		return KindNumeric
	case bool:
		return KindBoolean
	case string, []byte:
		return KindText
	case time.Time:
		return KindTemporal
	}
	if _, ok := ToFloat(v); ok {
		return KindNumeric
	}
	return KindUnknown
}

// InferKinds fills KindUnknown entries by inspecting non-nil values: a column becomes numeric only
// when every non-nil value is numeric.
func (r *Result) InferKinds() {
	if len(r.Kinds) != len(r.Columns) {
		kinds := make([]Kind, len(r.Columns))
		copy(kinds, r.Kinds)
		r.Kinds = kinds
	}
	for col, k := range r.Kinds {
		if k != KindUnknown {
			continue
		}
		inferred := KindUnknown
		for _, row := range r.Rows {
			vk := KindOfValue(row[col])
			if vk == KindUnknown {
				continue
			}
			if inferred == KindUnknown {
				inferred = vk
			} else if inferred != vk {
				inferred = KindText
				break
			}
		}
		r.Kinds[col] = inferred
	}
}

type float64er interface{ Float64() float64 }

type exactFloat64er interface{ Float64() (float64, bool) }

// ToFloat converts a numeric scalar to float64. Decimal types from the drivers are handled through
// their Float64 methods; byte and string values are parsed.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case *big.Int:
		if n == nil {
			return 0, false
		}
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, true
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case float64er:
		return n.Float64(), true
	case exactFloat64er:
		f, _ := n.Float64()
		return f, true
	}
	return 0, false
}
