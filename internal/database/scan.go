package database

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/garagereg/dataport/internal/registry"
	"github.com/garagereg/dataport/internal/types"
)

// scanRow scans the current result row into a Row, normalizing driver
// values by the registry field kinds so a row reads the same whether it
// came from the database or from a parsed payload: booleans become
// bool, timestamps become UTC RFC3339 strings, JSON columns become
// decoded documents.
func scanRow(rows *sql.Rows, descriptor *registry.Table) (types.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	if err := rows.Scan(pointers...); err != nil {
		return nil, err
	}

	row := make(types.Row, len(columns))
	for i, column := range columns {
		kind := registry.KindString
		if field, ok := descriptor.Field(column); ok {
			kind = field.Kind
		}
		row[column] = normalizeValue(values[i], kind)
	}
	return row, nil
}

func normalizeValue(v any, kind registry.FieldKind) any {
	if v == nil {
		return nil
	}

	switch kind {
	case registry.KindBool:
		return normalizeBool(v)
	case registry.KindInt:
		return normalizeInt(v)
	case registry.KindFloat:
		return normalizeFloat(v)
	case registry.KindTime:
		return normalizeTime(v)
	case registry.KindJSON:
		return normalizeJSON(v)
	default:
		return normalizeString(v)
	}
}

// normalizeBool handles MySQL's TINYINT(1) representation as well as
// textual booleans.
func normalizeBool(v any) any {
	switch value := v.(type) {
	case bool:
		return value
	case int64:
		return value != 0
	case []byte:
		return string(value) == "1" || string(value) == "true"
	case string:
		return value == "1" || value == "true"
	default:
		return v
	}
}

func normalizeInt(v any) any {
	switch value := v.(type) {
	case int64:
		return value
	case []byte:
		if n, err := strconv.ParseInt(string(value), 10, 64); err == nil {
			return n
		}
		return string(value)
	case string:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
		return value
	default:
		return types.ToInt64(v)
	}
}

func normalizeFloat(v any) any {
	switch value := v.(type) {
	case float64:
		return value
	case int64:
		return float64(value)
	case []byte:
		if f, err := strconv.ParseFloat(string(value), 64); err == nil {
			return f
		}
		return string(value)
	case string:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		return value
	default:
		return v
	}
}

func normalizeTime(v any) any {
	switch value := v.(type) {
	case time.Time:
		return value.UTC().Format(time.RFC3339)
	case []byte:
		return string(value)
	default:
		return v
	}
}

func normalizeJSON(v any) any {
	var raw []byte
	switch value := v.(type) {
	case []byte:
		raw = value
	case string:
		raw = []byte(value)
	default:
		return v
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var doc any
	if err := decoder.Decode(&doc); err != nil {
		// Not valid JSON after all; keep the raw text.
		return string(raw)
	}
	return doc
}

func normalizeString(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
