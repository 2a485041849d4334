package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ToInt64 converts a scalar value to int64.
// Supports the integer and float widths produced by database/sql
// scanning plus json.Number and numeric strings from parsed payloads.
func ToInt64(v any) int64 {
	switch i := v.(type) {
	case int64:
		return i
	case int:
		return int64(i)
	case int32:
		return int64(i)
	case int16:
		return int64(i)
	case int8:
		return int64(i)
	case uint:
		return int64(i)
	case uint64:
		return int64(i)
	case uint32:
		return int64(i)
	case uint16:
		return int64(i)
	case uint8:
		return int64(i)
	case float64:
		return int64(i)
	case float32:
		return int64(i)
	case json.Number:
		n, err := i.Int64()
		if err != nil {
			return 0
		}
		return n
	case string:
		n, err := strconv.ParseInt(i, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// PKString renders a primary key value as a canonical string so the
// same key compares equal whether it came from database scanning
// (int64) or payload parsing (json.Number / float64).
func PKString(v any) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return k
	case []byte:
		return string(k)
	case json.Number:
		return k.String()
	case int64:
		return strconv.FormatInt(k, 10)
	case int:
		return strconv.Itoa(k)
	case float64:
		if k == float64(int64(k)) {
			return strconv.FormatInt(int64(k), 10)
		}
		return strconv.FormatFloat(k, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", k)
	}
}
