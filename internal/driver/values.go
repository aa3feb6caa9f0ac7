package driver

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ConvertValue maps a table cell to a value every sink driver can bind.
// Nested JSON values are serialized to JSON text, NaN and infinities become
// NULL because none of the sinks store them in a float column.
func ConvertValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return v
	}
}

// ConvertRow applies ConvertValue to every cell of row in place and returns it.
func ConvertRow(row []any) []any {
	for i, v := range row {
		row[i] = ConvertValue(v)
	}
	return row
}

// TextValue renders a scalar for a character column. Booleans use the
// True/False spelling the readers accept back.
func TextValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(x)
	}
}
