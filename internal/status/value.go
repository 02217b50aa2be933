package status

import (
	"fmt"
	"strconv"
)

// Normalize maps numeric values onto int or float64 and booleans onto
// 1/0 so equal readings compare equal regardless of their source type.
func Normalize(v any) any {
	switch n := v.(type) {
	case bool:
		if n {
			return 1
		}
		return 0
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint8:
		return int(n)
	case uint16:
		return int(n)
	case uint32:
		return int(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// FormatValue renders a value for text transports. Floats use the
// shortest representation: 80 not 80.000000.
func FormatValue(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case int:
		return strconv.Itoa(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Numeric returns v as float64 when it is a number.
func Numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
