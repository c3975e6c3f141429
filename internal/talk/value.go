package talk

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is any runtime value handled by the engine: nil, float64, string, bool, *Part,
// or a Descriptor awaiting resolution.
type Value any

func toNumber(v Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// FormatValue renders a value the way answer and string concatenation see it.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case *Part:
		if x == nil {
			return ""
		}
		return fmt.Sprintf("%s id %d", x.Type(), x.ID())
	case Descriptor:
		return x.String()
	}
	if n, ok := toNumber(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x == "true"
	case *Part:
		return x != nil
	}
	if n, ok := toNumber(v); ok {
		return n != 0
	}
	return false
}

func valuesEqual(a, b Value) bool {
	if _, isBool := a.(bool); !isBool {
		if x, ok := toNumber(a); ok {
			if y, ok := toNumber(b); ok {
				return x == y
			}
		}
	}
	if pa, ok := a.(*Part); ok {
		if pb, ok := b.(*Part); ok {
			return pa == pb
		}
	}
	return FormatValue(a) == FormatValue(b)
}

// toIndex converts a value to a positive integer position.
func toIndex(v Value) (int, bool) {
	n, ok := toNumber(v)
	if !ok || n != float64(int(n)) {
		return 0, false
	}
	return int(n), true
}
