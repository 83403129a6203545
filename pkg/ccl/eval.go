package ccl

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/cloudassure/engine/pkg/domain/asset"
)

// equals performs deep structural equality with numeric kinds normalized
// to int64, so a JSON-decoded float64(5) equals the literal 5.
func equals(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		if float32(int64(t)) == t {
			return int64(t)
		}
		return float64(t)
	case float64:
		if float64(int64(t)) == t {
			return int64(t)
		}
		return t
	case map[string]any:
		return asset.PropertyBag(t)
	default:
		return v
	}
}

// coerceInt coerces a value to an integer for the ordering operators by
// parsing its string representation. Unparsable values count as zero. This
// permissive policy is relied upon by existing rules and must not change.
func coerceInt(v any) int64 {
	if v == nil {
		return 0
	}
	n, err := strconv.ParseInt(fmt.Sprint(normalize(v)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// resolveInstant extracts a point in time from the shapes a discovered
// timestamp can take.
func resolveInstant(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	case asset.PropertyBag, map[string]any:
		bag, _ := asset.AsBag(t)
		sec, ok := intValue(bag["epochSecond"])
		if !ok {
			return time.Time{}, false
		}
		nano, _ := intValue(bag["nano"])
		return time.Unix(sec, nano), true
	default:
		sec, ok := intValue(v)
		if !ok {
			return time.Time{}, false
		}
		return time.Unix(sec, 0), true
	}
}

func intValue(v any) (int64, bool) {
	n, ok := normalize(v).(int64)
	return n, ok
}

// iterate returns the elements of a list-valued property: either a list or
// the values of a nested bag.
func iterate(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case asset.PropertyBag, map[string]any:
		bag, _ := asset.AsBag(t)
		elems := make([]any, 0, len(bag))
		for _, e := range bag {
			elems = append(elems, e)
		}
		return elems, true
	default:
		return nil, false
	}
}

// formatValue renders a literal in source form.
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(normalize(v))
	}
}
