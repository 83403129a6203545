package asset

import "strings"

// PropertyBag is the recursive key/value structure holding an asset's
// discovered attributes. Values are scalars (string, number, bool, nil),
// nested PropertyBags, or lists of scalars/bags.
type PropertyBag map[string]any

// Resolve looks up a dotted field path in the bag.
//
// The full, un-split path is tried first so keys that literally contain
// dots short-circuit the path walk. Otherwise the path is split on "." and
// walked segment by segment; the walk stops at the first value that is not
// a nested bag and returns the last successfully looked-up value. A missing
// key at any depth yields nil. Resolve never fails.
func (b PropertyBag) Resolve(path string) any {
	if v, ok := b[path]; ok {
		return v
	}

	var cur any = b
	for _, seg := range strings.Split(path, ".") {
		bag, ok := asBag(cur)
		if !ok {
			break
		}
		cur = bag[seg]
	}
	return cur
}

// Has reports whether the path resolves to a non-nil value.
func (b PropertyBag) Has(path string) bool {
	return b.Resolve(path) != nil
}

// Copy returns a deep copy of the bag. Published assets are treated as
// immutable; evaluation results snapshot properties via Copy.
func (b PropertyBag) Copy() PropertyBag {
	if b == nil {
		return nil
	}
	out := make(PropertyBag, len(b))
	for k, v := range b {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case PropertyBag:
		return t.Copy()
	case map[string]any:
		return PropertyBag(t).Copy()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

// asBag normalizes the two map shapes a bag can arrive in (typed
// PropertyBag or plain map from a JSON decode).
func asBag(v any) (PropertyBag, bool) {
	switch t := v.(type) {
	case PropertyBag:
		return t, true
	case map[string]any:
		return PropertyBag(t), true
	default:
		return nil, false
	}
}

// AsBag exposes bag normalization to evaluators outside this package.
func AsBag(v any) (PropertyBag, bool) {
	return asBag(v)
}
