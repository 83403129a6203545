package ccl

import (
	"fmt"
	"strings"
	"time"

	"github.com/cloudassure/engine/pkg/domain/asset"
)

// Expression is one node of a compiled condition. Evaluation walks an
// asset's property bag and never fails: missing or wrongly-shaped
// properties evaluate to false (or true for emptiness checks), they are
// never errors.
type Expression interface {
	// Evaluate reports whether the expression holds for the given bag.
	Evaluate(bag asset.PropertyBag) bool

	// String returns the canonical source form. Parsing the result yields
	// an expression that evaluates identically.
	String() string
}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpEquals         CompareOp = "=="
	OpNotEquals      CompareOp = "!="
	OpLess           CompareOp = "<"
	OpLessOrEqual    CompareOp = "<="
	OpGreater        CompareOp = ">"
	OpGreaterOrEqual CompareOp = ">="
	OpContains       CompareOp = "contains"
)

// TimeOp is a time comparison operator.
type TimeOp string

const (
	TimeBefore  TimeOp = "before"
	TimeAfter   TimeOp = "after"
	TimeYounger TimeOp = "younger"
	TimeOlder   TimeOp = "older"
)

// TimeUnit is the unit of a time comparison's relative value.
type TimeUnit string

const (
	UnitSeconds TimeUnit = "seconds"
	UnitMinutes TimeUnit = "minutes"
	UnitHours   TimeUnit = "hours"
	UnitDays    TimeUnit = "days"
	UnitWeeks   TimeUnit = "weeks"
	UnitMonths  TimeUnit = "months"
)

// IsValid checks if the time unit is one the language knows.
func (u TimeUnit) IsValid() bool {
	switch u {
	case UnitSeconds, UnitMinutes, UnitHours, UnitDays, UnitWeeks, UnitMonths:
		return true
	}
	return false
}

// Duration converts n units into a duration. Months count as 30 days.
func (u TimeUnit) Duration(n int64) time.Duration {
	switch u {
	case UnitSeconds:
		return time.Duration(n) * time.Second
	case UnitMinutes:
		return time.Duration(n) * time.Minute
	case UnitHours:
		return time.Duration(n) * time.Hour
	case UnitWeeks:
		return time.Duration(n) * 7 * 24 * time.Hour
	case UnitMonths:
		return time.Duration(n) * 30 * 24 * time.Hour
	default:
		return time.Duration(n) * 24 * time.Hour
	}
}

// Scope selects how an InExpression folds its per-element results.
type Scope string

const (
	ScopeAny Scope = "any"
	ScopeAll Scope = "all"
)

// BinaryComparison compares a resolved field against a literal value.
type BinaryComparison struct {
	Field    string
	Operator CompareOp
	Value    any
}

// Evaluate implements Expression. Equality is deep structural equality,
// "contains" is a string substring test, and the ordering operators coerce
// both sides to integers with unparsable values counting as zero.
func (e *BinaryComparison) Evaluate(bag asset.PropertyBag) bool {
	v := bag.Resolve(e.Field)
	if v == nil {
		return false
	}
	switch e.Operator {
	case OpEquals:
		return equals(v, e.Value)
	case OpNotEquals:
		return !equals(v, e.Value)
	case OpContains:
		s, sok := v.(string)
		sub, lok := e.Value.(string)
		return sok && lok && strings.Contains(s, sub)
	case OpLess:
		return coerceInt(v) < coerceInt(e.Value)
	case OpLessOrEqual:
		return coerceInt(v) <= coerceInt(e.Value)
	case OpGreater:
		return coerceInt(v) > coerceInt(e.Value)
	case OpGreaterOrEqual:
		return coerceInt(v) >= coerceInt(e.Value)
	default:
		return false
	}
}

func (e *BinaryComparison) String() string {
	return fmt.Sprintf("%s %s %s", e.Field, e.Operator, formatValue(e.Value))
}

// TimeComparison compares a resolved instant against a bound relative to
// evaluation time. before/after bound the future (now + relative),
// younger/older bound the past (now - relative).
type TimeComparison struct {
	Field         string
	Operator      TimeOp
	RelativeValue int64
	Unit          TimeUnit
}

// Evaluate implements Expression. The resolved field must be an integer
// epoch-seconds value, a bag with epochSecond (+optional nano) keys, or an
// ISO-8601 instant string; any other shape evaluates to false.
func (e *TimeComparison) Evaluate(bag asset.PropertyBag) bool {
	instant, ok := resolveInstant(bag.Resolve(e.Field))
	if !ok {
		return false
	}

	now := time.Now()
	var bound time.Time
	switch e.Operator {
	case TimeBefore, TimeAfter:
		bound = now.Add(e.Unit.Duration(e.RelativeValue))
	case TimeYounger, TimeOlder:
		bound = now.Add(-e.Unit.Duration(e.RelativeValue))
	default:
		return false
	}

	switch e.Operator {
	case TimeYounger, TimeAfter:
		return instant.After(bound)
	default: // TimeBefore, TimeOlder
		return instant.Before(bound)
	}
}

func (e *TimeComparison) String() string {
	if e.RelativeValue == 0 {
		return fmt.Sprintf("%s %s", e.Field, e.Operator)
	}
	return fmt.Sprintf("%s %s %d %s", e.Field, e.Operator, e.RelativeValue, e.Unit)
}

// EmptyExpression checks a field for absence or emptiness.
type EmptyExpression struct {
	Field string
}

// Evaluate implements Expression. Absence means empty.
func (e *EmptyExpression) Evaluate(bag asset.PropertyBag) bool {
	switch v := bag.Resolve(e.Field).(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case asset.PropertyBag:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func (e *EmptyExpression) String() string {
	return "empty " + e.Field
}

// NotExpression negates its inner expression.
type NotExpression struct {
	Inner Expression
}

// Evaluate implements Expression.
func (e *NotExpression) Evaluate(bag asset.PropertyBag) bool {
	return !e.Inner.Evaluate(bag)
}

func (e *NotExpression) String() string {
	return "not " + e.Inner.String()
}

// InExpression evaluates its inner expression against every element of a
// list-valued field.
type InExpression struct {
	Field string
	Scope Scope
	Inner Expression
}

// Evaluate implements Expression. The field must resolve to a list of bags
// or a bag of bags, otherwise the result is false. ScopeAll requires every
// element to pass, ScopeAny at least one.
func (e *InExpression) Evaluate(bag asset.PropertyBag) bool {
	elems, ok := iterate(bag.Resolve(e.Field))
	if !ok {
		return false
	}

	if e.Scope == ScopeAll {
		for _, elem := range elems {
			inner, ok := asset.AsBag(elem)
			if !ok || !e.Inner.Evaluate(inner) {
				return false
			}
		}
		return true
	}

	for _, elem := range elems {
		if inner, ok := asset.AsBag(elem); ok && e.Inner.Evaluate(inner) {
			return true
		}
	}
	return false
}

func (e *InExpression) String() string {
	return fmt.Sprintf("%s in %s %s", e.Inner, e.Scope, e.Field)
}

// WithinExpression checks whether a scalar field equals any of a list of
// literal values.
type WithinExpression struct {
	Field  string
	Values []any
}

// Evaluate implements Expression.
func (e *WithinExpression) Evaluate(bag asset.PropertyBag) bool {
	v := bag.Resolve(e.Field)
	for _, want := range e.Values {
		if equals(v, want) {
			return true
		}
	}
	return false
}

func (e *WithinExpression) String() string {
	parts := make([]string, len(e.Values))
	for i, v := range e.Values {
		parts[i] = formatValue(v)
	}
	return fmt.Sprintf("%s within %s", e.Field, strings.Join(parts, ", "))
}
