package ccl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudassure/engine/pkg/domain/asset"
)

func evaluate(t *testing.T, source string, bag asset.PropertyBag) bool {
	t.Helper()
	expr, err := ParseExpression(source)
	require.NoError(t, err)
	return expr.Evaluate(bag)
}

func TestResolveNeverFails(t *testing.T) {
	bag := asset.PropertyBag{
		"a":   asset.PropertyBag{"b": asset.PropertyBag{"c": 1}},
		"x.y": "dotted-key",
		"s":   "scalar",
	}

	tests := []struct {
		path string
		want any
	}{
		{"a.b.c", 1},
		{"x.y", "dotted-key"},
		{"a.b", asset.PropertyBag{"c": 1}},
		{"missing", nil},
		{"a.missing", nil},
		{"a.missing.deeper", nil},
		// Walking past a scalar stops at the scalar.
		{"s.deeper", "scalar"},
		{"a.b.c.deeper", 1},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, bag.Resolve(tt.path))
			})
		})
	}
}

func TestEmptyExpression(t *testing.T) {
	tests := []struct {
		name string
		bag  asset.PropertyBag
		want bool
	}{
		{"absent field", asset.PropertyBag{}, true},
		{"empty string", asset.PropertyBag{"tags": ""}, true},
		{"empty list", asset.PropertyBag{"tags": []any{}}, true},
		{"non-empty string", asset.PropertyBag{"tags": "prod"}, false},
		{"non-empty list", asset.PropertyBag{"tags": []any{"prod"}}, false},
		{"boolean false is not empty", asset.PropertyBag{"tags": false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluate(t, "empty tags", tt.bag))
		})
	}
}

func TestBinaryComparisonMissingFieldIsFalse(t *testing.T) {
	bag := asset.PropertyBag{}

	for _, source := range []string{
		"count >= 0",
		"count >= -10",
		"count < 10",
		"count == 0",
		"count != 0",
		`name contains "x"`,
	} {
		t.Run(source, func(t *testing.T) {
			assert.False(t, evaluate(t, source, bag))
		})
	}
}

func TestBinaryComparisonEquality(t *testing.T) {
	tests := []struct {
		name   string
		source string
		bag    asset.PropertyBag
		want   bool
	}{
		{"bool equals", "encrypted == true", asset.PropertyBag{"encrypted": true}, true},
		{"bool differs", "encrypted == true", asset.PropertyBag{"encrypted": false}, false},
		{"string equals", `acl == "private"`, asset.PropertyBag{"acl": "private"}, true},
		{"not equals", `acl != "public"`, asset.PropertyBag{"acl": "private"}, true},
		{"int equals", "count == 3", asset.PropertyBag{"count": 3}, true},
		{"json float equals int literal", "count == 3", asset.PropertyBag{"count": float64(3)}, true},
		{"type mismatch", `encrypted == "true"`, asset.PropertyBag{"encrypted": true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluate(t, tt.source, tt.bag))
		})
	}
}

func TestBinaryComparisonOrderingCoercion(t *testing.T) {
	tests := []struct {
		name   string
		source string
		bag    asset.PropertyBag
		want   bool
	}{
		{"numeric strings parse", "size > 10", asset.PropertyBag{"size": "20"}, true},
		{"unparsable coerces to zero", "size > -1", asset.PropertyBag{"size": "huge"}, true},
		{"unparsable is not positive", "size > 0", asset.PropertyBag{"size": "huge"}, false},
		{"bool coerces to zero", "size >= 0", asset.PropertyBag{"size": true}, true},
		{"negative literal", "temp < -5", asset.PropertyBag{"temp": -10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluate(t, tt.source, tt.bag))
		})
	}
}

func TestContainsRequiresStrings(t *testing.T) {
	assert.True(t, evaluate(t, `name contains "prod"`, asset.PropertyBag{"name": "production"}))
	assert.False(t, evaluate(t, `name contains "prod"`, asset.PropertyBag{"name": "staging"}))
	assert.False(t, evaluate(t, `name contains "1"`, asset.PropertyBag{"name": 123}))
}

func TestTimeComparison(t *testing.T) {
	now := time.Now()

	t.Run("before bound in the future", func(t *testing.T) {
		source := "expiry before 10 days"
		soon := asset.PropertyBag{"expiry": now.Add(5 * 24 * time.Hour).Format(time.RFC3339)}
		far := asset.PropertyBag{"expiry": now.Add(20 * 24 * time.Hour).Format(time.RFC3339)}
		assert.True(t, evaluate(t, source, soon))
		assert.False(t, evaluate(t, source, far))
	})

	t.Run("younger bound in the past", func(t *testing.T) {
		source := "created younger 7 days"
		recent := asset.PropertyBag{"created": now.Add(-24 * time.Hour).Unix()}
		old := asset.PropertyBag{"created": now.Add(-30 * 24 * time.Hour).Unix()}
		assert.True(t, evaluate(t, source, recent))
		assert.False(t, evaluate(t, source, old))
	})

	t.Run("older bound in the past", func(t *testing.T) {
		source := "rotated older 90 days"
		stale := asset.PropertyBag{"rotated": now.Add(-120 * 24 * time.Hour).Unix()}
		fresh := asset.PropertyBag{"rotated": now.Add(-10 * 24 * time.Hour).Unix()}
		assert.True(t, evaluate(t, source, stale))
		assert.False(t, evaluate(t, source, fresh))
	})

	t.Run("epoch bag shape", func(t *testing.T) {
		bag := asset.PropertyBag{"created": asset.PropertyBag{
			"epochSecond": now.Add(-time.Hour).Unix(),
			"nano":        int64(0),
		}}
		assert.True(t, evaluate(t, "created younger 1 days", bag))
	})

	t.Run("wrong shape is false", func(t *testing.T) {
		assert.False(t, evaluate(t, "created younger 1 days", asset.PropertyBag{"created": "not-a-time"}))
		assert.False(t, evaluate(t, "created younger 1 days", asset.PropertyBag{"created": []any{1}}))
		assert.False(t, evaluate(t, "created younger 1 days", asset.PropertyBag{}))
	})
}

func TestInExpression(t *testing.T) {
	devices := asset.PropertyBag{"devices": []any{
		asset.PropertyBag{"a": 5},
		asset.PropertyBag{"a": 6},
	}}

	t.Run("any matches one element", func(t *testing.T) {
		assert.True(t, evaluate(t, "a == 5 in any devices", devices))
	})

	t.Run("all requires every element", func(t *testing.T) {
		assert.False(t, evaluate(t, "a == 5 in all devices", devices))
		assert.True(t, evaluate(t, "a >= 5 in all devices", devices))
	})

	t.Run("bag of bags iterates values", func(t *testing.T) {
		byName := asset.PropertyBag{"devices": asset.PropertyBag{
			"first":  asset.PropertyBag{"a": 5},
			"second": asset.PropertyBag{"a": 6},
		}}
		assert.True(t, evaluate(t, "a == 5 in any devices", byName))
	})

	t.Run("non-collection field is false", func(t *testing.T) {
		assert.False(t, evaluate(t, "a == 5 in any devices", asset.PropertyBag{"devices": "nope"}))
		assert.False(t, evaluate(t, "a == 5 in any devices", asset.PropertyBag{}))
	})
}

func TestWithinExpression(t *testing.T) {
	bag := asset.PropertyBag{"region": "eu-west-1"}
	assert.True(t, evaluate(t, `region within "eu-west-1", "eu-central-1"`, bag))
	assert.False(t, evaluate(t, `region within "us-east-1", "us-west-2"`, bag))
	assert.False(t, evaluate(t, `region within "eu-west-1"`, asset.PropertyBag{}))
}

func TestNotExpression(t *testing.T) {
	bag := asset.PropertyBag{"encrypted": false}
	assert.True(t, evaluate(t, "not encrypted == true", bag))
	assert.False(t, evaluate(t, "not encrypted == false", bag))
}
