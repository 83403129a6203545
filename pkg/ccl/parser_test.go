package ccl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudassure/engine/pkg/domain/asset"
)

func TestParseSimpleCondition(t *testing.T) {
	cond, err := Parse(`Volume has encrypted == true`)
	require.NoError(t, err)

	sel, ok := cond.AssetType.(*SimpleSelector)
	require.True(t, ok)
	assert.Equal(t, "Volume", sel.TypeName)

	cmp, ok := cond.Expression.(*BinaryComparison)
	require.True(t, ok)
	assert.Equal(t, "encrypted", cmp.Field)
	assert.Equal(t, OpEquals, cmp.Operator)
	assert.Equal(t, true, cmp.Value)

	assert.Equal(t, `Volume has encrypted == true`, cond.SourceText)
}

func TestParseOperators(t *testing.T) {
	tests := []struct {
		source string
		op     CompareOp
		value  any
	}{
		{`Bucket has acl == "private"`, OpEquals, "private"},
		{`Bucket has acl != "public"`, OpNotEquals, "public"},
		{`Instance has openPorts < 2`, OpLess, int64(2)},
		{`Instance has openPorts <= 2`, OpLessOrEqual, int64(2)},
		{`Instance has cpuCount > 4`, OpGreater, int64(4)},
		{`Instance has cpuCount >= -4`, OpGreaterOrEqual, int64(-4)},
		{`Instance has name contains "prod"`, OpContains, "prod"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			cond, err := Parse(tt.source)
			require.NoError(t, err)
			cmp, ok := cond.Expression.(*BinaryComparison)
			require.True(t, ok)
			assert.Equal(t, tt.op, cmp.Operator)
			assert.Equal(t, tt.value, cmp.Value)
		})
	}
}

func TestParseTimeComparison(t *testing.T) {
	t.Run("with relative value", func(t *testing.T) {
		cond, err := Parse(`Certificate has expiry before 10 days`)
		require.NoError(t, err)
		tc, ok := cond.Expression.(*TimeComparison)
		require.True(t, ok)
		assert.Equal(t, "expiry", tc.Field)
		assert.Equal(t, TimeBefore, tc.Operator)
		assert.Equal(t, int64(10), tc.RelativeValue)
		assert.Equal(t, UnitDays, tc.Unit)
	})

	t.Run("defaults to zero days", func(t *testing.T) {
		cond, err := Parse(`Key has created older`)
		require.NoError(t, err)
		tc, ok := cond.Expression.(*TimeComparison)
		require.True(t, ok)
		assert.Equal(t, int64(0), tc.RelativeValue)
		assert.Equal(t, UnitDays, tc.Unit)
	})

	t.Run("rejects unknown unit", func(t *testing.T) {
		_, err := Parse(`Key has created older 3 fortnights`)
		var perr *ParseError
		require.ErrorAs(t, err, &perr)
	})
}

func TestParseNotAndEmpty(t *testing.T) {
	cond, err := Parse(`User has not empty mfaDevices`)
	require.NoError(t, err)

	not, ok := cond.Expression.(*NotExpression)
	require.True(t, ok)
	empty, ok := not.Inner.(*EmptyExpression)
	require.True(t, ok)
	assert.Equal(t, "mfaDevices", empty.Field)
}

func TestParseInExpression(t *testing.T) {
	t.Run("default scope is any", func(t *testing.T) {
		cond, err := Parse(`User has deviceId == "5" in mfaDevices`)
		require.NoError(t, err)
		in, ok := cond.Expression.(*InExpression)
		require.True(t, ok)
		assert.Equal(t, ScopeAny, in.Scope)
		assert.Equal(t, "mfaDevices", in.Field)
	})

	t.Run("explicit all scope", func(t *testing.T) {
		cond, err := Parse(`LoadBalancer has protocol == "HTTPS" in all listeners`)
		require.NoError(t, err)
		in, ok := cond.Expression.(*InExpression)
		require.True(t, ok)
		assert.Equal(t, ScopeAll, in.Scope)
		assert.Equal(t, "listeners", in.Field)

		inner, ok := in.Inner.(*BinaryComparison)
		require.True(t, ok)
		assert.Equal(t, "protocol", inner.Field)
	})
}

func TestParseWithinExpression(t *testing.T) {
	cond, err := Parse(`Instance has region within "eu-west-1", "eu-central-1", "eu-north-1"`)
	require.NoError(t, err)
	within, ok := cond.Expression.(*WithinExpression)
	require.True(t, ok)
	assert.Equal(t, "region", within.Field)
	assert.Equal(t, []any{"eu-west-1", "eu-central-1", "eu-north-1"}, within.Values)
}

func TestParseFilteredSelector(t *testing.T) {
	cond, err := Parse(`Resource(category) category == "storage" has encrypted == true`)
	require.NoError(t, err)

	sel, ok := cond.AssetType.(*FilteredSelector)
	require.True(t, ok)
	assert.Equal(t, "Resource", sel.TypeName)
	assert.Equal(t, "category", sel.Field)

	a, err := asset.New("Bucket", "b-1", "images", asset.PropertyBag{
		"category":  "storage",
		"encrypted": true,
	})
	require.NoError(t, err)
	assert.True(t, cond.AppliesTo(a))
	assert.True(t, cond.Evaluate(a))

	other, err := asset.New("Queue", "q-1", "jobs", asset.PropertyBag{"category": "messaging"})
	require.NoError(t, err)
	assert.False(t, cond.AppliesTo(other))
}

func TestParseGroupedSelector(t *testing.T) {
	cond, err := Parse(`Resource[category] category == "storage" has encrypted == true`)
	require.NoError(t, err)

	sel, ok := cond.AssetType.(*GroupedSelector)
	require.True(t, ok)
	assert.Equal(t, "category", sel.Field)

	a, _ := asset.New("Bucket", "b-1", "images", asset.PropertyBag{"category": "storage"})
	assert.True(t, cond.AppliesTo(a))
}

func TestParseDottedFieldPath(t *testing.T) {
	cond, err := Parse(`Instance has networking.firewall.enabled == true`)
	require.NoError(t, err)
	cmp, ok := cond.Expression.(*BinaryComparison)
	require.True(t, ok)
	assert.Equal(t, "networking.firewall.enabled", cmp.Field)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"missing has", `Volume encrypted == true`},
		{"missing value", `Volume has encrypted ==`},
		{"dangling operator", `Volume has == true`},
		{"unterminated string", `Volume has name == "prod`},
		{"single equals", `Volume has encrypted = true`},
		{"trailing input", `Volume has encrypted == true extra`},
		{"empty source", ``},
		{"unclosed selector", `Resource(category category == "x" has encrypted == true`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.source)
			var perr *ParseError
			require.ErrorAs(t, err, &perr, "expected ParseError, got %v", err)
			assert.NotEmpty(t, perr.Message)
		})
	}
}

func TestConditionRoundTrip(t *testing.T) {
	sources := []string{
		`Volume has encrypted == true`,
		`User has not empty mfaDevices`,
		`Certificate has expiry before 10 days`,
		`Key has created older`,
		`User has deviceId == "5" in any mfaDevices`,
		`LoadBalancer has protocol == "HTTPS" in all listeners`,
		`Instance has region within "eu-west-1", "eu-central-1"`,
		`Resource(category) category == "storage" has encrypted == true`,
		`Resource[category] category == "storage" has encrypted == true`,
		`Volume has not (encrypted == false)`,
	}

	assets := []*asset.Asset{
		mustAsset(t, "Volume", asset.PropertyBag{"encrypted": true}),
		mustAsset(t, "User", asset.PropertyBag{"mfaDevices": []any{}}),
		mustAsset(t, "User", asset.PropertyBag{
			"mfaDevices": []any{asset.PropertyBag{"deviceId": "5"}},
		}),
		mustAsset(t, "Instance", asset.PropertyBag{"region": "eu-west-1", "category": "storage"}),
	}

	for _, source := range sources {
		t.Run(source, func(t *testing.T) {
			first, err := Parse(source)
			require.NoError(t, err)

			reparsed, err := Parse(first.String())
			require.NoError(t, err, "canonical form must reparse: %q", first.String())

			for _, a := range assets {
				assert.Equal(t, first.Evaluate(a), reparsed.Evaluate(a),
					"evaluation diverged on asset %s for %q", a.ID, first.String())
				assert.Equal(t, first.AppliesTo(a), reparsed.AppliesTo(a),
					"selector diverged on asset %s for %q", a.ID, first.String())
			}
		})
	}
}

func mustAsset(t *testing.T, assetType string, props asset.PropertyBag) *asset.Asset {
	t.Helper()
	a, err := asset.New(assetType, assetType+"-1", assetType, props)
	require.NoError(t, err)
	return a
}
