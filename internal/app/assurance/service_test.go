package assurance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudassure/engine/internal/infra/memory"
	"github.com/cloudassure/engine/pkg/ccl"
	"github.com/cloudassure/engine/pkg/domain/asset"
	"github.com/cloudassure/engine/pkg/domain/certification"
	"github.com/cloudassure/engine/pkg/domain/control"
	"github.com/cloudassure/engine/pkg/domain/discovery"
	"github.com/cloudassure/engine/pkg/domain/rule"
	"github.com/cloudassure/engine/pkg/logger"
)

func mustRule(t *testing.T, name string, sources ...string) *rule.Rule {
	t.Helper()
	conditions := make([]*ccl.Condition, 0, len(sources))
	for _, src := range sources {
		cond, err := ccl.Parse(src)
		require.NoError(t, err)
		conditions = append(conditions, cond)
	}
	r, err := rule.New(name, "", "", conditions, nil)
	require.NoError(t, err)
	return r
}

func mustAsset(t *testing.T, assetType, id string, props asset.PropertyBag) *asset.Asset {
	t.Helper()
	a, err := asset.New(assetType, id, id, props)
	require.NoError(t, err)
	return a
}

func singleControlSetup(t *testing.T) (*Service, *rule.Rule, *control.Control) {
	t.Helper()
	r := mustRule(t, "volumes-encrypted", `Volume has encrypted == true`)
	c := control.New("C-1", "Encryption at rest", "data", "", []*rule.Rule{r})
	c.SetActive(true)
	cert := certification.New("cert-1", "", "", "", []*control.Control{c})

	svc := NewService(nil, logger.NewNop())
	svc.Configure([]*rule.Rule{r}, []*certification.Certification{cert})
	return svc, r, c
}

func TestOnNextEvaluatesMatchingRules(t *testing.T) {
	svc, _, c := singleControlSetup(t)

	good := mustAsset(t, "Volume", "vol-1", asset.PropertyBag{"encrypted": true})
	result := discovery.NewResult("Volume", []*asset.Asset{good})
	require.NoError(t, svc.OnNext(context.Background(), result))

	results := svc.EvaluationResults()
	require.Len(t, results, 1)
	assert.True(t, results[0].IsOk())
	assert.Equal(t, control.FulfillmentGood, c.Fulfillment)

	view, err := svc.Compliance("cert-1")
	require.NoError(t, err)
	assert.True(t, view.Compliant)
	assert.Equal(t, 1, view.Good)
}

func TestOnNextDemotesControlOnFailure(t *testing.T) {
	svc, _, c := singleControlSetup(t)

	assets := []*asset.Asset{
		mustAsset(t, "Volume", "vol-1", asset.PropertyBag{"encrypted": true}),
		mustAsset(t, "Volume", "vol-2", asset.PropertyBag{"encrypted": false}),
	}
	require.NoError(t, svc.OnNext(context.Background(), discovery.NewResult("Volume", assets)))

	assert.Equal(t, control.FulfillmentWarning, c.Fulfillment)

	view, err := svc.Compliance("cert-1")
	require.NoError(t, err)
	assert.False(t, view.Compliant)
	assert.Equal(t, 1, view.Warning)
}

func TestLaterResultSupersedesEarlier(t *testing.T) {
	svc, _, c := singleControlSetup(t)

	ctx := context.Background()
	bad := mustAsset(t, "Volume", "vol-1", asset.PropertyBag{"encrypted": false})
	require.NoError(t, svc.OnNext(ctx, discovery.NewResult("Volume", []*asset.Asset{bad})))
	assert.Equal(t, control.FulfillmentWarning, c.Fulfillment)

	// The asset is fixed; the next discovery replaces the stale outcome.
	fixed := mustAsset(t, "Volume", "vol-1", asset.PropertyBag{"encrypted": true})
	require.NoError(t, svc.OnNext(ctx, discovery.NewResult("Volume", []*asset.Asset{fixed})))

	require.Len(t, svc.EvaluationResults(), 1)
	assert.Equal(t, control.FulfillmentGood, c.Fulfillment)
}

func TestFailedResultKeepsPreviousState(t *testing.T) {
	svc, _, c := singleControlSetup(t)

	ctx := context.Background()
	good := mustAsset(t, "Volume", "vol-1", asset.PropertyBag{"encrypted": true})
	require.NoError(t, svc.OnNext(ctx, discovery.NewResult("Volume", []*asset.Asset{good})))
	assert.Equal(t, control.FulfillmentGood, c.Fulfillment)

	failed := discovery.NewFailedResult("Volume", errors.New("api unavailable"))
	require.NoError(t, svc.OnNext(ctx, failed))

	assert.Equal(t, control.FulfillmentGood, c.Fulfillment)
	assert.Len(t, svc.KnownAssets(), 1)
}

func TestVanishedAssetReleasesControl(t *testing.T) {
	svc, _, c := singleControlSetup(t)

	ctx := context.Background()
	bad := mustAsset(t, "Volume", "vol-1", asset.PropertyBag{"encrypted": false})
	require.NoError(t, svc.OnNext(ctx, discovery.NewResult("Volume", []*asset.Asset{bad})))
	assert.Equal(t, control.FulfillmentWarning, c.Fulfillment)

	// The volume was deleted; the next successful snapshot is empty and
	// its stale outcome must not keep demoting the control.
	require.NoError(t, svc.OnNext(ctx, discovery.NewResult("Volume", nil)))

	assert.Empty(t, svc.KnownAssets())
	assert.Empty(t, svc.EvaluationResults())
	assert.Equal(t, control.FulfillmentNotEvaluated, c.Fulfillment)
}

func TestOnNextIgnoresNonMatchingAssets(t *testing.T) {
	svc, _, c := singleControlSetup(t)

	user := mustAsset(t, "User", "u-1", asset.PropertyBag{"mfaDevices": []any{}})
	require.NoError(t, svc.OnNext(context.Background(), discovery.NewResult("User", []*asset.Asset{user})))

	assert.Empty(t, svc.EvaluationResults())
	assert.Equal(t, control.FulfillmentNotEvaluated, c.Fulfillment)

	view, err := svc.Compliance("cert-1")
	require.NoError(t, err)
	assert.False(t, view.Compliant, "automated control without evaluations is not compliant")
}

func TestResultsArePersistedWhenRepositoryConfigured(t *testing.T) {
	repo := memory.NewEvaluationRepository()
	r := mustRule(t, "volumes-encrypted", `Volume has encrypted == true`)

	svc := NewService(repo, logger.NewNop())
	svc.Configure([]*rule.Rule{r}, nil)

	good := mustAsset(t, "Volume", "vol-1", asset.PropertyBag{"encrypted": true})
	require.NoError(t, svc.OnNext(context.Background(), discovery.NewResult("Volume", []*asset.Asset{good})))

	stored, err := repo.ListByRule(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestQueries(t *testing.T) {
	svc, r, _ := singleControlSetup(t)

	assert.Len(t, svc.Rules(), 1)
	assert.Equal(t, r.Name, svc.Rules()[0].Name)
	assert.Len(t, svc.Certifications(), 1)

	c, err := svc.Control("C-1")
	require.NoError(t, err)
	assert.Equal(t, "C-1", c.ControlID)

	_, err = svc.Control("C-404")
	assert.Error(t, err)
	_, err = svc.Compliance("cert-404")
	assert.Error(t, err)
}
