package discovery

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudassure/engine/pkg/domain/asset"
)

func TestNewScanDefaults(t *testing.T) {
	s, err := NewScan("Volume", "aws-volume", "aws", "ec2")
	require.NoError(t, err)

	assert.Equal(t, "Volume", s.ID())
	assert.Equal(t, DefaultInterval, s.Interval)
	assert.False(t, s.Enabled)
	assert.False(t, s.Discovering)
	assert.Nil(t, s.LastResult)
}

func TestScanTickLifecycle(t *testing.T) {
	s, _ := NewScan("Volume", "", "", "")

	s.BeginTick()
	assert.True(t, s.Discovering)

	a, _ := asset.New("Volume", "vol-1", "data", nil)
	s.EndTick(NewResult(s.ID(), []*asset.Asset{a}))
	assert.False(t, s.Discovering)
	require.NotNil(t, s.LastResult)
	assert.False(t, s.LastResult.Failed)
	assert.Equal(t, 1, s.TotalRuns)
	assert.Equal(t, 1, s.SuccessfulRuns)

	s.BeginTick()
	s.EndTick(NewFailedResult(s.ID(), errors.New("provider unavailable")))
	require.NotNil(t, s.LastResult)
	assert.True(t, s.LastResult.Failed)
	assert.Equal(t, "provider unavailable", s.LastError)
	assert.Equal(t, 2, s.TotalRuns)
	assert.Equal(t, 1, s.FailedRuns)
}

func TestScanSchedule(t *testing.T) {
	s, _ := NewScan("Volume", "", "", "")

	t.Run("interval by default", func(t *testing.T) {
		s.SetInterval(42 * time.Second)
		assert.Equal(t, 42*time.Second, s.NextDelay(time.Now()))
	})

	t.Run("cron overrides interval", func(t *testing.T) {
		require.NoError(t, s.SetScheduleCron("*/5 * * * *"))
		delay := s.NextDelay(time.Now())
		assert.Greater(t, delay, time.Duration(0))
		assert.LessOrEqual(t, delay, 5*time.Minute)
	})

	t.Run("invalid cron rejected", func(t *testing.T) {
		assert.Error(t, s.SetScheduleCron("not a cron"))
	})
}

func TestResultKeysAssetsByID(t *testing.T) {
	a, _ := asset.New("Volume", "vol-1", "data", nil)
	b, _ := asset.New("Volume", "vol-2", "logs", nil)

	r := NewResult("Volume", []*asset.Asset{a, b})
	assert.Len(t, r.DiscoveredAssets, 2)
	assert.Same(t, a, r.DiscoveredAssets["vol-1"])
	assert.Len(t, r.Assets(), 2)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	info := ScannerInfo{AssetType: "Volume", Group: "aws", Service: "ec2"}

	require.NoError(t, reg.Register(info, func() Scanner { return nil }))
	assert.Error(t, reg.Register(info, func() Scanner { return nil }), "duplicate registration")

	_, err := reg.New("Volume")
	assert.NoError(t, err)
	_, err = reg.New("Unknown")
	assert.Error(t, err)

	assert.Equal(t, []string{"Volume"}, reg.IDs())
}
