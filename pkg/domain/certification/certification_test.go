package certification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudassure/engine/pkg/ccl"
	"github.com/cloudassure/engine/pkg/domain/asset"
	"github.com/cloudassure/engine/pkg/domain/control"
	"github.com/cloudassure/engine/pkg/domain/rule"
)

func automatedControl(t *testing.T, id string) *control.Control {
	t.Helper()
	cond, err := ccl.Parse(`Volume has encrypted == true`)
	require.NoError(t, err)
	r, err := rule.New("encrypted-volumes", "", "", []*ccl.Condition{cond}, []string{id})
	require.NoError(t, err)
	c := control.New(id, "Encryption", "storage", "", []*rule.Rule{r})
	c.SetActive(true)
	return c
}

func TestComplianceDerivedFromControls(t *testing.T) {
	good := automatedControl(t, "C-1")
	bad := automatedControl(t, "C-2")

	encrypted, _ := asset.New("Volume", "vol-1", "", asset.PropertyBag{"encrypted": true})
	plaintext, _ := asset.New("Volume", "vol-2", "", asset.PropertyBag{"encrypted": false})

	good.Evaluate([]*asset.Asset{encrypted})
	bad.Evaluate([]*asset.Asset{plaintext})

	cert := New("SOC-2", "Service Organization Controls", "AICPA", "https://example.org", []*control.Control{good, bad})

	view := cert.Compliance()
	assert.Equal(t, 1, view.Good)
	assert.Equal(t, 1, view.Warning)
	assert.False(t, view.Compliant)

	// Fixing the failing control changes the derived view without any
	// state held on the certification itself.
	bad.Evaluate([]*asset.Asset{encrypted})
	view = cert.Compliance()
	assert.Equal(t, 2, view.Good)
	assert.True(t, view.Compliant)
}

func TestComplianceSkipsInactiveControls(t *testing.T) {
	inactive := automatedControl(t, "C-3")
	inactive.SetActive(false)

	cert := New("SOC-2", "", "", "", []*control.Control{inactive})
	view := cert.Compliance()
	assert.Equal(t, 1, view.Inactive)
	assert.True(t, view.Compliant)
}

func TestControlLookup(t *testing.T) {
	c := automatedControl(t, "C-1")
	cert := New("SOC-2", "", "", "", []*control.Control{c})

	assert.Same(t, c, cert.Control("C-1"))
	assert.Nil(t, cert.Control("C-404"))
}
