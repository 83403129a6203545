package ruleload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudassure/engine/pkg/logger"
)

type staticSource struct {
	docs []Document
}

func (s *staticSource) Fetch(ctx context.Context) ([]Document, error) {
	return s.docs, nil
}

const validPack = `
name: aws-baseline
certification:
  id: baseline-1
  description: Baseline cloud hygiene
  publisher: Example Org
controls:
  - id: C-1
    name: Encryption at rest
    domain: data
  - id: C-2
    name: MFA enforced
    domain: identity
rules:
  - name: volumes-encrypted
    description: EBS volumes must be encrypted
    controls: [C-1]
    conditions:
      - Volume has encrypted == true
  - name: users-have-mfa
    controls: [C-2]
    conditions:
      - User has not empty mfaDevices
`

func TestLoadCompilesPack(t *testing.T) {
	loader := New(&staticSource{docs: []Document{{Path: "aws.yaml", Data: []byte(validPack)}}}, logger.NewNop())

	res, err := loader.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Rules, 2)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, "volumes-encrypted", res.Rules[0].Name)
	assert.Equal(t, "Volume", res.Rules[0].AssetType)
	assert.Equal(t, "User", res.Rules[1].AssetType)

	require.Len(t, res.Certifications, 1)
	cert := res.Certifications[0]
	assert.Equal(t, "baseline-1", cert.ID)
	require.Len(t, cert.Controls, 2)

	encryption := cert.Control("C-1")
	require.NotNil(t, encryption)
	assert.True(t, encryption.Active)
	assert.True(t, encryption.Automated)
	require.Len(t, encryption.Rules, 1)
	assert.Equal(t, "volumes-encrypted", encryption.Rules[0].Name)
}

func TestLoadSkipsMalformedPack(t *testing.T) {
	docs := []Document{
		{Path: "broken.yaml", Data: []byte("rules: [")},
		{Path: "aws.yaml", Data: []byte(validPack)},
	}
	loader := New(&staticSource{docs: docs}, logger.NewNop())

	res, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Rules, 2)
	assert.Equal(t, 1, res.Skipped)
}

func TestLoadSkipsInvalidRules(t *testing.T) {
	pack := `
name: partial
rules:
  - name: bad-condition
    conditions:
      - Volume has encrypted ==
  - name: ""
    conditions:
      - Volume has encrypted == true
  - name: no-conditions
    conditions: []
  - name: still-good
    conditions:
      - Volume has encrypted == true
`
	loader := New(&staticSource{docs: []Document{{Path: "partial.yaml", Data: []byte(pack)}}}, logger.NewNop())

	res, err := loader.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Rules, 1)
	assert.Equal(t, "still-good", res.Rules[0].Name)
	assert.Equal(t, 3, res.Skipped)
}

func TestLoadWithoutCertification(t *testing.T) {
	pack := `
name: standalone
rules:
  - name: volumes-encrypted
    conditions:
      - Volume has encrypted == true
`
	loader := New(&staticSource{docs: []Document{{Path: "standalone.yaml", Data: []byte(pack)}}}, logger.NewNop())

	res, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Rules, 1)
	assert.Empty(t, res.Certifications)
}
