package rulesource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSSourceFetch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "aws"), 0o755))
	write := func(rel, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, rel), []byte(content), 0o644))
	}
	write("baseline.yaml", "name: baseline")
	write(filepath.Join("aws", "iam.yml"), "name: iam")
	write("notes.txt", "not a rule pack")

	docs, err := NewFSSource(dir).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	paths := []string{docs[0].Path, docs[1].Path}
	assert.Contains(t, paths, "baseline.yaml")
	assert.Contains(t, paths, filepath.Join("aws", "iam.yml"))
}

func TestFSSourceMissingDir(t *testing.T) {
	_, err := NewFSSource(filepath.Join(t.TempDir(), "absent")).Fetch(context.Background())
	assert.Error(t, err)
}

func TestFSSourceCancelledContext(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pack.yaml"), []byte("name: p"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFSSource(dir).Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
