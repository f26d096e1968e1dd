package classify_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LatVAlY/specWise/internal/classify"
)

func TestDefaultCatalog(t *testing.T) {
	c := classify.DefaultCatalog()
	require.NoError(t, c.Validate())

	cat, ok := c.Lookup(" dl8110016 ")
	require.True(t, ok)
	assert.Equal(t, "Wartung", cat.Name)

	_, ok = c.Lookup("000000")
	assert.False(t, ok)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `categories:
  - name: Fenster
    sku: "700001"
    hints:
      - Dachfenster
  - name: Wartung
    sku: DL8110016
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := classify.LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, c.Categories, 2)
	assert.Equal(t, "700001", c.Categories[0].SKU)
	assert.Equal(t, []string{"Dachfenster"}, c.Categories[0].Hints)
}

func TestLoadCatalog_Invalid(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("categories: []\n"), 0o600))
	_, err := classify.LoadCatalog(empty)
	assert.ErrorIs(t, err, classify.ErrEmptyCatalog)

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte("categories:\n  - {name: a, sku: \"1\"}\n  - {name: b, sku: \"1\"}\n"), 0o600))
	_, err = classify.LoadCatalog(dup)
	assert.Error(t, err)

	_, err = classify.LoadCatalog(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
