package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDiscoveryFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := "store:\n  backend: file\n  path: patterns.json\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDiscoverFindsConfigFiles(t *testing.T) {
	dir := t.TempDir()
	writeDiscoveryFile(t, dir, "rote.yaml")

	d := NewDiscoveryWithPaths([]string{dir})
	files, err := d.Discover()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "rote.yaml", filepath.Base(files[0]))
	assert.True(t, filepath.IsAbs(files[0]))
}

func TestDiscoverOrdersByFilenamePreference(t *testing.T) {
	dir := t.TempDir()
	writeDiscoveryFile(t, dir, "config.yaml")
	writeDiscoveryFile(t, dir, "rote.yaml")

	d := NewDiscoveryWithPaths([]string{dir})
	first, err := d.DiscoverFirst()
	require.NoError(t, err)
	assert.Equal(t, "rote.yaml", filepath.Base(first))
}

func TestDiscoverFirstFailsWhenEmpty(t *testing.T) {
	d := NewDiscoveryWithPaths([]string{t.TempDir()})
	_, err := d.DiscoverFirst()
	require.Error(t, err)
}

func TestDiscoverSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "rote.yaml"), 0755))

	d := NewDiscoveryWithPaths([]string{dir})
	files, err := d.Discover()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverDeduplicatesResults(t *testing.T) {
	dir := t.TempDir()
	writeDiscoveryFile(t, dir, "rote.yaml")

	d := NewDiscoveryWithPaths([]string{dir, dir})
	files, err := d.Discover()
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestDiscoverInPath(t *testing.T) {
	dir := t.TempDir()
	writeDiscoveryFile(t, dir, "rote.yml")
	writeDiscoveryFile(t, dir, ".rote.yaml")

	d := NewDiscovery()
	files, err := d.DiscoverInPath(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestDiscoveryHonorsConfigDirEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ROTE_CONFIG_DIR", dir)

	d := NewDiscovery()
	assert.Contains(t, d.GetSearchPaths(), dir)
}

func TestDiscoveryAccessors(t *testing.T) {
	d := NewDiscoveryWithOptions([]string{"/a"}, []string{"one.yaml"})
	d.AddSearchPath("/b")
	d.AddFilename("two.yaml")

	assert.Equal(t, []string{"/a", "/b"}, d.GetSearchPaths())
	assert.Equal(t, []string{"one.yaml", "two.yaml"}, d.GetFilenames())

	d.SetSearchPaths([]string{"/c"})
	d.SetFilenames([]string{"three.yaml"})
	assert.Equal(t, []string{"/c"}, d.GetSearchPaths())
	assert.Equal(t, []string{"three.yaml"}, d.GetFilenames())
}

func TestCreateDefaultConfigFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	d := NewDiscovery()
	path, err := d.CreateDefaultConfigFileInPath(dir)
	require.NoError(t, err)
	assert.Equal(t, "rote.yaml", filepath.Base(path))

	// Creating twice fails rather than overwriting
	_, err = d.CreateDefaultConfigFileInPath(dir)
	require.Error(t, err)

	// The generated file loads back as a valid configuration
	m, err := NewManager(WithConfigPath(path))
	require.NoError(t, err)
	require.NoError(t, m.Load())
	assert.Equal(t, "file", m.GetStoreConfig().Backend)
	assert.Equal(t, 25, m.GetControllerConfig().MaxInteractions)
}
