package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Discovery handles configuration file discovery.
type Discovery struct {
	searchPaths []string
	filenames   []string
}

// NewDiscovery creates a new configuration discovery instance.
func NewDiscovery() *Discovery {
	return &Discovery{
		searchPaths: getDefaultSearchPaths(),
		filenames:   getDefaultFilenames(),
	}
}

// NewDiscoveryWithPaths creates a discovery instance with custom search paths.
func NewDiscoveryWithPaths(searchPaths []string) *Discovery {
	return &Discovery{
		searchPaths: searchPaths,
		filenames:   getDefaultFilenames(),
	}
}

// NewDiscoveryWithOptions creates a discovery instance with custom options.
func NewDiscoveryWithOptions(searchPaths, filenames []string) *Discovery {
	return &Discovery{
		searchPaths: searchPaths,
		filenames:   filenames,
	}
}

// getDefaultSearchPaths returns the default search paths for configuration files.
func getDefaultSearchPaths() []string {
	paths := []string{
		".", // Current directory
	}

	// Add user home directory
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, homeDir)
		paths = append(paths, filepath.Join(homeDir, ".config", "rote"))
		paths = append(paths, filepath.Join(homeDir, ".rote"))
	}

	// Add system-wide configuration directories
	paths = append(paths, "/etc/rote")
	paths = append(paths, "/usr/local/etc/rote")

	// Add XDG config directories
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		paths = append(paths, filepath.Join(xdgConfigHome, "rote"))
	}

	if xdgConfigDirs := os.Getenv("XDG_CONFIG_DIRS"); xdgConfigDirs != "" {
		for _, dir := range strings.Split(xdgConfigDirs, ":") {
			if dir != "" {
				paths = append(paths, filepath.Join(dir, "rote"))
			}
		}
	}

	// Add application-specific paths
	if appDir := os.Getenv("ROTE_CONFIG_DIR"); appDir != "" {
		paths = append(paths, appDir)
	}

	// Add current working directory subdirectories
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, "config"))
		paths = append(paths, filepath.Join(cwd, ".config"))
	}

	return paths
}

// getDefaultFilenames returns the default configuration filenames to search for.
func getDefaultFilenames() []string {
	return []string{
		"rote.yaml",
		"rote.yml",
		"rote-go.yaml",
		"rote-go.yml",
		"config.yaml",
		"config.yml",
		".rote.yaml",
		".rote.yml",
	}
}

// Discover searches for configuration files in the configured paths.
func (d *Discovery) Discover() ([]string, error) {
	var foundFiles []string

	for _, searchPath := range d.searchPaths {
		for _, filename := range d.filenames {
			fullPath := filepath.Join(searchPath, filename)

			if fileExists(fullPath) {
				absPath, err := filepath.Abs(fullPath)
				if err != nil {
					return nil, fmt.Errorf("failed to get absolute path for %s: %w", fullPath, err)
				}
				foundFiles = append(foundFiles, absPath)
			}
		}
	}

	// Remove duplicates while preserving order
	foundFiles = removeDuplicates(foundFiles)

	return foundFiles, nil
}

// DiscoverFirst returns the first configuration file found.
func (d *Discovery) DiscoverFirst() (string, error) {
	files, err := d.Discover()
	if err != nil {
		return "", err
	}

	if len(files) == 0 {
		return "", fmt.Errorf("no configuration files found")
	}

	return files[0], nil
}

// DiscoverInPath searches for configuration files in a specific path.
func (d *Discovery) DiscoverInPath(path string) ([]string, error) {
	var foundFiles []string

	for _, filename := range d.filenames {
		fullPath := filepath.Join(path, filename)

		if fileExists(fullPath) {
			absPath, err := filepath.Abs(fullPath)
			if err != nil {
				return nil, fmt.Errorf("failed to get absolute path for %s: %w", fullPath, err)
			}
			foundFiles = append(foundFiles, absPath)
		}
	}

	return foundFiles, nil
}

// AddSearchPath adds a search path to the discovery.
func (d *Discovery) AddSearchPath(path string) {
	d.searchPaths = append(d.searchPaths, path)
}

// SetSearchPaths sets the search paths for discovery.
func (d *Discovery) SetSearchPaths(paths []string) {
	d.searchPaths = paths
}

// GetSearchPaths returns the current search paths.
func (d *Discovery) GetSearchPaths() []string {
	return d.searchPaths
}

// AddFilename adds a filename to search for.
func (d *Discovery) AddFilename(filename string) {
	d.filenames = append(d.filenames, filename)
}

// SetFilenames sets the filenames to search for.
func (d *Discovery) SetFilenames(filenames []string) {
	d.filenames = filenames
}

// GetFilenames returns the current filenames being searched for.
func (d *Discovery) GetFilenames() []string {
	return d.filenames
}

// CreateDefaultConfigFileInPath creates a default configuration file in a specific path.
func (d *Discovery) CreateDefaultConfigFileInPath(path string) (string, error) {
	if len(d.filenames) == 0 {
		return "", fmt.Errorf("no filenames configured")
	}

	filename := d.filenames[0]

	// Create directory if it doesn't exist
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory %s: %w", path, err)
	}

	configPath := filepath.Join(path, filename)

	// Check if file already exists
	if fileExists(configPath) {
		return "", fmt.Errorf("configuration file already exists at %s", configPath)
	}

	// Get default configuration
	defaultConfig := GetDefaultConfig()

	// Create a temporary manager to save the config
	manager := &Manager{config: defaultConfig}
	if err := manager.SaveToFile(configPath); err != nil {
		return "", fmt.Errorf("failed to save default config to %s: %w", configPath, err)
	}

	return configPath, nil
}

// Helper functions

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// removeDuplicates removes duplicate strings while preserving order.
func removeDuplicates(values []string) []string {
	seen := make(map[string]bool)
	result := []string{}

	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}

	return result
}

// Convenience functions for common discovery patterns

// DiscoverConfigFiles discovers configuration files using default settings.
func DiscoverConfigFiles() ([]string, error) {
	discovery := NewDiscovery()
	return discovery.Discover()
}

// DiscoverFirstConfigFile discovers the first configuration file found.
func DiscoverFirstConfigFile() (string, error) {
	discovery := NewDiscovery()
	return discovery.DiscoverFirst()
}

// CreateDefaultConfigFileInCurrentDir creates a default configuration file in the current directory.
func CreateDefaultConfigFileInCurrentDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	discovery := NewDiscovery()
	return discovery.CreateDefaultConfigFileInPath(cwd)
}
