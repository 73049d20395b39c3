package reporting

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// DefaultPathManager implements path management functionality
type DefaultPathManager struct{}

// NewDefaultPathManager creates a new path manager
func NewDefaultPathManager() *DefaultPathManager {
	return &DefaultPathManager{}
}

// GetDefaultOutputDir returns <root>/<partition>, or <root>/all when no partition is given
func (p *DefaultPathManager) GetDefaultOutputDir(root, partition string) string {
	if strings.TrimSpace(root) == "" {
		root = "results"
	}
	partition = strings.TrimSpace(partition)
	if partition == "" {
		return filepath.Join(root, "all")
	}
	return filepath.Join(root, types.SafeName(partition))
}

// EnsureDirectoryExists creates the parent directory of path if it doesn't exist
func (p *DefaultPathManager) EnsureDirectoryExists(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// Package-level convenience function
func DefaultOutputDir(root, partition string) string {
	return NewDefaultPathManager().GetDefaultOutputDir(root, partition)
}
