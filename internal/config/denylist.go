package config

import (
	"path/filepath"
	"strings"
)

// DefaultExcludedDirs returns directory names whose activity is never
// recorded. These are dependency caches, build output and scratch areas that
// would otherwise inflate keystroke and line counts.
func DefaultExcludedDirs() []string {
	return []string{
		// Dependency trees
		"node_modules",
		"vendor",
		"bower_components",
		".venv",
		"venv",
		"__pycache__",
		".gradle",
		".m2",

		// Build output
		"dist",
		"build",
		"target",
		"out",

		// Tooling metadata
		".git",
		".hg",
		".svn",
		".idea",
		".vscode",
	}
}

// IsExcludedDir reports whether dir is, or lives under, one of the excluded
// names. Entries containing a path separator match as a path prefix, bare
// names match any path component.
func IsExcludedDir(dir string, excluded []string) bool {
	if dir == "" {
		return false
	}
	clean := filepath.Clean(dir)
	parts := strings.Split(filepath.ToSlash(clean), "/")
	for _, ex := range excluded {
		if ex == "" {
			continue
		}
		if strings.ContainsRune(ex, '/') || strings.ContainsRune(ex, filepath.Separator) {
			exClean := filepath.Clean(ex)
			if clean == exClean || strings.HasPrefix(clean, exClean+string(filepath.Separator)) {
				return true
			}
			continue
		}
		for _, p := range parts {
			if p == ex {
				return true
			}
		}
	}
	return false
}
