// Package pathutil provides utilities for converting between absolute and relative paths
// and for checking workspace containment.
//
// Architecture Pattern:
// tree-grep-mcp resolves every path to its canonical absolute form before handing it to
// the engine. User-facing output uses paths relative to the workspace root that contains
// them. This package is the conversion layer between the two representations.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already relative.
//
// Examples:
//   - ToRelative("/home/user/project/src/main.go", "/home/user/project") → "src/main.go"
//   - ToRelative("/other/location/file.go", "/home/user/project") → "/other/location/file.go" (outside root)
//   - ToRelative("src/main.go", "/home/user/project") → "src/main.go" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}

	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		// Conversion failed (e.g., different drives on Windows) - return absolute
		return absPath
	}

	// Outside the root: the absolute path is clearer
	if escapesParent(relPath) {
		return absPath
	}

	return filepath.ToSlash(relPath)
}

// ToRelativeAny converts path relative to the first root that contains it.
// Paths outside every root are returned unchanged.
func ToRelativeAny(absPath string, roots []string) string {
	for _, root := range roots {
		if IsWithin(root, absPath) {
			return ToRelative(absPath, root)
		}
	}
	return absPath
}

// IsWithin reports whether path is root itself or a descendant of it.
// Both paths must already be absolute and canonical. The comparison works on
// path segments, so "/a/bc" is not within "/a/b".
func IsWithin(root, path string) bool {
	if root == "" || path == "" {
		return false
	}
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	if root == path {
		return true
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if filepath.IsAbs(rel) {
		return false
	}
	return !escapesParent(rel)
}

func escapesParent(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
