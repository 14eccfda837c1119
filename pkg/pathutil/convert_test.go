package pathutil

import (
	"runtime"
	"testing"
)

func TestToRelative(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Unix path fixtures")
	}

	tests := []struct {
		name     string
		absPath  string
		rootDir  string
		expected string
	}{
		{
			name:     "simple relative path",
			absPath:  "/home/user/project/src/main.go",
			rootDir:  "/home/user/project",
			expected: "src/main.go",
		},
		{
			name:     "nested relative path",
			absPath:  "/home/user/project/internal/core/search.go",
			rootDir:  "/home/user/project",
			expected: "internal/core/search.go",
		},
		{
			name:     "same directory",
			absPath:  "/home/user/project",
			rootDir:  "/home/user/project",
			expected: ".",
		},
		{
			name:     "already relative path",
			absPath:  "src/main.go",
			rootDir:  "/home/user/project",
			expected: "src/main.go",
		},
		{
			name:     "path outside root - fallback to absolute",
			absPath:  "/other/location/file.go",
			rootDir:  "/home/user/project",
			expected: "/other/location/file.go",
		},
		{
			name:     "sibling sharing a name prefix",
			absPath:  "/home/user/project-old/file.go",
			rootDir:  "/home/user/project",
			expected: "/home/user/project-old/file.go",
		},
		{
			name:     "dotted file name inside root",
			absPath:  "/home/user/project/..hidden/file.go",
			rootDir:  "/home/user/project",
			expected: "..hidden/file.go",
		},
		{
			name:     "empty root directory",
			absPath:  "/home/user/project/file.go",
			rootDir:  "",
			expected: "/home/user/project/file.go",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToRelative(tt.absPath, tt.rootDir); got != tt.expected {
				t.Errorf("ToRelative(%q, %q) = %q, want %q", tt.absPath, tt.rootDir, got, tt.expected)
			}
		})
	}
}

func TestIsWithin(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Unix path fixtures")
	}

	tests := []struct {
		name string
		root string
		path string
		want bool
	}{
		{"root itself", "/a/b", "/a/b", true},
		{"direct child", "/a/b", "/a/b/c.go", true},
		{"deep child", "/a/b", "/a/b/c/d/e.go", true},
		{"raw prefix is not containment", "/a/b", "/a/bc", false},
		{"raw prefix file", "/a/b", "/a/bc/file.go", false},
		{"parent", "/a/b", "/a", false},
		{"traversal after clean", "/a/b", "/a/b/../c", false},
		{"dotted child name", "/a/b", "/a/b/..c", true},
		{"unrelated", "/a/b", "/x/y", false},
		{"empty root", "", "/a/b", false},
		{"trailing slash root", "/a/b/", "/a/b/c", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWithin(tt.root, tt.path); got != tt.want {
				t.Errorf("IsWithin(%q, %q) = %v, want %v", tt.root, tt.path, got, tt.want)
			}
		})
	}
}

func TestToRelativeAny(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Unix path fixtures")
	}

	roots := []string{"/work/api", "/work/web"}

	if got := ToRelativeAny("/work/web/src/app.ts", roots); got != "src/app.ts" {
		t.Errorf("expected path relative to second root, got %q", got)
	}
	if got := ToRelativeAny("/work/api/main.go", roots); got != "main.go" {
		t.Errorf("expected path relative to first root, got %q", got)
	}
	if got := ToRelativeAny("/elsewhere/x.go", roots); got != "/elsewhere/x.go" {
		t.Errorf("expected unchanged path outside roots, got %q", got)
	}
}
