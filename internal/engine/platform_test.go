package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetTriple(t *testing.T) {
	tests := map[string]string{
		"linux/amd64":   "x86_64-unknown-linux-gnu",
		"linux/arm64":   "aarch64-unknown-linux-gnu",
		"darwin/arm64":  "aarch64-apple-darwin",
		"darwin/amd64":  "x86_64-apple-darwin",
		"windows/amd64": "x86_64-pc-windows-msvc",
	}
	for platform, want := range tests {
		goos, goarch, _ := strings.Cut(platform, "/")
		got, err := targetTriple(goos, goarch)
		require.NoError(t, err, platform)
		assert.Equal(t, want, got, platform)
	}

	_, err := targetTriple("plan9", "386")
	assert.Error(t, err)
}

func TestAssetURL(t *testing.T) {
	assert.Equal(t,
		"https://example.test/releases/0.39.5/app-x86_64-unknown-linux-gnu.zip",
		assetURL("https://example.test/releases", "0.39.5", "x86_64-unknown-linux-gnu"))
}

func TestCachePath(t *testing.T) {
	p := cachePath("/cache", "0.39.5")
	assert.Contains(t, p, "0.39.5")
	assert.True(t, strings.HasSuffix(p, exeName("ast-grep")))
}
