package engine

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

var versionToken = regexp.MustCompile(`v?\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?`)

// canonicalVersion finds the first version in s and returns it in the
// "vMAJOR.MINOR.PATCH[-pre]" form the semver package compares. Build
// metadata is dropped.
func canonicalVersion(s string) (string, error) {
	tok := versionToken.FindString(s)
	if tok == "" {
		return "", fmt.Errorf("no version in %q", s)
	}
	v := "v" + strings.TrimPrefix(tok, "v")
	if !semver.IsValid(v) {
		return "", fmt.Errorf("invalid version %q", tok)
	}
	return semver.Canonical(v), nil
}

// displayVersion strips the leading "v" ast-grep never prints.
func displayVersion(v string) string {
	return strings.TrimPrefix(v, "v")
}

// parseVersionOutput extracts the version from `ast-grep --version` output,
// which looks like "ast-grep 0.39.5". Output that does not name ast-grep is
// rejected so an unrelated `sg` binary (shadow-utils) is not mistaken for it.
func parseVersionOutput(out string) (string, error) {
	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if !strings.HasPrefix(strings.ToLower(line), "ast-grep") {
		return "", fmt.Errorf("unexpected version output %q", line)
	}
	return canonicalVersion(line)
}

// CompareVersions returns -1, 0 or 1. Unparseable input compares as equal.
func CompareVersions(a, b string) int {
	va, errA := canonicalVersion(a)
	vb, errB := canonicalVersion(b)
	if errA != nil || errB != nil {
		return 0
	}
	return semver.Compare(va, vb)
}
