package engine

import (
	"fmt"
	"runtime"
)

// targetTriple maps GOOS/GOARCH to the Rust target triple used in ast-grep
// release asset names (app-<triple>.zip).
func targetTriple(goos, goarch string) (string, error) {
	switch goos + "/" + goarch {
	case "linux/amd64":
		return "x86_64-unknown-linux-gnu", nil
	case "linux/arm64":
		return "aarch64-unknown-linux-gnu", nil
	case "darwin/amd64":
		return "x86_64-apple-darwin", nil
	case "darwin/arm64":
		return "aarch64-apple-darwin", nil
	case "windows/amd64":
		return "x86_64-pc-windows-msvc", nil
	case "windows/386":
		return "i686-pc-windows-msvc", nil
	case "windows/arm64":
		return "aarch64-pc-windows-msvc", nil
	}
	return "", fmt.Errorf("no prebuilt ast-grep for %s/%s", goos, goarch)
}

func currentTriple() (string, error) {
	return targetTriple(runtime.GOOS, runtime.GOARCH)
}

// assetURL is the download location of the release zip for version and triple.
func assetURL(baseURL, ver, triple string) string {
	return fmt.Sprintf("%s/%s/app-%s.zip", baseURL, ver, triple)
}
