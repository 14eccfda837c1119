package engine

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Justar96/tree-grep-mcp-sub002/internal/debug"
)

// maxArchiveBytes bounds a release download.
const maxArchiveBytes = 256 << 20

// cachePath is where the managed binary for ver lives: <cacheDir>/<ver>/ast-grep[.exe].
func cachePath(cacheDir, ver string) string {
	return filepath.Join(cacheDir, ver, exeName(binaryNames[0]))
}

// bundledCandidates lists where a copy shipped next to the server binary may live.
func bundledCandidates(dir string) []string {
	if dir == "" {
		return nil
	}
	var out []string
	for _, name := range binaryNames {
		out = append(out, filepath.Join(dir, exeName(name)))
	}
	out = append(out, filepath.Join(dir, "bin", exeName(binaryNames[0])))
	return out
}

func isRegularFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// download fetches the pinned release asset and installs the binary at dest.
// The binary is written to a temporary file in the same directory and renamed
// into place, so a concurrent reader never sees a partial file.
func download(ctx context.Context, client *http.Client, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	debug.LogEngine("downloading %s\n", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: HTTP %d", url, resp.StatusCode)
	}

	archive, err := os.CreateTemp(filepath.Dir(dest), "download-*.zip")
	if err != nil {
		return err
	}
	defer os.Remove(archive.Name())
	defer archive.Close()

	n, err := io.Copy(archive, io.LimitReader(resp.Body, maxArchiveBytes+1))
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	if n > maxArchiveBytes {
		return fmt.Errorf("download %s: archive exceeds %d bytes", url, maxArchiveBytes)
	}

	return extractBinary(archive, n, dest)
}

// extractBinary copies the ast-grep executable out of a release zip.
func extractBinary(r io.ReaderAt, size int64, dest string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	var entry *zip.File
	for _, want := range binaryNames {
		for _, f := range zr.File {
			if f.FileInfo().IsDir() {
				continue
			}
			if strings.EqualFold(path.Base(f.Name), exeName(want)) {
				entry = f
				break
			}
		}
		if entry != nil {
			break
		}
	}
	if entry == nil {
		return fmt.Errorf("archive does not contain %s", exeName(binaryNames[0]))
	}

	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".ast-grep-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, io.LimitReader(src, maxArchiveBytes)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0755); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("install %s: %w", dest, err)
	}
	return nil
}
