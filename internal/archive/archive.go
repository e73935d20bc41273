// Package archive zips an export tree and records its SHA-256 digest.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/mohammed-shakir/dggs-stac-export/internal/atomicfile"
	"github.com/mohammed-shakir/dggs-stac-export/internal/core/observability"
)

// LabelLayout formats the timestamp label used in archive names.
const LabelLayout = "20060102_150405"

const DigestSuffix = ".sha256"

var ErrDigestMismatch = errors.New("archive digest mismatch")

func Label(t time.Time) string { return t.Format(LabelLayout) }

// Build writes {outputDir}/{base(sourceDir)}_{label}.zip containing every file under sourceDir,
// named relative to outputDir with forward slashes, plus a "{hash}  {name}\n" digest file.
// The digest is computed from the finished archive on disk.
func Build(sourceDir, outputDir, label string) (string, string, error) {
	srcAbs, err := filepath.Abs(sourceDir)
	if err != nil {
		return "", "", fmt.Errorf("resolve source: %w", err)
	}
	outAbs, err := filepath.Abs(outputDir)
	if err != nil {
		return "", "", fmt.Errorf("resolve output: %w", err)
	}
	name := filepath.Base(srcAbs) + "_" + label + ".zip"
	zipPath := filepath.Join(outAbs, name)
	if within(srcAbs, zipPath) {
		return "", "", fmt.Errorf("archive %s would be inside its own source %s", zipPath, srcAbs)
	}

	err = atomicfile.Write(zipPath, func(w io.Writer) error {
		return writeZip(w, srcAbs, outAbs)
	})
	if err != nil {
		return "", "", fmt.Errorf("write archive: %w", err)
	}

	sum, size, err := hashFile(zipPath)
	if err != nil {
		return "", "", err
	}
	observability.SetArchiveBytes(size)

	line := fmt.Sprintf("%s  %s\n", sum, name)
	if err := atomicfile.WriteFile(zipPath+DigestSuffix, []byte(line)); err != nil {
		return "", "", fmt.Errorf("write digest: %w", err)
	}
	return zipPath, sum, nil
}

func writeZip(w io.Writer, srcDir, baseDir string) error {
	zw := zip.NewWriter(w)
	// WalkDir visits entries in lexical order
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			return fmt.Errorf("entry name for %s: %w", path, err)
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return fmt.Errorf("header for %s: %w", path, err)
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate

		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("create entry %s: %w", hdr.Name, err)
		}
		return copyFile(fw, path)
	})
	if err != nil {
		_ = zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	return nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("copy %s: %w", path, err)
	}
	return nil
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open archive for hashing: %w", err)
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash archive: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Verify recomputes the digest of archivePath and compares it with its .sha256 companion.
func Verify(archivePath string) error {
	raw, err := os.ReadFile(archivePath + DigestSuffix)
	if err != nil {
		return fmt.Errorf("read digest: %w", err)
	}
	fields := strings.Fields(string(raw))
	if len(fields) != 2 {
		return fmt.Errorf("malformed digest file %s", archivePath+DigestSuffix)
	}
	if fields[1] != filepath.Base(archivePath) {
		return fmt.Errorf("digest names %q, not %q", fields[1], filepath.Base(archivePath))
	}
	sum, _, err := hashFile(archivePath)
	if err != nil {
		return err
	}
	if !strings.EqualFold(sum, fields[0]) {
		return fmt.Errorf("%w: recorded %s, computed %s", ErrDigestMismatch, fields[0], sum)
	}
	return nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
