package net

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
)

const (
	dirMode  = 0o755
	fileMode = 0o644

	// maxEntrySize caps a single extracted file.
	maxEntrySize = 512 << 20
)

var yearFilePattern = regexp.MustCompile(`^[1-5]year\.arff$`)

// Extract copies the yearly ARFF files in the zip archive into dir,
// flattening any directory structure. It returns the written paths.
func Extract(zipPath, dir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("error opening archive %s: %w", zipPath, err)
	}
	defer r.Close()

	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("error creating dir %s: %w", dir, err)
	}

	var written []string
	for _, zf := range r.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(zf.Name)
		if !yearFilePattern.MatchString(name) {
			slog.Debug("skipping archive entry", "name", zf.Name)
			continue
		}

		target := filepath.Join(dir, name)
		if err := extractFile(zf, target); err != nil {
			return nil, err
		}
		written = append(written, target)
	}

	if len(written) == 0 {
		return nil, fmt.Errorf("archive %s holds no yearly ARFF files", zipPath)
	}
	return written, nil
}

func extractFile(zf *zip.File, target string) (retErr error) {
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("error opening archive entry %s: %w", zf.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", target, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("closing file: %w", cerr)
		}
	}()

	n, err := io.Copy(out, io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return fmt.Errorf("error extracting %s: %w", zf.Name, err)
	}
	if n > maxEntrySize {
		return fmt.Errorf("archive entry %s exceeds %d bytes", zf.Name, maxEntrySize)
	}
	return nil
}
