package packager

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
)

// Result describes a written archive
type Result struct {
	Path      string
	FileCount int
	Bytes     int64
}

// Packager builds zip archives from a job's output tree
type Packager struct {
	level  int
	logger *slog.Logger
}

// New creates a Packager using the given deflate level (flate.BestSpeed..flate.BestCompression,
// or flate.DefaultCompression)
func New(level int, logger *slog.Logger) *Packager {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		level = flate.DefaultCompression
	}
	return &Packager{level: level, logger: logger}
}

// Package writes every non-empty regular file under root/subdir into a zip at dest.
// Entry names are relative to root. A missing subdir yields an empty archive and a zero count.
func (p *Packager) Package(root, subdir, dest string) (*Result, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".pkg-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	zw := zip.NewWriter(tmp)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, p.level)
	})

	count, err := p.addTree(zw, root, filepath.Join(root, subdir))
	if err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return nil, fmt.Errorf("failed to move archive into place: %w", err)
	}
	committed = true

	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	p.logger.Debug("Archive written",
		slog.String("path", dest),
		slog.Int("file_count", count),
		slog.Int64("bytes", info.Size()),
	)

	return &Result{Path: dest, FileCount: count, Bytes: info.Size()}, nil
}

func (p *Packager) addTree(zw *zip.Writer, root, dir string) (int, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", dir, err)
	}

	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() == 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if err := addFile(zw, path, filepath.ToSlash(rel), info); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to package %s: %w", dir, err)
	}

	return count, nil
}

func addFile(zw *zip.Writer, path, name string, info fs.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	_, err = io.Copy(w, src)
	return err
}
