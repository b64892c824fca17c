package storage

import (
	"compress/gzip"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/tabspectre/internal/apierr"
	"github.com/ppiankov/tabspectre/internal/export"
	"github.com/ppiankov/tabspectre/internal/metadata"
	"github.com/ppiankov/tabspectre/internal/models"
)

// Local stores snapshots under a base directory. Nested directories in the
// snapshot path are created on demand.
type Local struct {
	baseDir string
}

// NewLocal creates a local backend rooted at baseDir.
func NewLocal(baseDir string) *Local {
	return &Local{baseDir: baseDir}
}

func (l *Local) resolve(path string) string {
	return filepath.Join(l.baseDir, filepath.FromSlash(path))
}

// Save writes the snapshot and returns its filesystem path. The CSV format
// produces one file per non-empty entity list next to the requested path.
func (l *Local) Save(_ context.Context, meta *models.ServerMetadata, path string, format Format) (string, error) {
	full := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", apierr.Wrap(apierr.KindStorage, err, "failed to create directory for %s", full)
	}

	switch format {
	case FormatJSON:
		data, err := metadata.ToJSON(meta, true)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			return "", apierr.Wrap(apierr.KindStorage, err, "failed to write %s", full)
		}
		return full, nil

	case FormatJSONGZ:
		data, err := metadata.ToJSON(meta, false)
		if err != nil {
			return "", err
		}
		f, err := os.Create(full)
		if err != nil {
			return "", apierr.Wrap(apierr.KindStorage, err, "failed to create %s", full)
		}
		defer f.Close()
		zw := gzip.NewWriter(f)
		if _, err := zw.Write(data); err != nil {
			return "", apierr.Wrap(apierr.KindStorage, err, "failed to write %s", full)
		}
		if err := zw.Close(); err != nil {
			return "", apierr.Wrap(apierr.KindStorage, err, "failed to write %s", full)
		}
		return full, nil

	case FormatCSV:
		base := strings.TrimSuffix(filepath.Base(full), ".csv")
		if _, err := export.WriteCSV(meta, filepath.Dir(full), base); err != nil {
			return "", err
		}
		return filepath.Dir(full), nil

	default:
		return "", apierr.New(apierr.KindStorage, "unsupported storage format %q", format)
	}
}

// Load reads a snapshot back. Gzip is detected by the .gz suffix. CSV files
// are exports, not snapshots, and cannot be loaded.
func (l *Local) Load(_ context.Context, path string) (*models.ServerMetadata, error) {
	full := l.resolve(path)
	f, err := os.Open(full)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindStorage, err, "failed to open %s", full)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(full, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, apierr.Wrap(apierr.KindStorage, err, "failed to read %s", full)
		}
		defer zr.Close()
		r = zr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindStorage, err, "failed to read %s", full)
	}
	return metadata.FromJSON(data)
}

// List returns snapshot paths under the base directory matching prefix,
// relative to the base directory.
func (l *Local) List(_ context.Context, prefix string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(l.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.baseDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if prefix == "" || strings.HasPrefix(rel, prefix) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, apierr.Wrap(apierr.KindStorage, err, "failed to list %s", l.baseDir)
	}
	return paths, nil
}

// Delete removes a snapshot. It reports false without error when the file
// does not exist.
func (l *Local) Delete(_ context.Context, path string) (bool, error) {
	full := l.resolve(path)
	err := os.Remove(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, apierr.Wrap(apierr.KindStorage, err, "failed to delete %s", full)
	}
	return true, nil
}
