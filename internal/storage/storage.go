// Package storage persists and retrieves metadata snapshots across local
// disk and S3 backends.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/tabspectre/internal/apierr"
	"github.com/ppiankov/tabspectre/internal/export"
	"github.com/ppiankov/tabspectre/internal/models"
)

// Format is a snapshot serialization format.
type Format string

const (
	FormatJSON   Format = "json"
	FormatJSONGZ Format = "json.gz"
	FormatCSV    Format = "csv"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatJSONGZ, "gzip", "gz":
		return FormatJSONGZ, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", apierr.New(apierr.KindConfiguration, "unknown storage format %q (expected json, json.gz or csv)", s)
	}
}

// Extension returns the filename suffix for the format.
func (f Format) Extension() string {
	switch f {
	case FormatJSONGZ:
		return ".json.gz"
	case FormatCSV:
		return ".csv"
	default:
		return ".json"
	}
}

// Backend stores and retrieves snapshots. path is backend-relative; Save
// returns the absolute location (filesystem path or s3:// URL).
type Backend interface {
	Save(ctx context.Context, meta *models.ServerMetadata, path string, format Format) (string, error)
	Load(ctx context.Context, path string) (*models.ServerMetadata, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, path string) (bool, error)
}

// Filename derives the default snapshot filename for a collection run.
func Filename(meta *models.ServerMetadata, format Format) string {
	return export.BaseName(meta) + format.Extension()
}

// Manager fans a snapshot out to one or more named backends.
type Manager struct {
	backends map[string]Backend
}

// NewManager creates an empty manager; register backends with Register.
func NewManager() *Manager {
	return &Manager{backends: make(map[string]Backend)}
}

// Register adds a named backend. Registering the same name twice replaces
// the earlier backend.
func (m *Manager) Register(name string, b Backend) {
	m.backends[name] = b
}

// Backend returns a registered backend by name.
func (m *Manager) Backend(name string) (Backend, error) {
	b, ok := m.backends[name]
	if !ok {
		return nil, apierr.New(apierr.KindStorage, "unknown storage backend %q", name)
	}
	return b, nil
}

// Names lists the registered backend names.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.backends))
	for name := range m.backends {
		names = append(names, name)
	}
	return names
}

// SaveAll writes the snapshot to every registered backend and returns the
// location per backend name. The first failure aborts remaining saves.
func (m *Manager) SaveAll(ctx context.Context, meta *models.ServerMetadata, path string, format Format) (map[string]string, error) {
	if len(m.backends) == 0 {
		return nil, apierr.New(apierr.KindStorage, "no storage backends configured")
	}
	locations := make(map[string]string, len(m.backends))
	for name, b := range m.backends {
		location, err := b.Save(ctx, meta, path, format)
		if err != nil {
			return locations, fmt.Errorf("backend %s: %w", name, err)
		}
		locations[name] = location
	}
	return locations, nil
}
