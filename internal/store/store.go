// Package store persists normalized parcel tables as GeoJSON files, one
// per area, in a flat cache directory. Writes are atomic: a save that
// fails partway leaves the previous file untouched.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lanesville-research/parcel-cli/internal/parcel"
)

const fileSuffix = "_parcels.geojson"

// IOError reports a cache read or write failure with enough context to
// tell the operator which file and operation went wrong.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// CachedArea describes one cache entry without its records.
type CachedArea struct {
	Area      string    `json:"area"`
	Records   int       `json:"records"`
	FetchedAt time.Time `json:"fetched_at"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
}

// Store owns a cache directory of per-area parcel files.
type Store struct {
	dir string
	log *zap.Logger
}

// New returns a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, &IOError{Op: "init", Path: dir, Err: fmt.Errorf("cache directory is required")}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &IOError{Op: "init", Path: dir, Err: err}
	}
	return &Store{
		dir: dir,
		log: zap.L().With(zap.String("component", "store")),
	}, nil
}

// Dir returns the cache directory root.
func (s *Store) Dir() string { return s.dir }

// Path returns the cache file path for an area name.
func (s *Store) Path(area string) string {
	return filepath.Join(s.dir, areaSlug(area)+fileSuffix)
}

// Save writes the table to its area file atomically: encode to a temp
// file in the same directory, fsync, then rename over the old file. A
// failure at any step leaves the prior cache intact.
func (s *Store) Save(table *parcel.Table) error {
	if table == nil || strings.TrimSpace(table.Area) == "" {
		return &IOError{Op: "save", Path: s.dir, Err: fmt.Errorf("table has no area name")}
	}
	dst := s.Path(table.Area)

	tmp, err := os.CreateTemp(s.dir, areaSlug(table.Area)+".*.tmp")
	if err != nil {
		return &IOError{Op: "save", Path: dst, Err: err}
	}
	tmpPath := tmp.Name()

	if err := writeTable(tmp, table); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IOError{Op: "save", Path: dst, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IOError{Op: "save", Path: dst, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &IOError{Op: "save", Path: dst, Err: err}
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return &IOError{Op: "save", Path: dst, Err: err}
	}

	s.log.Info("cache saved",
		zap.String("area", table.Area),
		zap.Int("records", table.Len()),
		zap.String("path", dst))
	return nil
}

// Load reads the cached table for an area. A missing file is not an
// error: the result is an empty table for that area, so callers can
// treat "never fetched" and "fetched nothing" alike.
func (s *Store) Load(area string) (*parcel.Table, error) {
	path := s.Path(area)

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &parcel.Table{Area: areaSlug(area)}, nil
	}
	if err != nil {
		return nil, &IOError{Op: "load", Path: path, Err: err}
	}
	defer f.Close()

	table, err := readTable(f)
	if err != nil {
		return nil, &IOError{Op: "decode", Path: path, Err: err}
	}
	if table.Area == "" {
		table.Area = areaFromPath(path)
	}
	if table.FetchedAt.IsZero() {
		if info, statErr := f.Stat(); statErr == nil {
			table.FetchedAt = info.ModTime().UTC()
		}
	}
	return table, nil
}

// Areas lists every cached area in the directory, sorted by area name.
func (s *Store) Areas() ([]CachedArea, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*"+fileSuffix))
	if err != nil {
		return nil, &IOError{Op: "list", Path: s.dir, Err: err}
	}

	out := make([]CachedArea, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		table, err := s.Load(areaFromPath(path))
		if err != nil {
			s.log.Warn("unreadable cache file", zap.String("path", path), zap.Error(err))
			continue
		}
		out = append(out, CachedArea{
			Area:      table.Area,
			Records:   table.Len(),
			FetchedAt: table.FetchedAt,
			Path:      path,
			Size:      info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Area < out[j].Area })
	return out, nil
}

// Remove deletes the cache file for an area. Removing an area that was
// never cached is a no-op.
func (s *Store) Remove(area string) error {
	path := s.Path(area)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &IOError{Op: "remove", Path: path, Err: err}
	}
	return nil
}

func areaSlug(area string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(area)), " ", "_")
}

func areaFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), fileSuffix)
}
