package ingest

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/lanesville-research/parcel-cli/internal/parcel"
)

// Zip loads raw features from a zipped shapefile, the form county GIS
// portals usually hand out. The archive is unpacked to a scratch
// directory so the shapefile reader can see the .shp next to its
// sidecar files.
func Zip(path string) ([]parcel.Raw, error) {
	scratch, err := os.MkdirTemp("", "parcel-ingest-")
	if err != nil {
		return nil, eris.Wrap(err, "ingest: scratch dir")
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	shpPath, err := extractArchive(path, scratch)
	if err != nil {
		return nil, err
	}
	return Shapefile(shpPath)
}

// extractArchive unpacks every entry and returns the path of the .shp
// member.
func extractArchive(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrapf(err, "ingest: open archive %s", zipPath)
	}
	defer func() { _ = r.Close() }()

	var shpPath string
	for _, f := range r.File {
		path, err := extractEntry(f, destDir)
		if err != nil {
			return "", err
		}
		if strings.EqualFold(filepath.Ext(path), ".shp") {
			shpPath = path
		}
	}

	if shpPath == "" {
		return "", eris.Errorf("ingest: no shapefile inside %s", zipPath)
	}
	return shpPath, nil
}

// extractEntry writes one archive member under destDir, refusing paths
// that would escape it. Directories come back as an empty path.
func extractEntry(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("ingest: illegal archive path %q", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "ingest: archive dir")
		}
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "ingest: archive dir")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "ingest: open archive entry %s", f.Name)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "ingest: write archive entry")
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return "", eris.Wrapf(err, "ingest: write archive entry %s", f.Name)
	}
	if err := out.Close(); err != nil {
		return "", eris.Wrap(err, "ingest: write archive entry")
	}
	return destPath, nil
}
