// Package export renders a parcel table into the supported output
// formats: CSV for spreadsheets, attribute JSON for scripts, GeoJSON for
// map viewers, and XLSX for the office crowd.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/lanesville-research/parcel-cli/internal/parcel"
)

// Format selects an output rendering.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatGeoJSON Format = "geojson"
	FormatXLSX    Format = "xlsx"
)

// Formats lists every supported format name.
func Formats() []string {
	return []string{string(FormatCSV), string(FormatJSON), string(FormatGeoJSON), string(FormatXLSX)}
}

// ParseFormat maps a user-supplied name onto a Format.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatGeoJSON:
		return FormatGeoJSON, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", eris.Errorf("unknown export format %q (want one of %s)", name, strings.Join(Formats(), ", "))
}

// Extension returns the filename extension for the format.
func (f Format) Extension() string {
	return string(f)
}

// DefaultFilename is the conventional output name for an area export.
func DefaultFilename(area string, f Format) string {
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(area)), " ", "_")
	return fmt.Sprintf("%s_parcels.%s", slug, f.Extension())
}

// Write renders the table in the given format.
func Write(w io.Writer, f Format, table *parcel.Table) error {
	switch f {
	case FormatCSV:
		return writeCSV(w, table)
	case FormatJSON:
		return writeJSON(w, table)
	case FormatGeoJSON:
		return writeGeoJSON(w, table)
	case FormatXLSX:
		return writeXLSX(w, table)
	}
	return eris.Errorf("unknown export format %q", string(f))
}
