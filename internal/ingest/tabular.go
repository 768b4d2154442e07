package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/lanesville-research/parcel-cli/internal/parcel"
)

// Tabular files carry attributes only. County assessment rolls often ship
// as CSV or XLSX with no boundaries; the normalizer keeps those records
// geometry-less and searchable.

// CSV loads raw features from a CSV file. The first row names the
// attribute columns.
func CSV(path string) ([]parcel.Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.Errorf("ingest: %s is empty", path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s header", path)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	var raws []parcel.Raw
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return raws, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read %s row", path)
		}
		raws = append(raws, rowToRaw(header, row))
	}
}

// XLSX loads raw features from the first sheet of a workbook. The first
// row names the attribute columns.
func XLSX(path string) ([]parcel.Raw, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	if len(f.Sheets) == 0 || len(f.Sheets[0].Rows) == 0 {
		return nil, eris.Errorf("ingest: %s is empty", path)
	}
	sheet := f.Sheets[0]

	header := make([]string, len(sheet.Rows[0].Cells))
	for i, cell := range sheet.Rows[0].Cells {
		header[i] = strings.TrimSpace(cell.String())
	}

	raws := make([]parcel.Raw, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = cell.String()
		}
		raws = append(raws, rowToRaw(header, cells))
	}
	return raws, nil
}

// rowToRaw pairs header names with row values. Blank cells and unnamed
// columns are dropped so the normalizer's alias lookup sees only real
// attributes.
func rowToRaw(header []string, row []string) parcel.Raw {
	attrs := make(map[string]any, len(header))
	for i, val := range row {
		if i >= len(header) || header[i] == "" {
			continue
		}
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}
		attrs[header[i]] = val
	}
	return parcel.Raw{Attributes: attrs}
}
