package export

import (
	"encoding/json"
	"io"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lanesville-research/parcel-cli/internal/parcel"
)

// jsonDocument is the attribute-only JSON view: every record field except
// the boundary ring, wrapped with the table metadata.
type jsonDocument struct {
	Area      string           `json:"area"`
	FetchedAt time.Time        `json:"fetched_at"`
	Count     int              `json:"count"`
	Parcels   []map[string]any `json:"parcels"`
}

func writeJSON(w io.Writer, table *parcel.Table) error {
	doc := jsonDocument{
		Area:      table.Area,
		FetchedAt: table.FetchedAt,
		Count:     table.Len(),
		Parcels:   make([]map[string]any, 0, table.Len()),
	}

	for i := range table.Records {
		attrs, err := Attributes(&table.Records[i])
		if err != nil {
			return eris.Wrapf(err, "json export: parcel %s", table.Records[i].ParcelID)
		}
		doc.Parcels = append(doc.Parcels, attrs)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(doc), "json export: encode")
}

// Attributes flattens a record into its attribute map, dropping the
// boundary ring. The GeoJSON and JSON views share this shape, and the
// HTTP list endpoints reuse it.
func Attributes(rec *parcel.Record) (map[string]any, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var attrs map[string]any
	if err := json.Unmarshal(b, &attrs); err != nil {
		return nil, err
	}
	delete(attrs, "coordinates")
	return attrs, nil
}
