package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/lanesville-research/parcel-cli/internal/parcel"
)

// writeGeoJSON renders the table as a FeatureCollection for map viewers.
// Records without a boundary have nothing to draw, so only the
// geometry-bearing ones appear; attribute-only records belong in the CSV
// and JSON views.
func writeGeoJSON(w io.Writer, table *parcel.Table) error {
	fc := &geojson.FeatureCollection{}

	for i := range table.Records {
		rec := &table.Records[i]
		if !rec.HasGeometry() {
			continue
		}

		props, err := Attributes(rec)
		if err != nil {
			return eris.Wrapf(err, "geojson export: parcel %s", rec.ParcelID)
		}
		// Viewers like geojson.io pick the fill color up directly.
		props["fill"] = parcel.ClassColor(rec.PropertyClass)

		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         rec.ParcelID,
			Geometry:   rec.Polygon(),
			Properties: props,
		})
	}

	enc := json.NewEncoder(w)
	return eris.Wrap(enc.Encode(fc), "geojson export: encode")
}
