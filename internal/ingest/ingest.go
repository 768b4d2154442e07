// Package ingest loads parcel features from local files. Every format
// comes out as the same raw feature form the remote fetcher produces, so
// imported data flows through the one normalizer.
package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/lanesville-research/parcel-cli/internal/parcel"
)

// File loads raw features from path, dispatching on the extension.
func File(path string) ([]parcel.Raw, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return Shapefile(path)
	case ".zip":
		return Zip(path)
	case ".geojson", ".json":
		return GeoJSON(path)
	case ".csv":
		return CSV(path)
	case ".xlsx":
		return XLSX(path)
	}
	return nil, eris.Errorf("ingest: unsupported file type %q (want .shp, .zip, .geojson, .json, .csv or .xlsx)", filepath.Ext(path))
}

// GeoJSON loads raw features from a GeoJSON FeatureCollection.
func GeoJSON(path string) ([]parcel.Raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", path)
	}

	var doc struct {
		Features []struct {
			Properties map[string]any  `json:"properties"`
			Geometry   json.RawMessage `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse %s", path)
	}

	raws := make([]parcel.Raw, 0, len(doc.Features))
	for _, feat := range doc.Features {
		raws = append(raws, parcel.Raw{
			Attributes: feat.Properties,
			Rings:      ringsFromGeoJSON(feat.Geometry),
		})
	}
	return raws, nil
}

// ringsFromGeoJSON converts a GeoJSON geometry member into raw rings.
// Multipolygons contribute their first polygon; other geometry types
// carry no parcel boundary.
func ringsFromGeoJSON(raw json.RawMessage) [][][]float64 {
	if len(raw) == 0 {
		return nil
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil
	}

	var poly *geom.Polygon
	switch t := g.(type) {
	case *geom.Polygon:
		poly = t
	case *geom.MultiPolygon:
		if t.NumPolygons() > 0 {
			poly = t.Polygon(0)
		}
	}
	if poly == nil {
		return nil
	}

	rings := make([][][]float64, 0, poly.NumLinearRings())
	for i := 0; i < poly.NumLinearRings(); i++ {
		coords := poly.LinearRing(i).Coords()
		ring := make([][]float64, 0, len(coords))
		for _, c := range coords {
			if len(c) < 2 {
				continue
			}
			ring = append(ring, []float64{c[0], c[1]})
		}
		rings = append(rings, ring)
	}
	return rings
}
