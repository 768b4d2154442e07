package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/lanesville-research/parcel-cli/internal/parcel"
)

// Cache files are plain GeoJSON FeatureCollections so any map viewer can
// open them directly. The area name and fetch time ride along as foreign
// members; files from other tools fall back to filename and mtime.
type cacheFile struct {
	Type      string         `json:"type"`
	Area      string         `json:"area,omitempty"`
	FetchedAt time.Time      `json:"fetched_at,omitempty"`
	Features  []cacheFeature `json:"features"`
}

type cacheFeature struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

func writeTable(w io.Writer, table *parcel.Table) error {
	file := cacheFile{
		Type:      "FeatureCollection",
		Area:      table.Area,
		FetchedAt: table.FetchedAt,
		Features:  make([]cacheFeature, 0, table.Len()),
	}

	for i := range table.Records {
		rec := &table.Records[i]

		props, err := recordProperties(rec)
		if err != nil {
			return fmt.Errorf("encode parcel %s: %w", rec.ParcelID, err)
		}

		feat := cacheFeature{Type: "Feature", ID: rec.ParcelID, Properties: props}
		if rec.HasGeometry() {
			g, err := geojson.Marshal(rec.Polygon())
			if err != nil {
				return fmt.Errorf("encode parcel %s geometry: %w", rec.ParcelID, err)
			}
			feat.Geometry = g
		}
		file.Features = append(file.Features, feat)
	}

	enc := json.NewEncoder(w)
	return enc.Encode(file)
}

func readTable(r io.Reader) (*parcel.Table, error) {
	var file cacheFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, err
	}

	table := &parcel.Table{
		Area:      file.Area,
		FetchedAt: file.FetchedAt,
		Records:   make([]parcel.Record, 0, len(file.Features)),
	}

	for _, feat := range file.Features {
		var rec parcel.Record
		if feat.Properties != nil {
			props, err := json.Marshal(feat.Properties)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(props, &rec); err != nil {
				return nil, err
			}
		}
		if rec.ParcelID == "" {
			rec.ParcelID = feat.ID
		}
		if ring := ringFromGeoJSON(feat.Geometry); ring != nil {
			rec.Coordinates = ring
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

// recordProperties flattens a record into a GeoJSON properties map. The
// boundary is dropped from the map since it lives in the geometry member.
func recordProperties(rec *parcel.Record) (map[string]any, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var props map[string]any
	if err := json.Unmarshal(b, &props); err != nil {
		return nil, err
	}
	delete(props, "coordinates")
	return props, nil
}

// ringFromGeoJSON extracts the exterior ring from a GeoJSON geometry
// member. Multipolygons contribute their first polygon.
func ringFromGeoJSON(raw json.RawMessage) parcel.Ring {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
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
	if poly == nil || poly.NumLinearRings() == 0 {
		return nil
	}

	coords := poly.LinearRing(0).Coords()
	ring := make(parcel.Ring, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		ring = append(ring, [2]float64{c[0], c[1]})
	}
	if len(ring) < 4 {
		return nil
	}
	return ring
}
