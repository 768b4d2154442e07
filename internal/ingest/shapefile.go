package ingest

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lanesville-research/parcel-cli/internal/parcel"
)

// Shapefile loads raw features from an ESRI shapefile. DBF attribute
// names become the raw attribute keys; polygon shapes become raw rings.
func Shapefile(path string) ([]parcel.Raw, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	var raws []parcel.Raw
	var noGeometry int

	for reader.Next() {
		attrs := make(map[string]any, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				attrs[name] = val
			}
		}

		_, shape := reader.Shape()
		rings := shapeRings(shape)
		if rings == nil {
			noGeometry++
		}

		raws = append(raws, parcel.Raw{Attributes: attrs, Rings: rings})
	}

	if noGeometry > 0 {
		zap.L().Debug("shapefile records without polygon geometry",
			zap.String("path", path),
			zap.Int("count", noGeometry))
	}
	return raws, nil
}

// shapeRings converts a shapefile polygon into raw rings. Each part of
// the shape is one ring; non-polygon shapes carry no boundary.
func shapeRings(shape shp.Shape) [][][]float64 {
	poly, ok := shape.(*shp.Polygon)
	if !ok || poly == nil || poly.NumParts == 0 || len(poly.Points) == 0 {
		return nil
	}

	rings := make([][][]float64, 0, poly.NumParts)
	for i := int32(0); i < poly.NumParts; i++ {
		start := poly.Parts[i]
		end := int32(len(poly.Points))
		if i+1 < poly.NumParts {
			end = poly.Parts[i+1]
		}

		ring := make([][]float64, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, []float64{poly.Points[j].X, poly.Points[j].Y})
		}
		rings = append(rings, ring)
	}
	return rings
}
