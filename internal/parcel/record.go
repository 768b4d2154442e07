// Package parcel holds the canonical tax-parcel record model and the
// normalizer that maps raw upstream features into it.
package parcel

import (
	"sort"
	"strings"
	"time"

	"github.com/twpayne/go-geom"

	"github.com/lanesville-research/parcel-cli/internal/arcgis"
)

// Ring is one closed polygon ring, vertices in (longitude, latitude) order.
type Ring [][2]float64

// Closed reports whether the ring's last vertex repeats its first.
func (r Ring) Closed() bool {
	if len(r) < 2 {
		return false
	}
	return r[0] == r[len(r)-1]
}

// Close returns the ring with its first vertex repeated at the end.
// Already-closed rings come back unchanged.
func (r Ring) Close() Ring {
	if len(r) == 0 || r.Closed() {
		return r
	}
	return append(r, r[0])
}

// Contains reports whether the point lies inside the ring, by the even-odd
// rule. Points exactly on an edge may land on either side.
func (r Ring) Contains(lng, lat float64) bool {
	if len(r) < 4 {
		return false
	}
	inside := false
	for i, j := 0, len(r)-1; i < len(r); j, i = i, i+1 {
		xi, yi := r[i][0], r[i][1]
		xj, yj := r[j][0], r[j][1]
		if (yi > lat) != (yj > lat) && lng < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// Record is one tax parcel. Records are built by the Normalizer from one
// raw upstream feature and are immutable afterwards; a new fetch replaces
// the whole table.
type Record struct {
	ParcelID          string  `json:"parcel_id"`
	SBL               string  `json:"sbl"`
	Owner             string  `json:"owner"`
	MailingAddress    string  `json:"mailing_address"`
	MailingCity       string  `json:"mailing_city"`
	MailingState      string  `json:"mailing_state"`
	MailingZip        string  `json:"mailing_zip"`
	PropertyAddress   string  `json:"property_address"`
	PropertyClass     string  `json:"property_class"`
	PropertyClassDesc string  `json:"property_class_desc"`
	Acreage           float64 `json:"acreage"`
	AssessedValue     float64 `json:"assessed_value"`
	LandValue         float64 `json:"land_value"`
	ImprovementValue  float64 `json:"improvement_value"`
	FullMarketValue   float64 `json:"full_market_value"`
	AnnualTaxes       float64 `json:"annual_taxes"`
	SchoolDistrict    string  `json:"school_district"`
	Municipality      string  `json:"municipality"`
	County            string  `json:"county"`
	SwisCode          string  `json:"swis_code"`

	// Coordinates is the parcel boundary; empty when the upstream feature
	// had no usable geometry. Such records stay searchable but are left off
	// geometry-bearing views.
	Coordinates Ring `json:"coordinates,omitempty"`

	// Extra carries unrecognized upstream attributes through untouched.
	Extra map[string]any `json:"extra,omitempty"`
}

// HasGeometry reports whether the record carries a usable boundary ring.
func (r *Record) HasGeometry() bool {
	// A closed triangle is the smallest usable ring.
	return len(r.Coordinates) >= 4
}

// Polygon converts the boundary to a go-geom polygon, or nil without
// geometry.
func (r *Record) Polygon() *geom.Polygon {
	if !r.HasGeometry() {
		return nil
	}
	coords := make([]geom.Coord, len(r.Coordinates))
	for i, v := range r.Coordinates {
		coords[i] = geom.Coord{v[0], v[1]}
	}
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{coords})
}

// Centroid returns the vertex mean of the boundary ring, the marker
// position the map views use.
func (r *Record) Centroid() (lng, lat float64, ok bool) {
	if !r.HasGeometry() {
		return 0, 0, false
	}
	// Skip the duplicated closing vertex so it doesn't weight the mean.
	verts := r.Coordinates[:len(r.Coordinates)-1]
	for _, v := range verts {
		lng += v[0]
		lat += v[1]
	}
	n := float64(len(verts))
	return lng / n, lat / n, true
}

// Table is one loaded dataset: every record for one named area.
type Table struct {
	Area      string    `json:"area"`
	FetchedAt time.Time `json:"fetched_at"`
	Records   []Record  `json:"records"`
}

// Len returns the record count.
func (t *Table) Len() int {
	return len(t.Records)
}

// ByID finds a record by parcel id.
func (t *Table) ByID(id string) (*Record, bool) {
	for i := range t.Records {
		if t.Records[i].ParcelID == id {
			return &t.Records[i], true
		}
	}
	return nil, false
}

// At finds the first record whose boundary contains the point. Map clicks
// resolve to a parcel this way.
func (t *Table) At(lng, lat float64) (*Record, bool) {
	for i := range t.Records {
		if t.Records[i].Coordinates.Contains(lng, lat) {
			return &t.Records[i], true
		}
	}
	return nil, false
}

// WithGeometry returns the records that can be drawn.
func (t *Table) WithGeometry() []Record {
	var out []Record
	for _, r := range t.Records {
		if r.HasGeometry() {
			out = append(out, r)
		}
	}
	return out
}

// Bounds returns the bounding box covering every record with geometry.
func (t *Table) Bounds() (arcgis.BBox, bool) {
	var box arcgis.BBox
	found := false
	for i := range t.Records {
		poly := t.Records[i].Polygon()
		if poly == nil {
			continue
		}
		b := poly.Bounds()
		if !found {
			box = arcgis.BBox{MinLng: b.Min(0), MinLat: b.Min(1), MaxLng: b.Max(0), MaxLat: b.Max(1)}
			found = true
			continue
		}
		box.MinLng = min(box.MinLng, b.Min(0))
		box.MinLat = min(box.MinLat, b.Min(1))
		box.MaxLng = max(box.MaxLng, b.Max(0))
		box.MaxLat = max(box.MaxLat, b.Max(1))
	}
	return box, found
}

// Classes returns the distinct class codes present, sorted.
func (t *Table) Classes() []string {
	seen := make(map[string]bool)
	for _, r := range t.Records {
		if r.PropertyClass != "" {
			seen[r.PropertyClass] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// FilterOwner returns records whose owner contains the query,
// case-insensitively.
func (t *Table) FilterOwner(query string) []Record {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return t.Records
	}
	var out []Record
	for _, r := range t.Records {
		if strings.Contains(strings.ToLower(r.Owner), q) {
			out = append(out, r)
		}
	}
	return out
}
