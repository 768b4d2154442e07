package parcel

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Raw is one upstream feature before normalization: a free-form attribute
// map plus polygon rings as the service delivered them. Multi-ring
// geometries keep only their first (outer) ring downstream.
type Raw struct {
	Attributes map[string]any
	Rings      [][][]float64
}

// SkipError reports a feature the normalizer discarded. Skips are logged
// and counted by the caller; they never abort a batch.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "skip feature: " + e.Reason
}

// Options tune a Normalizer beyond what the schema file provides.
type Options struct {
	// MillRate overrides the schema's rate when > 0.
	MillRate float64
	// County overrides the schema's default county, e.g. when fetching an
	// area the directory places elsewhere.
	County string
}

// Normalizer maps raw upstream features into canonical Records.
type Normalizer struct {
	schema   *Schema
	millRate float64
	county   string
	log      *zap.Logger
}

// NewNormalizer builds a Normalizer over a loaded schema.
func NewNormalizer(schema *Schema, opts Options) *Normalizer {
	millRate := schema.MillRate
	if opts.MillRate > 0 {
		millRate = opts.MillRate
	}
	county := schema.Defaults.County
	if opts.County != "" {
		county = opts.County
	}
	return &Normalizer{
		schema:   schema,
		millRate: millRate,
		county:   county,
		log:      zap.L().With(zap.String("component", "normalizer")),
	}
}

// Normalize maps one raw feature to a Record. It returns a *SkipError when
// the feature has no usable parcel id; malformed values never fail the
// call, they coerce to zero values instead.
func (n *Normalizer) Normalize(raw Raw) (Record, error) {
	attrs := lowerKeys(raw.Attributes)

	parcelID := strings.TrimSpace(n.str(attrs, "parcel_id"))
	if parcelID == "" {
		return Record{}, &SkipError{Reason: "missing parcel_id"}
	}

	rec := Record{
		ParcelID:        parcelID,
		SBL:             strings.TrimSpace(n.str(attrs, "sbl")),
		Owner:           strings.TrimSpace(n.str(attrs, "owner")),
		MailingAddress:  strings.TrimSpace(n.str(attrs, "mailing_address")),
		MailingCity:     strings.TrimSpace(n.str(attrs, "mailing_city")),
		MailingState:    strings.TrimSpace(n.str(attrs, "mailing_state")),
		MailingZip:      strings.TrimSpace(n.str(attrs, "mailing_zip")),
		PropertyAddress: strings.TrimSpace(n.str(attrs, "property_address")),
		PropertyClass:   strings.TrimSpace(n.str(attrs, "property_class")),
		Acreage:         n.num(attrs, "acreage"),
		AssessedValue:   n.num(attrs, "assessed_value"),
		LandValue:       n.num(attrs, "land_value"),
		FullMarketValue: n.num(attrs, "full_market_value"),
		AnnualTaxes:     n.num(attrs, "annual_taxes"),
		SchoolDistrict:  strings.TrimSpace(n.str(attrs, "school_district")),
		Municipality:    strings.TrimSpace(n.str(attrs, "municipality")),
		County:          strings.TrimSpace(n.str(attrs, "county")),
		SwisCode:        strings.TrimSpace(n.str(attrs, "swis_code")),
	}

	// Fill-in defaults for fields this vintage leaves blank.
	if rec.Owner == "" {
		rec.Owner = n.schema.Defaults.Owner
	}
	if rec.MailingState == "" {
		rec.MailingState = n.schema.Defaults.MailingState
	}
	if rec.County == "" {
		rec.County = n.county
	}

	// Derived fields.
	rec.PropertyClassDesc = ClassDesc(rec.PropertyClass)
	rec.ImprovementValue = math.Max(0, rec.AssessedValue-rec.LandValue)
	if rec.AnnualTaxes == 0 {
		rec.AnnualTaxes = roundCents(rec.AssessedValue * n.millRate)
	}

	rec.Coordinates = normalizeRing(raw.Rings)

	// Unrecognized attributes pass through as opaque metadata.
	for name, v := range raw.Attributes {
		if n.schema.Recognized(name) || v == nil {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]any)
		}
		rec.Extra[name] = v
	}

	return rec, nil
}

// NormalizeAll maps a batch of features, dropping and counting the ones
// that fail. One bad feature never aborts the batch. Duplicate parcel ids
// keep their first occurrence.
func (n *Normalizer) NormalizeAll(area string, raws []Raw) (*Table, int) {
	table := &Table{
		Area:      area,
		FetchedAt: time.Now().UTC(),
		Records:   make([]Record, 0, len(raws)),
	}

	seen := make(map[string]bool, len(raws))
	skipped := 0
	for _, raw := range raws {
		rec, err := n.Normalize(raw)
		if err != nil {
			skipped++
			n.log.Warn("dropping feature", zap.Error(err))
			continue
		}
		if seen[rec.ParcelID] {
			skipped++
			n.log.Warn("dropping duplicate parcel id", zap.String("parcel_id", rec.ParcelID))
			continue
		}
		seen[rec.ParcelID] = true
		table.Records = append(table.Records, rec)
	}

	if skipped > 0 {
		n.log.Info("normalization dropped features",
			zap.Int("kept", len(table.Records)), zap.Int("skipped", skipped))
	}
	return table, skipped
}

// str resolves a canonical string field through the alias table.
func (n *Normalizer) str(attrs map[string]any, field string) string {
	v, ok := n.schema.lookup(attrs, field)
	if !ok {
		return ""
	}
	return toString(v)
}

// num resolves a canonical numeric field, coercing junk to 0 and clamping
// negatives, since every numeric in the record model is non-negative.
func (n *Normalizer) num(attrs map[string]any, field string) float64 {
	v, ok := n.schema.lookup(attrs, field)
	if !ok {
		return 0
	}
	return math.Max(0, toFloat(v))
}

// lowerKeys indexes attributes by lowercase name. When a source carries
// two spellings of the same key the lexicographically smaller original
// wins, keeping normalization deterministic.
func lowerKeys(attrs map[string]any) map[string]any {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(attrs))
	for _, k := range keys {
		lk := strings.ToLower(k)
		if _, exists := out[lk]; !exists {
			out[lk] = attrs[k]
		}
	}
	return out
}

// toString renders an attribute value. Integral floats (how JSON delivers
// object ids and zip codes) drop their decimal point.
func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatFloat(t, 'f', 0, 64)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// toFloat coerces an attribute value to a float64. Blank, non-numeric, or
// unparseable input becomes 0, never an error.
func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		s := strings.TrimSpace(t)
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimPrefix(s, "$")
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// roundCents rounds to two decimal places.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// normalizeRing converts upstream rings to the canonical boundary: the
// first ring only, (longitude, latitude) order, closed. Degenerate rings
// (under three distinct vertices) normalize to no geometry.
func normalizeRing(rings [][][]float64) Ring {
	if len(rings) == 0 || len(rings[0]) < 3 {
		return nil
	}

	src := rings[0]
	ring := make(Ring, 0, len(src)+1)
	for _, vtx := range src {
		if len(vtx) < 2 {
			continue
		}
		ring = append(ring, [2]float64{vtx[0], vtx[1]})
	}
	if len(ring) < 3 {
		return nil
	}

	if looksLatLng(ring) {
		for i, v := range ring {
			ring[i] = [2]float64{v[1], v[0]}
		}
	}

	return ring.Close()
}

// looksLatLng detects vertices delivered in (latitude, longitude) order.
// Valid latitudes never exceed ±90, so a second component beyond that is
// a giveaway; otherwise fall back to the hemisphere signature of this
// tool's coverage area (positive latitude, negative longitude).
func looksLatLng(ring Ring) bool {
	for _, v := range ring {
		x, y := v[0], v[1]
		if math.Abs(y) > 90 {
			return true
		}
		if math.Abs(x) > 90 {
			return false
		}
		if x > 0 && y < 0 {
			return true
		}
		if x < 0 && y > 0 {
			return false
		}
	}
	return false
}
