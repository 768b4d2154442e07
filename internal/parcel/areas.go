package parcel

import (
	_ "embed"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/lanesville-research/parcel-cli/internal/arcgis"
)

//go:embed areas.yaml
var defaultAreasYAML []byte

// Area is one named postal area the tool knows how to fetch: a hamlet tied
// to the town the upstream municipality field uses, with an approximate
// center for envelope queries.
type Area struct {
	Zip    string  `yaml:"zip" json:"zip"`
	Name   string  `yaml:"name" json:"name"`
	Town   string  `yaml:"town" json:"town"`
	County string  `yaml:"county" json:"county"`
	Lat    float64 `yaml:"lat" json:"lat"`
	Lng    float64 `yaml:"lng" json:"lng"`
	Radius float64 `yaml:"radius" json:"radius"`
}

// Slug is the filesystem-safe area tag used for cache filenames.
func (a Area) Slug() string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(a.Name)), " ", "_")
}

// BBox is the envelope around the area center, for spatial queries.
func (a Area) BBox() arcgis.BBox {
	return arcgis.BBox{
		MinLng: a.Lng - a.Radius,
		MinLat: a.Lat - a.Radius,
		MaxLng: a.Lng + a.Radius,
		MaxLat: a.Lat + a.Radius,
	}
}

// Directory is the fixed lookup of known postal areas.
type Directory struct {
	areas []Area
}

// LoadAreas reads the directory from path, or the embedded default when
// path is empty.
func LoadAreas(path string) (*Directory, error) {
	data := defaultAreasYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "parcel: read areas %s", path)
		}
		data = b
	}

	var doc struct {
		Areas []Area `yaml:"areas"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "parcel: parse areas")
	}
	if len(doc.Areas) == 0 {
		return nil, eris.New("parcel: areas file has no entries")
	}

	areas := doc.Areas
	sort.Slice(areas, func(i, j int) bool { return areas[i].Name < areas[j].Name })
	return &Directory{areas: areas}, nil
}

// All returns every known area, sorted by name.
func (d *Directory) All() []Area {
	out := make([]Area, len(d.areas))
	copy(out, d.areas)
	return out
}

// ByName finds an area by hamlet name (case-insensitive, spaces or
// underscores) or by zip code.
func (d *Directory) ByName(query string) (Area, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	q = strings.ReplaceAll(q, "_", " ")
	for _, a := range d.areas {
		if strings.ToLower(a.Name) == q || a.Zip == strings.TrimSpace(query) {
			return a, true
		}
	}
	return Area{}, false
}

// Towns returns the distinct towns covered by the directory, sorted.
func (d *Directory) Towns() []string {
	seen := make(map[string]bool)
	for _, a := range d.areas {
		seen[a.Town] = true
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
