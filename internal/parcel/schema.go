package parcel

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var defaultSchemaYAML []byte

// Schema describes how one upstream vintage maps onto the canonical
// record: the field alias table, the mill rate for tax estimates, and
// fill-in defaults. These are jurisdiction data, not logic; ship a
// different YAML for a different county.
type Schema struct {
	MillRate float64             `yaml:"mill_rate"`
	Defaults SchemaDefaults      `yaml:"defaults"`
	Aliases  map[string][]string `yaml:"aliases"`

	// recognized indexes every alias, lowercased, for the pass-through
	// split between known and unknown attributes.
	recognized map[string]bool
}

// SchemaDefaults fill canonical fields the upstream left blank.
type SchemaDefaults struct {
	Owner        string `yaml:"owner"`
	MailingState string `yaml:"mailing_state"`
	County       string `yaml:"county"`
}

// LoadSchema reads a schema from path, or the embedded default when path
// is empty.
func LoadSchema(path string) (*Schema, error) {
	data := defaultSchemaYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "parcel: read schema %s", path)
		}
		data = b
	}

	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "parcel: parse schema")
	}
	if len(s.Aliases["parcel_id"]) == 0 {
		return nil, eris.New("parcel: schema has no parcel_id aliases")
	}
	if s.MillRate < 0 {
		return nil, eris.New("parcel: schema mill_rate must be >= 0")
	}

	s.recognized = make(map[string]bool)
	for _, aliases := range s.Aliases {
		for _, a := range aliases {
			s.recognized[strings.ToLower(a)] = true
		}
	}
	return &s, nil
}

// Recognized reports whether an upstream attribute name is mapped by any
// alias. Unrecognized attributes ride along as opaque extra metadata.
func (s *Schema) Recognized(name string) bool {
	return s.recognized[strings.ToLower(name)]
}

// lookup returns the first present, non-empty attribute for a canonical
// field, following alias priority order. attrs must be keyed lowercase.
func (s *Schema) lookup(attrs map[string]any, field string) (any, bool) {
	for _, alias := range s.Aliases[field] {
		v, ok := attrs[strings.ToLower(alias)]
		if !ok || v == nil {
			continue
		}
		if str, isStr := v.(string); isStr && strings.TrimSpace(str) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}
