package store

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanesville-research/parcel-cli/internal/parcel"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func sampleTable() *parcel.Table {
	return &parcel.Table{
		Area:      "lanesville",
		FetchedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Records: []parcel.Record{
			{
				ParcelID:          "12.34-5-6",
				Owner:             "Johnson Family Trust",
				PropertyClass:     "210",
				PropertyClassDesc: "One Family Residential",
				Acreage:           5.2,
				AssessedValue:     185000,
				AnnualTaxes:       4625,
				Municipality:      "Hunter",
				County:            "Greene",
				Coordinates: parcel.Ring{
					{-74.29, 42.18}, {-74.29, 42.19}, {-74.28, 42.19}, {-74.28, 42.18},
					{-74.29, 42.18},
				},
				Extra: map[string]any{"DEED_BOOK": "991"},
			},
			{
				ParcelID:      "2.2-2-2",
				Owner:         "Smith, Robert",
				PropertyClass: "910",
				Acreage:       40,
				AssessedValue: 60000,
			},
		},
	}
}

func TestNewRequiresDir(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestNewCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	_, err := New(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := testStore(t)
	want := sampleTable()

	require.NoError(t, s.Save(want))

	got, err := s.Load("lanesville")
	require.NoError(t, err)
	assert.Equal(t, "lanesville", got.Area)
	assert.True(t, want.FetchedAt.Equal(got.FetchedAt))
	require.Equal(t, want.Records, got.Records)
}

func TestLoadMissingAreaIsEmptyTable(t *testing.T) {
	s := testStore(t)

	got, err := s.Load("never_fetched")
	require.NoError(t, err)
	assert.Equal(t, "never_fetched", got.Area)
	assert.Zero(t, got.Len())
}

func TestSaveReplacesPrior(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(sampleTable()))

	next := &parcel.Table{
		Area:      "lanesville",
		FetchedAt: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
		Records:   []parcel.Record{{ParcelID: "9.9-9-9", Owner: "New Owner"}},
	}
	require.NoError(t, s.Save(next))

	got, err := s.Load("lanesville")
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "9.9-9-9", got.Records[0].ParcelID)
}

func TestFailedSaveKeepsPriorCache(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(sampleTable()))

	// NaN is not representable in JSON, so this save fails mid-encode.
	broken := sampleTable()
	broken.Records[0].Acreage = math.NaN()

	err := s.Save(broken)
	require.Error(t, err)

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "save", ioErr.Op)

	// The prior cache is still intact and no temp files are left behind.
	got, err := s.Load("lanesville")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
	assert.InDelta(t, 5.2, got.Records[0].Acreage, 0.0001)

	leftovers, err := filepath.Glob(filepath.Join(s.Dir(), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestSaveRejectsUnnamedTable(t *testing.T) {
	s := testStore(t)
	require.Error(t, s.Save(&parcel.Table{}))
	require.Error(t, s.Save(nil))
}

func TestAreas(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(sampleTable()))

	other := &parcel.Table{
		Area:      "hunter",
		FetchedAt: time.Date(2026, 3, 15, 7, 0, 0, 0, time.UTC),
		Records:   []parcel.Record{{ParcelID: "4.4-4-4"}},
	}
	require.NoError(t, s.Save(other))

	areas, err := s.Areas()
	require.NoError(t, err)
	require.Len(t, areas, 2)
	assert.Equal(t, "hunter", areas[0].Area)
	assert.Equal(t, 1, areas[0].Records)
	assert.Equal(t, "lanesville", areas[1].Area)
	assert.Equal(t, 2, areas[1].Records)
	assert.False(t, areas[1].FetchedAt.IsZero())
	assert.Positive(t, areas[1].Size)
}

func TestAreasEmptyDir(t *testing.T) {
	areas, err := testStore(t).Areas()
	require.NoError(t, err)
	assert.Empty(t, areas)
}

func TestRemove(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(sampleTable()))
	require.NoError(t, s.Remove("lanesville"))

	got, err := s.Load("lanesville")
	require.NoError(t, err)
	assert.Zero(t, got.Len())

	// Removing again is a no-op.
	require.NoError(t, s.Remove("lanesville"))
}

func TestPathNaming(t *testing.T) {
	s := testStore(t)
	assert.Equal(t,
		filepath.Join(s.Dir(), "mt_tremper_parcels.geojson"),
		s.Path("Mt Tremper"))
}

func TestCacheFileIsPlainGeoJSON(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(sampleTable()))

	raw, err := os.ReadFile(s.Path("lanesville"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "FeatureCollection", doc["type"])

	features, ok := doc["features"].([]any)
	require.True(t, ok)
	require.Len(t, features, 2)

	first, ok := features[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Feature", first["type"])

	geometry, ok := first["geometry"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Polygon", geometry["type"])

	props, ok := first["properties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "12.34-5-6", props["parcel_id"])
	assert.NotContains(t, props, "coordinates")

	// The geometry-less record carries a null geometry member.
	second, ok := features[1].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, second["geometry"])
}

func TestLoadForeignGeoJSON(t *testing.T) {
	s := testStore(t)

	// A hand-made collection without the area or fetched_at members, as
	// another tool would write it.
	doc := `{
	  "type": "FeatureCollection",
	  "features": [
	    {"type": "Feature", "geometry": null, "properties": {"parcel_id": "7.7-7-7", "owner": "Imported Owner"}}
	  ]
	}`
	path := filepath.Join(s.Dir(), "imported_parcels.geojson")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	got, err := s.Load("imported")
	require.NoError(t, err)
	assert.Equal(t, "imported", got.Area)
	assert.False(t, got.FetchedAt.IsZero(), "fetch time falls back to file mtime")
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "7.7-7-7", got.Records[0].ParcelID)
	assert.Equal(t, "Imported Owner", got.Records[0].Owner)
}

func TestLoadCorruptFile(t *testing.T) {
	s := testStore(t)
	path := s.Path("broken")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := s.Load("broken")
	require.Error(t, err)

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "decode", ioErr.Op)
}
