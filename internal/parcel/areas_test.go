package parcel

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAreas(t *testing.T) *Directory {
	t.Helper()
	d, err := LoadAreas("")
	require.NoError(t, err)
	return d
}

func TestLoadAreasEmbedded(t *testing.T) {
	d := testAreas(t)

	all := d.All()
	assert.Len(t, all, 17)
	assert.True(t, sortedByName(all), "directory must be sorted by name")
}

func sortedByName(areas []Area) bool {
	for i := 1; i < len(areas); i++ {
		if areas[i-1].Name > areas[i].Name {
			return false
		}
	}
	return true
}

func TestAreaByName(t *testing.T) {
	d := testAreas(t)

	a, ok := d.ByName("Lanesville")
	require.True(t, ok)
	assert.Equal(t, "12450", a.Zip)
	assert.Equal(t, "Hunter", a.Town)
	assert.Equal(t, "Greene", a.County)

	// Case and underscore variants resolve too.
	a, ok = d.ByName("mt_tremper")
	require.True(t, ok)
	assert.Equal(t, "12457", a.Zip)

	// Zip lookup.
	a, ok = d.ByName("12464")
	require.True(t, ok)
	assert.Equal(t, "Phoenicia", a.Name)

	_, ok = d.ByName("nowhere")
	assert.False(t, ok)
}

func TestAreaSlug(t *testing.T) {
	assert.Equal(t, "mt_tremper", Area{Name: "Mt Tremper"}.Slug())
	assert.Equal(t, "lanesville", Area{Name: "Lanesville"}.Slug())
	assert.Equal(t, "west_kill", Area{Name: " West Kill "}.Slug())
}

func TestAreaBBox(t *testing.T) {
	a := Area{Lat: 42.1856, Lng: -74.2848, Radius: 0.03}
	box := a.BBox()
	assert.InDelta(t, -74.3148, box.MinLng, 0.0001)
	assert.InDelta(t, -74.2548, box.MaxLng, 0.0001)
	assert.InDelta(t, 42.1556, box.MinLat, 0.0001)
	assert.InDelta(t, 42.2156, box.MaxLat, 0.0001)
}

func TestAreaTowns(t *testing.T) {
	towns := testAreas(t).Towns()
	assert.Contains(t, towns, "Hunter")
	assert.Contains(t, towns, "Shandaken")
	assert.True(t, sort.StringsAreSorted(towns))
}

func TestLoadAreasFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "areas.yaml")
	doc := `areas:
  - { zip: "00001", name: Testville, town: Testtown, county: Test, lat: 42.0, lng: -74.0, radius: 0.01 }
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	d, err := LoadAreas(path)
	require.NoError(t, err)
	assert.Len(t, d.All(), 1)

	a, ok := d.ByName("testville")
	require.True(t, ok)
	assert.Equal(t, "00001", a.Zip)
}

func TestLoadAreasEmptyFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "areas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("areas: []\n"), 0o644))

	_, err := LoadAreas(path)
	require.Error(t, err)
}
