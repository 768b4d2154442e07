package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanesville-research/parcel-cli/internal/history"
	"github.com/lanesville-research/parcel-cli/internal/parcel"
	"github.com/lanesville-research/parcel-cli/internal/store"
)

func serverTable() *parcel.Table {
	ring := parcel.Ring{
		{-74.29, 42.18}, {-74.29, 42.19}, {-74.28, 42.19}, {-74.28, 42.18},
		{-74.29, 42.18},
	}
	return &parcel.Table{
		Area:      "lanesville",
		FetchedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Records: []parcel.Record{
			{ParcelID: "12.34-5-6", Owner: "Johnson Family Trust", PropertyClass: "210", Acreage: 5.2, AssessedValue: 185000, Coordinates: ring},
			{ParcelID: "2.2-2-2", Owner: "Smith, Robert", PropertyClass: "910", Acreage: 40, AssessedValue: 60000},
			{ParcelID: "3.3-3-3", Owner: "NYC DEP", PropertyClass: "930", Acreage: 120, AssessedValue: 310000, Coordinates: ring},
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, st.Save(serverTable()))

	areas, err := parcel.LoadAreas("")
	require.NoError(t, err)

	hist, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() }) //nolint:errcheck
	require.NoError(t, hist.Migrate(context.Background()))
	_, err = hist.Record(context.Background(), history.Entry{
		Area: "lanesville", Status: history.StatusOK, Records: 3,
	})
	require.NoError(t, err)

	return New(st, areas, hist, Options{})
}

func doGet(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := doGet(t, newTestServer(t), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestViewerServed(t *testing.T) {
	rec := doGet(t, newTestServer(t), "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Parcel Viewer")
}

func TestListAreas(t *testing.T) {
	rec := doGet(t, newTestServer(t), "/api/areas")
	require.Equal(t, http.StatusOK, rec.Code)

	var areas []areaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &areas))
	require.Len(t, areas, 17)

	var lanesville, hunter *areaResponse
	for i := range areas {
		switch areas[i].Name {
		case "Lanesville":
			lanesville = &areas[i]
		case "Hunter":
			hunter = &areas[i]
		}
	}
	require.NotNil(t, lanesville)
	assert.True(t, lanesville.Cached)
	assert.Equal(t, 3, lanesville.Records)
	require.NotNil(t, hunter)
	assert.False(t, hunter.Cached)
}

func TestListDatasets(t *testing.T) {
	rec := doGet(t, newTestServer(t), "/api/datasets")
	require.Equal(t, http.StatusOK, rec.Code)

	var datasets []store.CachedArea
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &datasets))
	require.Len(t, datasets, 1)
	assert.Equal(t, "lanesville", datasets[0].Area)
	assert.Equal(t, 3, datasets[0].Records)
}

type parcelsResponse struct {
	Area    string           `json:"area"`
	Count   int              `json:"count"`
	Classes []string         `json:"classes"`
	Parcels []map[string]any `json:"parcels"`
}

func TestListParcels(t *testing.T) {
	rec := doGet(t, newTestServer(t), "/api/parcels?area=lanesville")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp parcelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "lanesville", resp.Area)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, []string{"210", "910", "930"}, resp.Classes)
	require.Len(t, resp.Parcels, 3)
	assert.Equal(t, "12.34-5-6", resp.Parcels[0]["parcel_id"])
	assert.NotContains(t, resp.Parcels[0], "coordinates")
}

func TestListParcelsRequiresArea(t *testing.T) {
	rec := doGet(t, newTestServer(t), "/api/parcels")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListParcelsFilters(t *testing.T) {
	s := newTestServer(t)

	rec := doGet(t, s, "/api/parcels?area=lanesville&class=910")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp parcelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "2.2-2-2", resp.Parcels[0]["parcel_id"])

	rec = doGet(t, s, "/api/parcels?area=lanesville&owner=smith")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	rec = doGet(t, s, "/api/parcels?area=lanesville&min_acres=10&max_acres=50")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "2.2-2-2", resp.Parcels[0]["parcel_id"])

	rec = doGet(t, s, "/api/parcels?area=lanesville&min_acres=lots")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListParcelsUnknownAreaIsEmpty(t *testing.T) {
	rec := doGet(t, newTestServer(t), "/api/parcels?area=atlantis")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp parcelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Count)
}

func TestParcelsGeoJSON(t *testing.T) {
	rec := doGet(t, newTestServer(t), "/api/parcels/geojson?area=lanesville")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	var fc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc["type"])
	features, ok := fc["features"].([]any)
	require.True(t, ok)
	assert.Len(t, features, 2, "only geometry-bearing records are mappable")
}

func TestGetParcel(t *testing.T) {
	s := newTestServer(t)

	rec := doGet(t, s, "/api/parcels/12.34-5-6?area=lanesville")
	require.Equal(t, http.StatusOK, rec.Code)

	var got parcel.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Johnson Family Trust", got.Owner)
	assert.True(t, got.HasGeometry())

	rec = doGet(t, s, "/api/parcels/9.9-9-9?area=lanesville")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParcelAtEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doGet(t, s, "/api/parcels/at?area=lanesville&lng=-74.285&lat=42.185")
	require.Equal(t, http.StatusOK, rec.Code)

	var got parcel.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "12.34-5-6", got.ParcelID)

	rec = doGet(t, s, "/api/parcels/at?area=lanesville&lng=-75.0&lat=43.0")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doGet(t, s, "/api/parcels/at?area=lanesville&lng=west&lat=42.185")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaryEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doGet(t, s, "/api/summary?area=lanesville")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary struct {
		Parcels      int     `json:"parcels"`
		WithGeometry int     `json:"with_geometry"`
		TotalAcres   float64 `json:"total_acres"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.Parcels)
	assert.Equal(t, 2, summary.WithGeometry)
	assert.InDelta(t, 165.2, summary.TotalAcres, 0.001)

	rec = doGet(t, s, "/api/summary?area=lanesville&top=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOwnersEndpoint(t *testing.T) {
	rec := doGet(t, newTestServer(t), "/api/owners?area=lanesville&sort=value")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Owners []struct {
			Owner    string  `json:"owner"`
			Assessed float64 `json:"assessed"`
		} `json:"owners"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Owners, 3)
	assert.Equal(t, "NYC DEP", resp.Owners[0].Owner)
}

func TestHistoryEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doGet(t, s, "/api/history")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []history.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "lanesville", entries[0].Area)

	rec = doGet(t, s, "/api/history?area=Lanesville")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 1)

	rec = doGet(t, s, "/api/history?limit=nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryDisabled(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	areas, err := parcel.LoadAreas("")
	require.NoError(t, err)

	s := New(st, areas, nil, Options{})
	rec := doGet(t, s, "/api/history")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSHeaders(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/areas", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
