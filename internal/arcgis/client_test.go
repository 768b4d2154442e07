package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, endpoint string, pageSize, maxRetries int) *Client {
	t.Helper()
	return NewClient(Options{
		Endpoint:   endpoint,
		PageSize:   pageSize,
		MaxRetries: maxRetries,
		RateLimit:  1000,
		Timeout:    5 * time.Second,
	})
}

// mockFeatures builds n features with sequential parcel ids and a small
// square ring each.
func mockFeatures(n int) []Feature {
	features := make([]Feature, n)
	for i := range features {
		features[i] = Feature{
			Attributes: map[string]any{
				"PRINT_KEY": fmt.Sprintf("12.34-%d-%d", i/10, i%10),
				"OWNER1":    fmt.Sprintf("Owner %d", i),
				"TOTAL_AV":  float64(100000 + i),
			},
			Geometry: &Geometry{
				Rings: [][][]float64{{
					{-74.2, 42.1}, {-74.2, 42.2}, {-74.1, 42.2}, {-74.1, 42.1}, {-74.2, 42.1},
				}},
			},
		}
	}
	return features
}

// parcelServer serves paginated feature pages from fixtures, honoring
// resultOffset and resultRecordCount the way the real service does.
func parcelServer(t *testing.T, fixtures []Feature) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		offset, _ := strconv.Atoi(q.Get("resultOffset"))
		count, _ := strconv.Atoi(q.Get("resultRecordCount"))
		if count <= 0 {
			count = len(fixtures)
		}

		end := offset + count
		if offset > len(fixtures) {
			offset = len(fixtures)
		}
		if end > len(fixtures) {
			end = len(fixtures)
		}

		resp := queryResponse{Features: fixtures[offset:end]}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestQuerySinglePage(t *testing.T) {
	srv := parcelServer(t, mockFeatures(3))
	defer srv.Close()

	c := testClient(t, srv.URL, 10, 0)
	page, err := c.Query(context.Background(), QueryParams{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Features, 3)

	assert.Equal(t, "12.34-0-0", page.Features[0].Attributes["PRINT_KEY"])
	assert.Equal(t, "Owner 2", page.Features[2].Attributes["OWNER1"])
	require.NotNil(t, page.Features[0].Geometry)
	require.Len(t, page.Features[0].Geometry.Rings, 1)
	assert.Len(t, page.Features[0].Geometry.Rings[0], 5)
}

func TestQueryAllPaginates(t *testing.T) {
	var requests atomic.Int32
	fixtures := mockFeatures(25)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		q := r.URL.Query()
		offset, _ := strconv.Atoi(q.Get("resultOffset"))
		count, _ := strconv.Atoi(q.Get("resultRecordCount"))
		end := offset + count
		if end > len(fixtures) {
			end = len(fixtures)
		}
		json.NewEncoder(w).Encode(queryResponse{Features: fixtures[offset:end]})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 10, 0)
	features, err := c.QueryAll(context.Background(), QueryParams{}, 0)
	require.NoError(t, err)
	assert.Len(t, features, 25)
	// Pages of 10, 10, 5; the short page ends the loop.
	assert.Equal(t, int32(3), requests.Load())
}

func TestQueryAllCapTruncates(t *testing.T) {
	srv := parcelServer(t, mockFeatures(25))
	defer srv.Close()

	c := testClient(t, srv.URL, 10, 0)
	features, err := c.QueryAll(context.Background(), QueryParams{}, 10)
	require.NoError(t, err)
	assert.Len(t, features, 10)
}

func TestQueryAllCapBelowPageSize(t *testing.T) {
	srv := parcelServer(t, mockFeatures(25))
	defer srv.Close()

	c := testClient(t, srv.URL, 1000, 0)
	features, err := c.QueryAll(context.Background(), QueryParams{}, 7)
	require.NoError(t, err)
	assert.Len(t, features, 7)
}

func TestQueryAllEmptyResult(t *testing.T) {
	srv := parcelServer(t, nil)
	defer srv.Close()

	c := testClient(t, srv.URL, 10, 0)
	features, err := c.QueryAll(context.Background(), QueryParams{}, 0)
	require.NoError(t, err)
	assert.Empty(t, features)
}

func TestQueryAllFailedPageAbortsFetch(t *testing.T) {
	fixtures := mockFeatures(25)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("resultOffset"))
		if offset >= 10 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(queryResponse{Features: fixtures[offset : offset+10]})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 10, 1)
	features, err := c.QueryAll(context.Background(), QueryParams{}, 0)
	require.Error(t, err)
	assert.Nil(t, features, "a failed page must not return partial results")

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "query", fe.Op)
}

func TestRetryOnTransientStatus(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(queryResponse{Features: mockFeatures(1)})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 10, 1)
	page, err := c.Query(context.Background(), QueryParams{}, 0, 10)
	require.NoError(t, err)
	assert.Len(t, page.Features, 1)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 10, 3)
	_, err := c.Query(context.Background(), QueryParams{}, 0, 10)
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Error(), "status")
}

func TestRetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 10, 1)
	_, err := c.Query(context.Background(), QueryParams{}, 0, 10)
	require.Error(t, err)
	assert.Equal(t, int32(2), attempts.Load())

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusBadGateway, fe.Status)
}

func TestInBodyServiceError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		// HTTP 200 with an error payload, as ArcGIS servers do.
		fmt.Fprint(w, `{"error":{"code":400,"message":"Invalid where clause"}}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 10, 2)
	_, err := c.Query(context.Background(), QueryParams{}, 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid where clause")
	assert.Equal(t, int32(1), attempts.Load(), "body errors are rejections, not retryable")
}

func TestCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("returnCountOnly"))
		fmt.Fprint(w, `{"count":1542}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 10, 0)
	n, err := c.Count(context.Background(), QueryParams{Where: "MUNI_NAME = 'Hunter'"})
	require.NoError(t, err)
	assert.Equal(t, 1542, n)
}

func TestCountMissingFromResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"features":[]}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 10, 0)
	_, err := c.Count(context.Background(), QueryParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing count")
}

func TestDistinctValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "true", q.Get("returnDistinctValues"))
		assert.Equal(t, "MUNI_NAME", q.Get("outFields"))
		assert.Equal(t, "false", q.Get("returnGeometry"))
		fmt.Fprint(w, `{"features":[
			{"attributes":{"MUNI_NAME":"Hunter"}},
			{"attributes":{"MUNI_NAME":"Lexington"}},
			{"attributes":{"MUNI_NAME":"Hunter"}},
			{"attributes":{"MUNI_NAME":""}},
			{"attributes":{"MUNI_NAME":"Jewett"}}
		]}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 10, 0)
	values, err := c.DistinctValues(context.Background(), "MUNI_NAME", QueryParams{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hunter", "Jewett", "Lexington"}, values)
}

func TestInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"name": "Tax_Parcels",
			"geometryType": "esriGeometryPolygon",
			"maxRecordCount": 2000,
			"fields": [{"name":"PRINT_KEY","type":"esriFieldTypeString","alias":"Print Key"}]
		}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 10, 0)
	info, err := c.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Tax_Parcels", info.Name)
	assert.Equal(t, 2000, info.MaxRecordCount)
	require.Len(t, info.Fields, 1)
	assert.Equal(t, "PRINT_KEY", info.Fields[0].Name)
}

func TestQueryParamsOnWire(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "MUNI_NAME = 'Hunter'", q.Get("where"))
		assert.Equal(t, "*", q.Get("outFields"))
		assert.Equal(t, "json", q.Get("f"))
		assert.Equal(t, "true", q.Get("returnGeometry"))
		assert.Equal(t, "4326", q.Get("outSR"))
		assert.Equal(t, "-74.4,42.1,-74.15,42.25", q.Get("geometry"))
		assert.Equal(t, "esriGeometryEnvelope", q.Get("geometryType"))
		assert.Equal(t, "esriSpatialRelIntersects", q.Get("spatialRel"))
		fmt.Fprint(w, `{"features":[]}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 10, 0)
	box := &BBox{MinLng: -74.40, MinLat: 42.10, MaxLng: -74.15, MaxLat: 42.25}
	_, err := c.Query(context.Background(), QueryParams{Where: "MUNI_NAME = 'Hunter'", BBox: box}, 0, 10)
	require.NoError(t, err)
}

func TestMunicipalityWhere(t *testing.T) {
	where := MunicipalityWhere("Hunter")
	assert.Equal(t, "MUNI_NAME = 'Hunter' OR MuniName = 'Hunter' OR MUNICIPALITY = 'Hunter'", where)
}

func TestMunicipalityWhereEscapesQuotes(t *testing.T) {
	where := MunicipalityWhere("O'Brien's Corners")
	assert.Contains(t, where, "O''Brien''s Corners")
	assert.NotContains(t, where, "O'Brien's")
}

func TestContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := testClient(t, srv.URL, 10, 0)
	_, err := c.Query(ctx, QueryParams{}, 0, 10)
	require.Error(t, err)
}
