package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lanesville-research/parcel-cli/internal/export"
	"github.com/lanesville-research/parcel-cli/internal/parcel"
	"github.com/lanesville-research/parcel-cli/internal/report"
)

// areaResponse is one directory entry overlaid with its cache state.
type areaResponse struct {
	parcel.Area
	Cached    bool   `json:"cached"`
	Records   int    `json:"records,omitempty"`
	FetchedAt string `json:"fetched_at,omitempty"`
}

func (s *Server) listAreas(w http.ResponseWriter, _ *http.Request) {
	cached, err := s.store.Areas()
	if err != nil {
		s.log.Error("list cache failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "cache read failed")
		return
	}
	bySlug := make(map[string]int, len(cached))
	for i, ca := range cached {
		bySlug[ca.Area] = i
	}

	all := s.areas.All()
	out := make([]areaResponse, 0, len(all))
	for _, a := range all {
		resp := areaResponse{Area: a}
		if i, ok := bySlug[a.Slug()]; ok {
			resp.Cached = true
			resp.Records = cached[i].Records
			resp.FetchedAt = cached[i].FetchedAt.Format(time.RFC3339)
		}
		out = append(out, resp)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) listDatasets(w http.ResponseWriter, _ *http.Request) {
	cached, err := s.store.Areas()
	if err != nil {
		s.log.Error("list cache failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "cache read failed")
		return
	}
	s.writeJSON(w, http.StatusOK, cached)
}

func (s *Server) listParcels(w http.ResponseWriter, r *http.Request) {
	table, ok := s.loadFiltered(w, r)
	if !ok {
		return
	}

	parcels := make([]map[string]any, 0, table.Len())
	for i := range table.Records {
		attrs, err := export.Attributes(&table.Records[i])
		if err != nil {
			s.log.Error("flatten parcel failed", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "encode failed")
			return
		}
		parcels = append(parcels, attrs)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"area":       table.Area,
		"fetched_at": table.FetchedAt,
		"count":      len(parcels),
		"classes":    table.Classes(),
		"parcels":    parcels,
	})
}

func (s *Server) parcelsGeoJSON(w http.ResponseWriter, r *http.Request) {
	table, ok := s.loadFiltered(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	if err := export.Write(w, export.FormatGeoJSON, table); err != nil {
		s.log.Error("geojson write failed", zap.Error(err))
	}
}

func (s *Server) getParcel(w http.ResponseWriter, r *http.Request) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	rec, found := table.ByID(id)
	if !found {
		s.writeError(w, http.StatusNotFound, "parcel not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// parcelAt resolves a coordinate to the parcel whose boundary contains it.
func (s *Server) parcelAt(w http.ResponseWriter, r *http.Request) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}

	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if errLng != nil || errLat != nil {
		s.writeError(w, http.StatusBadRequest, "lng and lat must be numbers")
		return
	}

	rec, found := table.At(lng, lat)
	if !found {
		s.writeError(w, http.StatusNotFound, "no parcel at point")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}

	topN := 0
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		topN = n
	}
	s.writeJSON(w, http.StatusOK, report.Summarize(table, report.Options{
		TopN:       topN,
		LocalAreas: s.areas.All(),
	}))
}

func (s *Server) owners(w http.ResponseWriter, r *http.Request) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}

	sortBy := r.URL.Query().Get("sort")
	if sortBy == "" {
		sortBy = report.SortByAcres
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"area":   table.Area,
		"owners": report.Portfolios(table, sortBy),
	})
}

func (s *Server) fetchHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		s.writeError(w, http.StatusServiceUnavailable, "fetch log not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var err error
	var entries any
	if area := r.URL.Query().Get("area"); area != "" {
		entries, err = s.hist.ByArea(r.Context(), s.resolveArea(area), limit)
	} else {
		entries, err = s.hist.Recent(r.Context(), limit)
	}
	if err != nil {
		s.log.Error("history query failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "history read failed")
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

// loadTable resolves the area query parameter and loads its cached
// table, writing the HTTP error itself when that fails.
func (s *Server) loadTable(w http.ResponseWriter, r *http.Request) (*parcel.Table, bool) {
	area := strings.TrimSpace(r.URL.Query().Get("area"))
	if area == "" {
		s.writeError(w, http.StatusBadRequest, "area query parameter is required")
		return nil, false
	}

	table, err := s.store.Load(s.resolveArea(area))
	if err != nil {
		s.log.Error("cache load failed", zap.String("area", area), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "cache read failed")
		return nil, false
	}
	return table, true
}

// loadFiltered is loadTable plus the list filters.
func (s *Server) loadFiltered(w http.ResponseWriter, r *http.Request) (*parcel.Table, bool) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return nil, false
	}

	f, err := parseFilters(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return f.apply(table), true
}

// resolveArea maps a name or zip onto the cache slug; unknown names pass
// through so foreign cache files stay reachable.
func (s *Server) resolveArea(query string) string {
	if a, ok := s.areas.ByName(query); ok {
		return a.Slug()
	}
	return query
}

type filters struct {
	class    string
	owner    string
	minAcres float64
	maxAcres float64
	hasMin   bool
	hasMax   bool
}

func parseFilters(r *http.Request) (filters, error) {
	q := r.URL.Query()
	f := filters{
		class: strings.TrimSpace(q.Get("class")),
		owner: strings.TrimSpace(q.Get("owner")),
	}

	if v := q.Get("min_acres"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, eris.New("min_acres must be a number")
		}
		f.minAcres, f.hasMin = n, true
	}
	if v := q.Get("max_acres"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, eris.New("max_acres must be a number")
		}
		f.maxAcres, f.hasMax = n, true
	}
	return f, nil
}

func (f filters) apply(table *parcel.Table) *parcel.Table {
	if f.class == "" && f.owner == "" && !f.hasMin && !f.hasMax {
		return table
	}

	out := &parcel.Table{Area: table.Area, FetchedAt: table.FetchedAt}
	ownerQuery := strings.ToLower(f.owner)
	for i := range table.Records {
		rec := &table.Records[i]
		if f.class != "" && rec.PropertyClass != f.class {
			continue
		}
		if f.owner != "" && !strings.Contains(strings.ToLower(rec.Owner), ownerQuery) {
			continue
		}
		if f.hasMin && rec.Acreage < f.minAcres {
			continue
		}
		if f.hasMax && rec.Acreage > f.maxAcres {
			continue
		}
		out.Records = append(out.Records, *rec)
	}
	return out
}
