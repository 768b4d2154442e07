// Package report computes summary statistics over a parcel table: area
// totals, property-class rollups, and owner portfolios.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/lanesville-research/parcel-cli/internal/parcel"
)

// Summary is the area-level rollup the report command prints.
type Summary struct {
	Area           string      `json:"area"`
	FetchedAt      time.Time   `json:"fetched_at"`
	Parcels        int         `json:"parcels"`
	WithGeometry   int         `json:"with_geometry"`
	TotalAcres     float64     `json:"total_acres"`
	AvgAcres       float64     `json:"avg_acres"`
	TotalAssessed  float64     `json:"total_assessed"`
	MedianAssessed float64     `json:"median_assessed"`
	TotalTaxes     float64     `json:"total_taxes"`
	Residency      Residency   `json:"residency"`
	Classes        []ClassStat `json:"classes"`
	TopOwners      []OwnerStat `json:"top_owners"`
	MailingCities  []CityStat  `json:"mailing_cities"`
}

// Residency splits parcels by whether the owner's mailing address lies in
// one of the covered areas. Absentee ownership is a standing question in
// these hamlets, so the split gets its own section.
type Residency struct {
	Local     int `json:"local"`
	OutOfArea int `json:"out_of_area"`
	Unknown   int `json:"unknown"`
}

// ClassStat rolls up one property class.
type ClassStat struct {
	Code     string  `json:"code"`
	Desc     string  `json:"desc"`
	Parcels  int     `json:"parcels"`
	Acres    float64 `json:"acres"`
	Assessed float64 `json:"assessed"`
}

// OwnerStat rolls up one owner's holdings.
type OwnerStat struct {
	Owner    string  `json:"owner"`
	Parcels  int     `json:"parcels"`
	Acres    float64 `json:"acres"`
	Assessed float64 `json:"assessed"`
	Taxes    float64 `json:"taxes"`
}

// CityStat counts parcels by owner mailing city.
type CityStat struct {
	City    string `json:"city"`
	Parcels int    `json:"parcels"`
}

// Options tune the summary.
type Options struct {
	// TopN caps the owner and mailing-city lists. Zero means 10.
	TopN int
	// LocalAreas defines "local" for the residency split: a mailing city
	// matching an area or town name, or a mailing zip matching an area zip.
	LocalAreas []parcel.Area
}

// Summarize computes the full rollup for a table.
func Summarize(table *parcel.Table, opts Options) *Summary {
	topN := opts.TopN
	if topN <= 0 {
		topN = 10
	}

	s := &Summary{
		Area:      table.Area,
		FetchedAt: table.FetchedAt,
		Parcels:   table.Len(),
	}

	localNames := make(map[string]bool)
	localZips := make(map[string]bool)
	for _, a := range opts.LocalAreas {
		if a.Name != "" {
			localNames[strings.ToUpper(a.Name)] = true
		}
		if a.Town != "" {
			localNames[strings.ToUpper(a.Town)] = true
		}
		if a.Zip != "" {
			localZips[a.Zip] = true
		}
	}

	assessed := make([]float64, 0, table.Len())
	classes := make(map[string]*ClassStat)
	cities := make(map[string]*CityStat)

	for i := range table.Records {
		rec := &table.Records[i]

		if rec.HasGeometry() {
			s.WithGeometry++
		}
		s.TotalAcres += rec.Acreage
		s.TotalAssessed += rec.AssessedValue
		s.TotalTaxes += rec.AnnualTaxes
		assessed = append(assessed, rec.AssessedValue)

		cs, ok := classes[rec.PropertyClass]
		if !ok {
			cs = &ClassStat{Code: rec.PropertyClass, Desc: parcel.ClassDesc(rec.PropertyClass)}
			classes[rec.PropertyClass] = cs
		}
		cs.Parcels++
		cs.Acres += rec.Acreage
		cs.Assessed += rec.AssessedValue

		city := strings.TrimSpace(rec.MailingCity)
		if city != "" {
			key := strings.ToUpper(city)
			ct, ok := cities[key]
			if !ok {
				ct = &CityStat{City: city}
				cities[key] = ct
			}
			ct.Parcels++
		}

		zip := strings.TrimSpace(rec.MailingZip)
		switch {
		case city == "" && zip == "":
			s.Residency.Unknown++
		case localNames[strings.ToUpper(city)] || localZips[zipPrefix(zip)]:
			s.Residency.Local++
		default:
			s.Residency.OutOfArea++
		}
	}

	if s.Parcels > 0 {
		s.AvgAcres = s.TotalAcres / float64(s.Parcels)
	}
	s.MedianAssessed = median(assessed)

	s.Classes = make([]ClassStat, 0, len(classes))
	for _, cs := range classes {
		s.Classes = append(s.Classes, *cs)
	}
	sort.Slice(s.Classes, func(i, j int) bool {
		if s.Classes[i].Parcels != s.Classes[j].Parcels {
			return s.Classes[i].Parcels > s.Classes[j].Parcels
		}
		return s.Classes[i].Code < s.Classes[j].Code
	})

	s.TopOwners = topOwners(Portfolios(table, SortByAcres), topN)

	s.MailingCities = make([]CityStat, 0, len(cities))
	for _, ct := range cities {
		s.MailingCities = append(s.MailingCities, *ct)
	}
	sort.Slice(s.MailingCities, func(i, j int) bool {
		if s.MailingCities[i].Parcels != s.MailingCities[j].Parcels {
			return s.MailingCities[i].Parcels > s.MailingCities[j].Parcels
		}
		return s.MailingCities[i].City < s.MailingCities[j].City
	})
	if len(s.MailingCities) > topN {
		s.MailingCities = s.MailingCities[:topN]
	}

	return s
}

// Portfolio sort orders.
const (
	SortByParcels = "parcels"
	SortByAcres   = "acres"
	SortByValue   = "value"
	SortByName    = "name"
)

// Portfolios groups the table by owner. Owner names differing only in
// case or surrounding space collapse into one holding; the first spelling
// seen is kept for display.
func Portfolios(table *parcel.Table, sortBy string) []OwnerStat {
	byOwner := make(map[string]*OwnerStat)
	var order []string

	for i := range table.Records {
		rec := &table.Records[i]
		key := strings.ToUpper(strings.TrimSpace(rec.Owner))
		if key == "" {
			continue
		}
		stat, ok := byOwner[key]
		if !ok {
			stat = &OwnerStat{Owner: strings.TrimSpace(rec.Owner)}
			byOwner[key] = stat
			order = append(order, key)
		}
		stat.Parcels++
		stat.Acres += rec.Acreage
		stat.Assessed += rec.AssessedValue
		stat.Taxes += rec.AnnualTaxes
	}

	out := make([]OwnerStat, 0, len(order))
	for _, key := range order {
		out = append(out, *byOwner[key])
	}

	less := func(i, j int) bool { return out[i].Acres > out[j].Acres }
	switch sortBy {
	case SortByParcels:
		less = func(i, j int) bool { return out[i].Parcels > out[j].Parcels }
	case SortByValue:
		less = func(i, j int) bool { return out[i].Assessed > out[j].Assessed }
	case SortByName:
		less = func(i, j int) bool { return out[i].Owner < out[j].Owner }
	}
	sort.SliceStable(out, less)
	return out
}

func topOwners(owners []OwnerStat, n int) []OwnerStat {
	if len(owners) > n {
		owners = owners[:n]
	}
	return owners
}

// zipPrefix strips a zip+4 suffix so "12450-1234" matches area zip "12450".
func zipPrefix(zip string) string {
	if i := strings.IndexByte(zip, '-'); i > 0 {
		return zip[:i]
	}
	return zip
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
