//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lanesville-research/parcel-cli/internal/report"
)

func TestFormatSummary(t *testing.T) {
	sum := &report.Summary{
		Area:           "lanesville",
		FetchedAt:      time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC),
		Parcels:        1234,
		WithGeometry:   1200,
		TotalAcres:     3570.5,
		AvgAcres:       2.9,
		TotalAssessed:  78000000,
		MedianAssessed: 152500,
		TotalTaxes:     1950000,
		Residency:      report.Residency{Local: 700, OutOfArea: 500, Unknown: 34},
		Classes: []report.ClassStat{
			{Code: "210", Desc: "One Family Residential", Parcels: 800, Acres: 1900, Assessed: 60000000},
		},
		TopOwners: []report.OwnerStat{
			{Owner: "CITY OF NEW YORK DEP", Parcels: 12, Acres: 850.5, Assessed: 4200000, Taxes: 105000},
		},
		MailingCities: []report.CityStat{
			{City: "Lanesville", Parcels: 700},
		},
	}

	var buf bytes.Buffer
	err := formatSummary(&buf, sum)
	assert.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Area: lanesville")
	assert.Contains(t, output, "2026-08-01 09:30")
	// The message printer groups thousands.
	assert.Contains(t, output, "1,234")
	assert.Contains(t, output, "3,570.5")
	assert.Contains(t, output, "$78,000,000")
	assert.Contains(t, output, "700 local, 500 out-of-area, 34 unknown")
	assert.Contains(t, output, "Property classes")
	assert.Contains(t, output, "One Family Residential")
	assert.Contains(t, output, "Top owners")
	assert.Contains(t, output, "CITY OF NEW YORK DEP")
	assert.Contains(t, output, "Owner mailing cities")
	assert.Contains(t, output, "Lanesville")
}

func TestFormatSummaryEmptySections(t *testing.T) {
	sum := &report.Summary{Area: "empty", FetchedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}

	var buf bytes.Buffer
	err := formatSummary(&buf, sum)
	assert.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Parcels:")
	assert.NotContains(t, output, "Property classes")
	assert.NotContains(t, output, "Top owners")
}
