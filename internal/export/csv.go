package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/lanesville-research/parcel-cli/internal/parcel"
)

// parcelColumns defines the ordered CSV output columns.
var parcelColumns = []string{
	"parcel_id",
	"sbl",
	"owner",
	"mailing_address",
	"mailing_city",
	"mailing_state",
	"mailing_zip",
	"property_address",
	"property_class",
	"property_class_desc",
	"acreage",
	"assessed_value",
	"land_value",
	"improvement_value",
	"full_market_value",
	"annual_taxes",
	"school_district",
	"municipality",
	"county",
	"swis_code",
	"latitude",
	"longitude",
}

func writeCSV(w io.Writer, table *parcel.Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(parcelColumns); err != nil {
		return eris.Wrap(err, "csv export: write header")
	}
	for i := range table.Records {
		if err := cw.Write(buildCSVRow(&table.Records[i])); err != nil {
			return eris.Wrapf(err, "csv export: write row %d", i)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "csv export: flush")
}

func buildCSVRow(rec *parcel.Record) []string {
	var lat, lng string
	if x, y, ok := rec.Centroid(); ok {
		lat = formatCoord(y)
		lng = formatCoord(x)
	}

	return []string{
		rec.ParcelID,
		rec.SBL,
		rec.Owner,
		rec.MailingAddress,
		rec.MailingCity,
		rec.MailingState,
		rec.MailingZip,
		rec.PropertyAddress,
		rec.PropertyClass,
		rec.PropertyClassDesc,
		formatNumber(rec.Acreage),
		formatMoney(rec.AssessedValue),
		formatMoney(rec.LandValue),
		formatMoney(rec.ImprovementValue),
		formatMoney(rec.FullMarketValue),
		formatMoney(rec.AnnualTaxes),
		rec.SchoolDistrict,
		rec.Municipality,
		rec.County,
		rec.SwisCode,
		lat,
		lng,
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
