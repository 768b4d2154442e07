package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/lanesville-research/parcel-cli/internal/parcel"
)

func writeXLSX(w io.Writer, table *parcel.Table) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Parcels")
	if err != nil {
		return eris.Wrap(err, "xlsx export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range parcelColumns {
		header.AddCell().SetString(col)
	}

	for i := range table.Records {
		rec := &table.Records[i]
		row := sheet.AddRow()

		row.AddCell().SetString(rec.ParcelID)
		row.AddCell().SetString(rec.SBL)
		row.AddCell().SetString(rec.Owner)
		row.AddCell().SetString(rec.MailingAddress)
		row.AddCell().SetString(rec.MailingCity)
		row.AddCell().SetString(rec.MailingState)
		row.AddCell().SetString(rec.MailingZip)
		row.AddCell().SetString(rec.PropertyAddress)
		row.AddCell().SetString(rec.PropertyClass)
		row.AddCell().SetString(rec.PropertyClassDesc)
		row.AddCell().SetFloat(rec.Acreage)
		row.AddCell().SetFloat(rec.AssessedValue)
		row.AddCell().SetFloat(rec.LandValue)
		row.AddCell().SetFloat(rec.ImprovementValue)
		row.AddCell().SetFloat(rec.FullMarketValue)
		row.AddCell().SetFloat(rec.AnnualTaxes)
		row.AddCell().SetString(rec.SchoolDistrict)
		row.AddCell().SetString(rec.Municipality)
		row.AddCell().SetString(rec.County)
		row.AddCell().SetString(rec.SwisCode)

		if x, y, ok := rec.Centroid(); ok {
			row.AddCell().SetFloat(y)
			row.AddCell().SetFloat(x)
		} else {
			row.AddCell().SetString("")
			row.AddCell().SetString("")
		}
	}

	return eris.Wrap(f.Write(w), "xlsx export: write")
}
