// Package export renders comparison results to XLSX workbooks.
package export

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/benchmark-cli/internal/model"
)

// WriteComparison writes one workbook: a matrix sheet with banks as columns
// and criteria as rows, plus a sources sheet. Banks and criteria carry the
// display names; the result data is keyed by slug.
func WriteComparison(result *model.ComparisonResult, banks []model.Bank, criteria []model.Criterion, path string) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("Comparison")
	if err != nil {
		return eris.Wrap(err, "export: add comparison sheet")
	}

	meta := sheet.AddRow()
	meta.AddCell().SetString("Product")
	meta.AddCell().SetString(result.Product)
	meta.AddCell().SetString("Date")
	meta.AddCell().SetString(result.Date.Format(time.RFC3339))
	if result.Note != "" {
		meta.AddCell().SetString("Note")
		meta.AddCell().SetString(result.Note)
	}
	sheet.AddRow()

	header := sheet.AddRow()
	header.AddCell().SetString("Criterion")
	for _, b := range banks {
		header.AddCell().SetString(b.Name)
	}

	for _, c := range criteria {
		row := sheet.AddRow()
		row.AddCell().SetString(c.Name)
		for _, b := range banks {
			row.AddCell().SetString(cellText(result, b.ID, c.ID))
		}
	}

	if len(result.Sources) > 0 {
		srcSheet, err := f.AddSheet("Sources")
		if err != nil {
			return eris.Wrap(err, "export: add sources sheet")
		}
		srcHeader := srcSheet.AddRow()
		srcHeader.AddCell().SetString("Name")
		srcHeader.AddCell().SetString("URL")
		srcHeader.AddCell().SetString("Description")
		for _, src := range result.Sources {
			row := srcSheet.AddRow()
			row.AddCell().SetString(src.Name)
			row.AddCell().SetString(src.URL)
			row.AddCell().SetString(src.Description)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func cellText(result *model.ComparisonResult, bankID, criterionID string) string {
	value := result.Data[bankID][criterionID]
	text := "No"
	if value {
		text = "Yes"
	}
	if conf, ok := result.Confidence[bankID+"."+criterionID]; ok {
		return fmt.Sprintf("%s (%.2f)", text, conf)
	}
	return text
}
