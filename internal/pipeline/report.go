package pipeline

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/place-import/internal/model"
	"github.com/sells-group/place-import/internal/queue"
)

// reportColumns defines the ordered report columns.
var reportColumns = []string{
	"Index",
	"Name",
	"Status",
	"Error",
	"Place ID",
	"Record ID",
}

// BuildReport returns one row per item in queue order.
func BuildReport(s queue.State) []model.ReportRow {
	rows := make([]model.ReportRow, len(s.Items))
	for i, it := range s.Items {
		rows[i] = model.ReportRow{
			Index:    i,
			Name:     it.DisplayName(),
			Status:   it.Status,
			Error:    it.Error,
			PlaceID:  it.PlaceID,
			RecordID: it.RecordID,
		}
		if it.Status == model.ItemStatusDuplicate {
			rows[i].RecordID = it.DuplicateOfID
		}
	}
	return rows
}

func reportRecord(r model.ReportRow) []string {
	return []string{
		strconv.Itoa(r.Index),
		r.Name,
		string(r.Status),
		r.Error,
		r.PlaceID,
		r.RecordID,
	}
}

// WriteReportCSV writes rows as CSV with a header line.
func WriteReportCSV(w io.Writer, rows []model.ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportColumns); err != nil {
		return eris.Wrap(err, "report: write header")
	}
	for _, r := range rows {
		if err := cw.Write(reportRecord(r)); err != nil {
			return eris.Wrap(err, "report: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush")
}

// WriteReportXLSX writes rows as a single-sheet workbook.
func WriteReportXLSX(w io.Writer, rows []model.ReportRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Import Report")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, c := range reportColumns {
		header.AddCell().SetString(c)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetInt(r.Index)
		for _, v := range reportRecord(r)[1:] {
			row.AddCell().SetString(v)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write xlsx")
	}
	return nil
}
