package pipeline

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/place-import/internal/model"
	"github.com/sells-group/place-import/internal/queue"
)

func reportState() queue.State {
	return queue.State{Items: []model.QueueItem{
		{Source: model.SourceRow{Title: "dup"}, PlaceID: "p1", Status: model.ItemStatusDuplicate, DuplicateOfID: "rec-old"},
		{Source: model.SourceRow{Title: "Tartine Bakery"}, Status: model.ItemStatusFailed, Error: MsgManualSelection},
		{Source: model.SourceRow{Title: "anns"}, ResolvedName: "Ann's Vintage", PlaceID: "p3", Status: model.ItemStatusCompleted, RecordID: "rec-3"},
	}}
}

func TestBuildReport(t *testing.T) {
	rows := BuildReport(reportState())
	require.Len(t, rows, 3)

	assert.Equal(t, model.ReportRow{Index: 0, Name: "dup", Status: model.ItemStatusDuplicate, PlaceID: "p1", RecordID: "rec-old"}, rows[0])
	assert.Equal(t, MsgManualSelection, rows[1].Error)
	assert.Equal(t, "Ann's Vintage", rows[2].Name)
	assert.Equal(t, "rec-3", rows[2].RecordID)
}

func TestWriteReportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReportCSV(&buf, BuildReport(reportState())))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, reportColumns, records[0])
	assert.Equal(t, []string{"1", "Tartine Bakery", "failed", MsgManualSelection, "", ""}, records[2])
	assert.Equal(t, []string{"2", "Ann's Vintage", "completed", "", "p3", "rec-3"}, records[3])
}

func TestWriteReportXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReportXLSX(&buf, BuildReport(reportState())))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	assert.Equal(t, "Import Report", sheet.Name)
	require.Len(t, sheet.Rows, 4)
	assert.Equal(t, "Status", sheet.Rows[0].Cells[2].String())
	assert.Equal(t, "2", sheet.Rows[3].Cells[0].String())
	assert.Equal(t, "completed", sheet.Rows[3].Cells[2].String())
}

func TestWriteReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReportCSV(&buf, BuildReport(queue.State{})))
	assert.Equal(t, "Index,Name,Status,Error,Place ID,Record ID\n", buf.String())
}
