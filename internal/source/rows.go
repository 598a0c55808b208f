// Package source turns exported place lists into source rows for the
// import queue. Two export shapes are accepted: a full shape carrying
// address, coordinates and identifier columns, and a simple shape with only
// a title and a map URL.
package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/place-import/internal/model"
)

// Shape identifies which export layout a header describes.
type Shape string

const (
	ShapeFull   Shape = "full"
	ShapeSimple Shape = "simple"
)

// RowError reports a row that was dropped because it is incomplete.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return "line " + strconv.Itoa(e.Line) + ": " + e.Message
}

// Result is the outcome of reading one export.
type Result struct {
	Shape   Shape
	Rows    []model.SourceRow
	Errors  []RowError
	Skipped int // blank rows dropped without an error
}

var placeIDPattern = regexp.MustCompile(`(?:place_id[:=]|query_place_id=)([A-Za-z0-9_-]+)`)

// PlaceIDFromURL extracts a place identifier embedded in a map URL.
func PlaceIDFromURL(u string) string {
	m := placeIDPattern.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	return m[1]
}

const (
	colTitle = iota
	colAddress
	colLatitude
	colLongitude
	colPlaceID
	colURL
	colNote
	numCols
)

var headerAliases = map[string]int{
	"title":           colTitle,
	"name":            colTitle,
	"address":         colAddress,
	"latitude":        colLatitude,
	"lat":             colLatitude,
	"longitude":       colLongitude,
	"lng":             colLongitude,
	"lon":             colLongitude,
	"place_id":        colPlaceID,
	"placeid":         colPlaceID,
	"google_place_id": colPlaceID,
	"url":             colURL,
	"google_maps_url": colURL,
	"maps_url":        colURL,
	"note":            colNote,
	"notes":           colNote,
	"comment":         colNote,
}

// columns maps a logical column to its index in the record, or -1.
type columns [numCols]int

func mapHeader(header []string) (columns, Shape, error) {
	var cols columns
	for i := range cols {
		cols[i] = -1
	}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
		if c, ok := headerAliases[key]; ok && cols[c] < 0 {
			cols[c] = i
		}
	}
	if cols[colTitle] < 0 {
		return cols, "", eris.New("source: header has no title or name column")
	}

	shape := ShapeSimple
	if cols[colAddress] >= 0 || cols[colLatitude] >= 0 || cols[colLongitude] >= 0 || cols[colPlaceID] >= 0 {
		shape = ShapeFull
	} else if cols[colURL] < 0 {
		return cols, "", eris.New("source: header has neither url nor place id columns")
	}
	return cols, shape, nil
}

func (c columns) get(rec []string, col int) string {
	i := c[col]
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// parser accumulates rows and row errors from records following a header.
type parser struct {
	cols columns
	res  Result
}

func (p *parser) add(line int, rec []string) {
	row := model.SourceRow{
		Line:    line,
		Title:   p.cols.get(rec, colTitle),
		Address: p.cols.get(rec, colAddress),
		URL:     p.cols.get(rec, colURL),
		PlaceID: p.cols.get(rec, colPlaceID),
		Note:    p.cols.get(rec, colNote),
	}
	if row.PlaceID == "" && row.URL != "" {
		row.PlaceID = PlaceIDFromURL(row.URL)
	}

	hasRef := row.PlaceID != "" || row.URL != ""
	switch {
	case row.Title == "" && !hasRef:
		p.res.Skipped++
		return
	case row.Title == "":
		p.res.Errors = append(p.res.Errors, RowError{Line: line, Message: "missing title"})
		return
	case !hasRef:
		p.res.Errors = append(p.res.Errors, RowError{Line: line, Message: "missing url or place id"})
		return
	}

	lat, lng := p.cols.get(rec, colLatitude), p.cols.get(rec, colLongitude)
	if lat != "" && lng != "" {
		la, err1 := strconv.ParseFloat(lat, 64)
		lo, err2 := strconv.ParseFloat(lng, 64)
		if err1 != nil || err2 != nil || la < -90 || la > 90 || lo < -180 || lo > 180 {
			p.res.Errors = append(p.res.Errors, RowError{Line: line, Message: "invalid coordinates"})
			return
		}
		row.Latitude, row.Longitude = &la, &lo
	}

	p.res.Rows = append(p.res.Rows, row)
}

// ReadCSV reads a CSV export. Incomplete rows are reported in
// Result.Errors and do not abort the read. Row and error line numbers are
// the physical line each record starts on.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) (*Result, error) {
	rowCh, errCh := StreamCSV(ctx, r, opts)

	var p *parser
	for rec := range rowCh {
		if p == nil {
			cols, shape, err := mapHeader(rec.Fields)
			if err != nil {
				for range rowCh {
				}
				return nil, err
			}
			p = &parser{cols: cols, res: Result{Shape: shape}}
			continue
		}
		p.add(rec.Line, rec.Fields)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "source: read csv")
	}
	if p == nil {
		return nil, eris.New("source: empty export")
	}
	return &p.res, nil
}

// ReadXLSX reads the first sheet of an XLSX export.
func ReadXLSX(path string) (*Result, error) {
	records, err := readXLSX(path)
	if err != nil {
		return nil, eris.Wrap(err, "source: read xlsx")
	}
	if len(records) == 0 {
		return nil, eris.New("source: empty export")
	}

	cols, shape, err := mapHeader(records[0])
	if err != nil {
		return nil, err
	}
	p := &parser{cols: cols, res: Result{Shape: shape}}
	for i, rec := range records[1:] {
		p.add(i+2, rec)
	}
	return &p.res, nil
}

// ReadFile reads a CSV or XLSX export chosen by file extension. opts only
// applies to CSV files.
func ReadFile(ctx context.Context, path string, opts CSVOptions) (*Result, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ReadCSV(ctx, f, opts)
}
