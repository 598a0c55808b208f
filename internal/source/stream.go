package source

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser. The zero value reads
// comma-separated exports with lenient quoting.
type CSVOptions struct {
	Delimiter    rune // default ','
	Comment      rune // comment character (0 = none)
	StrictQuotes bool
}

// ParseCSVOptions builds options from flag-style strings. "tab" and `\t`
// both select a tab delimiter; an empty comment disables comments.
func ParseCSVOptions(delimiter, comment string, strictQuotes bool) (CSVOptions, error) {
	opts := CSVOptions{StrictQuotes: strictQuotes}

	d, err := singleRune("delimiter", delimiter)
	if err != nil {
		return opts, err
	}
	c, err := singleRune("comment", comment)
	if err != nil {
		return opts, err
	}
	switch {
	case d == '"' || d == '\r' || d == '\n' || d == utf8.RuneError:
		return opts, eris.Errorf("csv: invalid delimiter %q", delimiter)
	case c != 0 && (c == d || c == '"' || c == '\r' || c == '\n' || c == utf8.RuneError):
		return opts, eris.Errorf("csv: invalid comment character %q", comment)
	}
	opts.Delimiter, opts.Comment = d, c
	return opts, nil
}

func singleRune(name, s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, eris.Errorf("csv: %s must be a single character, got %q", name, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// Record is one parsed CSV record and the physical line it starts on.
type Record struct {
	Line   int
	Fields []string
}

// StreamCSV reads records from r and sends them to a channel, header
// included. Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Record, <-chan error) {
	rowCh := make(chan Record, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = !opts.StrictQuotes
		reader.FieldsPerRecord = -1 // exports often drop trailing empty columns

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			fields, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			line, _ := reader.FieldPos(0)

			select {
			case rowCh <- Record{Line: line, Fields: fields}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
