package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/arflow/internal/ir"
)

// Table is a series read from a (timestamp, value) source.
type Table struct {
	Timestamps []string
	Series     ir.TimeSeries
}

// absentTokens are the cell spellings treated as an absent value.
var absentTokens = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"null": true,
}

// ReadCSV reads (timestamp, value) rows. The first row is a header when its
// value cell is not numeric and starts with a letter; any other unparsable
// value is an error. Empty or NA value cells become missing observations.
func ReadCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		table  Table
		values []float64
		mask   []bool
		line   int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read csv: %w", err)
		}
		line++

		if len(record) < 2 {
			return Table{}, fmt.Errorf("read csv: line %d: expected timestamp and value columns, got %d", line, len(record))
		}
		cell := strings.TrimSpace(record[1])
		if absentTokens[strings.ToLower(cell)] {
			table.Timestamps = append(table.Timestamps, record[0])
			values = append(values, 0)
			mask = append(mask, true)
			continue
		}

		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			if line == 1 && looksLikeHeader(cell) {
				continue
			}
			return Table{}, fmt.Errorf("read csv: line %d: parse value %q: %w", line, cell, err)
		}
		table.Timestamps = append(table.Timestamps, record[0])
		values = append(values, v)
		mask = append(mask, false)
	}

	ts, err := EncodeMask(values, mask)
	if err != nil {
		return Table{}, fmt.Errorf("read csv: %w", err)
	}
	table.Series = ts
	return table, nil
}

// WriteCSV writes ts as (index, value) rows with a header. Missing
// observations are written as empty cells.
func WriteCSV(w io.Writer, ts ir.TimeSeries) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"t", "value"}); err != nil {
		return err
	}
	for t := 0; t < ts.Len(); t++ {
		cell := ""
		if o := ts.At(t); o.Present {
			cell = strconv.FormatFloat(o.Value, 'g', -1, 64)
		}
		if err := writer.Write([]string{strconv.Itoa(t), cell}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// looksLikeHeader reports whether an unparsable first-row cell is a column
// name rather than a malformed number.
func looksLikeHeader(cell string) bool {
	r, _ := utf8.DecodeRuneInString(cell)
	return unicode.IsLetter(r)
}
