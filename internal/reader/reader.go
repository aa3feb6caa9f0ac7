// Package reader turns a single CSV or JSON file into a table.Table.
package reader

import (
	"fmt"
	"os"
	"strings"

	"github.com/johndauphine/stageload/internal/logging"
	"github.com/johndauphine/stageload/internal/table"
)

// Format identifies how a file is parsed.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options controls parsing. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	QuoteChar  rune   // CSV quote character
	Delimiter  rune   // CSV field separator
	Encoding   string // IANA name of the CSV text encoding
	InferTypes bool   // apply table.Infer to CSV cells
	Debug      bool   // log the path before and after reading
}

// DefaultOptions returns the reader defaults: double-quote quoting, comma
// separated, latin-1 text with type inference on.
func DefaultOptions() Options {
	return Options{
		QuoteChar:  '"',
		Delimiter:  ',',
		Encoding:   "latin-1",
		InferTypes: true,
	}
}

// FormatForPath returns the format implied by a case-sensitive file suffix.
func FormatForPath(path string) (Format, bool) {
	switch {
	case strings.HasSuffix(path, ".csv"):
		return FormatCSV, true
	case strings.HasSuffix(path, ".json"):
		return FormatJSON, true
	}
	return "", false
}

// Read parses the file at path. Any failure is returned as *ReadError.
func Read(path string, format Format, opts Options) (*table.Table, error) {
	if opts.Debug {
		logging.Debug("File Path: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Format: format, Err: err}
	}

	var t *table.Table
	switch format {
	case FormatCSV:
		t, err = parseCSV(data, opts)
	case FormatJSON:
		t, err = parseJSON(data)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, &ReadError{Path: path, Format: format, Err: err}
	}

	if opts.Debug {
		logging.Debug("File path %s read successfully (%d rows, %d columns)", path, t.Len(), len(t.Columns()))
	}
	return t, nil
}
