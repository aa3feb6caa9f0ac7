package reader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/johndauphine/stageload/internal/table"
)

// csvRecord is one logical CSV record with the line it started on.
type csvRecord struct {
	line   int
	fields []string
}

// splitCSV tokenizes text into records. It is a small RFC 4180 reader that,
// unlike encoding/csv, accepts an arbitrary quote character. A quote only
// opens a quoted field at the start of a field; a doubled quote inside a
// quoted field is a literal quote. Unquoted blank lines are skipped.
func splitCSV(text string, delim, quote rune) ([]csvRecord, error) {
	var (
		records   []csvRecord
		fields    []string
		field     strings.Builder
		line      = 1
		start     = 1
		inQuote   bool
		quoted    bool // current field was opened with a quote
		recQuoted bool // some field of the current record was quoted
		atStart   = true
	)

	endField := func() {
		fields = append(fields, field.String())
		field.Reset()
		recQuoted = recQuoted || quoted
		quoted = false
		atStart = true
	}
	endRecord := func() {
		endField()
		if !(len(fields) == 1 && fields[0] == "" && !recQuoted) {
			records = append(records, csvRecord{line: start, fields: fields})
		}
		fields = nil
		recQuoted = false
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if inQuote {
			switch {
			case r == quote && i+1 < len(runes) && runes[i+1] == quote:
				field.WriteRune(quote)
				i++
			case r == quote:
				inQuote = false
			default:
				if r == '\n' {
					line++
				}
				field.WriteRune(r)
			}
			continue
		}

		switch {
		case r == quote && atStart:
			inQuote = true
			quoted = true
			atStart = false
		case r == delim:
			endField()
		case r == '\r' || r == '\n':
			if r == '\r' && i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			endRecord()
			line++
			start = line
		default:
			field.WriteRune(r)
			atStart = false
		}
	}

	if inQuote {
		return nil, &ParseError{Line: start, Msg: "unterminated quoted field"}
	}
	if field.Len() > 0 || len(fields) > 0 || quoted {
		endRecord()
	}
	return records, nil
}

func parseCSV(data []byte, opts Options) (*table.Table, error) {
	text, err := decodeText(data, opts.Encoding)
	if err != nil {
		return nil, err
	}

	quote, delim := opts.QuoteChar, opts.Delimiter
	if quote == 0 {
		quote = '"'
	}
	if delim == 0 {
		delim = ','
	}
	if quote == delim {
		return nil, errors.New("quote character and delimiter must differ")
	}

	records, err := splitCSV(text, delim, quote)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("no columns to parse from file")
	}

	header := dedupeHeader(records[0].fields)
	infer := table.InferText
	if opts.InferTypes {
		infer = table.Infer
	}

	t := table.New(header...)
	for _, rec := range records[1:] {
		if len(rec.fields) > len(header) {
			return nil, &ParseError{
				Line: rec.line,
				Msg:  fmt.Sprintf("expected %d fields, saw %d", len(header), len(rec.fields)),
			}
		}
		values := make([]any, len(header))
		for i, f := range rec.fields {
			values[i] = infer(f)
		}
		if err := t.AppendValues(header, values); err != nil {
			return nil, &ParseError{Line: rec.line, Msg: err.Error()}
		}
	}
	return t, nil
}

// dedupeHeader names blank headers "Unnamed: i" and suffixes repeats as
// name.1, name.2, ...
func dedupeHeader(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	counts := make(map[string]int, len(raw))
	for i, name := range raw {
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		candidate := name
		for seen[candidate] {
			counts[name]++
			candidate = fmt.Sprintf("%s.%d", name, counts[name])
		}
		seen[candidate] = true
		out[i] = candidate
	}
	return out
}
