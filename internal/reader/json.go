package reader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/johndauphine/stageload/internal/table"
)

// object is a JSON object that remembers key order.
type object struct {
	keys []string
	vals map[string]any
}

func decodeOrdered(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := &object{vals: make(map[string]any)}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("expected object key, got %v", kt)
				}
				v, err := decodeOrdered(dec)
				if err != nil {
					return nil, err
				}
				if _, dup := obj.vals[key]; !dup {
					obj.keys = append(obj.keys, key)
				}
				obj.vals[key] = v
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			var arr []any
			for dec.More() {
				v, err := decodeOrdered(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			if arr == nil {
				arr = []any{}
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	default:
		return tok, nil
	}
}

// column is one top-level JSON column with its cells keyed by row label.
type column struct {
	name  string
	cells map[string]any
}

func parseJSON(data []byte) (*table.Table, error) {
	if !utf8.Valid(data) {
		return nil, errors.New("invalid UTF-8 byte sequence")
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty JSON document")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	root, err := decodeOrdered(dec)
	if err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("malformed JSON: trailing data after top-level value")
	}

	var (
		cols   []column
		labels []string
	)
	switch v := root.(type) {
	case *object:
		cols, labels, err = columnsFromObject(v)
	case []any:
		cols, labels, err = columnsFromRecords(v)
	default:
		err = fmt.Errorf("top-level JSON value must be an object or array, got %T", root)
	}
	if err != nil {
		return nil, err
	}
	return flatten(cols, labels), nil
}

// columnsFromObject reads the columnar layout: every key is a column whose
// value is an array of per-row values or an object keyed by row label.
func columnsFromObject(root *object) ([]column, []string, error) {
	var labels []string
	seen := make(map[string]bool)
	addLabel := func(l string) {
		if !seen[l] {
			seen[l] = true
			labels = append(labels, l)
		}
	}

	cols := make([]column, 0, len(root.keys))
	for _, key := range root.keys {
		c := column{name: key, cells: make(map[string]any)}
		switch v := root.vals[key].(type) {
		case []any:
			for i, cell := range v {
				l := strconv.Itoa(i)
				addLabel(l)
				c.cells[l] = cell
			}
		case *object:
			for _, l := range v.keys {
				addLabel(l)
				c.cells[l] = v.vals[l]
			}
		default:
			return nil, nil, fmt.Errorf("column %q: expected array or object of row values, got scalar", key)
		}
		cols = append(cols, c)
	}
	return cols, labels, nil
}

// columnsFromRecords reads an array of row objects.
func columnsFromRecords(records []any) ([]column, []string, error) {
	var cols []column
	index := make(map[string]int)
	labels := make([]string, 0, len(records))

	for i, rec := range records {
		obj, ok := rec.(*object)
		if !ok {
			return nil, nil, fmt.Errorf("record %d: expected object, got %T", i, rec)
		}
		l := strconv.Itoa(i)
		labels = append(labels, l)
		for _, key := range obj.keys {
			ci, ok := index[key]
			if !ok {
				ci = len(cols)
				index[key] = ci
				cols = append(cols, column{name: key, cells: make(map[string]any)})
			}
			cols[ci].cells[l] = obj.vals[key]
		}
	}
	return cols, labels, nil
}

// flatten expands every column whose present cells are all objects into one
// column per nested field named <column><field>. Other columns pass through
// unchanged. Only one level is expanded.
func flatten(cols []column, labels []string) *table.Table {
	var (
		names []string
		taken = make(map[string]int)
		// getters produce the cell for a row label, aligned with names
		getters []func(label string) any
	)
	addName := func(n string) {
		base := n
		for {
			if _, dup := taken[n]; !dup {
				break
			}
			taken[base]++
			n = base + "." + strconv.Itoa(taken[base])
		}
		taken[n] = 0
		names = append(names, n)
	}

	for _, c := range cols {
		fields, nested := nestedFields(c, labels)
		if !nested {
			addName(c.name)
			getters = append(getters, func(l string) any { return jsonScalar(c.cells[l]) })
			continue
		}
		for _, f := range fields {
			addName(c.name + f)
			getters = append(getters, func(l string) any {
				obj, ok := c.cells[l].(*object)
				if !ok {
					return nil
				}
				return jsonScalar(obj.vals[f])
			})
		}
	}

	t := table.New(names...)
	for _, l := range labels {
		values := make([]any, len(names))
		for i, get := range getters {
			values[i] = get(l)
		}
		// lengths always match here
		_ = t.AppendValues(names, values)
	}
	return t
}

// nestedFields returns the first-seen union of nested keys when every present
// cell of c is an object.
func nestedFields(c column, labels []string) ([]string, bool) {
	var (
		fields  []string
		seen    = make(map[string]bool)
		present bool
	)
	for _, l := range labels {
		cell, ok := c.cells[l]
		if !ok || cell == nil {
			continue
		}
		obj, isObj := cell.(*object)
		if !isObj {
			return nil, false
		}
		present = true
		for _, k := range obj.keys {
			if !seen[k] {
				seen[k] = true
				fields = append(fields, k)
			}
		}
	}
	return fields, present
}

// jsonScalar converts a decoded value into the table's value space. Numbers
// become int64 when integral and in range, else float64. Deeper objects are
// kept embedded as map[string]any.
func jsonScalar(v any) any {
	switch x := v.(type) {
	case json.Number:
		s := x.String()
		if !strings.ContainsAny(s, ".eE") {
			if n, err := x.Int64(); err == nil {
				return n
			}
		}
		f, err := x.Float64()
		if err != nil {
			return s
		}
		return f
	case *object:
		m := make(map[string]any, len(x.keys))
		for _, k := range x.keys {
			m[k] = jsonScalar(x.vals[k])
		}
		return m
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = jsonScalar(e)
		}
		return out
	default:
		return v
	}
}
