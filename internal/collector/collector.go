// Package collector scans a data directory and concatenates every CSV and
// JSON file it finds into one aggregate table per type.
package collector

import (
	"os"
	"path/filepath"

	"github.com/johndauphine/stageload/internal/logging"
	"github.com/johndauphine/stageload/internal/reader"
	"github.com/johndauphine/stageload/internal/table"
)

// Result holds the two aggregates of one scan. Either may be empty.
type Result struct {
	CSV  *table.Table
	JSON *table.Table

	CSVFiles  []string
	JSONFiles []string
}

// Named returns the aggregates paired with their logical table names.
func (r *Result) Named() []table.Named {
	return []table.Named{
		{Name: table.CSVName, Table: r.CSV},
		{Name: table.JSONName, Table: r.JSON},
	}
}

// Options configures a scan.
type Options struct {
	Reader reader.Options
	Debug  bool
}

// Collect lists dir (non-recursively), reads every ".csv" and ".json" file in
// name order and returns the per-type aggregates. Each row gets a file_name
// column holding its file's path relative to dir. The first read failure
// aborts the scan.
func Collect(dir string, opts Options) (*Result, error) {
	ropts := opts.Reader
	ropts.Debug = ropts.Debug || opts.Debug

	if opts.Debug {
		logging.Debug("Scanning data directory %s", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &reader.ReadError{Path: dir, Format: "directory", Err: err}
	}

	res := &Result{}
	for _, e := range entries {
		if !isFile(dir, e) {
			continue
		}
		switch format, _ := reader.FormatForPath(e.Name()); format {
		case reader.FormatCSV:
			res.CSVFiles = append(res.CSVFiles, e.Name())
		case reader.FormatJSON:
			res.JSONFiles = append(res.JSONFiles, e.Name())
		}
	}
	if opts.Debug {
		logging.Debug("CSV paths: %v", res.CSVFiles)
		logging.Debug("JSON paths: %v", res.JSONFiles)
	}

	if res.CSV, err = aggregate(dir, res.CSVFiles, reader.FormatCSV, ropts); err != nil {
		return nil, err
	}
	if res.JSON, err = aggregate(dir, res.JSONFiles, reader.FormatJSON, ropts); err != nil {
		return nil, err
	}

	if opts.Debug {
		logging.Debug("CSV aggregate: %d rows, %d columns", res.CSV.Len(), len(res.CSV.Columns()))
		logging.Debug("JSON aggregate: %d rows, %d columns", res.JSON.Len(), len(res.JSON.Columns()))
	}
	return res, nil
}

// isFile reports whether e is a regular file, following symlinks.
func isFile(dir string, e os.DirEntry) bool {
	if e.Type()&os.ModeSymlink == 0 {
		return e.Type().IsRegular()
	}
	fi, err := os.Stat(filepath.Join(dir, e.Name()))
	if err != nil {
		logging.Warn("Skipping %s: %v", e.Name(), err)
		return false
	}
	return fi.Mode().IsRegular()
}

func aggregate(dir string, names []string, format reader.Format, opts reader.Options) (*table.Table, error) {
	agg := table.New()
	for _, name := range names {
		t, err := reader.Read(filepath.Join(dir, name), format, opts)
		if err != nil {
			return nil, err
		}
		t.SetConstant(table.FileNameColumn, filepath.ToSlash(name))
		agg.Concat(t)
	}
	return agg, nil
}
