// Package orchestrator runs the collect and load steps and records them in
// the run history.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/johndauphine/stageload/internal/collector"
	"github.com/johndauphine/stageload/internal/config"
	"github.com/johndauphine/stageload/internal/history"
	"github.com/johndauphine/stageload/internal/loader"
	"github.com/johndauphine/stageload/internal/logging"
	"github.com/johndauphine/stageload/internal/notify"
	"github.com/johndauphine/stageload/internal/progress"
	"github.com/johndauphine/stageload/internal/table"
)

// Orchestrator coordinates one stageload invocation.
type Orchestrator struct {
	config   *config.Config
	state    history.Backend
	notifier *notify.Notifier
	out      io.Writer
}

// Options configures optional collaborators.
type Options struct {
	// Out receives summaries and the progress bar (default os.Stdout).
	Out io.Writer

	// State overrides the history backend opened from config.
	State history.Backend
}

// New creates an orchestrator. When history is enabled the history database
// is opened here.
func New(cfg *config.Config, opts Options) (*Orchestrator, error) {
	o := &Orchestrator{
		config:   cfg,
		state:    opts.State,
		notifier: notify.New(&cfg.Notify.Slack),
		out:      opts.Out,
	}
	if o.out == nil {
		o.out = os.Stdout
	}
	if o.state == nil && cfg.HistoryEnabled() {
		state, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		o.state = state
	}
	return o, nil
}

// Close releases the history database.
func (o *Orchestrator) Close() error {
	if o.state == nil {
		return nil
	}
	return o.state.Close()
}

// RunResult is the outcome of Run.
type RunResult struct {
	RunID     string
	Collected *collector.Result
	Loaded    map[string]int64
}

// Collect reads the data directory into the two aggregates.
func (o *Orchestrator) Collect() (*collector.Result, error) {
	res, err := collector.Collect(o.config.DataDir, collector.Options{
		Reader: o.config.ReaderOptions(),
		Debug:  logging.IsDebug() || o.config.Reader.Debug,
	})
	if err != nil {
		return nil, err
	}
	logging.Info("Collected %d CSV rows from %d files and %d JSON rows from %d files",
		res.CSV.Len(), len(res.CSVFiles), res.JSON.Len(), len(res.JSONFiles))
	return res, nil
}

// Run collects the data directory and, when loading is enabled, uploads the
// configured aggregates. The run is recorded in history either way.
func (o *Orchestrator) Run(ctx context.Context) (result *RunResult, err error) {
	result = &RunResult{Loaded: make(map[string]int64)}
	start := time.Now()

	if o.state != nil {
		id, serr := o.state.StartRun(o.config.DataDir)
		if serr != nil {
			logging.Warn("Run history unavailable: %v", serr)
		} else {
			result.RunID = id
			defer func() { o.completeRun(id, err) }()
		}
	}

	o.notify(o.notifier.RunStarted(result.RunID, o.config.DataDir))
	defer func() {
		elapsed := time.Since(start)
		if err != nil {
			o.notify(o.notifier.RunFailed(result.RunID, err, elapsed))
			return
		}
		var csvRows, jsonRows int64
		if result.Collected != nil {
			csvRows, jsonRows = int64(result.Collected.CSV.Len()), int64(result.Collected.JSON.Len())
		}
		o.notify(o.notifier.RunCompleted(result.RunID, start, elapsed, csvRows, jsonRows, result.Loaded))
	}()

	res, err := o.Collect()
	if err != nil {
		return result, err
	}
	result.Collected = res
	if result.RunID != "" {
		if err := o.state.RecordCollect(result.RunID, int64(res.CSV.Len()), int64(res.JSON.Len())); err != nil {
			logging.Warn("Failed to record collection: %v", err)
		}
	}

	if !o.config.LoadEnabled() {
		logging.Info("Loading disabled, skipping upload")
		return result, nil
	}

	if err := o.load(ctx, res, result); err != nil {
		return result, err
	}
	return result, nil
}

func (o *Orchestrator) load(ctx context.Context, res *collector.Result, result *RunResult) error {
	var tables []table.Named
	var total int64
	for _, nt := range res.Named() {
		if !o.config.LoadsTable(nt.Name) {
			logging.Debug("Skipping %s: not in load.tables", nt.Name)
			continue
		}
		tables = append(tables, nt)
		total += int64(nt.Table.Len())
	}

	prog := progress.New(o.out, o.config.ProgressEnabled() && progress.IsTerminal(os.Stdout))
	prog.SetTotal(total)

	opts := o.config.LoaderOptions()
	opts.Progress = prog
	l, err := loader.New(&o.config.Target, opts)
	if err != nil {
		return err
	}

	creds := o.config.ResolveCredentials()
	for _, nt := range tables {
		n, err := l.Load(ctx, nt, creds)
		if n > 0 || err == nil {
			result.Loaded[nt.Name] = n
			o.recordLoad(result.RunID, nt.Name, n)
		}
		if err != nil {
			return err
		}
	}
	prog.Finish()
	return nil
}

func (o *Orchestrator) recordLoad(runID, name string, n int64) {
	if runID == "" {
		return
	}
	if err := o.state.RecordLoad(runID, name, n); err != nil {
		logging.Warn("Failed to record load of %s: %v", name, err)
	}
}

// notify logs a failed notification; it never fails the run.
func (o *Orchestrator) notify(err error) {
	if err != nil {
		logging.Warn("Slack notification failed: %v", err)
	}
}

func (o *Orchestrator) completeRun(runID string, err error) {
	status, msg := history.StatusSuccess, ""
	if err != nil {
		status, msg = history.StatusFailed, err.Error()
	}
	if cerr := o.state.CompleteRun(runID, status, msg); cerr != nil {
		logging.Warn("Failed to record run completion: %v", cerr)
	}
}

// PrintSummary writes a per-aggregate overview of a collection.
func (o *Orchestrator) PrintSummary(res *collector.Result) {
	files := map[string][]string{table.CSVName: res.CSVFiles, table.JSONName: res.JSONFiles}
	for _, nt := range res.Named() {
		fmt.Fprintf(o.out, "%s: %d rows, %d columns from %d files\n",
			nt.Name, nt.Table.Len(), len(nt.Table.Columns()), len(files[nt.Name]))
		if cols := nt.Table.Columns(); len(cols) > 0 {
			fmt.Fprintf(o.out, "  columns: %s\n", strings.Join(cols, ", "))
		}
		for _, f := range files[nt.Name] {
			fmt.Fprintf(o.out, "  %s\n", f)
		}
	}
}
