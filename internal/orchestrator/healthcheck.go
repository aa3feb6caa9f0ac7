package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/johndauphine/stageload/internal/driver"
	"github.com/johndauphine/stageload/internal/logging"
)

// checkTimeout bounds the connectivity check.
const checkTimeout = 30 * time.Second

// HealthCheckResult reports whether the sink is reachable and the
// destination tables are ready.
type HealthCheckResult struct {
	Timestamp    string
	TargetDBType string
	Schema       string
	Connected    bool
	Error        string
	LatencyMs    int64
	Tables       []TableCheck
	Healthy      bool
}

// TableCheck describes one destination table.
type TableCheck struct {
	Name     string
	Exists   bool
	Columns  int
	RowCount int64
	Error    string
}

// HealthCheck connects to the sink with the configured credentials and
// inspects every destination table named in load.tables.
func (o *Orchestrator) HealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	d, err := driver.Get(o.config.Target.Type)
	if err != nil {
		return nil, err
	}

	result := &HealthCheckResult{
		Timestamp:    time.Now().Format(time.RFC3339),
		TargetDBType: d.Name(),
		Schema:       o.config.Target.Schema,
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	cfg := o.config.Target.WithCredentials(o.config.ResolveCredentials())
	w, err := d.Open(ctx, cfg)
	result.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	defer w.Close()
	result.Connected = true

	result.Healthy = true
	for _, name := range o.config.Load.Tables {
		tc := TableCheck{Name: name}
		cols, exists, err := w.TableColumns(ctx, o.config.Target.Schema, name)
		switch {
		case err != nil:
			tc.Error = err.Error()
		case exists:
			tc.Exists = true
			tc.Columns = len(cols)
			if tc.RowCount, err = w.RowCount(ctx, o.config.Target.Schema, name); err != nil {
				logging.Warn("Failed to get row count for %s.%s: %v", o.config.Target.Schema, name, err)
			}
		}
		if !tc.Exists {
			result.Healthy = false
		}
		result.Tables = append(result.Tables, tc)
	}
	return result, nil
}

// PrintHealthCheck writes a HealthCheckResult in human readable form.
func (o *Orchestrator) PrintHealthCheck(r *HealthCheckResult) {
	fmt.Fprintf(o.out, "Target (%s): ", r.TargetDBType)
	if !r.Connected {
		fmt.Fprintf(o.out, "FAILED (%dms)\n  %s\n", r.LatencyMs, r.Error)
		return
	}
	fmt.Fprintf(o.out, "OK (%dms)\n", r.LatencyMs)
	for _, t := range r.Tables {
		switch {
		case t.Error != "":
			fmt.Fprintf(o.out, "  %-30s ERROR %s\n", r.Schema+"."+t.Name, t.Error)
		case !t.Exists:
			fmt.Fprintf(o.out, "  %-30s MISSING\n", r.Schema+"."+t.Name)
		default:
			fmt.Fprintf(o.out, "  %-30s OK %d columns, %d rows\n", r.Schema+"."+t.Name, t.Columns, t.RowCount)
		}
	}
}
