package history

import "time"

// Run statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Backend defines the interface for run history persistence.
type Backend interface {
	// Run management
	StartRun(dataDir string) (string, error)
	RecordCollect(runID string, csvRows, jsonRows int64) error
	RecordLoad(runID, table string, rows int64) error
	CompleteRun(runID, status, errorMsg string) error

	// History
	ListRuns(limit int) ([]Run, error)
	GetRun(runID string) (*Run, error)

	// Lifecycle
	Close() error
}

// Ensure State implements Backend
var _ Backend = (*State)(nil)

// Run is one recorded invocation.
type Run struct {
	ID          string
	StartedAt   time.Time
	CompletedAt *time.Time
	DataDir     string
	Status      string
	CSVRows     int64
	JSONRows    int64
	Error       string

	// Loads maps destination table name to rows written.
	Loads map[string]int64
}

// Duration returns how long the run took, or how long it has been running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
