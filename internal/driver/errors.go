package driver

import "fmt"

// ConnectionError reports a sink that is unreachable or rejected the
// credentials.
type ConnectionError struct {
	DBType string
	Host   string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("connecting to %s: %v", e.DBType, e.Err)
	}
	return fmt.Sprintf("connecting to %s at %s: %v", e.DBType, e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// WriteError reports an insert-time failure. RowsCommitted is how many rows
// of the table are durably in the destination after the failure.
type WriteError struct {
	Table         string
	RowsCommitted int64
	Err           error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s (%d rows committed): %v", e.Table, e.RowsCommitted, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
