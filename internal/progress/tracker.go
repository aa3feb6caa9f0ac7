package progress

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Tracker tracks upload progress in rows
type Tracker struct {
	bar       *progressbar.ProgressBar
	out       io.Writer
	showBar   bool
	total     int64
	current   atomic.Int64
	startTime time.Time
}

// New creates a new progress tracker. With showBar false it only counts.
func New(out io.Writer, showBar bool) *Tracker {
	if out == nil {
		out = os.Stdout
	}
	return &Tracker{
		out:       out,
		showBar:   showBar,
		startTime: time.Now(),
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// SetTotal sets the total number of rows to upload
func (t *Tracker) SetTotal(total int64) {
	t.total = total
	if !t.showBar {
		return
	}
	t.bar = progressbar.NewOptions64(
		total,
		progressbar.OptionSetWriter(t.out),
		progressbar.OptionSetDescription("Uploading"),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("rows"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Total returns the expected row count
func (t *Tracker) Total() int64 {
	return t.total
}

// Add increments the progress counter
func (t *Tracker) Add(n int64) {
	t.current.Add(n)
	if t.bar != nil {
		t.bar.Add64(n)
	}
}

// Current returns the current count
func (t *Tracker) Current() int64 {
	return t.current.Load()
}

// Finish marks the progress as complete
func (t *Tracker) Finish() {
	if t.bar == nil {
		return
	}
	t.bar.Finish()

	elapsed := time.Since(t.startTime)
	rowsPerSec := float64(t.current.Load()) / elapsed.Seconds()

	fmt.Fprintln(t.out)
	fmt.Fprintf(t.out, "Uploaded %d rows in %s (%.0f rows/sec)\n",
		t.current.Load(), elapsed.Round(time.Second), rowsPerSec)
}
