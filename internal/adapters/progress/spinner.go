package progress

import (
	"context"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// SpinnerProgressReporter shows a spinner while events ask for one and
// prints info and error lines around it
type SpinnerProgressReporter struct {
	out     io.Writer
	spinner *spinner.Spinner
}

// NewSpinnerProgressReporter creates a new spinner-based progress reporter
func NewSpinnerProgressReporter(out io.Writer) *SpinnerProgressReporter {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.HideCursor = false
	_ = s.Color("cyan", "bold")

	return &SpinnerProgressReporter{
		out:     out,
		spinner: s,
	}
}

// OnProgress handles progress events
func (r *SpinnerProgressReporter) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	if event.Spinner {
		r.spinner.Suffix = " " + event.Message
		if !r.spinner.Active() {
			r.spinner.Start()
		}
		return
	}
	r.Stop()
}

// Stop stops the spinner if it is running
func (r *SpinnerProgressReporter) Stop() {
	if r.spinner.Active() {
		r.spinner.Stop()
	}
}

// Info prints an info message
func (r *SpinnerProgressReporter) Info(message string) {
	r.printAround(color.New(color.FgCyan), message)
}

// Error prints an error message
func (r *SpinnerProgressReporter) Error(message string) {
	r.printAround(color.New(color.FgRed), message)
}

// printAround pauses the spinner while a line is printed
func (r *SpinnerProgressReporter) printAround(c *color.Color, message string) {
	wasActive := r.spinner.Active()
	if wasActive {
		r.spinner.Stop()
	}

	c.Fprintln(r.out, message)

	if wasActive {
		r.spinner.Start()
	}
}

// Ensure SpinnerProgressReporter implements ProgressSink
var _ usecase.ProgressSink = (*SpinnerProgressReporter)(nil)
