// Package progress draws a terminal progress bar while files are analyzed.
package progress

import (
	"fmt"
	"io"

	"github.com/panbanda/c3ms/pkg/analyzer"
	"github.com/schollz/progressbar/v3"
)

// Bar wraps a progress bar for file processing.
type Bar struct {
	bar   *progressbar.ProgressBar
	out   io.Writer
	label string
}

// New creates a progress bar with the given label and file count, drawn on out.
func New(label string, total int, out io.Writer) *Bar {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Bar{bar: bar, out: out, label: label}
}

// Tracker returns an analyzer.Tracker that advances the bar.
func (b *Bar) Tracker() *analyzer.Tracker {
	t := analyzer.NewTracker(func(current, total int, path string) {
		_ = b.bar.Set(current)
	})
	t.SetTotal(b.bar.GetMax())
	return t
}

// Finish clears the bar and, when some files failed, prints how many.
func (b *Bar) Finish(failed int) {
	_ = b.bar.Finish()
	_ = b.bar.Clear()
	if failed > 0 {
		fmt.Fprintf(b.out, "  %s: %d file(s) skipped\n", b.label, failed)
	}
}
