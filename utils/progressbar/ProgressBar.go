// Package progressbar implements functionality of printing a progress
// bar to the terminal window
package progressbar

import (
	"fmt"
	"strings"
	"time"
)

// ProgressBar implements progress bar functionality that must be
// manually managed. That is, the Display() function must be called
// whenever an updated progress bar should be printed to the screen.
//
// In addition to the bar itself, ProgressBar prints a short status
// annotation after the bar. The annotation is set with Annotate() and
// is used to show the running training cost of the current epoch.
type ProgressBar struct {
	label           string
	width           float64
	maxProgress     float64
	currentProgress float64
	annotation      string
	bar             strings.Builder
	startTime       time.Time
}

// New returns a new ProgressBar with the given label which reaches
// 100% after max calls to Increment()
func New(label string, width, max int) *ProgressBar {
	return &ProgressBar{
		label:           label,
		width:           float64(width),
		maxProgress:     float64(max),
		currentProgress: 0,
		startTime:       time.Now(),
	}
}

// Increment increments the internal progress counter. Each time an
// iteration is performed, Increment should be called.
func (p *ProgressBar) Increment() {
	if p.currentProgress < p.maxProgress {
		p.currentProgress++
	}
}

// Annotate sets the status annotation printed after the bar
func (p *ProgressBar) Annotate(format string, args ...interface{}) {
	p.annotation = fmt.Sprintf(format, args...)
}

// Display displays the progress bar on the screen, overwriting the
// previously displayed bar
func (p *ProgressBar) Display() {
	p.bar.Reset()
	p.bar.Write([]byte(p.label))
	p.bar.Write([]byte(" |"))

	currentProg := p.currentProgress / p.maxProgress * p.width
	for i := 0.0; i < currentProg; i++ {
		p.bar.Write([]byte("█"))
	}
	for i := currentProg; i < p.width; i++ {
		p.bar.Write([]byte(" "))
	}
	p.bar.Write([]byte(fmt.Sprintf("| [%.2f%v | elapsed: %v]",
		p.currentProgress/p.maxProgress*100, "%", time.Since(p.startTime).Truncate(time.Second))))
	if p.annotation != "" {
		p.bar.Write([]byte(" "))
		p.bar.Write([]byte(p.annotation))
	}

	fmt.Printf("\n\033[1A\033[K%v", p.bar.String())
}

// Finish moves the cursor past the bar so that subsequent output
// starts on a fresh line
func (p *ProgressBar) Finish() {
	fmt.Println()
}
