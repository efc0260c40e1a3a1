package ui

import (
	"fmt"
	"strings"
)

const (
	progressBar   = "█"
	progressEmpty = "░"
	barWidth      = 30
)

// Progress renders a single-line progress bar for one scraping pass, the
// terminal counterpart of the per-channel counters in the log stream.
type Progress struct {
	label   string
	total   int
	current int
}

// NewProgress creates a progress bar with a fixed expected total.
func NewProgress(label string, total int) *Progress {
	p := &Progress{label: label, total: total}
	p.render()
	return p
}

// Add advances the bar by n items.
func (p *Progress) Add(n int) {
	p.current += n
	if p.total > 0 && p.current > p.total {
		p.current = p.total
	}
	p.render()
}

// Done finishes the line.
func (p *Progress) Done() {
	if quietMode {
		return
	}
	fmt.Println()
}

func (p *Progress) render() {
	if quietMode || p.total <= 0 {
		return
	}

	filled := p.current * barWidth / p.total
	bar := strings.Repeat(progressBar, filled) + strings.Repeat(progressEmpty, barWidth-filled)
	fmt.Printf("\r%s [%s] %d/%d", p.label, bar, p.current, p.total)
}
