package cli

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Progress prints a single, self-overwriting status line for batch jobs that
// walk a known number of records, such as audit verify.
//
//	verify: 1500/4000 (38%), 2 flagged, 9120/s
type Progress struct {
	mu      sync.Mutex
	w       io.Writer
	label   string
	total   int64
	done    int64
	flagged int64
	started time.Time
	now     func() time.Time
}

// NewProgress returns a Progress writing to w. Pass io.Discard to silence it.
func NewProgress(w io.Writer, label string) *Progress {
	return &Progress{w: w, label: label, now: time.Now}
}

// Start resets the counters. A zero total disables the status line.
func (p *Progress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total, p.done, p.flagged = total, 0, 0
	p.started = p.now()
	p.render()
}

// Advance records n more processed records, flagged of which were bad.
func (p *Progress) Advance(n, flagged int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done += n
	p.flagged += flagged
	p.render()
}

// Done ends the status line.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.w)
}

// Fail ends the status line with err.
func (p *Progress) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "\n✗ %s failed: %v\n", p.label, err)
}

func (p *Progress) render() {
	if p.total <= 0 {
		return
	}
	pct := min(100, float64(p.done)*100/float64(p.total))

	line := fmt.Sprintf("\r%s: %d/%d (%.0f%%)", p.label, p.done, p.total, pct)
	if p.flagged > 0 {
		line += fmt.Sprintf(", %d flagged", p.flagged)
	}
	if secs := p.now().Sub(p.started).Seconds(); secs > 0 {
		line += fmt.Sprintf(", %.0f/s", float64(p.done)/secs)
	}
	fmt.Fprint(p.w, line)
}
