// Package progress defines the ProgressBar capability interface described
// in spec.md §4.G.1 and a terminal implementation, mirroring the tqdm-style
// contract in original_source's _progressbar.py.
package progress

import (
	"fmt"
	"io"
	"sync"
)

// ProgressBar reports incremental progress over a known total of units.
type ProgressBar interface {
	Add(delta float64)
	Close()
}

// NullBar discards all updates.
type NullBar struct{}

func (NullBar) Add(float64) {}
func (NullBar) Close()      {}

// TerminalBar writes a carriage-return-updated counter to w.
type TerminalBar struct {
	Total float64
	Label string
	W     io.Writer

	mu   sync.Mutex
	done float64
}

// NewTerminalBar constructs a bar that will report against total units.
func NewTerminalBar(total float64, label string, w io.Writer) *TerminalBar {
	return &TerminalBar{Total: total, Label: label, W: w}
}

func (b *TerminalBar) Add(delta float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done += delta
	if b.W == nil {
		return
	}
	pct := 100.0
	if b.Total > 0 {
		pct = (b.done / b.Total) * 100
	}
	fmt.Fprintf(b.W, "\r%s: %.0f/%.0f (%.1f%%)", b.Label, b.done, b.Total, pct)
}

func (b *TerminalBar) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.W != nil {
		fmt.Fprintln(b.W)
	}
}
