package logging

import (
	"strings"
	"sync"
)

// TailSize is how many lines a Tail keeps.
const TailSize = 50

// Tail is an io.Writer that keeps the most recent lines written to it.
type Tail struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

// ServerTail holds recent server log lines for the page's status bar.
var ServerTail = NewTail(TailSize)

// EventTail holds recent event log lines.
var EventTail = NewTail(TailSize)

// NewTail creates a Tail holding up to size lines.
func NewTail(size int) *Tail {
	return &Tail{lines: make([]string, max(size, 1))}
}

// Write implements io.Writer. Each call is one line.
func (t *Tail) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\r\n")
	t.mu.Lock()
	t.lines[t.next] = line
	t.next = (t.next + 1) % len(t.lines)
	if t.next == 0 {
		t.full = true
	}
	t.mu.Unlock()
	return len(p), nil
}

// Last returns the most recent line, or "" when nothing was written.
func (t *Tail) Last() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.full && t.next == 0 {
		return ""
	}
	return t.lines[(t.next-1+len(t.lines))%len(t.lines)]
}

// Lines returns up to n recent lines, oldest first.
func (t *Tail) Lines(n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := t.next
	if t.full {
		count = len(t.lines)
	}
	n = min(max(n, 0), count)
	out := make([]string, 0, n)
	for i := n; i > 0; i-- {
		out = append(out, t.lines[(t.next-i+len(t.lines))%len(t.lines)])
	}
	return out
}
