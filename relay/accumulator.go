package relay

import (
	"strings"
	"sync"
)

// Accumulator collects the text forwarded to a client. It is safe for
// concurrent use.
type Accumulator struct {
	mu  sync.Mutex
	buf strings.Builder
}

// Append adds s to the buffer.
func (a *Accumulator) Append(s string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buf.WriteString(s)
}

// String returns everything appended so far.
func (a *Accumulator) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String()
}

// Len returns the number of bytes appended.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.Len()
}
