package search

import (
	"sync"
	"time"
)

// DebounceDelay is how long typing must pause before a query becomes active.
const DebounceDelay = 150 * time.Millisecond

// Debouncer calls fn with the latest value once calls stop arriving for delay.
type Debouncer[T any] struct {
	mu    sync.Mutex
	delay time.Duration
	fn    func(T)
	timer *time.Timer
}

func NewDebouncer[T any](delay time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{delay: delay, fn: fn}
}

// Trigger restarts the wait with v as the pending value.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fn(v) })
}

// Stop drops any pending call.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// BarState is a snapshot of the in-document search bar.
type BarState struct {
	Open     bool   `json:"open"`
	Query    string `json:"query"`
	Active   string `json:"active"`
	Current  int    `json:"current"`
	Position int    `json:"position"`
	Total    int    `json:"total"`
}

// Bar is the search bar state. Typing sets Query; Commit (normally called by
// a Debouncer) makes it the Active highlighted query. Whoever runs the search
// reports the match count with SetTotal.
type Bar struct {
	mu     sync.Mutex
	open   bool
	query  string
	active string
	nav    Navigator
}

// Open shows the bar. It returns true to signal the input should take focus.
func (b *Bar) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = true
	return true
}

// Escape closes the bar and clears both queries. It reports whether the bar was open.
func (b *Bar) Escape() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	wasOpen := b.open
	b.open = false
	b.query = ""
	b.active = ""
	b.nav.Reset(0)
	return wasOpen
}

func (b *Bar) Type(query string) BarState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.query = query
	return b.stateLocked()
}

// Commit activates the typed query and goes back to the first match. A
// closed bar has no active query. It returns the query to search for.
func (b *Bar) Commit() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		b.active = b.query
	} else {
		b.active = ""
	}
	b.nav.Reset(0)
	return b.active
}

// SetTotal records how many matches the active query has. Navigation restarts
// only when the total changed.
func (b *Bar) SetTotal(total int) BarState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nav.Total() != total {
		b.nav.Reset(total)
	}
	return b.stateLocked()
}

// Searching reports whether Next and Prev have anything to move through.
func (b *Bar) Searching() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active != "" && b.nav.Total() > 0
}

func (b *Bar) Next() BarState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nav.Next()
	return b.stateLocked()
}

func (b *Bar) Prev() BarState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nav.Prev()
	return b.stateLocked()
}

func (b *Bar) State() BarState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Bar) stateLocked() BarState {
	return BarState{
		Open:     b.open,
		Query:    b.query,
		Active:   b.active,
		Current:  b.nav.Index(),
		Position: b.nav.Position(),
		Total:    b.nav.Total(),
	}
}
