package client

import (
	"context"
	"sync"
	"time"

	"study-service/internal/search"
)

// SearchSession is the in-document search bar of a Workspace. Typed queries
// are debounced before the server highlights them; Next and Prev move the
// current match and fetch the re-highlighted document.
type SearchSession struct {
	ctx      context.Context
	ws       *Workspace
	topicID  string
	debounce *search.Debouncer[string]
	onResult func(search.Result, error)

	mu     sync.Mutex
	bar    search.Bar
	result search.Result
	seq    int
}

// NewSearchSession searches the whole study, or one topic when topicID is set.
// delay zero means search.DebounceDelay. onResult, when set, receives every
// fetched result.
func NewSearchSession(ctx context.Context, ws *Workspace, topicID string, delay time.Duration, onResult func(search.Result, error)) *SearchSession {
	if delay <= 0 {
		delay = search.DebounceDelay
	}
	s := &SearchSession{ctx: ctx, ws: ws, topicID: topicID, onResult: onResult}
	s.debounce = search.NewDebouncer(delay, s.commit)
	return s
}

// Open shows the bar.
func (s *SearchSession) Open() {
	s.mu.Lock()
	s.bar.Open()
	st := s.bar.State()
	s.mu.Unlock()
	s.ws.store.Dispatch(SearchChanged{State: st})
}

// Type records the typed query; it becomes active after the debounce delay.
func (s *SearchSession) Type(query string) {
	s.mu.Lock()
	st := s.bar.Type(query)
	s.mu.Unlock()
	s.ws.store.Dispatch(SearchChanged{State: st})
	s.debounce.Trigger(query)
}

// Escape closes the bar and clears the query and highlights.
func (s *SearchSession) Escape() {
	s.debounce.Stop()
	s.mu.Lock()
	s.bar.Escape()
	s.result = search.Result{}
	s.seq++
	st := s.bar.State()
	s.mu.Unlock()
	s.ws.store.Dispatch(SearchChanged{State: st})
}

func (s *SearchSession) Next() { s.move((*search.Bar).Next) }
func (s *SearchSession) Prev() { s.move((*search.Bar).Prev) }

func (s *SearchSession) move(step func(*search.Bar) search.BarState) {
	s.mu.Lock()
	if !s.bar.Searching() {
		s.mu.Unlock()
		return
	}
	st := step(&s.bar)
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	s.fetch(seq, st.Active, st.Current)
}

// Result is the last highlighted document.
func (s *SearchSession) Result() search.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *SearchSession) State() search.BarState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bar.State()
}

// ScrollTarget is the scrollTop that centres the current match in its
// container, from boxes measured by whatever displays Result.
func (s *SearchSession) ScrollTarget(container search.Rect, scrollTop float64, match search.Rect) float64 {
	return search.CenterScrollTop(container, scrollTop, match)
}

func (s *SearchSession) commit(typed string) {
	s.mu.Lock()
	if st := s.bar.State(); !st.Open || st.Query != typed {
		s.mu.Unlock()
		return
	}
	query := s.bar.Commit()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	s.fetch(seq, query, 0)
}

// fetch asks the server for the highlighted document. Results for anything
// but the latest request are dropped.
func (s *SearchSession) fetch(seq int, query string, current int) {
	var (
		res search.Result
		err error
	)
	if query != "" {
		res, err = s.ws.client.Search(s.ctx, s.ws.studyID, s.topicID, query, current)
	}

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return
	}
	if err == nil {
		s.result = res
		s.bar.SetTotal(res.Matches)
	}
	st := s.bar.State()
	s.mu.Unlock()

	s.ws.store.Dispatch(SearchChanged{State: st})
	if s.onResult != nil {
		s.onResult(res, err)
	}
}

// Close drops any pending debounced search.
func (s *SearchSession) Close() { s.debounce.Stop() }
