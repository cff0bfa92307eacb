package services

import (
	"sync"

	"listing-search/models"
)

// SearchQuery is one search action issued by a client.
//
// A query is applied as a filter/sort change first and a "show all" second.
// When the filter or sort key differs from the previous query the window
// collapses (Reset is reported); ShowAll then expands it again, so a single
// query that both changes the criteria and asks for everything returns the
// full result. A later query with the same criteria and ShowAll false keeps
// the window expanded.
type SearchQuery struct {
	Filter   models.FilterState
	Sort     models.SortKey
	ShowAll  bool
	PageSize int // overrides the session page size when positive
}

// SessionResult is a search result together with the window it was cut with.
// Stale is set when a newer request was issued before this one completed;
// stale results never change the session state.
type SessionResult struct {
	models.Result
	Window models.ViewWindow `json:"window"`
	Stale  bool              `json:"stale"`
	Reset  bool              `json:"reset"`
}

// Session owns the view window of one client across successive searches.
// The window collapses whenever the filter or sort key changes, and responses
// are ordered by request sequence number rather than arrival.
type Session struct {
	mu          sync.Mutex
	engine      *Engine
	window      models.ViewWindow
	fingerprint string
	latestSeq   uint64
}

// NewSession creates a collapsed session with the given page size.
func NewSession(engine *Engine, pageSize int) *Session {
	return &Session{engine: engine, window: models.ViewWindow{PageSize: pageSize}}
}

// Begin records that request seq has been issued. Sequence number 0 is
// unsequenced and never supersedes anything.
func (s *Session) Begin(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latestSeq = max(s.latestSeq, seq)
}

// Superseded reports whether a newer request than seq has been issued.
func (s *Session) Superseded(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seq != 0 && seq < s.latestSeq
}

// Window returns the current view window.
func (s *Session) Window() models.ViewWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// Complete runs the search for request seq over raw records.
func (s *Session) Complete(seq uint64, raw []models.RawRecord, shape models.SourceShape, q SearchQuery) SessionResult {
	listings, dropped := s.engine.NormalizeAll(raw, shape)
	res := s.CompleteListings(seq, listings, q)
	res.Dropped += dropped
	return res
}

// CompleteListings is Complete for already canonical listings.
func (s *Session) CompleteListings(seq uint64, listings []models.Listing, q SearchQuery) SessionResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := q.Filter.Fingerprint() + "|" + string(q.Sort)
	window := s.window
	reset := fp != s.fingerprint
	if reset {
		window = window.Reset()
	}
	if q.PageSize > 0 {
		window.PageSize = q.PageSize
	}
	if q.ShowAll {
		window = window.ShowAll()
	}

	stale := seq != 0 && seq < s.latestSeq
	if !stale {
		s.latestSeq = max(s.latestSeq, seq)
		s.window = window
		s.fingerprint = fp
	}

	return SessionResult{
		Result: s.engine.SearchListings(listings, q.Filter, q.Sort, window),
		Window: window,
		Stale:  stale,
		Reset:  reset,
	}
}
