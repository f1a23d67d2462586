package recognize

import (
	"sync"
	"time"

	"github.com/teslashibe/go-fishid/pkg/segment"
)

// Result is a committed identification.
type Result struct {
	Ticket    uint64            `json:"ticket"`
	Raw       string            `json:"results"`
	Document  *segment.Document `json:"document"`
	Committed time.Time         `json:"committed"`
}

// Latest keeps the result of the most recently submitted request. Each
// submission takes a ticket; a result is stored only if no later ticket
// has been issued, so a slow response never replaces a newer one.
type Latest struct {
	mu      sync.Mutex
	next    uint64
	current *Result
}

// Begin issues the ticket for a new submission.
func (l *Latest) Begin() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	return l.next
}

// Commit stores the result for ticket. It returns false, storing nothing,
// when a newer ticket exists.
func (l *Latest) Commit(ticket uint64, raw string, doc *segment.Document) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ticket != l.next {
		return false
	}
	l.current = &Result{Ticket: ticket, Raw: raw, Document: doc, Committed: time.Now()}
	return true
}

// Current returns the displayed result, if any.
func (l *Latest) Current() (Result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return Result{}, false
	}
	return *l.current, true
}

// Issued returns the newest ticket handed out.
func (l *Latest) Issued() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.next
}

// DefaultSession is used when a request carries no session ID.
const DefaultSession = "default"

// DefaultMaxSessions caps how many sessions Sessions tracks.
const DefaultMaxSessions = 1024

// Sessions keeps one Latest per UI session. When full, the least recently
// used session is forgotten.
type Sessions struct {
	mu  sync.Mutex
	max int
	m   map[string]*sessionEntry
}

type sessionEntry struct {
	latest *Latest
	used   time.Time
}

// NewSessions creates a registry holding up to max sessions. max <= 0
// means DefaultMaxSessions.
func NewSessions(max int) *Sessions {
	if max <= 0 {
		max = DefaultMaxSessions
	}
	return &Sessions{max: max, m: make(map[string]*sessionEntry)}
}

// Get returns the Latest for id, creating it on first use. An empty id is
// DefaultSession.
func (s *Sessions) Get(id string) *Latest {
	if id == "" {
		id = DefaultSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.m[id]; ok {
		e.used = time.Now()
		return e.latest
	}
	if len(s.m) >= s.max {
		s.evictLocked()
	}
	e := &sessionEntry{latest: &Latest{}, used: time.Now()}
	s.m[id] = e
	return e.latest
}

// Len returns the number of tracked sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *Sessions) evictLocked() {
	var oldest string
	var at time.Time
	for id, e := range s.m {
		if oldest == "" || e.used.Before(at) {
			oldest, at = id, e.used
		}
	}
	delete(s.m, oldest)
}
