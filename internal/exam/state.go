// internal/exam/state.go
package exam

import (
	"sort"
	"strconv"
	"sync"

	"github.com/patrickmn/go-cache"
)

// State holds what one exam session has learned about the page: the display
// index to qid mapping from the last full scan, the set of questions known to
// be answered and the last answer recorded for each of them.
//
// Nothing here is persisted and nothing is ever evicted; a State lives as long
// as the session that owns it.
type State struct {
	threshold int64

	mu         sync.RWMutex
	indexToQID map[int64]string
	answered   map[string]struct{}

	answers *cache.Cache
}

// NewState returns an empty State. A non-positive threshold selects
// DefaultIDThreshold.
func NewState(threshold int64) *State {
	if threshold <= 0 {
		threshold = DefaultIDThreshold
	}
	return &State{
		threshold:  threshold,
		indexToQID: make(map[int64]string),
		answered:   make(map[string]struct{}),
		// No expiration and no janitor goroutine.
		answers: cache.New(cache.NoExpiration, 0),
	}
}

// Threshold returns the boundary used to tell positions from internal ids.
func (s *State) Threshold() int64 {
	return s.threshold
}

// Resolve maps an identifier to the canonical qid. Integers and digit strings
// above the threshold are internal ids already; at or below it they are
// display positions looked up in the index from the last full scan. Anything
// else is assumed to be an id and returned as is.
func (s *State) Resolve(id Identifier) (string, bool) {
	if id.isNum {
		if id.num > s.threshold {
			return strconv.FormatInt(id.num, 10), true
		}
		return s.lookupIndex(id.num)
	}

	if isASCIIDigits(id.text) {
		n, err := strconv.ParseInt(id.text, 10, 64)
		if err != nil {
			// Too large for int64, so certainly not a page position.
			return id.text, true
		}
		if n > s.threshold {
			return id.text, true
		}
		return s.lookupIndex(n)
	}

	if id.text == "" {
		return "", false
	}
	return id.text, true
}

func (s *State) lookupIndex(n int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qid, ok := s.indexToQID[n]
	if !ok || qid == "" {
		return "", false
	}
	return qid, true
}

// ReplaceIndex discards the previous position index and installs a new one.
func (s *State) ReplaceIndex(index map[int64]string) {
	fresh := make(map[int64]string, len(index))
	for k, v := range index {
		fresh[k] = v
	}
	s.mu.Lock()
	s.indexToQID = fresh
	s.mu.Unlock()
}

// IndexSize returns the number of positions known from the last scan.
func (s *State) IndexSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.indexToQID)
}

// RecordAnswer marks qid as answered and remembers its answer.
func (s *State) RecordAnswer(qid string, answer Answer) {
	s.mu.Lock()
	s.answered[qid] = struct{}{}
	s.mu.Unlock()
	s.answers.Set(qid, answer, cache.NoExpiration)
}

// IsAnswered reports whether qid is in the answered set.
func (s *State) IsAnswered(qid string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.answered[qid]
	return ok
}

// CachedAnswer returns the last answer recorded for qid.
func (s *State) CachedAnswer(qid string) (Answer, bool) {
	v, ok := s.answers.Get(qid)
	if !ok {
		return Answer{}, false
	}
	a, ok := v.(Answer)
	return a, ok
}

// AnsweredQIDs returns the answered set in ascending order.
func (s *State) AnsweredQIDs() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.answered))
	for qid := range s.answered {
		out = append(out, qid)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}
