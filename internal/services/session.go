package services

import (
	"fmt"
	"sync"

	"github.com/markdave123-py/paperdex/internal/models"
)

// Session carries the last search results between two requests of one caller.
// Selections are 1-based, matching the numbering shown to users.
type Session struct {
	mu      sync.Mutex
	results []models.Paper
}

func NewSession() *Session { return &Session{} }

func (s *Session) SetResults(papers []models.Paper) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append([]models.Paper(nil), papers...)
}

func (s *Session) Results() []models.Paper {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Paper(nil), s.results...)
}

// Select returns the papers at the given 1-based positions of the last results.
func (s *Session) Select(positions []int) ([]models.Paper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return nil, fmt.Errorf("no previous search results")
	}
	out := make([]models.Paper, 0, len(positions))
	for _, p := range positions {
		if p < 1 || p > len(s.results) {
			return nil, fmt.Errorf("selection %d out of range 1..%d", p, len(s.results))
		}
		out = append(out, s.results[p-1])
	}
	return out, nil
}

// Sessions hands out one Session per caller key.
type Sessions struct {
	mu    sync.Mutex
	byKey map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{byKey: make(map[string]*Session)}
}

func (s *Sessions) For(key string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byKey[key]
	if !ok {
		sess = NewSession()
		s.byKey[key] = sess
	}
	return sess
}
