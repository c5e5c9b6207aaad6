package rules

import (
	"fmt"
	"sync/atomic"

	"github.com/videlboga/ReceiptScan/internal/pattern"
)

// Store holds the current rule set. Readers always see a complete rule set;
// Reload and Add swap in a new one as a whole.
type Store struct {
	path    string
	current atomic.Pointer[RuleSet]
}

// NewStore loads the rule set at path. A load failure is returned as is so
// callers can refuse to start.
func NewStore(path string) (*Store, error) {
	rs, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path}
	s.current.Store(rs)
	return s, nil
}

// NewStaticStore wraps an already built rule set. Reload is unavailable.
func NewStaticStore(rs *RuleSet) *Store {
	s := &Store{}
	s.current.Store(rs)
	return s
}

// Current returns the rule set in effect
func (s *Store) Current() *RuleSet {
	return s.current.Load()
}

// Path returns the file the store reloads from
func (s *Store) Path() string {
	return s.path
}

// Reload reads the rules file again. On error the previous rule set stays
// in effect.
func (s *Store) Reload() (*RuleSet, error) {
	if s.path == "" {
		return nil, fmt.Errorf("rule set was not loaded from a file")
	}
	rs, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	s.current.Store(rs)
	return rs, nil
}

// Add puts value on the valid list for kind until the next reload
func (s *Store) Add(kind pattern.Kind, value string) (*RuleSet, error) {
	for {
		cur := s.current.Load()
		next, err := cur.WithValue(kind, value)
		if err != nil {
			return nil, err
		}
		if s.current.CompareAndSwap(cur, next) {
			return next, nil
		}
	}
}
