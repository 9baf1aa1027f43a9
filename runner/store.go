package runner

import (
	"sort"
	"sync"
)

// Store is a volatile outcome collection keyed by case id. It is safe for
// concurrent access and clones every returned outcome's state to prevent
// external mutation of internal data.
type Store struct {
	mu       sync.RWMutex
	outcomes map[string]Outcome
}

// NewStore constructs an empty outcome store.
func NewStore() *Store {
	return &Store{outcomes: make(map[string]Outcome)}
}

// put records an outcome under its case id.
func (s *Store) put(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[o.CaseID] = o
}

// Get returns the outcome (clone) of one case.
func (s *Store) Get(caseID string) (Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.outcomes[caseID]
	if !ok {
		return Outcome{}, false
	}
	return cloneOutcome(o), true
}

// All returns every outcome (clones) sorted by case id.
func (s *Store) All() []Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Outcome, 0, len(s.outcomes))
	for _, o := range s.outcomes {
		out = append(out, cloneOutcome(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CaseID < out[j].CaseID })
	return out
}

// Len returns the number of collected outcomes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outcomes)
}

// Failed returns the outcomes (clones) whose cases ended in an error,
// sorted by case id.
func (s *Store) Failed() []Outcome {
	var failed []Outcome
	for _, o := range s.All() {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

func cloneOutcome(o Outcome) Outcome {
	if o.State != nil {
		o.State = o.State.Clone()
	}
	return o
}
