package event

import "fmt"

// Set is an insertion-ordered collection keyed by combined id.
type Set struct {
	order []string
	byID  map[string]Event
}

func NewSet() *Set {
	return &Set{byID: make(map[string]Event)}
}

// Add inserts e. A second event with the same combined id is rejected.
func (s *Set) Add(e Event) error {
	id := CombinedID(e)
	if _, ok := s.byID[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	s.byID[id] = e
	s.order = append(s.order, id)
	return nil
}

// Replace swaps the event stored under e's combined id. It reports false if
// no such event exists.
func (s *Set) Replace(e Event) bool {
	id := CombinedID(e)
	if _, ok := s.byID[id]; !ok {
		return false
	}
	s.byID[id] = e
	return true
}

func (s *Set) Get(combinedID string) (Event, bool) {
	e, ok := s.byID[combinedID]
	return e, ok
}

func (s *Set) Len() int {
	return len(s.order)
}

// All returns events in insertion order.
func (s *Set) All() []Event {
	out := make([]Event, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}
