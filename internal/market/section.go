package market

import (
	"sort"
	"strings"
	"sync"
)

type SectionSpec struct {
	ID      string
	Name    string
	Economy string
	Access  string
	Dynamic bool
}

// Section groups items and carries the section-level economy override,
// access tag and dynamic pricing switch.
type Section struct {
	spec SectionSpec

	mu    sync.RWMutex
	items map[string]*Item
}

func NewSection(spec SectionSpec) *Section {
	spec.ID = strings.TrimSpace(spec.ID)
	if strings.TrimSpace(spec.Name) == "" {
		spec.Name = spec.ID
	}
	return &Section{spec: spec, items: map[string]*Item{}}
}

func (s *Section) ID() string      { return s.spec.ID }
func (s *Section) Name() string    { return s.spec.Name }
func (s *Section) Economy() string { return s.spec.Economy }
func (s *Section) Access() string  { return s.spec.Access }
func (s *Section) Dynamic() bool   { return s.spec.Dynamic }
func (s *Section) Spec() SectionSpec {
	return s.spec
}

func (s *Section) Item(id string) (*Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	return it, ok
}

// Items returns the section's items ordered by slot, then id.
func (s *Section) Items() []*Item {
	s.mu.RLock()
	out := make([]*Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].Slot(), out[j].Slot()
		if si != sj {
			return si < sj
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

func (s *Section) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Section) put(it *Item) {
	s.mu.Lock()
	s.items[it.ID()] = it
	s.mu.Unlock()
}

func (s *Section) remove(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
