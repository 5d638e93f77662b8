package model

import "sort"

// SelectionSet は次の購入に回す明細IDの集合。
type SelectionSet struct {
	ids map[string]struct{}
}

func NewSelectionSet(ids ...string) *SelectionSet {
	s := &SelectionSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *SelectionSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *SelectionSet) Add(id string) {
	s.ids[id] = struct{}{}
}

func (s *SelectionSet) Remove(id string) {
	delete(s.ids, id)
}

// Toggle は選択を反転し、反転後に選択中なら true。
func (s *SelectionSet) Toggle(id string) bool {
	if s.Contains(id) {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *SelectionSet) Len() int {
	return len(s.ids)
}

func (s *SelectionSet) IsEmpty() bool {
	return len(s.ids) == 0
}

// IDs はソート済みのIDを返す。
func (s *SelectionSet) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Retain はカートに存在するIDだけを残し、外したIDを返す。
func (s *SelectionSet) Retain(cart *CartAggregate) []string {
	var dropped []string
	for id := range s.ids {
		if !cart.HasLine(id) {
			delete(s.ids, id)
			dropped = append(dropped, id)
		}
	}
	sort.Strings(dropped)
	return dropped
}

// Intersect はカートの表示順で、選択中かつ存在する明細IDを返す。
func (s *SelectionSet) Intersect(cart *CartAggregate) []string {
	out := make([]string, 0, len(s.ids))
	for _, id := range cart.LineIDs() {
		if s.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}
