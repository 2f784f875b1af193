package locale

import (
	"sort"
	"strings"
)

// Store exposes locale retrieval.
type Store interface {
	List() []Locale
	FindByID(id string) (Locale, bool)
}

// MemoryStore indexes the bundled locales by base language code.
type MemoryStore struct {
	byID  map[string]Locale
	order []string
}

// NewMemoryStore indexes items. A later locale with the same language code
// replaces an earlier one.
func NewMemoryStore(items []Locale) *MemoryStore {
	s := &MemoryStore{byID: make(map[string]Locale, len(items))}
	for _, item := range items {
		id := baseLanguage(item.ID)
		if _, dup := s.byID[id]; !dup {
			s.order = append(s.order, id)
		}
		s.byID[id] = item
	}
	sort.Strings(s.order)
	return s
}

// List returns the known locales ordered by id.
func (s *MemoryStore) List() []Locale {
	out := make([]Locale, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// FindByID resolves a language tag such as "en", "EN" or "en-US" to the
// bundled locale for its base language. An empty tag selects DefaultID.
func (s *MemoryStore) FindByID(id string) (Locale, bool) {
	id = baseLanguage(id)
	if id == "" {
		id = DefaultID
	}
	item, ok := s.byID[id]
	return item, ok
}

func baseLanguage(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return tag
}
