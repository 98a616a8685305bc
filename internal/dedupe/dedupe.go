// Package dedupe removes duplicate extracted items by key.
package dedupe

// Dedupe keeps the first occurrence of each key and returns the kept items in
// their original order together with the number of items removed. Items whose
// key is empty are always kept.
func Dedupe[T any](items []T, key func(T) string) ([]T, int) {
	if len(items) == 0 {
		return items, 0
	}
	seen := make(map[string]struct{}, len(items))
	kept := make([]T, 0, len(items))
	removed := 0
	for _, it := range items {
		k := key(it)
		if k == "" {
			kept = append(kept, it)
			continue
		}
		if _, dup := seen[k]; dup {
			removed++
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, it)
	}
	return kept, removed
}

// Set tracks keys already accepted across several batches, e.g. sections of a
// composite document or previously persisted content hashes.
type Set struct {
	keys map[string]struct{}
}

func NewSet(initial ...string) *Set {
	s := &Set{keys: make(map[string]struct{}, len(initial))}
	for _, k := range initial {
		s.Add(k)
	}
	return s
}

// Add records k and reports whether it was new.
func (s *Set) Add(k string) bool {
	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = struct{}{}
	return true
}

func (s *Set) Has(k string) bool {
	_, ok := s.keys[k]
	return ok
}

func (s *Set) Len() int {
	return len(s.keys)
}

// Filter drops items whose key is already in the set and adds the rest.
func Filter[T any](s *Set, items []T, key func(T) string) ([]T, int) {
	kept := make([]T, 0, len(items))
	removed := 0
	for _, it := range items {
		k := key(it)
		if k != "" && !s.Add(k) {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	return kept, removed
}
