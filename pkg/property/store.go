// Package property holds entity key/value stores, the policy that protects
// some keys and values from editing, and the entity definition registry.
package property

import (
	"maps"
	"slices"
)

// Well-known keys.
const (
	KeyClassname  = "classname"
	KeyOrigin     = "origin"
	KeyMapVersion = "mapversion"
)

// Store maps property keys to values. Keys are unique and unordered.
type Store struct {
	values map[string]string
}

// NewStore returns a store holding a copy of kv.
func NewStore(kv map[string]string) *Store {
	s := &Store{values: make(map[string]string, len(kv))}
	maps.Copy(s.values, kv)
	return s
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Get returns the value of key.
func (s *Store) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set adds or overwrites key.
func (s *Store) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
}

// Remove deletes key and reports whether it was present.
func (s *Store) Remove(key string) bool {
	if _, ok := s.values[key]; !ok {
		return false
	}
	delete(s.values, key)
	return true
}

// Rename moves the value of oldKey to newKey. It does nothing and returns
// false if oldKey is absent or newKey is already present.
func (s *Store) Rename(oldKey, newKey string) bool {
	v, ok := s.values[oldKey]
	if !ok || oldKey == newKey {
		return false
	}
	if _, taken := s.values[newKey]; taken {
		return false
	}
	delete(s.values, oldKey)
	s.values[newKey] = v
	return true
}

// Keys returns the keys in sorted order.
func (s *Store) Keys() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// Len returns the number of properties.
func (s *Store) Len() int {
	return len(s.values)
}

// Clone returns an independent copy.
func (s *Store) Clone() *Store {
	return NewStore(s.values)
}

// Equal reports whether both stores hold the same pairs.
func (s *Store) Equal(o *Store) bool {
	return maps.Equal(s.values, o.values)
}

// Map returns a copy of the pairs.
func (s *Store) Map() map[string]string {
	return maps.Clone(s.values)
}

// Classname returns the classname value, or "".
func (s *Store) Classname() string {
	return s.values[KeyClassname]
}
