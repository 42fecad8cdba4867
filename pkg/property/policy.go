package property

import "slices"

// Policy names the keys that may not be created, removed or renamed, and
// the keys whose values may not be changed, without a force override.
type Policy struct {
	ProtectedKeys   []string `yaml:"protected_keys"`
	ProtectedValues []string `yaml:"protected_values"`
}

// DefaultPolicy protects the classname and mapversion keys and the
// mapversion value.
func DefaultPolicy() Policy {
	return Policy{
		ProtectedKeys:   []string{KeyClassname, KeyMapVersion},
		ProtectedValues: []string{KeyMapVersion},
	}
}

// KeyMutable reports whether key may be added, removed or renamed.
func (p Policy) KeyMutable(key string) bool {
	return !slices.Contains(p.ProtectedKeys, key)
}

// ValueMutable reports whether the value stored under key may change.
func (p Policy) ValueMutable(key string) bool {
	return !slices.Contains(p.ProtectedValues, key)
}
