// Package objects contains the wire-level objects shared by the API handlers
// and the biz services. To avoid circular dependencies, we put them here.
package objects

import (
	"dario.cat/mergo"
	"github.com/spf13/cast"
)

// Attributes is a free-form attribute mapping. Values are scalars or lists of
// scalars as decoded from JSON or YAML.
type Attributes map[string]any

// Clone returns a shallow copy of the attributes.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}

	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}

	return out
}

// Merge overlays the given attributes on top of the receiver and returns the
// result. Values in overlay win over stored values. Neither input is mutated.
func (a Attributes) Merge(overlay Attributes) Attributes {
	if len(overlay) == 0 {
		return a.Clone()
	}

	out := a.Clone()
	if out == nil {
		out = Attributes{}
	}

	if err := mergo.Merge(&out, map[string]any(overlay), mergo.WithOverride); err != nil {
		// mergo only errors on invalid destinations, which cannot happen for a
		// non-nil map. Fall back to a plain overwrite loop.
		for k, v := range overlay {
			out[k] = v
		}
	}

	return out
}

// GetString returns the attribute as a string.
func (a Attributes) GetString(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}

	return cast.ToString(v), true
}

// GetBool returns the attribute as a bool.
func (a Attributes) GetBool(key string) (bool, bool) {
	v, ok := a[key]
	if !ok {
		return false, false
	}

	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, false
	}

	return b, true
}

// GetStrings returns the attribute as a string slice. Scalar values are
// returned as a one-element slice.
func (a Attributes) GetStrings(key string) ([]string, bool) {
	v, ok := a[key]
	if !ok {
		return nil, false
	}

	ss, err := cast.ToStringSliceE(v)
	if err != nil {
		return []string{cast.ToString(v)}, true
	}

	return ss, true
}
