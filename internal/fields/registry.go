package fields

import (
	"errors"
	"fmt"
)

// Registry is an ordered, immutable set of field descriptors.
// Registry order is the draw order in every rendering context.
type Registry struct {
	fields []Descriptor
	index  map[string]int
}

// New validates the descriptors and builds a registry
func New(descs ...Descriptor) (*Registry, error) {
	if len(descs) == 0 {
		return nil, errors.New("registry must contain at least one field")
	}

	r := &Registry{
		fields: make([]Descriptor, 0, len(descs)),
		index:  make(map[string]int, len(descs)),
	}

	for i, d := range descs {
		d.applyDefaults()
		if d.Key == "" {
			return nil, fmt.Errorf("field %d: key cannot be empty", i)
		}
		if _, dup := r.index[d.Key]; dup {
			return nil, fmt.Errorf("field %q: duplicate key", d.Key)
		}
		if !d.Kind.Valid() {
			return nil, fmt.Errorf("field %q: unknown kind %q", d.Key, d.Kind)
		}
		if _, err := ParseColor(d.Color); err != nil {
			return nil, fmt.Errorf("field %q: %w", d.Key, err)
		}
		if d.IsSignature() {
			if d.EnabledInCanvas && (d.Width <= 0 || d.Height <= 0) {
				return nil, fmt.Errorf("field %q: signature fields need a positive width and height", d.Key)
			}
			if d.EnabledInPDF && (d.PDFWidth <= 0 || d.PDFHeight <= 0) {
				return nil, fmt.Errorf("field %q: signature fields need a positive PDF width and height", d.Key)
			}
		}
		r.index[d.Key] = len(r.fields)
		r.fields = append(r.fields, d)
	}

	for _, d := range r.fields {
		if !d.IsDerived() {
			continue
		}
		if d.DerivedFrom == d.Key {
			return nil, fmt.Errorf("field %q: cannot derive from itself", d.Key)
		}
		src, ok := r.Lookup(d.DerivedFrom)
		if !ok {
			return nil, fmt.Errorf("field %q: derived from unknown field %q", d.Key, d.DerivedFrom)
		}
		if src.IsSignature() || d.IsSignature() {
			return nil, fmt.Errorf("field %q: signature fields cannot take part in derivation", d.Key)
		}
		if src.IsDerived() {
			return nil, fmt.Errorf("field %q: derivation chains are not supported (%q is derived)", d.Key, src.Key)
		}
	}

	return r, nil
}

// MustNew is like New but panics on an invalid registry
func MustNew(descs ...Descriptor) *Registry {
	r, err := New(descs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Fields returns a copy of the descriptors in registry order
func (r *Registry) Fields() []Descriptor {
	out := make([]Descriptor, len(r.fields))
	copy(out, r.fields)
	return out
}

// Lookup returns the descriptor for key
func (r *Registry) Lookup(key string) (Descriptor, bool) {
	i, ok := r.index[key]
	if !ok {
		return Descriptor{}, false
	}
	return r.fields[i], true
}

// Len returns the number of fields
func (r *Registry) Len() int {
	return len(r.fields)
}

// Keys returns field keys in registry order
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, d := range r.fields {
		keys[i] = d.Key
	}
	return keys
}

// Signatures returns the signature descriptors in registry order
func (r *Registry) Signatures() []Descriptor {
	var out []Descriptor
	for _, d := range r.fields {
		if d.IsSignature() {
			out = append(out, d)
		}
	}
	return out
}
