package descriptor

import (
	"slices"
	"sort"
	"strings"

	"github.com/goliatone/go-semval/pkg/value"
)

// Kind distinguishes leaf types from struct types.
type Kind string

const (
	KindPrimitive Kind = "primitive"
	KindStruct    Kind = "struct"
)

// Label tags a field with presentation hints.
type Label string

const (
	LabelHidden   Label = "HIDDEN"
	LabelAdvanced Label = "ADVANCED"
)

// Field describes one field of a struct type.
type Field struct {
	Name     string       `json:"name"`
	Type     string       `json:"type,omitempty"`
	Repeated bool         `json:"repeated,omitempty"`
	Dynamic  bool         `json:"dynamic,omitempty"`
	Default  *value.Value `json:"default,omitempty"`
	Labels   []Label      `json:"labels,omitempty"`
	Doc      string       `json:"doc,omitempty"`
	// FriendlyName is the human readable label shown next to the control.
	FriendlyName string `json:"friendly_name,omitempty"`
	// AllowedValues lists enum members. Union discriminators use them to name
	// the selectable branches.
	AllowedValues []string `json:"allowed_values,omitempty"`
}

// HasLabel reports whether the field carries label.
func (f Field) HasLabel(label Label) bool {
	return slices.Contains(f.Labels, label)
}

// Hidden reports whether the field is explicitly labelled HIDDEN.
func (f Field) Hidden() bool { return f.HasLabel(LabelHidden) }

// Advanced reports whether the field is labelled ADVANCED.
func (f Field) Advanced() bool { return f.HasLabel(LabelAdvanced) }

// Title returns FriendlyName when set, otherwise the field name.
func (f Field) Title() string {
	if strings.TrimSpace(f.FriendlyName) != "" {
		return f.FriendlyName
	}
	return f.Name
}

// Descriptor is the server-reported reflection metadata for one type.
// Descriptors are immutable once fetched.
type Descriptor struct {
	Name       string       `json:"name"`
	Kind       Kind         `json:"kind"`
	Fields     []Field      `json:"fields,omitempty"`
	Default    *value.Value `json:"default,omitempty"`
	UnionField string       `json:"union_field,omitempty"`
	Mro        []string     `json:"mro,omitempty"`
	Doc        string       `json:"doc,omitempty"`
}

// IsStruct reports whether the descriptor describes a struct type.
func (d Descriptor) IsStruct() bool { return d.Kind == KindStruct }

// IsUnion reports whether a discriminator field selects the active branch.
func (d Descriptor) IsUnion() bool { return d.IsStruct() && d.UnionField != "" }

// Field looks up a field by name.
func (d Descriptor) Field(name string) (Field, bool) {
	for _, field := range d.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// Set maps type names to descriptors. A Set is also a static Source.
type Set map[string]Descriptor

// Names returns the sorted type names in the set.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultFor computes the value a field takes when unset: repeated fields
// default to an empty list, dynamic fields have no default, and other fields
// use their own default or, failing that, the default of their type. The
// returned value is a fresh copy.
func (s Set) DefaultFor(field Field) (*value.Value, bool) {
	switch {
	case field.Repeated:
		return value.NewList(), true
	case field.Dynamic:
		return nil, false
	case field.Default != nil:
		return field.Default.Clone(), true
	}
	if typeDesc, ok := s[field.Type]; ok && typeDesc.Default != nil {
		return typeDesc.Default.Clone(), true
	}
	return nil, false
}

// Closure returns the descriptor for name plus every type it transitively
// references through its fields. Referenced types absent from the set are
// skipped; the root itself must exist.
func (s Set) Closure(name string) (Set, bool) {
	root, ok := s[name]
	if !ok {
		return nil, false
	}
	out := Set{name: root}
	queue := []Descriptor{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, field := range current.Fields {
			ref := strings.TrimSpace(field.Type)
			if ref == "" {
				continue
			}
			if _, seen := out[ref]; seen {
				continue
			}
			dep, exists := s[ref]
			if !exists {
				continue
			}
			out[ref] = dep
			queue = append(queue, dep)
		}
	}
	return out, true
}

// Merge copies descriptors from other into s, replacing existing entries.
func (s Set) Merge(other Set) {
	for name, desc := range other {
		s[name] = desc
	}
}

// Clone returns a shallow copy of s. Descriptors are shared.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for name, desc := range s {
		out[name] = desc
	}
	return out
}
