package render

import (
	"fmt"
	"sort"
	"strings"
)

// HiddenField is a hidden input emitted alongside the generated form
// controls. Form values whose name starts with an underscore are ignored when
// submissions are applied, so hidden inputs should use that prefix.
type HiddenField struct {
	Name  string
	Value string
}

// Hidden returns a HiddenField for an arbitrary name/value pair.
func Hidden(name string, value any) HiddenField {
	return HiddenField{
		Name:  strings.TrimSpace(name),
		Value: fmt.Sprint(value),
	}
}

// CSRFToken carries an anti-forgery token under "_csrf".
func CSRFToken(token string) HiddenField {
	return Hidden("_csrf", token)
}

// VersionField carries the version the form was generated from, for
// optimistic locking on submission.
func VersionField(version any) HiddenField {
	return Hidden("_version", version)
}

// SortedHiddenFields drops nameless fields, lets later fields win on name
// collisions and sorts the result by name for deterministic output.
func SortedHiddenFields(fields []HiddenField) []HiddenField {
	if len(fields) == 0 {
		return nil
	}
	clean := make(map[string]string, len(fields))
	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			continue
		}
		clean[name] = field.Value
	}
	if len(clean) == 0 {
		return nil
	}

	names := make([]string, 0, len(clean))
	for name := range clean {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]HiddenField, 0, len(names))
	for _, name := range names {
		out = append(out, HiddenField{Name: name, Value: clean[name]})
	}
	return out
}
