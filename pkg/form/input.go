package form

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-semval/pkg/descriptor"
	"github.com/goliatone/go-semval/pkg/value"
)

// ApplyInput applies raw text entered for the field at the dotted path.
// Nested paths are routed through child forms. Text is coerced to the shape
// of the field's current value or default; repeated fields take one item per
// line and dynamic fields take a JSON encoded tagged value.
func (f *Form) ApplyInput(path string, raw string) error {
	target, name, err := f.route(path)
	if err != nil {
		return err
	}
	field, err := target.field(name)
	if err != nil {
		return err
	}
	next, err := target.parseInput(field, raw)
	if err != nil {
		return fmt.Errorf("form: %s: %w", joinPath(target.Path(), name), err)
	}
	return target.Apply(name, next)
}

// ApplyValues applies submitted form values keyed by field path in sorted
// order. Keys starting with an underscore carry hidden inputs and are skipped.
// For repeated fields every submitted value becomes one item; other fields
// take the last submitted value, so a checkbox following its hidden "false"
// companion wins when ticked.
func (f *Form) ApplyValues(values url.Values) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		if strings.HasPrefix(key, "_") {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		submitted := values[key]
		if len(submitted) == 0 {
			continue
		}
		raw := submitted[len(submitted)-1]
		if target, name, err := f.route(key); err == nil {
			if field, err := target.field(name); err == nil && field.Repeated {
				raw = strings.Join(submitted, "\n")
			}
		}
		if err := f.ApplyInput(key, raw); err != nil {
			return err
		}
	}
	return nil
}

// ApplySubmission applies a submitted HTML form: the field values first, then
// the buttons of repeated fields. "_append" carries the path of the field to
// grow and "_remove" carries "path[i]" of the item to drop.
func (f *Form) ApplySubmission(values url.Values) error {
	if err := f.ApplyValues(values); err != nil {
		return err
	}
	for _, path := range values["_append"] {
		target, name, err := f.route(path)
		if err != nil {
			return err
		}
		if err := target.Append(name, nil); err != nil {
			return err
		}
	}
	for _, ref := range values["_remove"] {
		path, idx, err := parseItemRef(ref)
		if err != nil {
			return err
		}
		target, name, err := f.route(path)
		if err != nil {
			return err
		}
		if err := target.RemoveAt(name, idx); err != nil {
			return err
		}
	}
	return nil
}

// route resolves a dotted path to the form owning its last segment.
func (f *Form) route(path string) (*Form, string, error) {
	target := f
	segments := strings.Split(strings.TrimSpace(path), ".")
	for _, segment := range segments[:len(segments)-1] {
		child, err := target.Child(segment)
		if err != nil {
			return nil, "", err
		}
		target = child
	}
	return target, segments[len(segments)-1], nil
}

func parseItemRef(ref string) (string, int, error) {
	ref = strings.TrimSpace(ref)
	open := strings.LastIndex(ref, "[")
	if open <= 0 || !strings.HasSuffix(ref, "]") {
		return "", 0, fmt.Errorf("form: invalid item reference %q", ref)
	}
	idx, err := strconv.Atoi(ref[open+1 : len(ref)-1])
	if err != nil {
		return "", 0, fmt.Errorf("form: invalid item reference %q", ref)
	}
	return ref[:open], idx, nil
}

func (f *Form) parseInput(field descriptor.Field, raw string) (*value.Value, error) {
	switch {
	case field.Dynamic:
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		var decoded value.Value
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, fmt.Errorf("dynamic value is not a tagged JSON value: %w", err)
		}
		return &decoded, nil
	case field.Repeated:
		item := descriptor.Field{Name: field.Name, Type: field.Type}
		sample := f.sample(item, nil)
		items := value.List{}
		for _, line := range strings.Split(raw, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			payload, err := value.Coerce(sample, line)
			if err != nil {
				return nil, err
			}
			items = append(items, value.New(field.Type, payload))
		}
		return value.NewList(items...), nil
	}

	if desc, ok := f.types[field.Type]; ok && desc.IsStruct() {
		return nil, ErrStructInput
	}
	current, _ := f.shadow.Field(field.Name)
	payload, err := value.Coerce(f.sample(field, current), raw)
	if err != nil {
		return nil, err
	}
	return value.New(field.Type, payload), nil
}

// sample returns a payload with the primitive shape the field expects.
func (f *Form) sample(field descriptor.Field, current *value.Value) any {
	if current != nil && current.Value != nil {
		return current.Value
	}
	if def, ok := f.types.DefaultFor(field); ok && def != nil {
		return def.Value
	}
	return ""
}
