package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Mark annotates a value produced by the diff annotator.
type Mark string

const (
	MarkNone    Mark = ""
	MarkAdded   Mark = "added"
	MarkRemoved Mark = "removed"
	MarkChanged Mark = "changed"
)

// Struct holds the fields of a struct-typed value keyed by field name. Repeated
// fields are stored as values whose payload is a List.
type Struct map[string]*Value

// List is an ordered sequence of tagged values.
type List []*Value

// Value is the tagged wire representation shared by every semantic value:
// {type, value, mro}. The payload is either a primitive (string, bool,
// json.Number, ...), a Struct, or a List.
type Value struct {
	Type  string
	Value any
	Mro   []string
	Diff  Mark
}

// New builds a tagged value.
func New(typeName string, payload any) *Value {
	return &Value{Type: typeName, Value: payload}
}

// NewList builds an untyped list value. Lists travel as bare JSON arrays so
// their element type is carried by each item.
func NewList(items ...*Value) *Value {
	list := make(List, 0, len(items))
	list = append(list, items...)
	return &Value{Value: list}
}

// IsList reports whether the payload is an ordered sequence.
func (v *Value) IsList() bool {
	if v == nil {
		return false
	}
	_, ok := v.Value.(List)
	return ok
}

// IsStruct reports whether the payload is a field map.
func (v *Value) IsStruct() bool {
	if v == nil {
		return false
	}
	_, ok := v.Value.(Struct)
	return ok
}

// IsPending reports whether the value has no resolvable type yet.
func (v *Value) IsPending() bool {
	return v == nil || strings.TrimSpace(v.Type) == "" && !v.IsList()
}

// Items returns the list payload or nil.
func (v *Value) Items() List {
	if v == nil {
		return nil
	}
	items, _ := v.Value.(List)
	return items
}

// Fields returns the struct payload or nil.
func (v *Value) Fields() Struct {
	if v == nil {
		return nil
	}
	fields, _ := v.Value.(Struct)
	return fields
}

// Field returns a single struct field.
func (v *Value) Field(name string) (*Value, bool) {
	fields := v.Fields()
	if fields == nil {
		return nil, false
	}
	field, ok := fields[name]
	return field, ok
}

// SetField stores a struct field, converting an empty payload into a Struct.
func (v *Value) SetField(name string, field *Value) {
	if v == nil {
		return
	}
	fields, ok := v.Value.(Struct)
	if !ok {
		fields = make(Struct)
		v.Value = fields
	}
	fields[name] = field
}

// DeleteField removes a struct field when present.
func (v *Value) DeleteField(name string) {
	if fields := v.Fields(); fields != nil {
		delete(fields, name)
	}
}

// Clone returns a deep copy, including diff marks.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	out := &Value{Type: v.Type, Diff: v.Diff}
	if len(v.Mro) > 0 {
		out.Mro = append([]string(nil), v.Mro...)
	}
	out.Value = clonePayload(v.Value)
	return out
}

func clonePayload(payload any) any {
	switch typed := payload.(type) {
	case Struct:
		fields := make(Struct, len(typed))
		for name, field := range typed {
			fields[name] = field.Clone()
		}
		return fields
	case List:
		items := make(List, len(typed))
		for idx, item := range typed {
			items[idx] = item.Clone()
		}
		return items
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = clonePayload(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for idx, item := range typed {
			out[idx] = clonePayload(item)
		}
		return out
	default:
		return typed
	}
}

// ClearMarks removes diff marks from the value tree.
func (v *Value) ClearMarks() {
	if v == nil {
		return
	}
	v.Diff = MarkNone
	switch typed := v.Value.(type) {
	case Struct:
		for _, field := range typed {
			field.ClearMarks()
		}
	case List:
		for _, item := range typed {
			item.ClearMarks()
		}
	}
}

// Equal compares two value trees, ignoring diff marks and mro chains. Numbers
// compare by numeric value regardless of their decoded Go type.
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type != b.Type {
		return false
	}
	return PayloadEqual(a.Value, b.Value)
}

// PayloadEqual compares two payloads using the same rules as Equal.
func PayloadEqual(a, b any) bool {
	switch left := a.(type) {
	case Struct:
		right, ok := b.(Struct)
		if !ok || len(left) != len(right) {
			return false
		}
		for name, field := range left {
			other, exists := right[name]
			if !exists || !Equal(field, other) {
				return false
			}
		}
		return true
	case List:
		right, ok := b.(List)
		if !ok || len(left) != len(right) {
			return false
		}
		for idx := range left {
			if !Equal(left[idx], right[idx]) {
				return false
			}
		}
		return true
	}
	if ln, ok := asFloat(a); ok {
		rn, ok := asFloat(b)
		return ok && ln == rn
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Key returns a canonical encoding of the value that ignores diff marks. Two
// values with equal keys are Equal.
func (v *Value) Key() string {
	if v == nil {
		return "null"
	}
	clean := v.Clone()
	clean.ClearMarks()
	clean.Mro = nil
	clean.Value = canonicalNumbers(clean.Value)
	data, err := json.Marshal(clean)
	if err != nil {
		return fmt.Sprintf("%s:%v", v.Type, v.Value)
	}
	return string(data)
}

func canonicalNumbers(payload any) any {
	switch typed := payload.(type) {
	case Struct:
		for name, field := range typed {
			if field != nil {
				field.Mro = nil
				field.Value = canonicalNumbers(field.Value)
			}
			typed[name] = field
		}
		return typed
	case List:
		for _, item := range typed {
			if item != nil {
				item.Mro = nil
				item.Value = canonicalNumbers(item.Value)
			}
		}
		return typed
	}
	if f, ok := asFloat(payload); ok {
		return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return payload
}

// Coerce converts raw text input into the primitive shape of sample. Booleans
// and numbers are parsed; everything else stays a string.
func Coerce(sample any, raw string) (any, error) {
	trimmed := strings.TrimSpace(raw)
	switch sample.(type) {
	case bool:
		parsed, err := strconv.ParseBool(trimmed)
		if err != nil {
			return nil, fmt.Errorf("value: %q is not a boolean", raw)
		}
		return parsed, nil
	}
	if _, ok := asFloat(sample); ok {
		if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
			return nil, fmt.Errorf("value: %q is not a number", raw)
		}
		return json.Number(trimmed), nil
	}
	return raw, nil
}

type wireValue struct {
	Type  string          `json:"type,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
	Mro   []string        `json:"mro,omitempty"`
	Diff  Mark            `json:"_diff,omitempty"`
}

// MarshalJSON encodes lists as bare arrays and everything else as a
// {type, value} object.
func (v *Value) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	if items, ok := v.Value.(List); ok {
		if items == nil {
			items = List{}
		}
		return json.Marshal([]*Value(items))
	}
	wire := wireValue{Type: v.Type, Mro: v.Mro, Diff: v.Diff}
	if v.Value != nil {
		payload, err := json.Marshal(v.Value)
		if err != nil {
			return nil, fmt.Errorf("value: encode %q payload: %w", v.Type, err)
		}
		wire.Value = payload
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the tagged wire format. Object payloads whose entries
// are themselves tagged become a Struct; arrays of tagged values become a List.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*v = Value{}
		return nil
	}
	if trimmed[0] == '[' {
		var items []*Value
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return fmt.Errorf("value: decode list: %w", err)
		}
		*v = Value{Value: List(items)}
		return nil
	}
	if trimmed[0] != '{' {
		return fmt.Errorf("value: expected tagged object, got %q", firstBytes(trimmed))
	}

	var wire wireValue
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return fmt.Errorf("value: decode tagged value: %w", err)
	}
	payload, err := decodePayload(wire.Value)
	if err != nil {
		return fmt.Errorf("value: decode %q payload: %w", wire.Type, err)
	}
	*v = Value{Type: wire.Type, Value: payload, Mro: wire.Mro, Diff: wire.Diff}
	return nil
}

func decodePayload(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch trimmed[0] {
	case '{':
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
		if allTagged(entries) {
			fields := make(Struct, len(entries))
			for name, entry := range entries {
				field := &Value{}
				if err := field.UnmarshalJSON(entry); err != nil {
					return nil, fmt.Errorf("field %q: %w", name, err)
				}
				fields[name] = field
			}
			return fields, nil
		}
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
		if allTaggedItems(entries) {
			items := make(List, len(entries))
			for idx, entry := range entries {
				item := &Value{}
				if err := item.UnmarshalJSON(entry); err != nil {
					return nil, fmt.Errorf("item %d: %w", idx, err)
				}
				items[idx] = item
			}
			return items, nil
		}
	}
	return decodeAny(trimmed)
}

func allTagged(entries map[string]json.RawMessage) bool {
	for _, entry := range entries {
		if !isTagged(entry) {
			return false
		}
	}
	return true
}

func allTaggedItems(entries []json.RawMessage) bool {
	for _, entry := range entries {
		if !isTagged(entry) {
			return false
		}
	}
	return true
}

func isTagged(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	switch trimmed[0] {
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return false
		}
		return allTaggedItems(entries)
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return false
		}
		_, ok := probe["type"]
		return ok
	default:
		return false
	}
}

func decodeAny(raw []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var out any
	if err := decoder.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func firstBytes(data []byte) string {
	if len(data) > 16 {
		return string(data[:16])
	}
	return string(data)
}
