package widgets

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-semval/pkg/descriptor"
	"github.com/goliatone/go-semval/pkg/form"
)

// Built-in widget identifiers exposed by the registry.
const (
	WidgetRepeated = "repeated"
	WidgetToggle   = "toggle"
	WidgetSelect   = "select"
	WidgetStruct   = "struct"
	WidgetNumber   = "number"
	WidgetJSON     = "json-editor"
	WidgetText     = "text"
)

// Matcher decides whether a widget should edit the supplied field.
type Matcher func(field form.FieldView) bool

type rule struct {
	name     string
	priority int
	match    Matcher
	order    int
}

// Registry selects form widgets for fields based on pinned type names or
// registered matchers. Higher priority wins; ties fall back to registration
// order. An empty registry never resolves a widget.
type Registry struct {
	mu     sync.RWMutex
	rules  []rule
	pinned map[string]string
}

// NewRegistry constructs a registry with the built-in widget matchers
// registered.
func NewRegistry() *Registry {
	reg := &Registry{}
	reg.registerBuiltins()
	return reg
}

// Register adds a widget matcher with the provided name and priority. Higher
// priority values take precedence.
func (r *Registry) Register(name string, priority int, matcher Matcher) {
	if r == nil || matcher == nil {
		return
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = append(r.rules, rule{
		name:     trimmed,
		priority: priority,
		match:    matcher,
		order:    len(r.rules),
	})
}

// Pin always edits fields of typeName with widget, ahead of any matcher.
func (r *Registry) Pin(typeName, widget string) {
	if r == nil {
		return
	}
	typeName, widget = strings.TrimSpace(typeName), strings.TrimSpace(widget)
	if typeName == "" || widget == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pinned == nil {
		r.pinned = make(map[string]string)
	}
	r.pinned[typeName] = widget
}

// Resolve returns the widget name for a field. Pinned types are honoured
// before matcher evaluation; repeated fields are never pinned since the pin
// applies to their items.
func (r *Registry) Resolve(field form.FieldView) (string, bool) {
	if r == nil {
		return "", false
	}
	r.mu.RLock()
	if widget, ok := r.pinned[field.Descriptor.Type]; ok && !field.Descriptor.Repeated {
		r.mu.RUnlock()
		return widget, true
	}
	if len(r.rules) == 0 {
		r.mu.RUnlock()
		return "", false
	}
	rules := append([]rule(nil), r.rules...)
	r.mu.RUnlock()

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].priority == rules[j].priority {
			return rules[i].order < rules[j].order
		}
		return rules[i].priority > rules[j].priority
	})
	for _, entry := range rules {
		if entry.match(field) {
			return entry.name, true
		}
	}
	return "", false
}

// Item returns the view used to pick the widget of one repeated item.
func Item(field form.FieldView) form.FieldView {
	item := field
	item.Descriptor.Repeated = false
	item.Value = nil
	item.Default = nil
	return item
}

func (r *Registry) registerBuiltins() {
	r.Register(WidgetRepeated, 100, func(field form.FieldView) bool {
		return field.Descriptor.Repeated
	})

	r.Register(WidgetJSON, 90, func(field form.FieldView) bool {
		return field.Descriptor.Dynamic
	})

	r.Register(WidgetStruct, 80, func(field form.FieldView) bool {
		return field.Kind == descriptor.KindStruct
	})

	r.Register(WidgetToggle, 70, func(field form.FieldView) bool {
		_, ok := samplePayload(field).(bool)
		return ok || field.Descriptor.Type == "RDFBool"
	})

	r.Register(WidgetSelect, 60, func(field form.FieldView) bool {
		return len(field.Descriptor.AllowedValues) > 0
	})

	r.Register(WidgetNumber, 50, func(field form.FieldView) bool {
		switch samplePayload(field).(type) {
		case json.Number, float64, int, int64:
			return true
		}
		return false
	})

	r.Register(WidgetText, 0, func(form.FieldView) bool {
		return true
	})
}

func samplePayload(field form.FieldView) any {
	if field.Value != nil && field.Value.Value != nil {
		return field.Value.Value
	}
	if field.Default != nil {
		return field.Default.Value
	}
	return nil
}
