package widgets

import (
	"encoding/json"
	"testing"

	"github.com/goliatone/go-semval/pkg/descriptor"
	"github.com/goliatone/go-semval/pkg/form"
	"github.com/goliatone/go-semval/pkg/value"
)

func TestResolve_PinnedTypeWins(t *testing.T) {
	reg := NewRegistry()
	reg.Pin("RDFDatetime", "datetime")

	field := form.FieldView{
		Descriptor: descriptor.Field{Name: "created", Type: "RDFDatetime"},
		Default:    value.New("RDFDatetime", json.Number("0")),
	}
	if got, ok := reg.Resolve(field); !ok || got != "datetime" {
		t.Fatalf("expected pinned widget to win, got %q (ok=%v)", got, ok)
	}

	field.Descriptor.Repeated = true
	if got, _ := reg.Resolve(field); got != WidgetRepeated {
		t.Fatalf("pins apply to items, not the list: got %q", got)
	}
	if got, _ := reg.Resolve(Item(field)); got != "datetime" {
		t.Fatalf("expected pinned widget for item, got %q", got)
	}
}

func TestResolve_Builtins(t *testing.T) {
	reg := NewRegistry()

	cases := []struct {
		name   string
		field  form.FieldView
		expect string
	}{
		{
			name:   "repeated",
			field:  form.FieldView{Descriptor: descriptor.Field{Type: "RDFString", Repeated: true}},
			expect: WidgetRepeated,
		},
		{
			name:   "dynamic",
			field:  form.FieldView{Descriptor: descriptor.Field{Dynamic: true}},
			expect: WidgetJSON,
		},
		{
			name:   "struct",
			field:  form.FieldView{Descriptor: descriptor.Field{Type: "Inner"}, Kind: descriptor.KindStruct},
			expect: WidgetStruct,
		},
		{
			name:   "boolean default",
			field:  form.FieldView{Descriptor: descriptor.Field{Type: "Flag"}, Default: value.New("Flag", false)},
			expect: WidgetToggle,
		},
		{
			name:   "enum",
			field:  form.FieldView{Descriptor: descriptor.Field{Type: "RDFString", AllowedValues: []string{"A", "B"}}},
			expect: WidgetSelect,
		},
		{
			name:   "number value",
			field:  form.FieldView{Descriptor: descriptor.Field{Type: "ByteSize"}, Value: value.New("ByteSize", json.Number("1"))},
			expect: WidgetNumber,
		},
		{
			name:   "fallback text",
			field:  form.FieldView{Descriptor: descriptor.Field{Type: "RDFString"}},
			expect: WidgetText,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := reg.Resolve(tc.field)
			if !ok {
				t.Fatalf("expected resolution for %s", tc.name)
			}
			if got != tc.expect {
				t.Fatalf("resolve %s: want %q, got %q", tc.name, tc.expect, got)
			}
		})
	}
}

func TestResolve_PriorityOverride(t *testing.T) {
	reg := NewRegistry()
	reg.Register("custom", 999, func(field form.FieldView) bool {
		return field.Descriptor.Type == "RDFBool"
	})

	got, ok := reg.Resolve(form.FieldView{Descriptor: descriptor.Field{Type: "RDFBool"}})
	if !ok || got != "custom" {
		t.Fatalf("priority matcher should win, got %q (ok=%v)", got, ok)
	}
}

func TestResolve_EmptyRegistry(t *testing.T) {
	reg := &Registry{}
	if _, ok := reg.Resolve(form.FieldView{}); ok {
		t.Fatalf("empty registry must not resolve")
	}
}
