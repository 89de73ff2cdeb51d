package render

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"github.com/goliatone/go-semval/pkg/descriptor"
	"github.com/goliatone/go-semval/pkg/form"
	"github.com/goliatone/go-semval/pkg/registry"
	"github.com/goliatone/go-semval/pkg/value"
)

func configTypes() descriptor.Set {
	return descriptor.Set{
		"RDFString":  {Name: "RDFString", Kind: descriptor.KindPrimitive, Default: value.New("RDFString", "")},
		"RDFInteger": {Name: "RDFInteger", Kind: descriptor.KindPrimitive, Default: value.New("RDFInteger", json.Number("0"))},
		"RDFBool":    {Name: "RDFBool", Kind: descriptor.KindPrimitive, Default: value.New("RDFBool", false)},
		"Config": {
			Name: "Config",
			Kind: descriptor.KindStruct,
			Fields: []descriptor.Field{
				{Name: "host", Type: "RDFString", FriendlyName: "Host name"},
				{Name: "port", Type: "RDFInteger"},
				{Name: "verbose", Type: "RDFBool"},
				{Name: "mode", Type: "RDFString", AllowedValues: []string{"A", "B"}},
				{Name: "tags", Type: "RDFString", Repeated: true},
				{Name: "extra", Dynamic: true},
				{Name: "tuning", Type: "RDFInteger", Labels: []descriptor.Label{descriptor.LabelAdvanced}},
				{Name: "inner", Type: "Inner"},
			},
		},
		"Inner": {
			Name:   "Inner",
			Kind:   descriptor.KindStruct,
			Fields: []descriptor.Field{{Name: "path", Type: "RDFString"}},
		},
	}
}

func newConfigForm(t *testing.T, fields value.Struct) (*Renderer, *form.Form) {
	t.Helper()
	set := configTypes()
	f, err := form.New(context.Background(), set, value.New("Config", fields))
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	return New(registry.New(), WithDescriptors(set)), f
}

func TestRenderFormBuiltInWidgets(t *testing.T) {
	r, f := newConfigForm(t, value.Struct{
		"host":    value.New("RDFString", `web"1`),
		"port":    value.New("RDFInteger", json.Number("8080")),
		"verbose": value.New("RDFBool", true),
		"mode":    value.New("RDFString", "B"),
		"tags":    value.NewList(value.New("RDFString", "a"), value.New("RDFString", "b")),
	})

	out, err := r.RenderForm(context.Background(), f, FormOptions{
		Action: "/clients/C.1/config",
		Hidden: []HiddenField{CSRFToken("tok"), VersionField(3)},
		Errors: form.ErrorMapping{
			Fields: map[string][]string{"port": {"Port out of range"}},
			Form:   []string{"Save failed"},
		},
	})
	if err != nil {
		t.Fatalf("render form: %v", err)
	}

	for _, want := range []string{
		`<form class="semval-form" id="` + f.ID + `" method="POST" action="/clients/C.1/config" data-type="Config">`,
		`<input type="hidden" name="_csrf" value="tok"><input type="hidden" name="_version" value="3">`,
		`<ul class="semval-form-errors"><li>Save failed</li></ul>`,
		`<label for="`,
		`>Host name</label>`,
		`name="host" value="web&quot;1"`,
		`<input type="number" step="any"`,
		`name="port" value="8080"><p class="semval-error">Port out of range</p>`,
		`name="verbose" value="true" checked>`,
		`<option value="B" selected>B</option>`,
		`<div class="semval-repeated"`,
		`name="tags" value="a"`,
		`name="tags" value="b"`,
		`<button type="submit" name="_remove" value="tags[1]">Remove</button>`,
		`<textarea class="semval-json"`,
		`<fieldset class="semval-struct"`,
		`name="inner.path"`,
		`<details class="semval-advanced"><summary>Advanced</summary>`,
		`name="tuning"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in form output:\n%s", want, out)
		}
	}
	if strings.Index(out, `name="host"`) > strings.Index(out, `name="port"`) {
		t.Fatalf("fields must follow descriptor order")
	}
}

func TestRenderFormRegisteredHandleWins(t *testing.T) {
	r, f := newConfigForm(t, value.Struct{})
	r.Forms().MustRegister("RDFInteger", registry.Handle{
		Name:     "port-slider",
		Template: `<input type="range" name="{{ name }}" value="{{ text }}">`,
	})

	out, err := r.RenderForm(context.Background(), f, FormOptions{})
	if err != nil {
		t.Fatalf("render form: %v", err)
	}
	if !strings.Contains(out, `<input type="range" name="port" value="0">`) {
		t.Fatalf("expected registered form handle for port:\n%s", out)
	}
}

func TestRenderFormAdvancedDisclosureAndCollapse(t *testing.T) {
	set := configTypes()
	f, err := form.New(context.Background(), set, value.New("Config", value.Struct{}), form.WithCollapseDepth(0))
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	f.ToggleAdvanced()
	r := New(registry.New(), WithDescriptors(set))

	out, err := r.RenderForm(context.Background(), f, FormOptions{Method: "get"})
	if err != nil {
		t.Fatalf("render form: %v", err)
	}
	if !strings.Contains(out, `method="GET"`) {
		t.Fatalf("expected normalised method:\n%s", out)
	}
	if !strings.Contains(out, `<details class="semval-advanced" open>`) {
		t.Fatalf("expected disclosed advanced section:\n%s", out)
	}
	if !strings.Contains(out, `<details open><summary>inner</summary>`) {
		t.Fatalf("expected expanded nested struct:\n%s", out)
	}
}

func TestSortedHiddenFields(t *testing.T) {
	got := SortedHiddenFields([]HiddenField{
		Hidden("_version", 1),
		Hidden(" ", "dropped"),
		CSRFToken("a"),
		CSRFToken("b"),
	})
	want := []HiddenField{{Name: "_csrf", Value: "b"}, {Name: "_version", Value: "1"}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestRenderFormToggleRoundTrip(t *testing.T) {
	r, f := newConfigForm(t, value.Struct{"verbose": value.New("RDFBool", true)})
	out, err := r.RenderForm(context.Background(), f, FormOptions{})
	if err != nil {
		t.Fatalf("render form: %v", err)
	}
	if !strings.Contains(out, `<input type="hidden" name="verbose" value="false"><input type="checkbox"`) {
		t.Fatalf("expected hidden companion before the checkbox:\n%s", out)
	}

	if err := f.ApplySubmission(url.Values{"verbose": {"false", "true"}, "host": {"web-1"}}); err != nil {
		t.Fatalf("ticked submission: %v", err)
	}
	if field, _ := f.Value().Field("verbose"); !value.Equal(field, value.New("RDFBool", true)) {
		t.Fatalf("expected ticked checkbox to stay true, got %s", f.Value().Key())
	}

	if err := f.ApplySubmission(url.Values{"verbose": {"false"}, "host": {"web-1"}}); err != nil {
		t.Fatalf("unticked submission: %v", err)
	}
	if _, ok := f.Value().Field("verbose"); ok {
		t.Fatalf("expected unticked checkbox to reset to the default, got %s", f.Value().Key())
	}
	if field, _ := f.Shadow().Field("verbose"); !value.Equal(field, value.New("RDFBool", false)) {
		t.Fatalf("expected false in the shadow, got %#v", field)
	}
}
