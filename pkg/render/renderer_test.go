package render

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	theme "github.com/goliatone/go-theme"
	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-semval/pkg/descriptor"
	"github.com/goliatone/go-semval/pkg/events"
	"github.com/goliatone/go-semval/pkg/registry"
	"github.com/goliatone/go-semval/pkg/render/template"
	"github.com/goliatone/go-semval/pkg/value"
)

type failingSource struct{}

func (failingSource) Get(context.Context, string) (descriptor.Descriptor, error) {
	return descriptor.Descriptor{}, errors.New("server unavailable")
}

func (failingSource) GetWithDependencies(context.Context, string) (descriptor.Set, error) {
	return nil, errors.New("server unavailable")
}

func types() descriptor.Set {
	return descriptor.Set{
		"RDFString":  {Name: "RDFString", Kind: descriptor.KindPrimitive, Mro: []string{"RDFString"}},
		"RDFInteger": {Name: "RDFInteger", Kind: descriptor.KindPrimitive, Mro: []string{"RDFInteger"}},
		"ClientURN":  {Name: "ClientURN", Kind: descriptor.KindPrimitive, Mro: []string{"ClientURN", "RDFURN"}},
		"Client": {
			Name: "Client",
			Kind: descriptor.KindStruct,
			Fields: []descriptor.Field{
				{Name: "urn", Type: "ClientURN", FriendlyName: "Client ID"},
				{Name: "hostname", Type: "RDFString"},
				{Name: "memory", Type: "RDFInteger"},
			},
		},
	}
}

func newRenderer(t *testing.T, options ...Option) *Renderer {
	t.Helper()
	set := types()
	reg := registry.New(registry.WithDescriptors(set))
	RegisterDefaults(reg)
	return New(reg, append([]Option{WithDescriptors(set)}, options...)...)
}

func TestRenderRegisteredHandleEscapesValue(t *testing.T) {
	r := newRenderer(t)
	out, err := r.Render(context.Background(), value.New("RDFString", "<b>host</b>"), Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := `<span class="semval-string">&lt;b&gt;host&lt;/b&gt;</span>`
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestRenderPendingValueIsEmpty(t *testing.T) {
	r := newRenderer(t)
	for _, v := range []*value.Value{nil, {Value: "x"}} {
		out, err := r.Render(context.Background(), v, Options{})
		if err != nil || out != "" {
			t.Fatalf("expected empty output for pending value, got %q (%v)", out, err)
		}
	}
}

func TestRenderStructUsesDescriptorOrderAndTitles(t *testing.T) {
	r := newRenderer(t)
	client := value.New("Client", value.Struct{
		"memory":   value.New("RDFInteger", json.Number("2048")),
		"hostname": value.New("RDFString", "web-1"),
		"urn":      value.New("ClientURN", "C.1"),
		"zz_extra": value.New("RDFString", "tail"),
	})

	out, err := r.Render(context.Background(), client, Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	order := []string{"Client ID", "hostname", "memory", "zz_extra"}
	last := -1
	for _, label := range order {
		idx := strings.Index(out, `<td class="semval-label">`+label+`</td>`)
		if idx < 0 {
			t.Fatalf("missing label %q in %s", label, out)
		}
		if idx < last {
			t.Fatalf("label %q out of order in %s", label, out)
		}
		last = idx
	}
	if !strings.Contains(out, `<a class="semval-urn" href="#C.1">C.1</a>`) {
		t.Fatalf("expected mro-resolved urn handle in %s", out)
	}
	if !strings.Contains(out, "2,048") {
		t.Fatalf("expected locale formatted integer in %s", out)
	}
}

func TestRenderNoLabelHandle(t *testing.T) {
	r := newRenderer(t)
	r.Registry().MustRegister("RDFString", registry.Handle{Name: "bare", Template: `{{ value }}`, NoLabel: true})

	out, err := r.Render(context.Background(), value.New("Client", value.Struct{
		"hostname": value.New("RDFString", "web-1"),
	}), Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(out, "semval-label") || !strings.Contains(out, `<td colspan="2">web-1</td>`) {
		t.Fatalf("expected label-less row, got %s", out)
	}
}

func TestRenderPrimitiveWithoutHandleUsesLocaleScalar(t *testing.T) {
	r := New(registry.New())
	out, err := r.Render(context.Background(), value.New("ByteSize", json.Number("1234567")), Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != `<span class="semval-scalar">1,234,567</span>` {
		t.Fatalf("unexpected scalar output %q", out)
	}
}

func TestRenderUnresolvedTypeFallsBackToLiteral(t *testing.T) {
	reg := registry.New(registry.WithDescriptors(failingSource{}))
	r := New(reg)
	out, err := r.Render(context.Background(), value.New("Mystery", "<script>x</script>"), Options{})
	if err != nil {
		t.Fatalf("expected fallback instead of error, got %v", err)
	}
	if !strings.Contains(out, `class="semval-unresolved"`) || !strings.Contains(out, `data-type="Mystery"`) {
		t.Fatalf("expected unresolved marker, got %s", out)
	}
	if strings.Contains(out, "<script>") {
		t.Fatalf("literal fallback was not sanitised: %s", out)
	}
}

func TestRenderListMarksDiffs(t *testing.T) {
	r := newRenderer(t)
	list := value.NewList(
		value.New("RDFString", "a"),
		&value.Value{Type: "RDFString", Value: "b", Diff: value.MarkAdded},
	)
	out, err := r.Render(context.Background(), list, Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := `<ul class="semval-list"><li><span class="semval-string">a</span></li>` +
		`<li class="diff-added"><span class="semval-string">b</span></li></ul>`
	if out != want {
		t.Fatalf("got %q\nwant %q", out, want)
	}
}

func TestCompiledTemplatesCachedPerScope(t *testing.T) {
	r := newRenderer(t)
	ctx := context.Background()
	v := value.New("RDFString", "x")

	for range 3 {
		if _, err := r.Render(ctx, v, Options{}); err != nil {
			t.Fatalf("render: %v", err)
		}
	}
	if got := r.Engine().Compiles(); got != 1 {
		t.Fatalf("expected one compile, got %d", got)
	}

	scope := (*registry.Overrides)(nil).Push(map[string]registry.Handle{
		"RDFString": {Name: "loud", Template: `<em>{{ value|upper }}</em>`},
	})
	out, err := r.Render(ctx, v, Options{Overrides: scope})
	if err != nil {
		t.Fatalf("render with overrides: %v", err)
	}
	if out != "<em>X</em>" {
		t.Fatalf("unexpected override output %q", out)
	}
	if got := r.Engine().Compiles(); got != 2 {
		t.Fatalf("expected override to compile once more, got %d", got)
	}

	r.ClearCache()
	if r.Engine().Len() != 0 {
		t.Fatalf("expected cleared cache")
	}
}

func TestThemePartialReplacesHandleTemplate(t *testing.T) {
	files := fstest.MapFS{"themes/dark/string.html": {Data: []byte(`<i class="{{ theme.tokens.text }}">{{ value }}</i>`)}}
	cfg := &theme.RendererConfig{
		Theme:    "dark",
		Partials: map[string]string{"semantic-string": "themes/dark/string.html"},
		Tokens:   map[string]string{"text": "fg-muted"},
	}
	r := newRenderer(t, WithEngine(template.New(template.WithFS(files))), WithTheme(cfg))

	out, err := r.Render(context.Background(), value.New("RDFString", "x"), Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != `<i class="fg-muted">x</i>` {
		t.Fatalf("unexpected themed output %q", out)
	}
}

func TestFormatFlags(t *testing.T) {
	bits := []Flag{{Name: "READ", Bit: 1}, {Name: "WRITE", Bit: 2}, {Name: "EXEC", Bit: 4}}
	cases := []struct {
		name string
		raw  any
		want FlagsView
	}{
		{name: "number", raw: json.Number("5"), want: FlagsView{Names: []string{"READ", "EXEC"}}},
		{name: "unknown bits", raw: 9, want: FlagsView{Names: []string{"READ"}, Unknown: 8}},
		{name: "negative", raw: json.Number("-1"), want: FlagsView{Malformed: true}},
		{name: "fraction", raw: 1.5, want: FlagsView{Malformed: true}},
		{name: "text", raw: "abc", want: FlagsView{Malformed: true}},
		{name: "zero", raw: "0", want: FlagsView{Names: []string{}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, FormatFlags(tc.raw, bits)); diff != "" {
				t.Fatalf("flags mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderFlagsHandle(t *testing.T) {
	r := New(registry.New())
	if err := r.RegisterFlags("StatMode", []Flag{{Name: "READ", Bit: 1}, {Name: "WRITE", Bit: 2}}); err != nil {
		t.Fatalf("register flags: %v", err)
	}
	ctx := context.Background()

	out, err := r.Render(ctx, value.New("StatMode", json.Number("3")), Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != `<span class="semval-flags">READ, WRITE</span>` {
		t.Fatalf("unexpected flags output %q", out)
	}

	out, err = r.Render(ctx, value.New("StatMode", json.Number("-2")), Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "malformed") {
		t.Fatalf("expected malformed state, got %q", out)
	}
}

func TestSlotLifecycle(t *testing.T) {
	bus := events.NewBus()
	r := newRenderer(t, WithBus(bus))
	var mounted int
	r.OnMount("semantic-string", func(_ context.Context, inst *Instance) error {
		mounted++
		inst.Subscribe(events.TopicServerError, func(any) {})
		return nil
	})

	var states []State
	slot := r.NewSlot(Options{}, func(s State) { states = append(states, s) })
	ctx := context.Background()

	if _, err := slot.Bind(ctx, value.New("RDFString", "a")); err != nil {
		t.Fatalf("bind: %v", err)
	}
	first := slot.Instance()
	if bus.Subscribers(events.TopicServerError) != 1 {
		t.Fatalf("expected mounted instance to subscribe")
	}

	if _, err := slot.Bind(ctx, value.New("RDFString", "b")); err != nil {
		t.Fatalf("rebind: %v", err)
	}
	if slot.Instance() != first || mounted != 1 {
		t.Fatalf("same type should reuse the instance")
	}
	if slot.HTML() != `<span class="semval-string">b</span>` {
		t.Fatalf("unexpected html %q", slot.HTML())
	}

	if _, err := slot.Bind(ctx, value.New("RDFInteger", json.Number("1"))); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if !first.Closed() {
		t.Fatalf("previous instance should be torn down")
	}
	if bus.Subscribers(events.TopicServerError) != 0 {
		t.Fatalf("teardown should release subscriptions")
	}

	if _, err := slot.Bind(ctx, nil); err != nil {
		t.Fatalf("unbind: %v", err)
	}

	want := []State{
		StateResolving, StateRendered,
		StateResolving, StateRendered,
		StateReplacing, StateResolving, StateRendered,
		StateUnresolved,
	}
	if diff := cmp.Diff(want, states); diff != "" {
		t.Fatalf("state transitions mismatch (-want +got):\n%s", diff)
	}
	if slot.Instance() != nil || slot.HTML() != "" {
		t.Fatalf("expected unbound slot")
	}
}

func TestSlotMountFailureLeavesSlotUnresolved(t *testing.T) {
	r := newRenderer(t)
	r.OnMount("semantic-string", func(_ context.Context, inst *Instance) error {
		return errors.New("subscribe failed")
	})
	slot := r.NewSlot(Options{}, nil)
	if _, err := slot.Bind(context.Background(), value.New("RDFString", "a")); err == nil {
		t.Fatalf("expected mount error")
	}
	if slot.State() != StateUnresolved || slot.Instance() != nil {
		t.Fatalf("expected unresolved slot after mount failure")
	}
}
