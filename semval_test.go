package semval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	theme "github.com/goliatone/go-theme"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/goliatone/go-semval/pkg/diff"
	"github.com/goliatone/go-semval/pkg/events"
	"github.com/goliatone/go-semval/pkg/poll"
	"github.com/goliatone/go-semval/pkg/render"
	"github.com/goliatone/go-semval/pkg/testsupport"
	"github.com/goliatone/go-semval/pkg/value"
)

func newStack(t *testing.T, options ...Option) *Stack {
	t.Helper()
	stack, err := New(testsupport.MustLoadCatalog(t, "testdata/catalog.yaml"), options...)
	if err != nil {
		t.Fatalf("new stack: %v", err)
	}
	return stack
}

func TestNew_RequiresSource(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatalf("expected error for missing source")
	}
}

func TestStack_RendersCatalogValue(t *testing.T) {
	stack := newStack(t)
	v := testsupport.MustLoadValue(t, "testdata/client_before.json")

	html, err := stack.Render(context.Background(), v, render.Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		`<td class="semval-label">Client ID</td><td><a class="semval-urn" href="#C.1000">C.1000</a></td>`,
		`<td class="semval-label">Host name</td><td><span class="semval-string">web-1</span></td>`,
		`<span class="semval-number">2,048</span>`,
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in output:\n%s", want, html)
		}
	}
	if single, _ := stack.Types.Len(); single == 0 {
		t.Fatalf("expected descriptors to be cached after rendering")
	}
}

func TestStack_FormPrunesDefaults(t *testing.T) {
	stack := newStack(t)
	v := testsupport.MustLoadValue(t, "testdata/client_before.json")

	f, err := stack.NewForm(context.Background(), v)
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	if err := f.ApplyInput("memory", "0"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, ok := f.Value().Field("memory"); ok {
		t.Fatalf("expected memory reset to its default to be pruned")
	}

	html, err := stack.RenderForm(context.Background(), f, render.FormOptions{Hidden: []render.HiddenField{render.CSRFToken("t0k")}})
	if err != nil {
		t.Fatalf("render form: %v", err)
	}
	if !strings.Contains(html, `name="_csrf" value="t0k"`) {
		t.Fatalf("expected csrf token in form:\n%s", html)
	}
}

func TestStack_WatchAnnotatesChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	stack := newStack(t)
	results := []*value.Value{
		testsupport.MustLoadValue(t, "testdata/client_before.json"),
		testsupport.MustLoadValue(t, "testdata/client_after.json"),
	}

	var (
		mu      sync.Mutex
		calls   int
		updates []Update
	)
	fetch := func(context.Context) (*value.Value, error) {
		mu.Lock()
		defer mu.Unlock()
		next := results[calls]
		calls++
		return next, nil
	}
	onUpdate := func(u Update) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, u)
	}

	p, err := stack.Watch(context.Background(), fetch, onUpdate,
		poll.WithInterval(time.Millisecond),
		poll.Until(func(*value.Value) bool {
			mu.Lock()
			defer mu.Unlock()
			return calls == len(results)
		}),
	)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer p.Stop()

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("watch did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if len(updates[0].Changes) != 0 {
		t.Fatalf("first update must not carry changes: %+v", updates[0].Changes)
	}
	want := []diff.Change{
		{Path: "hostname", Mark: value.MarkChanged, Type: "RDFString"},
		{Path: "interrogate", Mark: value.MarkAdded, Type: "RDFBool"},
		{Path: "labels[1]", Mark: value.MarkAdded, Type: "RDFString"},
	}
	if d := cmp.Diff(want, updates[1].Changes); d != "" {
		t.Fatalf("changes mismatch (-want +got):\n%s", d)
	}
	if !strings.Contains(updates[1].HTML, `class="diff-changed"`) {
		t.Fatalf("expected diff markup in second render:\n%s", updates[1].HTML)
	}
}

type statusErr struct{ code int }

func (e statusErr) Error() string   { return "backend unavailable" }
func (e statusErr) StatusCode() int { return e.code }

func TestStack_WatchPublishesFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := events.NewBus()
	stack := newStack(t, WithBus(bus))

	got := make(chan events.ServerError, 1)
	unsubscribe := bus.Subscribe(events.TopicServerError, func(payload any) {
		if se, ok := payload.(events.ServerError); ok {
			select {
			case got <- se:
			default:
			}
		}
	})
	defer unsubscribe()

	fetch := func(context.Context) (*value.Value, error) {
		return nil, statusErr{code: 503}
	}
	p, err := stack.Watch(context.Background(), fetch, func(Update) {},
		poll.WithInterval(time.Hour), poll.WithSource("clients"))
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer p.Stop()

	select {
	case se := <-got:
		if se.Status != 503 || se.Source != "clients" {
			t.Fatalf("unexpected server error: %+v", se)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a server error on the bus")
	}
}

func TestThemeConfig_MergesVariant(t *testing.T) {
	selection := &theme.Selection{
		Theme:   "acme",
		Variant: "dark",
		Manifest: &theme.Manifest{
			Name:      "acme",
			Version:   "1.0.0",
			Tokens:    map[string]string{"brand": "#123456", "text": "fg"},
			Templates: map[string]string{"semantic-string": "themes/acme/string.html"},
			Assets: theme.Assets{
				Prefix: "/assets/acme",
				Files:  map[string]string{"stylesheet": "theme.css"},
			},
			Variants: map[string]theme.Variant{
				"dark": {
					Tokens:    map[string]string{"brand": "#654321"},
					Templates: map[string]string{"semantic-bool": "themes/acme/dark/bool.html"},
				},
			},
		},
	}

	cfg := ThemeConfig(selection)
	if cfg.Theme != "acme" || cfg.Variant != "dark" {
		t.Fatalf("unexpected selection %q/%q", cfg.Theme, cfg.Variant)
	}
	if diff := cmp.Diff(map[string]string{"brand": "#654321", "text": "fg"}, cfg.Tokens); diff != "" {
		t.Fatalf("tokens mismatch (-want +got):\n%s", diff)
	}
	if cfg.CSSVars["--brand"] != "#654321" {
		t.Fatalf("css vars not derived from tokens: %v", cfg.CSSVars)
	}
	if len(cfg.Partials) != 2 {
		t.Fatalf("expected manifest and variant partials, got %v", cfg.Partials)
	}
	if got := cfg.AssetURL("stylesheet"); got != "/assets/acme/theme.css" {
		t.Fatalf("unexpected asset url %q", got)
	}
	if got := cfg.AssetURL("missing"); got != "" {
		t.Fatalf("expected empty url for unknown asset, got %q", got)
	}
}

type stubSelector struct {
	selection *theme.Selection
	err       error
}

func (s stubSelector) Select(string, string, ...theme.QueryOption) (*theme.Selection, error) {
	return s.selection, s.err
}

func TestSelectTheme(t *testing.T) {
	if _, err := SelectTheme(nil, "acme", ""); err == nil {
		t.Fatalf("expected error for nil selector")
	}
	failure := errors.New("unknown theme")
	if _, err := SelectTheme(stubSelector{err: failure}, "acme", ""); !errors.Is(err, failure) {
		t.Fatalf("expected selector error, got %v", err)
	}
	cfg, err := SelectTheme(stubSelector{selection: &theme.Selection{Theme: "acme"}}, "acme", "")
	if err != nil || cfg.Theme != "acme" {
		t.Fatalf("unexpected result %+v, %v", cfg, err)
	}
}
