package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"sort"
	"sync"

	theme "github.com/goliatone/go-theme"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/goliatone/go-semval/pkg/descriptor"
	"github.com/goliatone/go-semval/pkg/events"
	"github.com/goliatone/go-semval/pkg/registry"
	"github.com/goliatone/go-semval/pkg/render/template"
	"github.com/goliatone/go-semval/pkg/value"
	"github.com/goliatone/go-semval/pkg/widgets"
)

// MountFunc runs when an instance of a handle is mounted by a Slot. It can
// start pollers or bus subscriptions and register their release with
// inst.OnTeardown.
type MountFunc func(ctx context.Context, inst *Instance) error

// Renderer turns tagged values into HTML by resolving a handle per type and
// executing its compiled template. Values without a handle fall back to the
// generic struct/list renderers or a locale-formatted scalar; values whose type
// cannot be resolved render as a sanitised literal.
type Renderer struct {
	values    *registry.Registry
	forms     *registry.Registry
	widgets   *widgets.Registry
	types     descriptor.Source
	engine    *template.Engine
	logger    *zap.Logger
	locale    language.Tag
	printer   *message.Printer
	sanitizer *bluemonday.Policy
	theme     *theme.RendererConfig
	bus       *events.Bus

	mu     sync.RWMutex
	flags  map[string][]Flag
	mounts map[string]MountFunc
}

type rendered struct {
	HTML   string
	Handle registry.Handle
}

// New constructs a Renderer over the value registry.
func New(values *registry.Registry, options ...Option) *Renderer {
	r := &Renderer{
		values:    values,
		engine:    template.New(),
		logger:    zap.NewNop(),
		locale:    language.English,
		sanitizer: bluemonday.StrictPolicy(),
		flags:     make(map[string][]Flag),
		mounts:    make(map[string]MountFunc),
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	if r.values == nil {
		r.values = registry.New()
	}
	if r.forms == nil {
		r.forms = registry.New(registry.WithDescriptors(r.types))
	}
	if r.widgets == nil {
		r.widgets = widgets.NewRegistry()
	}
	r.printer = message.NewPrinter(r.locale)
	return r
}

// Registry exposes the value registry the renderer resolves against.
func (r *Renderer) Registry() *registry.Registry { return r.values }

// Forms exposes the registry of form handles used by RenderForm.
func (r *Renderer) Forms() *registry.Registry { return r.forms }

// Engine exposes the template engine, mainly for cache inspection.
func (r *Renderer) Engine() *template.Engine { return r.engine }

// ClearCache drops every compiled template.
func (r *Renderer) ClearCache() {
	r.engine.Clear()
}

// OnMount registers fn to run whenever a Slot mounts an instance of the named
// handle.
func (r *Renderer) OnMount(handleName string, fn MountFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn == nil {
		delete(r.mounts, handleName)
		return
	}
	r.mounts[handleName] = fn
}

func (r *Renderer) mountFor(handleName string) MountFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mounts[handleName]
}

// Render produces HTML for v. A nil or untyped value renders as the empty
// string.
func (r *Renderer) Render(ctx context.Context, v *value.Value, opts Options) (string, error) {
	out, err := r.render(ctx, v, opts)
	return out.HTML, err
}

func (r *Renderer) render(ctx context.Context, v *value.Value, opts Options) (rendered, error) {
	if err := ctx.Err(); err != nil {
		return rendered{}, err
	}
	if v == nil {
		return rendered{}, nil
	}
	if v.IsList() {
		return r.renderList(ctx, v, opts)
	}
	if v.IsPending() {
		return rendered{}, nil
	}

	handle, err := r.values.Find(ctx, v.Type, opts.Overrides)
	switch {
	case err == nil:
		return r.renderHandle(ctx, v, handle, opts)
	case errors.Is(err, registry.ErrNoHandle):
		return r.renderGeneric(ctx, v, opts)
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return rendered{}, ctxErr
		}
		r.logger.Debug("semantic value type unresolved", zap.String("type", v.Type), zap.Error(err))
		return rendered{HTML: r.literal(v), Handle: registry.Handle{Name: HandleUnresolved}}, nil
	}
}

func (r *Renderer) renderGeneric(ctx context.Context, v *value.Value, opts Options) (rendered, error) {
	if v.IsStruct() {
		return r.renderHandle(ctx, v, protoHandle, opts)
	}
	r.logger.Debug("semantic value rendered as scalar", zap.String("type", v.Type))
	return r.renderHandle(ctx, v, scalarHandle, opts)
}

func (r *Renderer) renderHandle(ctx context.Context, v *value.Value, handle registry.Handle, opts Options) (rendered, error) {
	data, err := r.viewData(ctx, v, opts)
	if err != nil {
		return rendered{}, err
	}
	key := template.Key{Type: v.Type, Scope: opts.Overrides.Key(), Handle: handle.Name}
	out, err := r.engine.Render(key, r.source(handle), data)
	if err != nil {
		return rendered{}, fmt.Errorf("render: %s with %q: %w", v.Type, handle.Name, err)
	}
	return rendered{HTML: out, Handle: handle}, nil
}

func (r *Renderer) renderList(ctx context.Context, v *value.Value, opts Options) (rendered, error) {
	items := make([]map[string]any, 0, len(v.Items()))
	for _, item := range v.Items() {
		out, err := r.render(ctx, item, opts)
		if err != nil {
			return rendered{}, err
		}
		items = append(items, map[string]any{
			"html": out.HTML,
			"diff": string(markOf(item)),
		})
	}
	data := map[string]any{
		"items":    items,
		"metadata": opts.Metadata,
		"theme":    r.themeData(),
	}
	key := template.Key{Type: listKeyType, Scope: opts.Overrides.Key(), Handle: listHandle.Name}
	out, err := r.engine.Render(key, r.source(listHandle), data)
	if err != nil {
		return rendered{}, fmt.Errorf("render: list: %w", err)
	}
	return rendered{HTML: out, Handle: listHandle}, nil
}

func (r *Renderer) viewData(ctx context.Context, v *value.Value, opts Options) (map[string]any, error) {
	data := map[string]any{
		"type":     v.Type,
		"value":    v.Value,
		"text":     r.FormatScalar(v.Value),
		"metadata": opts.Metadata,
		"diff":     string(v.Diff),
		"theme":    r.themeData(),
	}
	if v.IsStruct() {
		children, err := r.renderChildren(ctx, v, opts)
		if err != nil {
			return nil, err
		}
		data["children"] = children
		data["value"] = scalarFields(v.Fields())
		data["text"] = ""
	}
	if bits, ok := r.flagsFor(v.Type); ok {
		data["flags"] = FormatFlags(v.Value, bits).view()
	}
	return data, nil
}

func (r *Renderer) renderChildren(ctx context.Context, v *value.Value, opts Options) ([]map[string]any, error) {
	fields := v.Fields()
	names, titles := r.fieldOrder(ctx, v.Type, fields)

	children := make([]map[string]any, 0, len(names))
	for _, name := range names {
		child := fields[name]
		out, err := r.render(ctx, child, opts)
		if err != nil {
			return nil, err
		}
		title := titles[name]
		if title == "" {
			title = name
		}
		children = append(children, map[string]any{
			"name":     name,
			"title":    title,
			"html":     out.HTML,
			"no_label": out.Handle.NoLabel,
			"diff":     string(markOf(child)),
		})
	}
	return children, nil
}

// fieldOrder lists the set fields of a struct in descriptor order when the
// descriptor is available, followed by unknown fields sorted by name.
func (r *Renderer) fieldOrder(ctx context.Context, typeName string, fields value.Struct) ([]string, map[string]string) {
	titles := make(map[string]string, len(fields))
	names := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))

	if r.types != nil {
		if desc, err := r.types.Get(ctx, typeName); err == nil {
			for _, field := range desc.Fields {
				if _, ok := fields[field.Name]; !ok {
					continue
				}
				names = append(names, field.Name)
				titles[field.Name] = field.Title()
				seen[field.Name] = struct{}{}
			}
		}
	}

	var rest []string
	for name := range fields {
		if _, ok := seen[name]; !ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...), titles
}

func (r *Renderer) source(handle registry.Handle) string {
	if r.theme != nil {
		if partial := r.theme.Partials[handle.Name]; partial != "" {
			return `{% include "` + partial + `" %}`
		}
	}
	return handle.Template
}

func (r *Renderer) themeData() map[string]any {
	if r.theme == nil {
		return nil
	}
	return map[string]any{
		"name":     r.theme.Theme,
		"variant":  r.theme.Variant,
		"tokens":   r.theme.Tokens,
		"css_vars": r.theme.CSSVars,
	}
}

// literal renders the raw payload with a "no renderer" marker.
func (r *Renderer) literal(v *value.Value) string {
	var raw string
	switch payload := v.Value.(type) {
	case nil:
		raw = ""
	case string:
		raw = payload
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			raw = fmt.Sprint(payload)
		} else {
			raw = string(encoded)
		}
	}
	return fmt.Sprintf(`<span class="semval-unresolved" data-type="%s" title="no renderer for type">%s</span>`,
		html.EscapeString(v.Type), r.sanitizer.Sanitize(raw))
}

func scalarFields(fields value.Struct) map[string]any {
	out := make(map[string]any, len(fields))
	for name, field := range fields {
		if field == nil || field.IsStruct() || field.IsList() {
			continue
		}
		out[name] = field.Value
	}
	return out
}

func markOf(v *value.Value) value.Mark {
	if v == nil {
		return value.MarkNone
	}
	return v.Diff
}
